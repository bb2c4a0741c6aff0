package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/app/services"
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
)

// AuthorizationService decides who may drive the workflow. The services
// assume the actor has already been authorized here.
type AuthorizationService struct {
	directory services.Directory
}

// NewAuthorizationService creates a new AuthorizationService
func NewAuthorizationService(directory services.Directory) *AuthorizationService {
	return &AuthorizationService{directory: directory}
}

func denied(message string) error {
	return apperrors.NewForbiddenError(message)
}

// IsStaff reports whether the user moderates the organization
func (s *AuthorizationService) IsStaff(ctx context.Context, userID, orgID uuid.UUID) (bool, error) {
	return s.directory.HasRole(ctx, userID, orgID, models.StaffRoles...)
}

// RequireMember fails unless the user is an active member of the organization
func (s *AuthorizationService) RequireMember(ctx context.Context, userID, orgID uuid.UUID) error {
	ok, err := s.directory.IsActiveMember(ctx, userID, orgID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrNotMember
	}
	return nil
}

// RequireStaff fails unless the user is an org admin or moderator
func (s *AuthorizationService) RequireStaff(ctx context.Context, userID, orgID uuid.UUID) error {
	ok, err := s.IsStaff(ctx, userID, orgID)
	if err != nil {
		return err
	}
	if !ok {
		return denied("moderator or admin role required")
	}
	return nil
}

// CanManagePost validates the user can edit or move the post
func (s *AuthorizationService) CanManagePost(ctx context.Context, userID uuid.UUID, post *models.Post) error {
	ok, err := s.directory.CanManagePost(ctx, userID, post)
	if err != nil {
		return err
	}
	if !ok {
		return denied("only the post owner or a moderator can manage this post")
	}
	return nil
}

// CanDecide validates the user can accept or decline the match
func (s *AuthorizationService) CanDecide(ctx context.Context, userID uuid.UUID, match *models.Match) error {
	if match.OwnerID == userID {
		return nil
	}
	staff, err := s.IsStaff(ctx, userID, match.OrgID)
	if err != nil {
		return err
	}
	if !staff {
		return denied("only the post owner or a moderator can decide on this match")
	}
	return nil
}

// CanWithdraw validates the user is the responder of the match
func (s *AuthorizationService) CanWithdraw(_ context.Context, userID uuid.UUID, match *models.Match) error {
	if match.ResponderID != userID {
		return denied("only the responder can withdraw this match")
	}
	return nil
}

// CanClose validates the user is a party of the match
func (s *AuthorizationService) CanClose(_ context.Context, userID uuid.UUID, match *models.Match) error {
	if match.ResponderID != userID && match.OwnerID != userID {
		return denied("only the post owner or the responder can close this match")
	}
	return nil
}

// CanView validates the user is a party of the match or staff
func (s *AuthorizationService) CanView(ctx context.Context, userID uuid.UUID, match *models.Match) error {
	if match.ResponderID == userID || match.OwnerID == userID {
		return nil
	}
	staff, err := s.IsStaff(ctx, userID, match.OrgID)
	if err != nil {
		return err
	}
	if !staff {
		return denied("you are not a party of this match")
	}
	return nil
}
