package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/app/repositories"
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
	"github.com/rs/zerolog"
)

// Directory answers membership and role questions for an organization. The
// workflow services never consult it for authorization; callers do.
type Directory interface {
	IsActiveMember(ctx context.Context, userID, orgID uuid.UUID) (bool, error)
	HasRole(ctx context.Context, userID, orgID uuid.UUID, roles ...models.Role) (bool, error)
	// CanManagePost is true for the post owner and for staff of its organization
	CanManagePost(ctx context.Context, userID uuid.UUID, post *models.Post) (bool, error)
	GetMembership(ctx context.Context, orgID, userID uuid.UUID) (*models.Membership, error)
	// EnsureMember creates an active membership when none exists
	EnsureMember(ctx context.Context, orgID, userID uuid.UUID, displayName string, role models.Role) (*models.Membership, error)
}

type directoryImpl struct {
	deps   Deps
	logger zerolog.Logger
}

// NewDirectory creates a new Directory
func NewDirectory(deps Deps) Directory {
	deps = deps.withDefaults()
	return &directoryImpl{deps: deps, logger: deps.Logger.With().Str("service", "directory").Logger()}
}

func (s *directoryImpl) lookup(ctx context.Context, userID, orgID uuid.UUID) (*models.Membership, error) {
	m, err := s.deps.Store.Memberships().Get(ctx, orgID, userID)
	if errors.Is(err, apperrors.ErrResourceNotFound) {
		return nil, nil
	}
	return m, err
}

func (s *directoryImpl) IsActiveMember(ctx context.Context, userID, orgID uuid.UUID) (bool, error) {
	m, err := s.lookup(ctx, userID, orgID)
	if err != nil || m == nil {
		return false, err
	}
	return m.IsActive(), nil
}

func (s *directoryImpl) HasRole(ctx context.Context, userID, orgID uuid.UUID, roles ...models.Role) (bool, error) {
	m, err := s.lookup(ctx, userID, orgID)
	if err != nil || m == nil {
		return false, err
	}
	return m.HasRole(roles...), nil
}

func (s *directoryImpl) CanManagePost(ctx context.Context, userID uuid.UUID, post *models.Post) (bool, error) {
	if post.OwnerID == userID {
		return true, nil
	}
	return s.HasRole(ctx, userID, post.OrgID, models.StaffRoles...)
}

func (s *directoryImpl) GetMembership(ctx context.Context, orgID, userID uuid.UUID) (*models.Membership, error) {
	return s.deps.Store.Memberships().Get(ctx, orgID, userID)
}

func (s *directoryImpl) EnsureMember(ctx context.Context, orgID, userID uuid.UUID, displayName string, role models.Role) (*models.Membership, error) {
	var out *models.Membership
	err := s.deps.tx(ctx, "ensure_member", func(ctx context.Context, repos repositories.Repositories) error {
		existing, err := repos.Memberships().Get(ctx, orgID, userID)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, apperrors.ErrResourceNotFound) {
			return err
		}
		now := s.deps.now()
		out = &models.Membership{
			OrgID:       orgID,
			UserID:      userID,
			DisplayName: displayName,
			Role:        role,
			Status:      models.MembershipActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return repos.Memberships().Upsert(ctx, out)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("orgID", orgID.String()).Str("userID", userID.String()).Msg("Member ensured")
	return out, nil
}
