package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/app/repositories"
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
	"github.com/kapwanet/exchange/internal/pkg/validation"
	"github.com/rs/zerolog"
)

// PostService defines the interface for post operations
type PostService interface {
	Create(ctx context.Context, orgID, ownerID uuid.UUID, variant models.Variant, in models.PostInput) (*models.Post, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Post, error)
	List(ctx context.Context, filter models.PostFilter) ([]*models.Post, error)
	// Update rewrites the descriptive fields; status is never changed here
	Update(ctx context.Context, id uuid.UUID, in models.PostInput) (*models.Post, error)

	Cancel(ctx context.Context, id uuid.UUID) (*models.Post, error)
	Reopen(ctx context.Context, id uuid.UUID) (*models.Post, error)
	MarkMatched(ctx context.Context, id uuid.UUID) (*models.Post, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) (*models.Post, error)
	ValidTransitions(ctx context.Context, id uuid.UUID) ([]models.PostStatus, error)
}

type postServiceImpl struct {
	deps   Deps
	logger zerolog.Logger
}

// NewPostService creates a new PostService
func NewPostService(deps Deps) PostService {
	deps = deps.withDefaults()
	return &postServiceImpl{deps: deps, logger: deps.Logger.With().Str("service", "posts").Logger()}
}

// validatePost checks the input against the variant's rules
func (s *postServiceImpl) validatePost(variant models.Variant, in models.PostInput) error {
	if !variant.Valid() {
		return apperrors.NewValidationError("variant", fmt.Sprintf("unknown variant %q", variant))
	}
	if err := validation.Struct(in); err != nil {
		return err
	}
	if !models.ValidCategory(variant, in.Category) {
		return apperrors.NewValidationError("category",
			fmt.Sprintf("category %q is not valid for %s posts", in.Category, variant))
	}
	if in.Category.IsPerishable() && in.Kind == models.PostKindOffer {
		if in.ExpiryDate == nil {
			return apperrors.NewValidationError("expiryDate", "food offers require an expiry date")
		}
		probe := models.Post{Safety: models.FoodSafety{ExpiryDate: in.ExpiryDate}}
		if probe.IsExpired(s.deps.now()) {
			return apperrors.NewValidationError("expiryDate", "expiry date cannot be in the past")
		}
	}
	return nil
}

func (s *postServiceImpl) Create(ctx context.Context, orgID, ownerID uuid.UUID, variant models.Variant, in models.PostInput) (*models.Post, error) {
	if err := s.validatePost(variant, in); err != nil {
		return nil, err
	}

	member, err := s.deps.Store.Memberships().Get(ctx, orgID, ownerID)
	if err != nil && !apperrors.Is(err, apperrors.ErrResourceNotFound) {
		return nil, err
	}
	if member == nil || !member.IsActive() {
		return nil, apperrors.NewCustomError(apperrors.ErrNotMember, apperrors.ErrNotMember.Error())
	}

	now := s.deps.now()
	post := &models.Post{
		ID:        uuid.New(),
		OrgID:     orgID,
		Variant:   variant,
		OwnerID:   ownerID,
		Status:    models.OpenStatus(variant),
		CreatedAt: now,
		UpdatedAt: now,
	}
	in.Apply(post)

	if err := s.deps.Store.Posts().Create(ctx, post); err != nil {
		s.logger.Error().Err(err).Str("orgID", orgID.String()).Msg("Failed to create post")
		return nil, err
	}

	s.logger.Info().
		Str("postID", post.ID.String()).
		Str("variant", string(variant)).
		Str("category", string(post.Category)).
		Msg("Post created")
	return post, nil
}

func (s *postServiceImpl) Get(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return s.deps.Store.Posts().GetByID(ctx, id)
}

func (s *postServiceImpl) List(ctx context.Context, filter models.PostFilter) ([]*models.Post, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	return s.deps.Store.Posts().List(ctx, filter)
}

func (s *postServiceImpl) Update(ctx context.Context, id uuid.UUID, in models.PostInput) (*models.Post, error) {
	var out *models.Post
	err := s.deps.tx(ctx, "update_post", func(ctx context.Context, repos repositories.Repositories) error {
		post, err := repos.Posts().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.validatePost(post.Variant, in); err != nil {
			return err
		}
		in.Apply(post)
		post.UpdatedAt = s.deps.now()
		out = post
		return repos.Posts().Update(ctx, post)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("postID", id.String()).Msg("Post updated")
	return out, nil
}

// transitionPost validates current -> to against the table and persists it.
// It is the only path by which the workflow changes a post's status.
func transitionPost(ctx context.Context, deps Deps, repos repositories.Repositories, post *models.Post, to models.PostStatus) error {
	from := post.Status
	if err := models.TransitionPost(post.Variant, from, to); err != nil {
		return err
	}
	now := deps.now()
	if err := repos.Posts().UpdateStatus(ctx, post.ID, to, now); err != nil {
		return err
	}
	post.Status = to
	post.UpdatedAt = now

	deps.Metrics.PostTransition(string(post.Variant), string(from), string(to))
	deps.Logger.Info().
		Str("postID", post.ID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Post status changed")
	return nil
}

func (s *postServiceImpl) move(ctx context.Context, op string, id uuid.UUID, target func(models.Variant) models.PostStatus) (*models.Post, error) {
	var out *models.Post
	err := s.deps.cascade(ctx, op, id, func(ctx context.Context, repos repositories.Repositories) error {
		post, err := repos.Posts().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		out = post
		return transitionPost(ctx, s.deps, repos, post, target(post.Variant))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *postServiceImpl) Cancel(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return s.move(ctx, "cancel_post", id, func(models.Variant) models.PostStatus { return models.PostCancelled })
}

func (s *postServiceImpl) Reopen(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return s.move(ctx, "reopen_post", id, models.OpenStatus)
}

func (s *postServiceImpl) MarkMatched(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return s.move(ctx, "mark_post_matched", id, models.MatchedStatus)
}

func (s *postServiceImpl) MarkCompleted(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return s.move(ctx, "complete_post", id, func(models.Variant) models.PostStatus { return models.PostCompleted })
}

func (s *postServiceImpl) ValidTransitions(ctx context.Context, id uuid.UUID) ([]models.PostStatus, error) {
	post, err := s.deps.Store.Posts().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return models.AllowedPostTransitions(post.Variant, post.Status), nil
}
