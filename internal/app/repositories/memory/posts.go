package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
)

type postRepo struct{ r *repos }

func (p postRepo) Create(ctx context.Context, post *models.Post) error {
	return p.r.run("posts.Create", func(st *state) error {
		if post.ID == uuid.Nil {
			post.ID = uuid.New()
		}
		if _, exists := st.posts[post.ID]; exists {
			return apperrors.NewConflictError("post already exists")
		}
		st.posts[post.ID] = copyPost(post)
		return nil
	})
}

func (p postRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var out *models.Post
	err := p.r.run("posts.GetByID", func(st *state) error {
		post, ok := st.posts[id]
		if !ok {
			return apperrors.NewResourceNotFoundError("post not found")
		}
		out = copyPost(post)
		return nil
	})
	return out, err
}

// GetByIDForUpdate needs no row lock: transactions are already serialized.
func (p postRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return p.GetByID(ctx, id)
}

func (p postRepo) Update(ctx context.Context, post *models.Post) error {
	return p.r.run("posts.Update", func(st *state) error {
		if _, ok := st.posts[post.ID]; !ok {
			return apperrors.NewResourceNotFoundError("post not found")
		}
		st.posts[post.ID] = copyPost(post)
		return nil
	})
}

func (p postRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.PostStatus, at time.Time) error {
	return p.r.run("posts.UpdateStatus", func(st *state) error {
		post, ok := st.posts[id]
		if !ok {
			return apperrors.NewResourceNotFoundError("post not found")
		}
		post.Status = status
		post.UpdatedAt = at
		return nil
	})
}

func (p postRepo) List(ctx context.Context, filter models.PostFilter) ([]*models.Post, error) {
	var out []*models.Post
	err := p.r.run("posts.List", func(st *state) error {
		for _, post := range st.posts {
			if matchesFilter(post, filter) {
				out = append(out, copyPost(post))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*models.Post{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matchesFilter(p *models.Post, f models.PostFilter) bool {
	switch {
	case f.OrgID != uuid.Nil && p.OrgID != f.OrgID:
		return false
	case f.Variant != "" && p.Variant != f.Variant:
		return false
	case f.Status != "" && p.Status != f.Status:
		return false
	case f.Kind != "" && p.Kind != f.Kind:
		return false
	case f.Category != "" && p.Category != f.Category:
		return false
	case f.OwnerID != uuid.Nil && p.OwnerID != f.OwnerID:
		return false
	}
	return true
}
