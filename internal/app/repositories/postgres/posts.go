package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/db"
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
)

var postColumns = []string{
	"id", "org_id", "variant", "owner_id", "kind", "category", "title", "description",
	"urgency", "condition", "quantity", "approx_location", "availability", "pickup_instructions",
	"expiry_date", "allergens", "storage", "dietary_info", "is_homemade", "status",
	"created_at", "updated_at",
}

type postRepo struct {
	q db.Querier
}

func scanPost(row pgx.Row) (*models.Post, error) {
	var p models.Post
	err := row.Scan(
		&p.ID, &p.OrgID, &p.Variant, &p.OwnerID, &p.Kind, &p.Category, &p.Title, &p.Description,
		&p.Urgency, &p.Condition, &p.Quantity, &p.ApproxLocation, &p.Availability, &p.Pickup,
		&p.Safety.ExpiryDate, &p.Safety.Allergens, &p.Safety.Storage, &p.Safety.DietaryInfo,
		&p.Safety.IsHomemade, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func allergens(p *models.Post) []string {
	if p.Safety.Allergens == nil {
		return []string{}
	}
	return p.Safety.Allergens
}

func (r *postRepo) Create(ctx context.Context, p *models.Post) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := exec(ctx, r.q, psql.Insert("posts").Columns(postColumns...).Values(
		p.ID, p.OrgID, p.Variant, p.OwnerID, p.Kind, p.Category, p.Title, p.Description,
		p.Urgency, p.Condition, p.Quantity, p.ApproxLocation, p.Availability, p.Pickup,
		p.Safety.ExpiryDate, allergens(p), p.Safety.Storage, p.Safety.DietaryInfo,
		p.Safety.IsHomemade, p.Status, p.CreatedAt, p.UpdatedAt,
	))
	if err != nil {
		return fmt.Errorf("error creating post: %w", err)
	}
	return nil
}

func (r *postRepo) get(ctx context.Context, id uuid.UUID, suffix string) (*models.Post, error) {
	b := psql.Select(postColumns...).From("posts").Where(squirrel.Eq{"id": id})
	if suffix != "" {
		b = b.Suffix(suffix)
	}
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	p, err := scanPost(r.q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err, "post")
	}
	return p, nil
}

func (r *postRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return r.get(ctx, id, "")
}

func (r *postRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return r.get(ctx, id, "FOR UPDATE")
}

func (r *postRepo) Update(ctx context.Context, p *models.Post) error {
	ok, err := exec(ctx, r.q, psql.Update("posts").SetMap(map[string]interface{}{
		"kind":                p.Kind,
		"category":            p.Category,
		"title":               p.Title,
		"description":         p.Description,
		"urgency":             p.Urgency,
		"condition":           p.Condition,
		"quantity":            p.Quantity,
		"approx_location":     p.ApproxLocation,
		"availability":        p.Availability,
		"pickup_instructions": p.Pickup,
		"expiry_date":         p.Safety.ExpiryDate,
		"allergens":           allergens(p),
		"storage":             p.Safety.Storage,
		"dietary_info":        p.Safety.DietaryInfo,
		"is_homemade":         p.Safety.IsHomemade,
		"status":              p.Status,
		"updated_at":          p.UpdatedAt,
	}).Where(squirrel.Eq{"id": p.ID}))
	if err != nil {
		return fmt.Errorf("error updating post: %w", err)
	}
	if !ok {
		return apperrors.NewResourceNotFoundError("post not found")
	}
	return nil
}

func (r *postRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.PostStatus, at time.Time) error {
	ok, err := exec(ctx, r.q, psql.Update("posts").
		Set("status", status).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("error updating post status: %w", err)
	}
	if !ok {
		return apperrors.NewResourceNotFoundError("post not found")
	}
	return nil
}

func (r *postRepo) List(ctx context.Context, f models.PostFilter) ([]*models.Post, error) {
	b := psql.Select(postColumns...).From("posts")
	if f.OrgID != uuid.Nil {
		b = b.Where(squirrel.Eq{"org_id": f.OrgID})
	}
	if f.Variant != "" {
		b = b.Where(squirrel.Eq{"variant": f.Variant})
	}
	if f.Status != "" {
		b = b.Where(squirrel.Eq{"status": f.Status})
	}
	if f.Kind != "" {
		b = b.Where(squirrel.Eq{"kind": f.Kind})
	}
	if f.Category != "" {
		b = b.Where(squirrel.Eq{"category": f.Category})
	}
	if f.OwnerID != uuid.Nil {
		b = b.Where(squirrel.Eq{"owner_id": f.OwnerID})
	}
	b = b.OrderBy("created_at DESC", "id")
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		b = b.Offset(uint64(f.Offset))
	}

	sql, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	defer rows.Close()

	posts := []*models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
