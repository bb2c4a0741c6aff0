package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/db"
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
)

var matchColumns = []string{
	"id", "org_id", "variant", "post_id", "responder_id", "status", "message", "quantity",
	"thread_id", "accepted_at", "closed_at", "created_at", "updated_at",
}

var eventColumns = []string{
	"id", "org_id", "match_id", "actor_id", "from_status", "to_status", "message",
	"prior_message", "created_at",
}

type matchRepo struct {
	q db.Querier
}

func scanMatch(row pgx.Row) (*models.Match, error) {
	var m models.Match
	err := row.Scan(
		&m.ID, &m.OrgID, &m.Variant, &m.PostID, &m.ResponderID, &m.Status, &m.Message,
		&m.Quantity, &m.ThreadID, &m.AcceptedAt, &m.ClosedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *matchRepo) Create(ctx context.Context, m *models.Match) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := exec(ctx, r.q, psql.Insert("matches").Columns(matchColumns...).Values(
		m.ID, m.OrgID, m.Variant, m.PostID, m.ResponderID, m.Status, m.Message, m.Quantity,
		m.ThreadID, m.AcceptedAt, m.ClosedAt, m.CreatedAt, m.UpdatedAt,
	))
	if err != nil {
		return duplicateInterest(err)
	}
	return nil
}

func (r *matchRepo) get(ctx context.Context, id uuid.UUID, suffix string) (*models.Match, error) {
	b := psql.Select(matchColumns...).From("matches").Where(squirrel.Eq{"id": id})
	if suffix != "" {
		b = b.Suffix(suffix)
	}
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	m, err := scanMatch(r.q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err, "match")
	}
	return m, nil
}

func (r *matchRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	return r.get(ctx, id, "")
}

func (r *matchRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	return r.get(ctx, id, "FOR UPDATE")
}

func (r *matchRepo) Update(ctx context.Context, m *models.Match) error {
	ok, err := exec(ctx, r.q, psql.Update("matches").SetMap(map[string]interface{}{
		"status":      m.Status,
		"message":     m.Message,
		"quantity":    m.Quantity,
		"thread_id":   m.ThreadID,
		"accepted_at": m.AcceptedAt,
		"closed_at":   m.ClosedAt,
		"updated_at":  m.UpdatedAt,
	}).Where(squirrel.Eq{"id": m.ID}))
	if err != nil {
		return duplicateInterest(err)
	}
	if !ok {
		return apperrors.NewResourceNotFoundError("match not found")
	}
	return nil
}

func (r *matchRepo) list(ctx context.Context, b squirrel.SelectBuilder) ([]*models.Match, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing matches: %w", err)
	}
	defer rows.Close()

	matches := []*models.Match{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *matchRepo) ListForPair(ctx context.Context, postID, responderID uuid.UUID) ([]*models.Match, error) {
	return r.list(ctx, psql.Select(matchColumns...).From("matches").
		Where(squirrel.Eq{"post_id": postID, "responder_id": responderID}).
		OrderBy("created_at DESC", "id DESC"))
}

func (r *matchRepo) ListByPost(ctx context.Context, postID uuid.UUID, statuses ...models.MatchStatus) ([]*models.Match, error) {
	b := psql.Select(matchColumns...).From("matches").Where(squirrel.Eq{"post_id": postID})
	if len(statuses) > 0 {
		b = b.Where(squirrel.Eq{"status": statusStrings(statuses)})
	}
	return r.list(ctx, b.OrderBy("created_at", "id"))
}

func (r *matchRepo) ListByResponder(ctx context.Context, orgID, responderID uuid.UUID, variant models.Variant) ([]*models.Match, error) {
	b := psql.Select(matchColumns...).From("matches").
		Where(squirrel.Eq{"org_id": orgID, "responder_id": responderID})
	if variant != "" {
		b = b.Where(squirrel.Eq{"variant": variant})
	}
	return r.list(ctx, b.OrderBy("created_at", "id"))
}

func statusStrings(statuses []models.MatchStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *matchRepo) AppendEvent(ctx context.Context, e *models.MatchEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := exec(ctx, r.q, psql.Insert("match_events").Columns(eventColumns...).Values(
		e.ID, e.OrgID, e.MatchID, e.ActorID, e.FromStatus, e.ToStatus, e.Message,
		e.PriorMessage, e.CreatedAt,
	))
	if err != nil {
		return fmt.Errorf("error appending match event: %w", err)
	}
	return nil
}

func (r *matchRepo) ListEvents(ctx context.Context, matchID uuid.UUID) ([]*models.MatchEvent, error) {
	sql, args, err := psql.Select(eventColumns...).From("match_events").
		Where(squirrel.Eq{"match_id": matchID}).
		OrderBy("seq").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing match events: %w", err)
	}
	defer rows.Close()

	events := []*models.MatchEvent{}
	for rows.Next() {
		var e models.MatchEvent
		if err := rows.Scan(&e.ID, &e.OrgID, &e.MatchID, &e.ActorID, &e.FromStatus, &e.ToStatus,
			&e.Message, &e.PriorMessage, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
