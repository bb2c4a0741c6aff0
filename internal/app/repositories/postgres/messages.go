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
	"github.com/kapwanet/exchange/internal/pkg/dberrors"
)

var messageColumns = []string{
	"id", "org_id", "thread_id", "sender_id", "message_type", "body", "is_hidden",
	"hidden_reason", "created_at", "updated_at",
}

type messageRepo struct {
	q db.Querier
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	err := row.Scan(&m.ID, &m.OrgID, &m.ThreadID, &m.SenderID, &m.Kind, &m.Body, &m.IsHidden,
		&m.HiddenReason, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *messageRepo) Create(ctx context.Context, m *models.Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := exec(ctx, r.q, psql.Insert("messages").Columns(messageColumns...).Values(
		m.ID, m.OrgID, m.ThreadID, m.SenderID, m.Kind, m.Body, m.IsHidden, m.HiddenReason,
		m.CreatedAt, m.UpdatedAt,
	))
	if dberrors.IsForeignKeyViolation(err) {
		return apperrors.NewResourceNotFoundError("thread not found")
	}
	if err != nil {
		return fmt.Errorf("error creating message: %w", err)
	}
	return nil
}

func (r *messageRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	sql, args, err := psql.Select(messageColumns...).From("messages").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	m, err := scanMessage(r.q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err, "message")
	}
	return m, nil
}

func (r *messageRepo) ListByThread(ctx context.Context, threadID uuid.UUID, includeHidden bool) ([]*models.Message, error) {
	b := psql.Select(messageColumns...).From("messages").Where(squirrel.Eq{"thread_id": threadID})
	if !includeHidden {
		b = b.Where(squirrel.Eq{"is_hidden": false})
	}
	sql, args, err := b.OrderBy("seq").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing messages: %w", err)
	}
	defer rows.Close()

	messages := []*models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *messageRepo) CountUnread(ctx context.Context, threadID, userID uuid.UUID, since *time.Time) (int, error) {
	b := psql.Select("COUNT(*)").From("messages").
		Where(squirrel.Eq{"thread_id": threadID}).
		Where(squirrel.Or{squirrel.Eq{"sender_id": nil}, squirrel.NotEq{"sender_id": userID}})
	if since != nil {
		b = b.Where(squirrel.Gt{"created_at": *since})
	}
	sql, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	var count int
	if err := r.q.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting unread messages: %w", err)
	}
	return count, nil
}

func (r *messageRepo) SetHidden(ctx context.Context, id uuid.UUID, hidden bool, reason string, at time.Time) error {
	ok, err := exec(ctx, r.q, psql.Update("messages").
		Set("is_hidden", hidden).
		Set("hidden_reason", reason).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("error hiding message: %w", err)
	}
	if !ok {
		return apperrors.NewResourceNotFoundError("message not found")
	}
	return nil
}
