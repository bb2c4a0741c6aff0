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

// participantsExpr aggregates the participant ids of t in join order
const participantsExpr = `COALESCE((SELECT array_agg(p.user_id::text ORDER BY p.seq)
	FROM thread_participants p WHERE p.thread_id = t.id), '{}') AS participants`

var threadColumns = []string{
	"t.id", "t.org_id", "t.thread_type", "t.ref_id", "t.subject", "t.last_message_at",
	"t.created_at", "t.updated_at", participantsExpr,
}

type threadRepo struct {
	q db.Querier
}

func scanThread(row pgx.Row) (*models.Thread, error) {
	var t models.Thread
	var participants []string
	err := row.Scan(&t.ID, &t.OrgID, &t.Type, &t.RefID, &t.Subject, &t.LastMessageAt,
		&t.CreatedAt, &t.UpdatedAt, &participants)
	if err != nil {
		return nil, err
	}
	t.Participants = make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		id, err := uuid.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("invalid participant id %q: %w", p, err)
		}
		t.Participants = append(t.Participants, id)
	}
	return &t, nil
}

func (r *threadRepo) Create(ctx context.Context, t *models.Thread) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	var directKey *string
	if key := t.DirectKey(); key != "" {
		directKey = &key
	}
	_, err := exec(ctx, r.q, psql.Insert("threads").
		Columns("id", "org_id", "thread_type", "ref_id", "subject", "direct_key", "last_message_at", "created_at", "updated_at").
		Values(t.ID, t.OrgID, t.Type, t.RefID, t.Subject, directKey, t.LastMessageAt, t.CreatedAt, t.UpdatedAt))
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "threads_direct_key_idx") {
			return apperrors.NewConflictError("direct thread already exists")
		}
		return fmt.Errorf("error creating thread: %w", err)
	}
	for _, userID := range t.Participants {
		if err := r.AddParticipant(ctx, t.ID, t.OrgID, userID, t.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (r *threadRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Thread, error) {
	sql, args, err := psql.Select(threadColumns...).From("threads t").Where(squirrel.Eq{"t.id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	t, err := scanThread(r.q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err, "thread")
	}
	return t, nil
}

func (r *threadRepo) FindDirect(ctx context.Context, orgID, userA, userB uuid.UUID) (*models.Thread, error) {
	member := "EXISTS (SELECT 1 FROM thread_participants p WHERE p.thread_id = t.id AND p.user_id = ?)"
	sql, args, err := psql.Select(threadColumns...).From("threads t").
		Where(squirrel.Eq{"t.org_id": orgID, "t.thread_type": models.ThreadDirect}).
		Where(member, userA).
		Where(member, userB).
		OrderBy("t.created_at").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}
	t, err := scanThread(r.q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err, "direct thread")
	}
	return t, nil
}

func (r *threadRepo) AddParticipant(ctx context.Context, threadID, orgID, userID uuid.UUID, at time.Time) error {
	_, err := exec(ctx, r.q, psql.Insert("thread_participants").
		Columns("thread_id", "org_id", "user_id", "joined_at").
		Values(threadID, orgID, userID, at).
		Suffix("ON CONFLICT (thread_id, user_id) DO NOTHING"))
	if dberrors.IsForeignKeyViolation(err) {
		return apperrors.NewResourceNotFoundError("thread not found")
	}
	if err != nil {
		return fmt.Errorf("error adding participant: %w", err)
	}
	return nil
}

func (r *threadRepo) RemoveParticipant(ctx context.Context, threadID, userID uuid.UUID) error {
	_, err := exec(ctx, r.q, psql.Delete("thread_participants").
		Where(squirrel.Eq{"thread_id": threadID, "user_id": userID}))
	if err != nil {
		return fmt.Errorf("error removing participant: %w", err)
	}
	return nil
}

func (r *threadRepo) GetParticipant(ctx context.Context, threadID, userID uuid.UUID) (*models.ThreadParticipant, error) {
	sql, args, err := psql.Select("thread_id", "org_id", "user_id", "last_read_at", "joined_at").
		From("thread_participants").
		Where(squirrel.Eq{"thread_id": threadID, "user_id": userID}).
		ToSql()
	if err != nil {
		return nil, err
	}
	var p models.ThreadParticipant
	err = r.q.QueryRow(ctx, sql, args...).Scan(&p.ThreadID, &p.OrgID, &p.UserID, &p.LastReadAt, &p.JoinedAt)
	if err != nil {
		return nil, notFound(err, "participant")
	}
	return &p, nil
}

func (r *threadRepo) MarkRead(ctx context.Context, threadID, userID uuid.UUID, at time.Time) error {
	ok, err := exec(ctx, r.q, psql.Update("thread_participants").
		Set("last_read_at", at).
		Where(squirrel.Eq{"thread_id": threadID, "user_id": userID}))
	if err != nil {
		return fmt.Errorf("error marking thread read: %w", err)
	}
	if !ok {
		return apperrors.NewResourceNotFoundError("participant not found")
	}
	return nil
}

func (r *threadRepo) TouchLastMessage(ctx context.Context, threadID uuid.UUID, at time.Time) error {
	ok, err := exec(ctx, r.q, psql.Update("threads").
		Set("last_message_at", at).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": threadID}))
	if err != nil {
		return fmt.Errorf("error touching thread: %w", err)
	}
	if !ok {
		return apperrors.NewResourceNotFoundError("thread not found")
	}
	return nil
}

func (r *threadRepo) ListForUser(ctx context.Context, orgID, userID uuid.UUID) ([]*models.Thread, error) {
	sql, args, err := psql.Select(threadColumns...).From("threads t").
		Join("thread_participants me ON me.thread_id = t.id").
		Where(squirrel.Eq{"t.org_id": orgID, "me.user_id": userID}).
		OrderBy("t.last_message_at DESC NULLS LAST", "t.created_at DESC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing threads: %w", err)
	}
	defer rows.Close()

	threads := []*models.Thread{}
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}
