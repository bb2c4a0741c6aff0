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

type membershipRepo struct {
	q db.Querier
}

func (r *membershipRepo) Get(ctx context.Context, orgID, userID uuid.UUID) (*models.Membership, error) {
	sql, args, err := psql.Select("org_id", "user_id", "display_name", "role", "status", "is_banned",
		"notes", "created_at", "updated_at").
		From("memberships").
		Where(squirrel.Eq{"org_id": orgID, "user_id": userID}).
		ToSql()
	if err != nil {
		return nil, err
	}
	var m models.Membership
	err = r.q.QueryRow(ctx, sql, args...).Scan(&m.OrgID, &m.UserID, &m.DisplayName, &m.Role,
		&m.Status, &m.IsBanned, &m.Notes, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "membership")
	}
	return &m, nil
}

func (r *membershipRepo) Upsert(ctx context.Context, m *models.Membership) error {
	_, err := exec(ctx, r.q, psql.Insert("memberships").
		Columns("org_id", "user_id", "display_name", "role", "status", "is_banned", "notes",
			"created_at", "updated_at").
		Values(m.OrgID, m.UserID, m.DisplayName, m.Role, m.Status, m.IsBanned, m.Notes,
			m.CreatedAt, m.UpdatedAt).
		Suffix(`ON CONFLICT (org_id, user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			role = EXCLUDED.role,
			status = EXCLUDED.status,
			is_banned = EXCLUDED.is_banned,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at`))
	if err != nil {
		return fmt.Errorf("error saving membership: %w", err)
	}
	return nil
}

var reportColumns = []string{
	"id", "org_id", "target_type", "target_id", "reporter_id", "reason", "details", "status",
	"resolution_notes", "resolved_by", "resolved_at", "created_at", "updated_at",
}

var actionColumns = []string{
	"id", "org_id", "moderator_id", "action_type", "target_type", "target_id", "report_id",
	"reason", "internal_notes", "user_message", "duration_days", "expires_at", "created_at",
}

type moderationRepo struct {
	q db.Querier
}

func scanReport(row pgx.Row) (*models.Report, error) {
	var (
		r        models.Report
		kind     models.TargetKind
		targetID uuid.UUID
	)
	err := row.Scan(&r.ID, &r.OrgID, &kind, &targetID, &r.ReporterID, &r.Reason, &r.Details,
		&r.Status, &r.ResolutionNotes, &r.ResolvedBy, &r.ResolvedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if r.Target, err = models.NewTarget(kind, targetID); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanAction(row pgx.Row) (*models.ModerationAction, error) {
	var (
		a        models.ModerationAction
		kind     models.TargetKind
		targetID uuid.UUID
	)
	err := row.Scan(&a.ID, &a.OrgID, &a.ModeratorID, &a.Type, &kind, &targetID, &a.ReportID,
		&a.Reason, &a.Notes, &a.UserMessage, &a.DurationDays, &a.ExpiresAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if a.Target, err = models.NewTarget(kind, targetID); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *moderationRepo) CreateReport(ctx context.Context, rep *models.Report) error {
	if rep.ID == uuid.Nil {
		rep.ID = uuid.New()
	}
	_, err := exec(ctx, r.q, psql.Insert("reports").Columns(reportColumns...).Values(
		rep.ID, rep.OrgID, rep.Target.Kind(), rep.Target.TargetID(), rep.ReporterID, rep.Reason,
		rep.Details, rep.Status, rep.ResolutionNotes, rep.ResolvedBy, rep.ResolvedAt,
		rep.CreatedAt, rep.UpdatedAt,
	))
	if err != nil {
		return fmt.Errorf("error creating report: %w", err)
	}
	return nil
}

func (r *moderationRepo) GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	sql, args, err := psql.Select(reportColumns...).From("reports").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	rep, err := scanReport(r.q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err, "report")
	}
	return rep, nil
}

func (r *moderationRepo) UpdateReport(ctx context.Context, rep *models.Report) error {
	ok, err := exec(ctx, r.q, psql.Update("reports").SetMap(map[string]interface{}{
		"status":           rep.Status,
		"resolution_notes": rep.ResolutionNotes,
		"resolved_by":      rep.ResolvedBy,
		"resolved_at":      rep.ResolvedAt,
		"updated_at":       rep.UpdatedAt,
	}).Where(squirrel.Eq{"id": rep.ID}))
	if err != nil {
		return fmt.Errorf("error updating report: %w", err)
	}
	if !ok {
		return apperrors.NewResourceNotFoundError("report not found")
	}
	return nil
}

func (r *moderationRepo) ListReports(ctx context.Context, orgID uuid.UUID, status models.ReportStatus) ([]*models.Report, error) {
	b := psql.Select(reportColumns...).From("reports").Where(squirrel.Eq{"org_id": orgID})
	if status != "" {
		b = b.Where(squirrel.Eq{"status": status})
	}
	sql, args, err := b.OrderBy("created_at DESC").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing reports: %w", err)
	}
	defer rows.Close()

	reports := []*models.Report{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}

func (r *moderationRepo) CreateAction(ctx context.Context, a *models.ModerationAction) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := exec(ctx, r.q, psql.Insert("moderation_actions").Columns(actionColumns...).Values(
		a.ID, a.OrgID, a.ModeratorID, a.Type, a.Target.Kind(), a.Target.TargetID(), a.ReportID,
		a.Reason, a.Notes, a.UserMessage, a.DurationDays, a.ExpiresAt, a.CreatedAt,
	))
	if err != nil {
		return fmt.Errorf("error creating moderation action: %w", err)
	}
	return nil
}

func (r *moderationRepo) listActions(ctx context.Context, sql string, args []interface{}) ([]*models.ModerationAction, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing moderation actions: %w", err)
	}
	defer rows.Close()

	actions := []*models.ModerationAction{}
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func (r *moderationRepo) ListActions(ctx context.Context, orgID uuid.UUID) ([]*models.ModerationAction, error) {
	sql, args, err := psql.Select(actionColumns...).From("moderation_actions").
		Where(squirrel.Eq{"org_id": orgID}).
		OrderBy("seq DESC").
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.listActions(ctx, sql, args)
}

func (r *moderationRepo) ListExpiredSuspensions(ctx context.Context, now time.Time) ([]*models.ModerationAction, error) {
	latest := psql.Select(actionColumns...).
		Options("DISTINCT ON (org_id, target_id)").
		From("moderation_actions").
		Where(squirrel.Eq{
			"target_type": models.TargetUser,
			"action_type": []string{
				string(models.ActionSuspend), string(models.ActionUnsuspend),
				string(models.ActionBan), string(models.ActionUnban),
			},
		}).
		OrderBy("org_id", "target_id", "seq DESC")

	sql, args, err := psql.Select(actionColumns...).
		FromSelect(latest, "latest").
		Where(squirrel.Eq{"action_type": models.ActionSuspend}).
		Where(squirrel.NotEq{"expires_at": nil}).
		Where(squirrel.LtOrEq{"expires_at": now}).
		OrderBy("expires_at").
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.listActions(ctx, sql, args)
}
