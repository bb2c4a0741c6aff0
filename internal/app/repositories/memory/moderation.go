package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
)

type membershipRepo struct{ r *repos }

func (m membershipRepo) Get(ctx context.Context, orgID, userID uuid.UUID) (*models.Membership, error) {
	var out *models.Membership
	err := m.r.run("memberships.Get", func(st *state) error {
		row, ok := st.memberships[membershipKey{orgID, userID}]
		if !ok {
			return apperrors.NewResourceNotFoundError("membership not found")
		}
		out = copyMembership(row)
		return nil
	})
	return out, err
}

func (m membershipRepo) Upsert(ctx context.Context, membership *models.Membership) error {
	return m.r.run("memberships.Upsert", func(st *state) error {
		key := membershipKey{membership.OrgID, membership.UserID}
		if existing, ok := st.memberships[key]; ok && membership.CreatedAt.IsZero() {
			membership.CreatedAt = existing.CreatedAt
		}
		st.memberships[key] = copyMembership(membership)
		return nil
	})
}

type moderationRepo struct{ r *repos }

func (m moderationRepo) CreateReport(ctx context.Context, report *models.Report) error {
	return m.r.run("moderation.CreateReport", func(st *state) error {
		if report.ID == uuid.Nil {
			report.ID = uuid.New()
		}
		st.reports[report.ID] = copyReport(report)
		return nil
	})
}

func (m moderationRepo) GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var out *models.Report
	err := m.r.run("moderation.GetReport", func(st *state) error {
		row, ok := st.reports[id]
		if !ok {
			return apperrors.NewResourceNotFoundError("report not found")
		}
		out = copyReport(row)
		return nil
	})
	return out, err
}

func (m moderationRepo) UpdateReport(ctx context.Context, report *models.Report) error {
	return m.r.run("moderation.UpdateReport", func(st *state) error {
		if _, ok := st.reports[report.ID]; !ok {
			return apperrors.NewResourceNotFoundError("report not found")
		}
		st.reports[report.ID] = copyReport(report)
		return nil
	})
}

func (m moderationRepo) ListReports(ctx context.Context, orgID uuid.UUID, status models.ReportStatus) ([]*models.Report, error) {
	out := []*models.Report{}
	err := m.r.run("moderation.ListReports", func(st *state) error {
		for _, row := range st.reports {
			if row.OrgID == orgID && (status == "" || row.Status == status) {
				out = append(out, copyReport(row))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (m moderationRepo) CreateAction(ctx context.Context, action *models.ModerationAction) error {
	return m.r.run("moderation.CreateAction", func(st *state) error {
		if action.ID == uuid.Nil {
			action.ID = uuid.New()
		}
		st.actions = append(st.actions, copyAction(action))
		return nil
	})
}

// ListActions returns the organization's action log, newest first
func (m moderationRepo) ListActions(ctx context.Context, orgID uuid.UUID) ([]*models.ModerationAction, error) {
	out := []*models.ModerationAction{}
	err := m.r.run("moderation.ListActions", func(st *state) error {
		for i := len(st.actions) - 1; i >= 0; i-- {
			if st.actions[i].OrgID == orgID {
				out = append(out, copyAction(st.actions[i]))
			}
		}
		return nil
	})
	return out, err
}

// ListExpiredSuspensions only considers the latest membership-changing action
// of each user, so a suspension that was replaced or lifted is never returned.
func (m moderationRepo) ListExpiredSuspensions(ctx context.Context, now time.Time) ([]*models.ModerationAction, error) {
	out := []*models.ModerationAction{}
	err := m.r.run("moderation.ListExpiredSuspensions", func(st *state) error {
		latest := map[membershipKey]*models.ModerationAction{}
		for _, a := range st.actions {
			if a.Target == nil || a.Target.Kind() != models.TargetUser || !a.Type.ChangesMembership() {
				continue
			}
			// append order is creation order
			latest[membershipKey{a.OrgID, a.Target.TargetID()}] = a
		}
		for _, a := range latest {
			if a.Type == models.ActionSuspend && a.ExpiresAt != nil && !a.ExpiresAt.After(now) {
				out = append(out, copyAction(a))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	return out, err
}
