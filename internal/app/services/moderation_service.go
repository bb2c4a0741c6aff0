package services

// Moderation is the one write path that sets post and membership state
// WITHOUT consulting the transition tables. Every function here force-sets
// status from any source state and never calls transitionPost or
// models.TransitionPost. Changes to the workflow tables must not leak in here.

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/app/repositories"
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
	"github.com/kapwanet/exchange/internal/pkg/validation"
	"github.com/rs/zerolog"
)

const expiredSuspensionReason = "Suspension period ended"

// ReportInput is a member's report of content or another member
type ReportInput struct {
	Target  models.Target       `json:"-"`
	Reason  models.ReportReason `json:"reason" validate:"required"`
	Details string              `json:"details" validate:"max=2000"`
}

// ModerationService defines the interface for moderation operations
type ModerationService interface {
	// HideContent force-cancels a post or hides a message
	HideContent(ctx context.Context, req models.ModerationRequest) (*models.ModerationAction, error)
	// RemoveContent is a soft removal with the same effect as HideContent
	RemoveContent(ctx context.Context, req models.ModerationRequest) (*models.ModerationAction, error)
	Warn(ctx context.Context, req models.ModerationRequest) (*models.ModerationAction, error)
	Suspend(ctx context.Context, req models.ModerationRequest) (*models.ModerationAction, error)
	Unsuspend(ctx context.Context, req models.ModerationRequest) (*models.ModerationAction, error)
	Ban(ctx context.Context, req models.ModerationRequest) (*models.ModerationAction, error)
	Unban(ctx context.Context, req models.ModerationRequest) (*models.ModerationAction, error)

	FileReport(ctx context.Context, orgID, reporterID uuid.UUID, in ReportInput) (*models.Report, error)
	GetReport(ctx context.Context, reportID uuid.UUID) (*models.Report, error)
	ReviewReport(ctx context.Context, reportID, moderatorID uuid.UUID) (*models.Report, error)
	ResolveReport(ctx context.Context, reportID, moderatorID uuid.UUID, notes string) (*models.Report, error)
	DismissReport(ctx context.Context, reportID, moderatorID uuid.UUID, notes string) (*models.Report, error)
	ListReports(ctx context.Context, orgID uuid.UUID, status models.ReportStatus) ([]*models.Report, error)
	ListActions(ctx context.Context, orgID uuid.UUID) ([]*models.ModerationAction, error)

	// LiftExpiredSuspensions reactivates members whose suspension has run out
	LiftExpiredSuspensions(ctx context.Context) (int, error)
}

type moderationServiceImpl struct {
	deps   Deps
	logger zerolog.Logger
}

// NewModerationService creates a new ModerationService
func NewModerationService(deps Deps) ModerationService {
	deps = deps.withDefaults()
	return &moderationServiceImpl{deps: deps, logger: deps.Logger.With().Str("service", "moderation").Logger()}
}

type actionFn func(ctx context.Context, repos repositories.Repositories, action *models.ModerationAction) error

// apply validates req, runs the effect and writes the log entry in one
// transaction, resolving the linked report when one is given
func (s *moderationServiceImpl) apply(ctx context.Context, actionType models.ActionType, req models.ModerationRequest, effect actionFn) (*models.ModerationAction, error) {
	if req.Target == nil {
		return nil, apperrors.NewValidationError("target", "a moderation target is required")
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	moderator := req.ModeratorID
	action := &models.ModerationAction{
		ID:           uuid.New(),
		OrgID:        req.OrgID,
		ModeratorID:  &moderator,
		Type:         actionType,
		Target:       req.Target,
		ReportID:     req.ReportID,
		Reason:       req.Reason,
		Notes:        req.Notes,
		UserMessage:  req.UserMessage,
		DurationDays: req.DurationDays,
		CreatedAt:    s.deps.now(),
	}

	err := s.deps.tx(ctx, string(actionType), func(ctx context.Context, repos repositories.Repositories) error {
		if err := effect(ctx, repos, action); err != nil {
			return err
		}
		if err := repos.Moderation().CreateAction(ctx, action); err != nil {
			return err
		}
		if req.ReportID == nil {
			return nil
		}
		report, err := repos.Moderation().GetReport(ctx, *req.ReportID)
		if err != nil {
			return err
		}
		if report.OrgID != req.OrgID {
			return apperrors.NewResourceNotFoundError("report not found")
		}
		return s.settleReport(ctx, repos, report, models.ReportResolved, moderator, req.Reason)
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.Moderation(string(actionType))
	s.logger.Info().
		Str("actionID", action.ID.String()).
		Str("action", string(actionType)).
		Str("targetType", string(req.Target.Kind())).
		Str("targetID", req.Target.TargetID().String()).
		Msg("Moderation action applied")
	return action, nil
}

// hideTarget force-cancels a post or hides a message regardless of its status
func (s *moderationServiceImpl) hideTarget(ctx context.Context, repos repositories.Repositories, action *models.ModerationAction) error {
	now := s.deps.now()
	switch t := action.Target.(type) {
	case models.HelpPostTarget:
		return s.forceCancelPost(ctx, repos, action.OrgID, t.PostID, models.VariantHelp, now)
	case models.ItemPostTarget:
		return s.forceCancelPost(ctx, repos, action.OrgID, t.PostID, models.VariantItem, now)
	case models.MessageTarget:
		msg, err := repos.Messages().GetByID(ctx, t.MessageID)
		if err != nil {
			return err
		}
		if msg.OrgID != action.OrgID {
			return apperrors.NewResourceNotFoundError("message not found")
		}
		return repos.Messages().SetHidden(ctx, msg.ID, true, action.Reason, now)
	case models.UserTarget:
		return apperrors.NewValidationError("target", "members cannot be hidden; suspend or ban instead")
	}
	return apperrors.NewValidationError("target", "unsupported moderation target")
}

func (s *moderationServiceImpl) forceCancelPost(ctx context.Context, repos repositories.Repositories, orgID, postID uuid.UUID, variant models.Variant, at time.Time) error {
	post, err := repos.Posts().GetByIDForUpdate(ctx, postID)
	if err != nil {
		return err
	}
	if post.OrgID != orgID || post.Variant != variant {
		return apperrors.NewResourceNotFoundError(fmt.Sprintf("%s post not found", variant))
	}
	// Direct status write, no transition check
	if err := repos.Posts().UpdateStatus(ctx, post.ID, models.PostCancelled, at); err != nil {
		return err
	}
	s.logger.Warn().
		Str("postID", post.ID.String()).
		Str("from", string(post.Status)).
		Msg("Post force-cancelled by moderation")
	return nil
}

func (s *moderationServiceImpl) HideContent(ctx context.Context, req models.ModerationRequest) (*models.ModerationAction, error) {
	return s.apply(ctx, models.ActionHideContent, req, s.hideTarget)
}

func (s *moderationServiceImpl) RemoveContent(ctx context.Context, req models.ModerationRequest) (*models.ModerationAction, error) {
	return s.apply(ctx, models.ActionRemoveContent, req, s.hideTarget)
}

// member loads the membership a user-targeted action applies to
func member(ctx context.Context, repos repositories.Repositories, action *models.ModerationAction) (*models.Membership, error) {
	target, ok := action.Target.(models.UserTarget)
	if !ok {
		return nil, apperrors.NewValidationError("target", fmt.Sprintf("%s requires a user target", action.Type))
	}
	return repos.Memberships().Get(ctx, action.OrgID, target.UserID)
}

func (s *moderationServiceImpl) Warn(ctx context.Context, req models.ModerationRequest) (*models.ModerationAction, error) {
	return s.apply(ctx, models.ActionWarn, req, func(ctx context.Context, repos repositories.Repositories, action *models.ModerationAction) error {
		if _, ok := action.Target.(models.UserTarget); !ok {
			return nil
		}
		_, err := member(ctx, repos, action)
		return err
	})
}

func (s *moderationServiceImpl) Suspend(ctx context.Context, req models.ModerationRequest) (*models.ModerationAction, error) {
	return s.apply(ctx, models.ActionSuspend, req, func(ctx context.Context, repos repositories.Repositories, action *models.ModerationAction) error {
		m, err := member(ctx, repos, action)
		if err != nil {
			return err
		}
		if action.DurationDays != nil {
			expires := action.CreatedAt.Add(time.Duration(*action.DurationDays) * 24 * time.Hour)
			action.ExpiresAt = &expires
		}
		m.Status = models.MembershipSuspended
		m.UpdatedAt = action.CreatedAt
		return repos.Memberships().Upsert(ctx, m)
	})
}

func (s *moderationServiceImpl) Unsuspend(ctx context.Context, req models.ModerationRequest) (*models.ModerationAction, error) {
	return s.apply(ctx, models.ActionUnsuspend, req, func(ctx context.Context, repos repositories.Repositories, action *models.ModerationAction) error {
		m, err := member(ctx, repos, action)
		if err != nil {
			return err
		}
		if m.Status != models.MembershipSuspended {
			return apperrors.NewCustomError(apperrors.ErrNotSuspended, apperrors.ErrNotSuspended.Error())
		}
		m.Status = models.MembershipActive
		m.UpdatedAt = action.CreatedAt
		return repos.Memberships().Upsert(ctx, m)
	})
}

func (s *moderationServiceImpl) Ban(ctx context.Context, req models.ModerationRequest) (*models.ModerationAction, error) {
	return s.apply(ctx, models.ActionBan, req, func(ctx context.Context, repos repositories.Repositories, action *models.ModerationAction) error {
		m, err := member(ctx, repos, action)
		if apperrors.Is(err, apperrors.ErrResourceNotFound) {
			m = &models.Membership{
				OrgID:     action.OrgID,
				UserID:    action.Target.TargetID(),
				Role:      models.RoleMember,
				CreatedAt: action.CreatedAt,
			}
		} else if err != nil {
			return err
		}
		m.Status = models.MembershipLeft
		m.IsBanned = true
		m.UpdatedAt = action.CreatedAt
		return repos.Memberships().Upsert(ctx, m)
	})
}

func (s *moderationServiceImpl) Unban(ctx context.Context, req models.ModerationRequest) (*models.ModerationAction, error) {
	return s.apply(ctx, models.ActionUnban, req, func(ctx context.Context, repos repositories.Repositories, action *models.ModerationAction) error {
		m, err := member(ctx, repos, action)
		if err != nil {
			return err
		}
		if !m.IsBanned {
			return apperrors.NewConflictError("member is not banned")
		}
		m.IsBanned = false
		m.Status = models.MembershipActive
		m.UpdatedAt = action.CreatedAt
		return repos.Memberships().Upsert(ctx, m)
	})
}

func (s *moderationServiceImpl) FileReport(ctx context.Context, orgID, reporterID uuid.UUID, in ReportInput) (*models.Report, error) {
	if in.Target == nil {
		return nil, apperrors.NewValidationError("target", "a report target is required")
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if !models.ValidReportReason(in.Reason) {
		return nil, apperrors.NewValidationError("reason", fmt.Sprintf("unknown report reason %q", in.Reason))
	}
	if user, ok := in.Target.(models.UserTarget); ok && user.UserID == reporterID {
		return nil, apperrors.NewValidationError("target", "you cannot report yourself")
	}

	now := s.deps.now()
	report := &models.Report{
		ID:         uuid.New(),
		OrgID:      orgID,
		Target:     in.Target,
		ReporterID: reporterID,
		Reason:     in.Reason,
		Details:    in.Details,
		Status:     models.ReportOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.deps.Store.Moderation().CreateReport(ctx, report); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("reportID", report.ID.String()).
		Str("targetType", string(in.Target.Kind())).
		Str("reason", string(in.Reason)).
		Msg("Report filed")
	return report, nil
}

func (s *moderationServiceImpl) settleReport(ctx context.Context, repos repositories.Repositories, report *models.Report,
	to models.ReportStatus, moderatorID uuid.UUID, notes string) error {
	if err := models.TransitionReport(report.Status, to); err != nil {
		return err
	}
	now := s.deps.now()
	report.Status = to
	report.UpdatedAt = now
	if to == models.ReportResolved || to == models.ReportDismissed {
		report.ResolvedBy = &moderatorID
		report.ResolvedAt = &now
		report.ResolutionNotes = notes
	}
	return repos.Moderation().UpdateReport(ctx, report)
}

func (s *moderationServiceImpl) moveReport(ctx context.Context, reportID, moderatorID uuid.UUID, to models.ReportStatus, notes string) (*models.Report, error) {
	var out *models.Report
	err := s.deps.tx(ctx, "report_"+string(to), func(ctx context.Context, repos repositories.Repositories) error {
		report, err := repos.Moderation().GetReport(ctx, reportID)
		if err != nil {
			return err
		}
		out = report
		return s.settleReport(ctx, repos, report, to, moderatorID, notes)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("reportID", reportID.String()).Str("status", string(to)).Msg("Report updated")
	return out, nil
}

func (s *moderationServiceImpl) GetReport(ctx context.Context, reportID uuid.UUID) (*models.Report, error) {
	return s.deps.Store.Moderation().GetReport(ctx, reportID)
}

func (s *moderationServiceImpl) ReviewReport(ctx context.Context, reportID, moderatorID uuid.UUID) (*models.Report, error) {
	return s.moveReport(ctx, reportID, moderatorID, models.ReportReviewing, "")
}

func (s *moderationServiceImpl) ResolveReport(ctx context.Context, reportID, moderatorID uuid.UUID, notes string) (*models.Report, error) {
	return s.moveReport(ctx, reportID, moderatorID, models.ReportResolved, notes)
}

func (s *moderationServiceImpl) DismissReport(ctx context.Context, reportID, moderatorID uuid.UUID, notes string) (*models.Report, error) {
	return s.moveReport(ctx, reportID, moderatorID, models.ReportDismissed, notes)
}

func (s *moderationServiceImpl) ListReports(ctx context.Context, orgID uuid.UUID, status models.ReportStatus) ([]*models.Report, error) {
	return s.deps.Store.Moderation().ListReports(ctx, orgID, status)
}

func (s *moderationServiceImpl) ListActions(ctx context.Context, orgID uuid.UUID) ([]*models.ModerationAction, error) {
	return s.deps.Store.Moderation().ListActions(ctx, orgID)
}

func (s *moderationServiceImpl) LiftExpiredSuspensions(ctx context.Context) (int, error) {
	expired, err := s.deps.Store.Moderation().ListExpiredSuspensions(ctx, s.deps.now())
	if err != nil {
		return 0, err
	}

	lifted := 0
	for _, suspension := range expired {
		err := s.deps.tx(ctx, "lift_suspension", func(ctx context.Context, repos repositories.Repositories) error {
			m, err := repos.Memberships().Get(ctx, suspension.OrgID, suspension.Target.TargetID())
			if err != nil {
				return err
			}
			now := s.deps.now()
			if m.Status == models.MembershipSuspended {
				m.Status = models.MembershipActive
				m.UpdatedAt = now
				if err := repos.Memberships().Upsert(ctx, m); err != nil {
					return err
				}
			}
			return repos.Moderation().CreateAction(ctx, &models.ModerationAction{
				ID:        uuid.New(),
				OrgID:     suspension.OrgID,
				Type:      models.ActionUnsuspend,
				Target:    suspension.Target,
				Reason:    expiredSuspensionReason,
				CreatedAt: now,
			})
		})
		if err != nil {
			s.logger.Error().Err(err).
				Str("orgID", suspension.OrgID.String()).
				Str("userID", suspension.Target.TargetID().String()).
				Msg("Failed to lift expired suspension")
			continue
		}
		lifted++
		s.deps.Metrics.Moderation(string(models.ActionUnsuspend))
	}

	if lifted > 0 {
		s.logger.Info().Int("count", lifted).Msg("Expired suspensions lifted")
	}
	return lifted, nil
}
