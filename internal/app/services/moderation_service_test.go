package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) request(mod uuid.UUID, target models.Target) models.ModerationRequest {
	return models.ModerationRequest{OrgID: f.org, ModeratorID: mod, Target: target, Reason: "policy violation"}
}

// Hiding a post forces it to cancelled from every status, including terminal ones
func TestModerationService_HideBypassesTransitionTable(t *testing.T) {
	f := newFixture(t)
	mod := f.member(t, "Mo", models.RoleModerator)
	owner := f.member(t, "Uma", models.RoleMember)

	for _, variant := range []models.Variant{models.VariantHelp, models.VariantItem} {
		for _, from := range []models.PostStatus{
			models.OpenStatus(variant), models.MatchedStatus(variant), models.PostCompleted, models.PostCancelled,
		} {
			t.Run(string(variant)+"/"+string(from), func(t *testing.T) {
				var post *models.Post
				if variant == models.VariantItem {
					post = f.itemPost(t, owner, "Lamp", 1)
				} else {
					post = f.helpPost(t, owner, "Ride")
				}
				require.NoError(t, f.store.Posts().UpdateStatus(f.ctx, post.ID, from, time.Now()))

				action, err := f.moderation.HideContent(f.ctx, f.request(mod, models.PostTarget(variant, post.ID)))
				require.NoError(t, err)
				assert.Equal(t, models.ActionHideContent, action.Type)
				assert.Equal(t, models.PostCancelled, f.reloadPost(t, post.ID).Status)
			})
		}
	}
}

func TestModerationService_RemoveContentTargets(t *testing.T) {
	f := newFixture(t)
	mod := f.member(t, "Mo", models.RoleModerator)
	owner := f.member(t, "Uma", models.RoleMember)
	help := f.helpPost(t, owner, "Ride")

	_, err := f.moderation.RemoveContent(f.ctx, f.request(mod, models.ItemPostTarget{PostID: help.ID}))
	assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)
	assert.Equal(t, models.PostOpen, f.reloadPost(t, help.ID).Status)

	_, err = f.moderation.RemoveContent(f.ctx, f.request(mod, models.UserTarget{UserID: owner}))
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	_, err = f.moderation.RemoveContent(f.ctx, models.ModerationRequest{OrgID: f.org, ModeratorID: mod})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	missingReason := f.request(mod, models.HelpPostTarget{PostID: help.ID})
	missingReason.Reason = ""
	_, err = f.moderation.RemoveContent(f.ctx, missingReason)
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	action, err := f.moderation.RemoveContent(f.ctx, f.request(mod, models.HelpPostTarget{PostID: help.ID}))
	require.NoError(t, err)
	assert.Equal(t, models.ActionRemoveContent, action.Type)
	assert.Equal(t, models.PostCancelled, f.reloadPost(t, help.ID).Status)

	actions, err := f.moderation.ListActions(f.ctx, f.org)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, help.ID, actions[0].Target.TargetID())
}

func TestModerationService_SuspendAndUnsuspend(t *testing.T) {
	f := newFixture(t)
	mod := f.member(t, "Mo", models.RoleModerator)
	user := f.member(t, "Uma", models.RoleMember)

	_, err := f.moderation.Unsuspend(f.ctx, f.request(mod, models.UserTarget{UserID: user}))
	assert.ErrorIs(t, err, apperrors.ErrNotSuspended)

	req := f.request(mod, models.UserTarget{UserID: user})
	days := 7
	req.DurationDays = &days
	action, err := f.moderation.Suspend(f.ctx, req)
	require.NoError(t, err)
	require.NotNil(t, action.ExpiresAt)
	assert.Equal(t, action.CreatedAt.Add(7*24*time.Hour), *action.ExpiresAt)

	active, err := f.directory.IsActiveMember(f.ctx, user, f.org)
	require.NoError(t, err)
	assert.False(t, active)

	_, err = f.moderation.Unsuspend(f.ctx, f.request(mod, models.UserTarget{UserID: user}))
	require.NoError(t, err)
	active, err = f.directory.IsActiveMember(f.ctx, user, f.org)
	require.NoError(t, err)
	assert.True(t, active)

	_, err = f.moderation.Suspend(f.ctx, f.request(mod, models.HelpPostTarget{PostID: uuid.New()}))
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	_, err = f.moderation.Suspend(f.ctx, f.request(mod, models.UserTarget{UserID: uuid.New()}))
	assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)
}

func TestModerationService_BanAndUnban(t *testing.T) {
	f := newFixture(t)
	mod := f.member(t, "Mo", models.RoleModerator)
	stranger := uuid.New()

	_, err := f.moderation.Ban(f.ctx, f.request(mod, models.UserTarget{UserID: stranger}))
	require.NoError(t, err)

	m, err := f.directory.GetMembership(f.ctx, f.org, stranger)
	require.NoError(t, err)
	assert.True(t, m.IsBanned)
	assert.Equal(t, models.MembershipLeft, m.Status)

	_, err = f.posts.Create(f.ctx, f.org, stranger, models.VariantHelp, models.PostInput{
		Kind: models.PostKindRequest, Category: models.CategoryErrands, Title: "x", Description: "y",
	})
	assert.ErrorIs(t, err, apperrors.ErrNotMember)

	_, err = f.moderation.Unban(f.ctx, f.request(mod, models.UserTarget{UserID: stranger}))
	require.NoError(t, err)
	active, err := f.directory.IsActiveMember(f.ctx, stranger, f.org)
	require.NoError(t, err)
	assert.True(t, active)

	_, err = f.moderation.Unban(f.ctx, f.request(mod, models.UserTarget{UserID: stranger}))
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestModerationService_ReportLifecycle(t *testing.T) {
	f := newFixture(t)
	mod := f.member(t, "Mo", models.RoleModerator)
	owner := f.member(t, "Uma", models.RoleMember)
	reporter := f.member(t, "Vic", models.RoleMember)
	post := f.helpPost(t, owner, "Suspicious")

	_, err := f.moderation.FileReport(f.ctx, f.org, reporter, ReportInput{
		Target: models.UserTarget{UserID: reporter}, Reason: models.ReasonSpam,
	})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	_, err = f.moderation.FileReport(f.ctx, f.org, reporter, ReportInput{
		Target: models.HelpPostTarget{PostID: post.ID}, Reason: "boring",
	})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	report, err := f.moderation.FileReport(f.ctx, f.org, reporter, ReportInput{
		Target: models.HelpPostTarget{PostID: post.ID}, Reason: models.ReasonFraud, Details: "asks for money",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReportOpen, report.Status)

	reviewing, err := f.moderation.ReviewReport(f.ctx, report.ID, mod)
	require.NoError(t, err)
	assert.Equal(t, models.ReportReviewing, reviewing.Status)
	assert.Nil(t, reviewing.ResolvedAt)

	// Acting on the report resolves it in the same transaction
	req := f.request(mod, models.HelpPostTarget{PostID: post.ID})
	req.ReportID = &report.ID
	_, err = f.moderation.HideContent(f.ctx, req)
	require.NoError(t, err)

	open, err := f.moderation.ListReports(f.ctx, f.org, models.ReportOpen)
	require.NoError(t, err)
	assert.Empty(t, open)
	resolved, err := f.moderation.ListReports(f.ctx, f.org, models.ReportResolved)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	require.NotNil(t, resolved[0].ResolvedBy)
	assert.Equal(t, mod, *resolved[0].ResolvedBy)

	_, err = f.moderation.DismissReport(f.ctx, report.ID, mod, "duplicate")
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestModerationService_ActionOnSettledReportRollsBack(t *testing.T) {
	f := newFixture(t)
	mod := f.member(t, "Mo", models.RoleModerator)
	owner := f.member(t, "Uma", models.RoleMember)
	reporter := f.member(t, "Vic", models.RoleMember)
	post := f.helpPost(t, owner, "Ride")

	report, err := f.moderation.FileReport(f.ctx, f.org, reporter, ReportInput{
		Target: models.HelpPostTarget{PostID: post.ID}, Reason: models.ReasonOther,
	})
	require.NoError(t, err)
	_, err = f.moderation.DismissReport(f.ctx, report.ID, mod, "fine")
	require.NoError(t, err)

	req := f.request(mod, models.HelpPostTarget{PostID: post.ID})
	req.ReportID = &report.ID
	_, err = f.moderation.HideContent(f.ctx, req)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.Equal(t, models.PostOpen, f.reloadPost(t, post.ID).Status)

	actions, err := f.moderation.ListActions(f.ctx, f.org)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestModerationService_LiftExpiredSuspensions(t *testing.T) {
	f := newFixture(t)
	mod := f.member(t, "Mo", models.RoleModerator)
	short := f.member(t, "Uma", models.RoleMember)
	long := f.member(t, "Vic", models.RoleMember)
	forever := f.member(t, "Wes", models.RoleMember)

	suspend := func(user uuid.UUID, days *int) {
		req := f.request(mod, models.UserTarget{UserID: user})
		req.DurationDays = days
		_, err := f.moderation.Suspend(f.ctx, req)
		require.NoError(t, err)
	}
	one, thirty := 1, 30
	suspend(short, &one)
	suspend(long, &thirty)
	suspend(forever, nil)

	lifted, err := f.moderation.LiftExpiredSuspensions(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, lifted)

	f.clock.Advance(48 * time.Hour)
	lifted, err = f.moderation.LiftExpiredSuspensions(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, lifted)

	for user, want := range map[uuid.UUID]bool{short: true, long: false, forever: false} {
		active, err := f.directory.IsActiveMember(f.ctx, user, f.org)
		require.NoError(t, err)
		assert.Equal(t, want, active)
	}

	actions, err := f.moderation.ListActions(f.ctx, f.org)
	require.NoError(t, err)
	assert.Equal(t, models.ActionUnsuspend, actions[0].Type)
	assert.Nil(t, actions[0].ModeratorID)

	lifted, err = f.moderation.LiftExpiredSuspensions(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, lifted)
}

func TestDirectory_Roles(t *testing.T) {
	f := newFixture(t)
	admin := f.member(t, "Ada", models.RoleOrgAdmin)
	owner := f.member(t, "Uma", models.RoleMember)
	other := f.member(t, "Vic", models.RoleMember)
	post := f.helpPost(t, owner, "Ride")

	for _, tt := range []struct {
		user uuid.UUID
		want bool
	}{{admin, true}, {owner, true}, {other, false}, {uuid.New(), false}} {
		ok, err := f.directory.CanManagePost(f.ctx, tt.user, post)
		require.NoError(t, err)
		assert.Equal(t, tt.want, ok)
	}

	ok, err := f.directory.HasRole(f.ctx, admin, f.org, models.RoleModerator)
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := f.directory.EnsureMember(f.ctx, f.org, owner, "Renamed", models.RoleOrgAdmin)
	require.NoError(t, err)
	assert.Equal(t, "Uma", again.DisplayName)
	assert.Equal(t, models.RoleMember, again.Role)
}
