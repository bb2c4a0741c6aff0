package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchService_AcceptThenCompleteScenario(t *testing.T) {
	f := newFixture(t)
	u1 := f.member(t, "Uma", models.RoleMember)
	u2 := f.member(t, "Vic", models.RoleMember)
	u3 := f.member(t, "Wes", models.RoleMember)

	p := f.helpPost(t, u1, "Move a sofa")
	m1 := f.interest(t, p, u2, "I have a van")
	m2 := f.interest(t, p, u3, "Happy to help")
	assert.Equal(t, models.MatchPending, m1.Status)
	assert.Equal(t, models.MatchPending, m2.Status)
	assert.Equal(t, u1, m1.OwnerID)

	res, err := f.matches.Accept(f.ctx, m1.ID, u1)
	require.NoError(t, err)

	assert.Equal(t, models.MatchAccepted, res.Match.Status)
	assert.NotNil(t, res.Match.AcceptedAt)
	require.NotNil(t, res.Match.ThreadID)
	assert.Equal(t, res.Thread.ID, *res.Match.ThreadID)
	assert.Equal(t, models.PostMatched, res.Post.Status)
	require.Len(t, res.Declined, 1)
	assert.Equal(t, m2.ID, res.Declined[0].ID)

	assert.Equal(t, models.MatchAccepted, f.reloadMatch(t, m1.ID).Status)
	assert.Equal(t, models.MatchDeclined, f.reloadMatch(t, m2.ID).Status)
	assert.Equal(t, models.PostMatched, f.reloadPost(t, p.ID).Status)

	thread, err := f.threads.Get(f.ctx, res.Thread.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{u1, u2}, thread.Participants)
	assert.Equal(t, models.ThreadHelpMatch, thread.Type)
	assert.Equal(t, "Help: Move a sofa", thread.Subject)
	require.NotNil(t, thread.RefID)
	assert.Equal(t, m1.ID, *thread.RefID)

	system := f.systemMessages(t, thread.ID, u1)
	require.Len(t, system, 1)
	assert.Equal(t, `Match accepted! Vic will help with "Move a sofa".`, system[0])

	closed, err := f.matches.Close(f.ctx, m1.ID, u2, true)
	require.NoError(t, err)
	assert.Equal(t, models.MatchClosed, closed.Status)
	assert.NotNil(t, closed.ClosedAt)
	assert.Equal(t, models.PostCompleted, f.reloadPost(t, p.ID).Status)

	system = f.systemMessages(t, thread.ID, u2)
	require.Len(t, system, 2)
	assert.Equal(t, "Help completed! Thank you for supporting your community.", system[1])

	_, err = f.matches.Close(f.ctx, m1.ID, u2, true)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.Equal(t, models.PostCompleted, f.reloadPost(t, p.ID).Status)
}

func TestMatchService_ExpressInterestPreconditions(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, "Uma", models.RoleMember)
	responder := f.member(t, "Vic", models.RoleMember)
	p := f.helpPost(t, owner, "Ride")

	_, err := f.matches.ExpressInterest(f.ctx, p.ID, owner, models.InterestInput{})
	assert.ErrorIs(t, err, apperrors.ErrSelfInterestForbidden)

	_, err = f.matches.ExpressInterest(f.ctx, uuid.New(), responder, models.InterestInput{})
	assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)

	f.interest(t, p, responder, "me")
	_, err = f.matches.ExpressInterest(f.ctx, p.ID, responder, models.InterestInput{Message: "again"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateInterest)

	_, err = f.posts.Cancel(f.ctx, p.ID)
	require.NoError(t, err)
	late := f.member(t, "Wes", models.RoleMember)
	_, err = f.matches.ExpressInterest(f.ctx, p.ID, late, models.InterestInput{})
	assert.ErrorIs(t, err, apperrors.ErrPostNotOpen)
}

func TestMatchService_RevivalKeepsIDAndHistory(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, "Uma", models.RoleMember)
	responder := f.member(t, "Vic", models.RoleMember)
	p := f.helpPost(t, owner, "Ride")

	first := f.interest(t, p, responder, "first try")
	_, err := f.matches.Decline(f.ctx, first.ID, owner)
	require.NoError(t, err)

	revived := f.interest(t, p, responder, "second try")
	assert.Equal(t, first.ID, revived.ID)
	assert.Equal(t, models.MatchPending, revived.Status)
	assert.Equal(t, "second try", revived.Message)

	all, err := f.matches.ListByPost(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	events, err := f.matches.History(f.ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, models.MatchPending, events[0].ToStatus)
	assert.Equal(t, models.MatchDeclined, events[1].ToStatus)
	assert.Equal(t, models.MatchDeclined, events[2].FromStatus)
	assert.Equal(t, models.MatchPending, events[2].ToStatus)
	assert.Equal(t, "first try", events[2].PriorMessage)
	assert.Equal(t, "second try", events[2].Message)
}

func TestMatchService_AcceptThenWithdraw(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, "Uma", models.RoleMember)
	responder := f.member(t, "Vic", models.RoleMember)
	p := f.helpPost(t, owner, "Ride")
	m := f.interest(t, p, responder, "")

	res, err := f.matches.Accept(f.ctx, m.ID, owner)
	require.NoError(t, err)

	withdrawn, err := f.matches.Withdraw(f.ctx, m.ID, responder)
	require.NoError(t, err)
	assert.Equal(t, models.MatchWithdrawn, withdrawn.Status)
	assert.Equal(t, models.PostOpen, f.reloadPost(t, p.ID).Status)

	system := f.systemMessages(t, res.Thread.ID, owner)
	require.Len(t, system, 2)
	assert.Equal(t, "Match withdrawn by Vic. The post is open again.", system[1])

	// Interest again revives the match; re-accepting opens a fresh thread
	again := f.interest(t, p, responder, "back on")
	assert.Equal(t, m.ID, again.ID)
	assert.Nil(t, again.ThreadID)

	res2, err := f.matches.Accept(f.ctx, m.ID, owner)
	require.NoError(t, err)
	assert.NotEqual(t, res.Thread.ID, res2.Thread.ID)
	assert.ElementsMatch(t, []uuid.UUID{owner, responder}, res2.Thread.Participants)
	require.NotNil(t, f.reloadMatch(t, m.ID).ThreadID)
	assert.Equal(t, res2.Thread.ID, *f.reloadMatch(t, m.ID).ThreadID)

	fresh := f.systemMessages(t, res2.Thread.ID, owner)
	require.Len(t, fresh, 1)
	assert.Equal(t, "Match accepted! Vic will help with \"Ride\".", fresh[0])

	// the earlier thread keeps its own log
	assert.Len(t, f.systemMessages(t, res.Thread.ID, owner), 2)
}

func TestMatchService_WithdrawPendingLeavesPost(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, "Uma", models.RoleMember)
	responder := f.member(t, "Vic", models.RoleMember)
	p := f.helpPost(t, owner, "Ride")
	m := f.interest(t, p, responder, "")

	withdrawn, err := f.matches.Withdraw(f.ctx, m.ID, responder)
	require.NoError(t, err)
	assert.Equal(t, models.MatchWithdrawn, withdrawn.Status)
	assert.Nil(t, withdrawn.ThreadID)
	assert.Equal(t, models.PostOpen, f.reloadPost(t, p.ID).Status)

	_, err = f.matches.Withdraw(f.ctx, m.ID, responder)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	_, err = f.matches.Accept(f.ctx, m.ID, owner)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestMatchService_DeclineOnlyFromPending(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, "Uma", models.RoleMember)
	responder := f.member(t, "Vic", models.RoleMember)
	p := f.helpPost(t, owner, "Ride")
	m := f.interest(t, p, responder, "")

	_, err := f.matches.Accept(f.ctx, m.ID, owner)
	require.NoError(t, err)

	_, err = f.matches.Decline(f.ctx, m.ID, owner)
	var te *apperrors.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "help_match", te.Entity)
	assert.Equal(t, []string{"closed", "withdrawn"}, te.Allowed)
}

func TestMatchService_CloseWithoutCompletionReopensPost(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, "Uma", models.RoleMember)
	responder := f.member(t, "Vic", models.RoleMember)
	p := f.helpPost(t, owner, "Ride")
	m := f.interest(t, p, responder, "")

	res, err := f.matches.Accept(f.ctx, m.ID, owner)
	require.NoError(t, err)

	closed, err := f.matches.Close(f.ctx, m.ID, owner, false)
	require.NoError(t, err)
	assert.Equal(t, models.MatchClosed, closed.Status)
	assert.Equal(t, models.PostOpen, f.reloadPost(t, p.ID).Status)

	system := f.systemMessages(t, res.Thread.ID, owner)
	require.Len(t, system, 2)
	assert.Equal(t, "Match closed without completion. The post is open again.", system[1])

	// The reopened post accepts fresh interest
	other := f.member(t, "Wes", models.RoleMember)
	f.interest(t, p, other, "")
}

func TestMatchService_CloseAfterModeratorCancelKeepsPost(t *testing.T) {
	f := newFixture(t)
	mod := f.member(t, "Mo", models.RoleModerator)
	owner := f.member(t, "Uma", models.RoleMember)
	responder := f.member(t, "Vic", models.RoleMember)
	p := f.helpPost(t, owner, "Ride")
	m := f.interest(t, p, responder, "")
	_, err := f.matches.Accept(f.ctx, m.ID, owner)
	require.NoError(t, err)

	_, err = f.moderation.HideContent(f.ctx, models.ModerationRequest{
		OrgID: f.org, ModeratorID: mod, Target: models.HelpPostTarget{PostID: p.ID}, Reason: "unsafe",
	})
	require.NoError(t, err)

	_, err = f.matches.Close(f.ctx, m.ID, responder, true)
	require.NoError(t, err)
	assert.Equal(t, models.PostCancelled, f.reloadPost(t, p.ID).Status)
}

func TestMatchService_ItemReservation(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, "Uma", models.RoleMember)
	bea := f.member(t, "Bea", models.RoleMember)
	cal := f.member(t, "Cal", models.RoleMember)
	p := f.itemPost(t, owner, "Baby bottles", 3)

	_, err := f.matches.ExpressInterest(f.ctx, p.ID, bea, models.InterestInput{Quantity: 4})
	assert.ErrorIs(t, err, apperrors.ErrQuantityExceeded)

	r1, err := f.matches.ExpressInterest(f.ctx, p.ID, bea, models.InterestInput{Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, r1.Quantity)
	r2 := f.interest(t, p, cal, "")
	assert.Equal(t, 1, r2.Quantity)

	res, err := f.matches.Accept(f.ctx, r1.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, models.MatchApproved, res.Match.Status)
	assert.Equal(t, models.PostReserved, res.Post.Status)
	assert.Equal(t, models.MatchRejected, f.reloadMatch(t, r2.ID).Status)
	assert.Equal(t, models.ThreadItemReservation, res.Thread.Type)
	assert.Equal(t, "Reservation: Baby bottles", res.Thread.Subject)
	assert.Equal(t, []string{"Reservation approved! Bea will pick up 2x Baby bottles."},
		f.systemMessages(t, res.Thread.ID, owner))

	_, err = f.matches.Withdraw(f.ctx, r1.ID, bea)
	require.NoError(t, err)
	assert.Equal(t, models.PostAvailable, f.reloadPost(t, p.ID).Status)
	system := f.systemMessages(t, res.Thread.ID, owner)
	assert.Equal(t, "Reservation cancelled by Bea. The item is available again.", system[len(system)-1])

	mine, err := f.matches.ListMine(f.ctx, f.org, bea, models.VariantItem)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, models.MatchCancelled, mine[0].Status)
}

func TestMatchService_ItemPickupConfirmed(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, "Uma", models.RoleMember)
	bea := f.member(t, "Bea", models.RoleMember)
	p := f.itemPost(t, owner, "Crib", 1)
	r := f.interest(t, p, bea, "")

	res, err := f.matches.Accept(f.ctx, r.ID, owner)
	require.NoError(t, err)
	done, err := f.matches.Close(f.ctx, r.ID, owner, true)
	require.NoError(t, err)
	assert.Equal(t, models.MatchCompleted, done.Status)
	assert.Equal(t, models.PostCompleted, f.reloadPost(t, p.ID).Status)

	system := f.systemMessages(t, res.Thread.ID, owner)
	assert.Equal(t, "Pickup confirmed! Thank you for sharing with the community.", system[len(system)-1])
}

func TestMatchService_ExpiredFoodIsNotOpen(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, "Uma", models.RoleMember)
	bea := f.member(t, "Bea", models.RoleMember)
	today := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p, err := f.posts.Create(f.ctx, f.org, owner, models.VariantItem, models.PostInput{
		Kind: models.PostKindOffer, Category: models.CategoryFood, Title: "Bread",
		Description: "Fresh loaf", ExpiryDate: &today,
	})
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)
	_, err = f.matches.ExpressInterest(f.ctx, p.ID, bea, models.InterestInput{})
	assert.ErrorIs(t, err, apperrors.ErrPostNotOpen)
}

func TestMatchService_AcceptRollsBackOnStoreFailure(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, "Uma", models.RoleMember)
	u2 := f.member(t, "Vic", models.RoleMember)
	u3 := f.member(t, "Wes", models.RoleMember)
	p := f.helpPost(t, owner, "Ride")
	m1 := f.interest(t, p, u2, "")
	m2 := f.interest(t, p, u3, "")

	for _, op := range []string{"messages.Create", "posts.UpdateStatus", "threads.Create", "matches.AppendEvent"} {
		t.Run(op, func(t *testing.T) {
			f.store.FailOn(op, errors.New("disk full"))
			_, err := f.matches.Accept(f.ctx, m1.ID, owner)
			f.store.ClearFailures()

			require.ErrorIs(t, err, apperrors.ErrConsistency)
			assert.False(t, apperrors.IsDomain(err))
			assert.Equal(t, models.MatchPending, f.reloadMatch(t, m1.ID).Status)
			assert.Nil(t, f.reloadMatch(t, m1.ID).ThreadID)
			assert.Equal(t, models.MatchPending, f.reloadMatch(t, m2.ID).Status)
			assert.Equal(t, models.PostOpen, f.reloadPost(t, p.ID).Status)

			inbox, err := f.threads.Inbox(f.ctx, f.org, owner)
			require.NoError(t, err)
			assert.Empty(t, inbox)
		})
	}

	failures, err := testutil.GatherAndCount(f.metrics.Registry(), "exchange_cascade_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, failures)

	// Once the store recovers the same accept succeeds
	_, err = f.matches.Accept(f.ctx, m1.ID, owner)
	require.NoError(t, err)
}

func TestMatchService_WithdrawRollsBack(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, "Uma", models.RoleMember)
	responder := f.member(t, "Vic", models.RoleMember)
	p := f.helpPost(t, owner, "Ride")
	m := f.interest(t, p, responder, "")
	_, err := f.matches.Accept(f.ctx, m.ID, owner)
	require.NoError(t, err)

	f.store.FailOn("threads.TouchLastMessage", errors.New("timeout"))
	_, err = f.matches.Withdraw(f.ctx, m.ID, responder)
	f.store.ClearFailures()

	require.ErrorIs(t, err, apperrors.ErrConsistency)
	assert.Equal(t, models.MatchAccepted, f.reloadMatch(t, m.ID).Status)
	assert.Equal(t, models.PostMatched, f.reloadPost(t, p.ID).Status)
}

// Two accepts on different pending matches of one post: exactly one wins
func TestMatchService_ConcurrentAccepts(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, "Uma", models.RoleMember)
	p := f.helpPost(t, owner, "Ride")

	const n = 8
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = f.interest(t, p, f.member(t, "Helper", models.RoleMember), "").ID
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		errs []error
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := f.matches.Accept(f.ctx, id, owner)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			errs = append(errs, err)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	for _, err := range errs {
		assert.True(t, apperrors.IsDomain(err), "unexpected error: %v", err)
	}

	all, err := f.matches.ListByPost(f.ctx, p.ID)
	require.NoError(t, err)
	accepted := 0
	for _, m := range all {
		if m.Status == models.MatchAccepted {
			accepted++
		} else {
			assert.Equal(t, models.MatchDeclined, m.Status)
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, models.PostMatched, f.reloadPost(t, p.ID).Status)
}
