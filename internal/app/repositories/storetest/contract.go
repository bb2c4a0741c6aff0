// Package storetest holds the behavioural contract every repositories.Store
// implementation must satisfy.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/app/repositories"
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// base is truncated to the precision PostgreSQL keeps
var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return base.Add(time.Duration(minutes) * time.Minute)
}

func newPost(orgID, ownerID uuid.UUID, v models.Variant, created time.Time) *models.Post {
	return &models.Post{
		OrgID:       orgID,
		Variant:     v,
		OwnerID:     ownerID,
		Kind:        models.PostKindOffer,
		Category:    models.CategoryHousehold,
		Title:       "Spare ladder",
		Description: "Six steps, aluminium",
		Quantity:    1,
		Status:      models.OpenStatus(v),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func newMatch(post *models.Post, responderID uuid.UUID, created time.Time) *models.Match {
	return &models.Match{
		OrgID:       post.OrgID,
		Variant:     post.Variant,
		PostID:      post.ID,
		ResponderID: responderID,
		Status:      models.MatchPending,
		Quantity:    1,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func newThread(orgID uuid.UUID, typ models.ThreadType, created time.Time, users ...uuid.UUID) *models.Thread {
	return &models.Thread{
		OrgID:        orgID,
		Type:         typ,
		Subject:      "Direct Message",
		CreatedAt:    created,
		UpdatedAt:    created,
		Participants: users,
	}
}

func newMessage(thread *models.Thread, sender *uuid.UUID, created time.Time) *models.Message {
	kind := models.MessageUser
	if sender == nil {
		kind = models.MessageSystem
	}
	return &models.Message{
		OrgID:     thread.OrgID,
		ThreadID:  thread.ID,
		SenderID:  sender,
		Kind:      kind,
		Body:      "hello",
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// RunStoreContract exercises store through its public interface. Every test
// scopes its rows to a fresh organization so a shared database can be reused.
func RunStoreContract(t *testing.T, store repositories.Store) {
	ctx := context.Background()

	t.Run("Posts", func(t *testing.T) {
		org, owner := uuid.New(), uuid.New()
		expiry := base.AddDate(0, 0, 3)

		p := newPost(org, owner, models.VariantItem, at(0))
		p.Category = models.CategoryFood
		p.Safety = models.FoodSafety{
			ExpiryDate: &expiry,
			Allergens:  []string{"nuts", "gluten"},
			Storage:    models.StorageRefrigerated,
			IsHomemade: true,
		}
		require.NoError(t, store.Posts().Create(ctx, p))
		require.NotEqual(t, uuid.Nil, p.ID)

		loaded, err := store.Posts().GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PostAvailable, loaded.Status)
		assert.Equal(t, []string{"nuts", "gluten"}, loaded.Safety.Allergens)
		assert.Equal(t, models.StorageRefrigerated, loaded.Safety.Storage)
		require.NotNil(t, loaded.Safety.ExpiryDate)
		assert.Equal(t, expiry.Format("2006-01-02"), loaded.Safety.ExpiryDate.UTC().Format("2006-01-02"))

		require.NoError(t, store.Posts().UpdateStatus(ctx, p.ID, models.PostReserved, at(5)))
		loaded, err = store.Posts().GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PostReserved, loaded.Status)
		assert.True(t, loaded.UpdatedAt.Equal(at(5)))

		_, err = store.Posts().GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)
		assert.ErrorIs(t, store.Posts().UpdateStatus(ctx, uuid.New(), models.PostOpen, at(1)), apperrors.ErrResourceNotFound)
	})

	t.Run("Post listing filters", func(t *testing.T) {
		org, alice, bob := uuid.New(), uuid.New(), uuid.New()

		first := newPost(org, alice, models.VariantHelp, at(0))
		second := newPost(org, bob, models.VariantHelp, at(1))
		second.Kind = models.PostKindRequest
		cancelled := newPost(org, alice, models.VariantHelp, at(2))
		cancelled.Status = models.PostCancelled
		item := newPost(org, alice, models.VariantItem, at(3))
		other := newPost(uuid.New(), alice, models.VariantHelp, at(4))
		for _, p := range []*models.Post{first, second, cancelled, item, other} {
			require.NoError(t, store.Posts().Create(ctx, p))
		}

		all, err := store.Posts().List(ctx, models.PostFilter{OrgID: org, Variant: models.VariantHelp})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, cancelled.ID, all[0].ID, "newest first")

		open, err := store.Posts().List(ctx, models.PostFilter{OrgID: org, Variant: models.VariantHelp, Status: models.PostOpen})
		require.NoError(t, err)
		assert.Len(t, open, 2)

		requests, err := store.Posts().List(ctx, models.PostFilter{OrgID: org, Kind: models.PostKindRequest})
		require.NoError(t, err)
		require.Len(t, requests, 1)
		assert.Equal(t, second.ID, requests[0].ID)

		mine, err := store.Posts().List(ctx, models.PostFilter{OrgID: org, OwnerID: alice, Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, cancelled.ID, mine[0].ID)
		assert.Equal(t, first.ID, mine[1].ID)
	})

	t.Run("Active match uniqueness", func(t *testing.T) {
		org, owner, responder := uuid.New(), uuid.New(), uuid.New()
		p := newPost(org, owner, models.VariantHelp, at(0))
		require.NoError(t, store.Posts().Create(ctx, p))

		first := newMatch(p, responder, at(1))
		require.NoError(t, store.Matches().Create(ctx, first))

		err := store.Matches().Create(ctx, newMatch(p, responder, at(2)))
		assert.ErrorIs(t, err, apperrors.ErrDuplicateInterest)

		first.Status = models.MatchDeclined
		first.UpdatedAt = at(3)
		require.NoError(t, store.Matches().Update(ctx, first))

		second := newMatch(p, responder, at(4))
		require.NoError(t, store.Matches().Create(ctx, second), "terminal matches do not block")

		first.Status = models.MatchPending
		assert.ErrorIs(t, store.Matches().Update(ctx, first), apperrors.ErrDuplicateInterest)

		pair, err := store.Matches().ListForPair(ctx, p.ID, responder)
		require.NoError(t, err)
		require.Len(t, pair, 2)
		assert.Equal(t, second.ID, pair[0].ID, "newest first")

		pending, err := store.Matches().ListByPost(ctx, p.ID, models.MatchPending)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, second.ID, pending[0].ID)

		everything, err := store.Matches().ListByPost(ctx, p.ID)
		require.NoError(t, err)
		assert.Len(t, everything, 2)

		mine, err := store.Matches().ListByResponder(ctx, org, responder, models.VariantHelp)
		require.NoError(t, err)
		assert.Len(t, mine, 2)
	})

	t.Run("Match events", func(t *testing.T) {
		org, owner := uuid.New(), uuid.New()
		p := newPost(org, owner, models.VariantHelp, at(0))
		require.NoError(t, store.Posts().Create(ctx, p))
		m := newMatch(p, uuid.New(), at(1))
		require.NoError(t, store.Matches().Create(ctx, m))

		for i, to := range []models.MatchStatus{models.MatchPending, models.MatchDeclined} {
			require.NoError(t, store.Matches().AppendEvent(ctx, &models.MatchEvent{
				OrgID:     org,
				MatchID:   m.ID,
				ActorID:   &owner,
				ToStatus:  to,
				CreatedAt: at(2 + i),
			}))
		}

		events, err := store.Matches().ListEvents(ctx, m.ID)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, models.MatchPending, events[0].ToStatus)
		assert.Equal(t, models.MatchDeclined, events[1].ToStatus)
		require.NotNil(t, events[1].ActorID)
		assert.Equal(t, owner, *events[1].ActorID)
	})

	t.Run("Threads", func(t *testing.T) {
		org, alice, bob, carol := uuid.New(), uuid.New(), uuid.New(), uuid.New()

		direct := newThread(org, models.ThreadDirect, at(0), alice, bob)
		require.NoError(t, store.Threads().Create(ctx, direct))
		group := newThread(org, models.ThreadHelpMatch, at(1), alice, carol)
		require.NoError(t, store.Threads().Create(ctx, group))

		loaded, err := store.Threads().GetByID(ctx, direct.ID)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{alice, bob}, loaded.Participants)

		found, err := store.Threads().FindDirect(ctx, org, bob, alice)
		require.NoError(t, err)
		assert.Equal(t, direct.ID, found.ID)

		_, err = store.Threads().FindDirect(ctx, org, alice, carol)
		assert.ErrorIs(t, err, apperrors.ErrResourceNotFound, "help threads are not direct threads")

		dup := newThread(org, models.ThreadDirect, at(1), bob, alice)
		assert.ErrorIs(t, store.Threads().Create(ctx, dup), apperrors.ErrConflict, "one direct thread per pair")
		_, err = store.Threads().GetByID(ctx, dup.ID)
		assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)
		require.NoError(t, store.Threads().Create(ctx, newThread(uuid.New(), models.ThreadDirect, at(1), alice, bob)),
			"the pair key is scoped to the org")

		require.NoError(t, store.Threads().AddParticipant(ctx, direct.ID, org, bob, at(2)))
		require.NoError(t, store.Threads().AddParticipant(ctx, direct.ID, org, carol, at(2)))
		loaded, err = store.Threads().GetByID(ctx, direct.ID)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{alice, bob, carol}, loaded.Participants)

		require.NoError(t, store.Threads().RemoveParticipant(ctx, direct.ID, carol))
		_, err = store.Threads().GetParticipant(ctx, direct.ID, carol)
		assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)

		require.NoError(t, store.Threads().MarkRead(ctx, direct.ID, bob, at(3)))
		p, err := store.Threads().GetParticipant(ctx, direct.ID, bob)
		require.NoError(t, err)
		require.NotNil(t, p.LastReadAt)
		assert.True(t, p.LastReadAt.Equal(at(3)))
		assert.ErrorIs(t, store.Threads().MarkRead(ctx, direct.ID, carol, at(3)), apperrors.ErrResourceNotFound)

		require.NoError(t, store.Threads().TouchLastMessage(ctx, direct.ID, at(10)))
		inbox, err := store.Threads().ListForUser(ctx, org, alice)
		require.NoError(t, err)
		require.Len(t, inbox, 2)
		assert.Equal(t, direct.ID, inbox[0].ID, "threads with messages sort first")
		assert.Equal(t, group.ID, inbox[1].ID)
	})

	t.Run("Unread counting", func(t *testing.T) {
		org, alice, bob := uuid.New(), uuid.New(), uuid.New()
		thread := newThread(org, models.ThreadDirect, at(0), alice, bob)
		require.NoError(t, store.Threads().Create(ctx, thread))

		for i := 0; i < 3; i++ {
			require.NoError(t, store.Messages().Create(ctx, newMessage(thread, &alice, at(1+i))))
		}
		require.NoError(t, store.Messages().Create(ctx, newMessage(thread, nil, at(5))))

		n, err := store.Messages().CountUnread(ctx, thread.ID, bob, nil)
		require.NoError(t, err)
		assert.Equal(t, 4, n, "system messages count as unread")

		n, err = store.Messages().CountUnread(ctx, thread.ID, alice, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "own messages never count")

		since := at(2)
		n, err = store.Messages().CountUnread(ctx, thread.ID, bob, &since)
		require.NoError(t, err)
		assert.Equal(t, 2, n, "strictly after the watermark")

		msgs, err := store.Messages().ListByThread(ctx, thread.ID, false)
		require.NoError(t, err)
		require.Len(t, msgs, 4)
		require.NoError(t, store.Messages().SetHidden(ctx, msgs[0].ID, true, "spam", at(6)))

		visible, err := store.Messages().ListByThread(ctx, thread.ID, false)
		require.NoError(t, err)
		assert.Len(t, visible, 3)
		all, err := store.Messages().ListByThread(ctx, thread.ID, true)
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.True(t, all[0].IsHidden)
		assert.Equal(t, "spam", all[0].HiddenReason)

		err = store.Messages().Create(ctx, newMessage(&models.Thread{ID: uuid.New(), OrgID: org}, &alice, at(7)))
		assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)
	})

	t.Run("Transactions", func(t *testing.T) {
		org, owner := uuid.New(), uuid.New()
		boom := errors.New("boom")

		var rolledBack *models.Post
		err := store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
			rolledBack = newPost(org, owner, models.VariantHelp, at(0))
			if err := repos.Posts().Create(ctx, rolledBack); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		_, err = store.Posts().GetByID(ctx, rolledBack.ID)
		assert.ErrorIs(t, err, apperrors.ErrResourceNotFound, "writes of a failed unit of work are discarded")

		var committed *models.Post
		err = store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
			committed = newPost(org, owner, models.VariantHelp, at(0))
			if err := repos.Posts().Create(ctx, committed); err != nil {
				return err
			}
			locked, err := repos.Posts().GetByIDForUpdate(ctx, committed.ID)
			if err != nil {
				return err
			}
			return repos.Posts().UpdateStatus(ctx, locked.ID, models.PostMatched, at(1))
		})
		require.NoError(t, err)
		loaded, err := store.Posts().GetByID(ctx, committed.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PostMatched, loaded.Status)
	})

	t.Run("Memberships", func(t *testing.T) {
		org, user := uuid.New(), uuid.New()
		_, err := store.Memberships().Get(ctx, org, user)
		assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)

		m := &models.Membership{
			OrgID: org, UserID: user, DisplayName: "Robin", Role: models.RoleMember,
			Status: models.MembershipActive, CreatedAt: at(0), UpdatedAt: at(0),
		}
		require.NoError(t, store.Memberships().Upsert(ctx, m))

		m.Status = models.MembershipSuspended
		m.UpdatedAt = at(1)
		require.NoError(t, store.Memberships().Upsert(ctx, m))

		loaded, err := store.Memberships().Get(ctx, org, user)
		require.NoError(t, err)
		assert.Equal(t, models.MembershipSuspended, loaded.Status)
		assert.Equal(t, "Robin", loaded.DisplayName)
		assert.False(t, loaded.IsActive())
	})

	t.Run("Reports", func(t *testing.T) {
		org, reporter := uuid.New(), uuid.New()
		postID := uuid.New()

		r := &models.Report{
			OrgID: org, Target: models.ItemPostTarget{PostID: postID}, ReporterID: reporter,
			Reason: models.ReasonSpam, Status: models.ReportOpen, CreatedAt: at(0), UpdatedAt: at(0),
		}
		require.NoError(t, store.Moderation().CreateReport(ctx, r))

		loaded, err := store.Moderation().GetReport(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ItemPostTarget{PostID: postID}, loaded.Target)

		loaded.Status = models.ReportResolved
		loaded.ResolvedBy = &reporter
		resolvedAt := at(5)
		loaded.ResolvedAt = &resolvedAt
		require.NoError(t, store.Moderation().UpdateReport(ctx, loaded))

		open, err := store.Moderation().ListReports(ctx, org, models.ReportOpen)
		require.NoError(t, err)
		assert.Empty(t, open)
		all, err := store.Moderation().ListReports(ctx, org, "")
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, models.ReportResolved, all[0].Status)
	})

	t.Run("Expired suspensions", func(t *testing.T) {
		org := uuid.New()
		expired, replaced, lifted, future := uuid.New(), uuid.New(), uuid.New(), uuid.New()
		past, later := at(-60), at(60)

		log := func(user uuid.UUID, typ models.ActionType, expires *time.Time, created time.Time) {
			require.NoError(t, store.Moderation().CreateAction(ctx, &models.ModerationAction{
				OrgID: org, Type: typ, Target: models.UserTarget{UserID: user},
				Reason: "test", ExpiresAt: expires, CreatedAt: created,
			}))
		}
		log(expired, models.ActionSuspend, &past, at(-120))
		log(replaced, models.ActionSuspend, &past, at(-120))
		log(replaced, models.ActionBan, nil, at(-90))
		log(lifted, models.ActionSuspend, &past, at(-120))
		log(lifted, models.ActionUnsuspend, nil, at(-90))
		log(future, models.ActionSuspend, &later, at(-120))
		log(future, models.ActionWarn, nil, at(-10))

		due, err := store.Moderation().ListExpiredSuspensions(ctx, at(0))
		require.NoError(t, err)
		var users []uuid.UUID
		for _, a := range due {
			if a.OrgID == org {
				users = append(users, a.Target.TargetID())
			}
		}
		assert.Equal(t, []uuid.UUID{expired}, users)

		actions, err := store.Moderation().ListActions(ctx, org)
		require.NoError(t, err)
		require.Len(t, actions, 7)
		assert.Equal(t, models.ActionWarn, actions[0].Type, "newest first")
	})
}
