package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/app/repositories"
	"github.com/kapwanet/exchange/internal/app/repositories/memory"
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
	"github.com/kapwanet/exchange/internal/pkg/locker"
	"github.com/kapwanet/exchange/internal/pkg/metrics"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadService_UnreadCountScenario(t *testing.T) {
	f := newFixture(t)
	u1 := f.member(t, "Uma", models.RoleMember)
	u2 := f.member(t, "Vic", models.RoleMember)

	thread, err := f.threads.GetOrCreateDirect(f.ctx, f.org, u1, u2)
	require.NoError(t, err)

	for _, body := range []string{"hi", "are you around?", "ping"} {
		_, err := f.threads.SendMessage(f.ctx, thread.ID, u1, body)
		require.NoError(t, err)
	}

	unread, err := f.threads.UnreadCount(f.ctx, thread.ID, u2)
	require.NoError(t, err)
	assert.Equal(t, 3, unread)

	unread, err = f.threads.UnreadCount(f.ctx, thread.ID, u1)
	require.NoError(t, err)
	assert.Equal(t, 0, unread)

	require.NoError(t, f.threads.MarkRead(f.ctx, thread.ID, u2))
	unread, err = f.threads.UnreadCount(f.ctx, thread.ID, u2)
	require.NoError(t, err)
	assert.Equal(t, 0, unread)

	_, err = f.threads.SendMessage(f.ctx, thread.ID, u1, "one more")
	require.NoError(t, err)
	unread, err = f.threads.UnreadCount(f.ctx, thread.ID, u2)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestThreadService_SystemMessagesCountAsUnread(t *testing.T) {
	f := newFixture(t)
	u1 := f.member(t, "Uma", models.RoleMember)
	u2 := f.member(t, "Vic", models.RoleMember)
	thread, err := f.threads.GetOrCreateDirect(f.ctx, f.org, u1, u2)
	require.NoError(t, err)

	msg, err := f.threads.SendSystemMessage(f.ctx, thread.ID, "Welcome")
	require.NoError(t, err)
	assert.Nil(t, msg.SenderID)
	assert.Equal(t, models.MessageSystem, msg.Kind)

	for _, user := range []uuid.UUID{u1, u2} {
		unread, err := f.threads.UnreadCount(f.ctx, thread.ID, user)
		require.NoError(t, err)
		assert.Equal(t, 1, unread)
	}

	reloaded, err := f.threads.Get(f.ctx, thread.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastMessageAt)
	assert.True(t, reloaded.LastMessageAt.Equal(msg.CreatedAt))
}

func TestThreadService_ParticipantChecks(t *testing.T) {
	f := newFixture(t)
	u1 := f.member(t, "Uma", models.RoleMember)
	u2 := f.member(t, "Vic", models.RoleMember)
	outsider := f.member(t, "Oz", models.RoleMember)
	thread, err := f.threads.GetOrCreateDirect(f.ctx, f.org, u1, u2)
	require.NoError(t, err)

	_, err = f.threads.SendMessage(f.ctx, thread.ID, outsider, "let me in")
	assert.ErrorIs(t, err, apperrors.ErrNotParticipant)
	_, err = f.threads.SendMessage(f.ctx, thread.ID, u1, "   ")
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	_, err = f.threads.UnreadCount(f.ctx, thread.ID, outsider)
	assert.ErrorIs(t, err, apperrors.ErrNotParticipant)
	assert.ErrorIs(t, f.threads.MarkRead(f.ctx, thread.ID, outsider), apperrors.ErrNotParticipant)
	_, err = f.threads.ListMessages(f.ctx, thread.ID, outsider, false)
	assert.ErrorIs(t, err, apperrors.ErrNotParticipant)
	_, err = f.threads.SendMessage(f.ctx, uuid.New(), u1, "hello")
	assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)

	ok, err := f.threads.IsParticipant(f.ctx, thread.ID, outsider)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.threads.AddParticipant(f.ctx, thread.ID, outsider))
	require.NoError(t, f.threads.AddParticipant(f.ctx, thread.ID, outsider))
	reloaded, err := f.threads.Get(f.ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{u1, u2, outsider}, reloaded.Participants)

	_, err = f.threads.SendMessage(f.ctx, thread.ID, outsider, "thanks")
	require.NoError(t, err)

	require.NoError(t, f.threads.RemoveParticipant(f.ctx, thread.ID, outsider))
	ok, err = f.threads.IsParticipant(f.ctx, thread.ID, outsider)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestThreadService_GetOrCreateDirectDeduplicates(t *testing.T) {
	f := newFixture(t)
	u1 := f.member(t, "Uma", models.RoleMember)
	u2 := f.member(t, "Vic", models.RoleMember)
	u3 := f.member(t, "Wes", models.RoleMember)

	first, err := f.threads.GetOrCreateDirect(f.ctx, f.org, u1, u2)
	require.NoError(t, err)
	assert.Equal(t, models.ThreadDirect, first.Type)
	assert.Equal(t, "Direct Message", first.Subject)

	again, err := f.threads.GetOrCreateDirect(f.ctx, f.org, u2, u1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	other, err := f.threads.GetOrCreateDirect(f.ctx, f.org, u1, u3)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	_, err = f.threads.GetOrCreateDirect(f.ctx, f.org, u1, u1)
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
}

func TestThreadService_InboxOrderAndUnread(t *testing.T) {
	f := newFixture(t)
	u1 := f.member(t, "Uma", models.RoleMember)
	u2 := f.member(t, "Vic", models.RoleMember)
	u3 := f.member(t, "Wes", models.RoleMember)

	older, err := f.threads.GetOrCreateDirect(f.ctx, f.org, u1, u2)
	require.NoError(t, err)
	newer, err := f.threads.GetOrCreateDirect(f.ctx, f.org, u1, u3)
	require.NoError(t, err)
	quiet, err := f.threads.GetOrCreateDirect(f.ctx, f.org, u2, u3)
	require.NoError(t, err)
	_ = quiet

	_, err = f.threads.SendMessage(f.ctx, older.ID, u2, "first")
	require.NoError(t, err)
	_, err = f.threads.SendMessage(f.ctx, newer.ID, u3, "second")
	require.NoError(t, err)
	_, err = f.threads.SendMessage(f.ctx, newer.ID, u3, "third")
	require.NoError(t, err)

	inbox, err := f.threads.Inbox(f.ctx, f.org, u1)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, newer.ID, inbox[0].Thread.ID)
	assert.Equal(t, 2, inbox[0].UnreadCount)
	assert.Equal(t, "third", inbox[0].LastMessage.Body)
	assert.Equal(t, older.ID, inbox[1].Thread.ID)
	assert.Equal(t, 1, inbox[1].UnreadCount)
}

func TestThreadService_HiddenMessagesVisibleToModerators(t *testing.T) {
	f := newFixture(t)
	mod := f.member(t, "Mo", models.RoleModerator)
	u1 := f.member(t, "Uma", models.RoleMember)
	u2 := f.member(t, "Vic", models.RoleMember)
	thread, err := f.threads.GetOrCreateDirect(f.ctx, f.org, u1, u2)
	require.NoError(t, err)

	_, err = f.threads.SendMessage(f.ctx, thread.ID, u1, "hello")
	require.NoError(t, err)
	rude, err := f.threads.SendMessage(f.ctx, thread.ID, u2, "something rude")
	require.NoError(t, err)

	_, err = f.moderation.HideContent(f.ctx, models.ModerationRequest{
		OrgID: f.org, ModeratorID: mod, Target: models.MessageTarget{MessageID: rude.ID}, Reason: "harassment",
	})
	require.NoError(t, err)

	visible, err := f.threads.ListMessages(f.ctx, thread.ID, u1, false)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "hello", visible[0].Body)

	all, err := f.threads.ListMessages(f.ctx, thread.ID, mod, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[1].IsHidden)
	assert.Equal(t, "harassment", all[1].HiddenReason)
}

func TestThreadService_ConcurrentGetOrCreateDirect(t *testing.T) {
	f := newFixture(t)
	u1 := f.member(t, "Uma", models.RoleMember)
	u2 := f.member(t, "Vic", models.RoleMember)

	const n = 8
	ids := make([]uuid.UUID, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := u1, u2
			if i%2 == 1 {
				a, b = u2, u1
			}
			thread, err := f.threads.GetOrCreateDirect(f.ctx, f.org, a, b)
			errs[i] = err
			if err == nil {
				ids[i] = thread.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	inbox, err := f.store.Threads().ListForUser(f.ctx, f.org, u1)
	require.NoError(t, err)
	assert.Len(t, inbox, 1)
}

// staleDirectStore hides existing direct threads from lookups made inside a
// transaction, as a peer instance committing between lookup and insert would.
type staleDirectStore struct {
	*memory.Store
}

func (s staleDirectStore) WithinTx(ctx context.Context, fn repositories.TxFn) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		return fn(ctx, staleDirectRepos{repos})
	})
}

type staleDirectRepos struct {
	repositories.Repositories
}

func (r staleDirectRepos) Threads() repositories.ThreadRepository {
	return staleDirectThreads{r.Repositories.Threads()}
}

type staleDirectThreads struct {
	repositories.ThreadRepository
}

func (staleDirectThreads) FindDirect(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) (*models.Thread, error) {
	return nil, apperrors.NewResourceNotFoundError("direct thread not found")
}

func TestThreadService_GetOrCreateDirectReturnsPeerThread(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	org, u1, u2 := uuid.New(), uuid.New(), uuid.New()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	existing := &models.Thread{
		OrgID:        org,
		Type:         models.ThreadDirect,
		Subject:      "Direct Message",
		CreatedAt:    now,
		UpdatedAt:    now,
		Participants: []uuid.UUID{u1, u2},
	}
	require.NoError(t, store.Threads().Create(ctx, existing))

	svc := NewThreadService(Deps{Store: staleDirectStore{store}, Logger: zerolog.Nop(), Metrics: metrics.NewRecorder()})
	thread, err := svc.GetOrCreateDirect(ctx, org, u2, u1)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, thread.ID)

	inbox, err := store.Threads().ListForUser(ctx, org, u1)
	require.NoError(t, err)
	assert.Len(t, inbox, 1)
}

type recordingLocker struct {
	mu   sync.Mutex
	keys []string
}

func (l *recordingLocker) Lock(_ context.Context, key string, _ time.Duration) (locker.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	return func(context.Context) error { return nil }, nil
}

func TestThreadService_GetOrCreateDirectLocksPair(t *testing.T) {
	ctx := context.Background()
	lk := &recordingLocker{}
	svc := NewThreadService(Deps{Store: memory.NewStore(), Logger: zerolog.Nop(), Metrics: metrics.NewRecorder(), Locker: lk})
	org, u1, u2 := uuid.New(), uuid.New(), uuid.New()

	_, err := svc.GetOrCreateDirect(ctx, org, u1, u2)
	require.NoError(t, err)
	_, err = svc.GetOrCreateDirect(ctx, org, u2, u1)
	require.NoError(t, err)

	want := "direct:" + org.String() + ":" + models.DirectKey(u1, u2)
	assert.Equal(t, []string{want, want}, lk.keys)
}
