package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/app/repositories/memory"
	"github.com/kapwanet/exchange/internal/pkg/metrics"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// testClock advances one second on every read so timestamps are strictly ordered
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	ctx        context.Context
	store      *memory.Store
	clock      *testClock
	metrics    *metrics.Recorder
	org        uuid.UUID
	posts      PostService
	matches    MatchService
	threads    ThreadService
	moderation ModerationService
	directory  Directory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	deps := Deps{
		Store:   store,
		Logger:  zerolog.Nop(),
		Metrics: metrics.NewRecorder(),
		Now:     clock.Now,
	}
	return &fixture{
		ctx:        context.Background(),
		store:      store,
		clock:      clock,
		metrics:    deps.Metrics,
		org:        uuid.New(),
		posts:      NewPostService(deps),
		matches:    NewMatchService(deps),
		threads:    NewThreadService(deps),
		moderation: NewModerationService(deps),
		directory:  NewDirectory(deps),
	}
}

func (f *fixture) member(t *testing.T, name string, role models.Role) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := f.directory.EnsureMember(f.ctx, f.org, id, name, role)
	require.NoError(t, err)
	return id
}

func (f *fixture) helpPost(t *testing.T, owner uuid.UUID, title string) *models.Post {
	t.Helper()
	post, err := f.posts.Create(f.ctx, f.org, owner, models.VariantHelp, models.PostInput{
		Kind:        models.PostKindRequest,
		Category:    models.CategoryErrands,
		Title:       title,
		Description: "Need a hand this week",
	})
	require.NoError(t, err)
	return post
}

func (f *fixture) itemPost(t *testing.T, owner uuid.UUID, title string, quantity int) *models.Post {
	t.Helper()
	post, err := f.posts.Create(f.ctx, f.org, owner, models.VariantItem, models.PostInput{
		Kind:        models.PostKindOffer,
		Category:    models.CategoryBabyKids,
		Title:       title,
		Description: "Gently used",
		Condition:   models.ConditionGood,
		Quantity:    quantity,
	})
	require.NoError(t, err)
	return post
}

func (f *fixture) interest(t *testing.T, post *models.Post, responder uuid.UUID, message string) *models.Match {
	t.Helper()
	m, err := f.matches.ExpressInterest(f.ctx, post.ID, responder, models.InterestInput{Message: message})
	require.NoError(t, err)
	return m
}

func (f *fixture) reloadPost(t *testing.T, id uuid.UUID) *models.Post {
	t.Helper()
	post, err := f.posts.Get(f.ctx, id)
	require.NoError(t, err)
	return post
}

func (f *fixture) reloadMatch(t *testing.T, id uuid.UUID) *models.Match {
	t.Helper()
	m, err := f.matches.Get(f.ctx, id)
	require.NoError(t, err)
	return m
}

// systemMessages returns the bodies of the thread's system messages in order
func (f *fixture) systemMessages(t *testing.T, threadID, viewer uuid.UUID) []string {
	t.Helper()
	msgs, err := f.threads.ListMessages(f.ctx, threadID, viewer, false)
	require.NoError(t, err)
	var bodies []string
	for _, m := range msgs {
		if m.Kind == models.MessageSystem {
			bodies = append(bodies, m.Body)
		}
	}
	return bodies
}
