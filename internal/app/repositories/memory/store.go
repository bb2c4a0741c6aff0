// Package memory is a transactional in-process implementation of
// repositories.Store. Transactions are serialized by one mutex and operate on a
// copy of the state that replaces the committed state only when the unit of
// work returns nil.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/app/repositories"
)

type membershipKey struct {
	org  uuid.UUID
	user uuid.UUID
}

type state struct {
	posts        map[uuid.UUID]*models.Post
	matches      map[uuid.UUID]*models.Match
	events       []*models.MatchEvent
	threads      map[uuid.UUID]*models.Thread
	participants map[uuid.UUID][]*models.ThreadParticipant
	messages     map[uuid.UUID][]*models.Message
	memberships  map[membershipKey]*models.Membership
	reports      map[uuid.UUID]*models.Report
	actions      []*models.ModerationAction
}

func newState() *state {
	return &state{
		posts:        map[uuid.UUID]*models.Post{},
		matches:      map[uuid.UUID]*models.Match{},
		threads:      map[uuid.UUID]*models.Thread{},
		participants: map[uuid.UUID][]*models.ThreadParticipant{},
		messages:     map[uuid.UUID][]*models.Message{},
		memberships:  map[membershipKey]*models.Membership{},
		reports:      map[uuid.UUID]*models.Report{},
	}
}

// clone deep-copies every row so writes made inside a transaction never
// reach the committed state.
func (s *state) clone() *state {
	c := newState()
	for id, p := range s.posts {
		c.posts[id] = copyPost(p)
	}
	for id, m := range s.matches {
		c.matches[id] = copyMatch(m)
	}
	for _, e := range s.events {
		c.events = append(c.events, copyEvent(e))
	}
	for id, t := range s.threads {
		c.threads[id] = copyThread(t)
	}
	for id, ps := range s.participants {
		for _, p := range ps {
			c.participants[id] = append(c.participants[id], copyParticipant(p))
		}
	}
	for id, ms := range s.messages {
		for _, m := range ms {
			c.messages[id] = append(c.messages[id], copyMessage(m))
		}
	}
	for k, m := range s.memberships {
		c.memberships[k] = copyMembership(m)
	}
	for id, r := range s.reports {
		c.reports[id] = copyReport(r)
	}
	for _, a := range s.actions {
		c.actions = append(c.actions, copyAction(a))
	}
	return c
}

// Store is an in-memory repositories.Store
type Store struct {
	mu    sync.Mutex
	state *state

	failMu   sync.Mutex
	failures map[string]error

	auto *repos
}

var _ repositories.Store = (*Store)(nil)

// NewStore returns an empty store
func NewStore() *Store {
	s := &Store{state: newState(), failures: map[string]error{}}
	s.auto = &repos{store: s}
	return s
}

// FailOn makes every later call of the named repository operation (for
// example "threads.Create") return err until ClearFailures is called.
func (s *Store) FailOn(op string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failures[op] = err
}

// ClearFailures removes every injected failure
func (s *Store) ClearFailures() {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failures = map[string]error{}
}

func (s *Store) injected(op string) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if err, ok := s.failures[op]; ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// WithinTx implements repositories.Store
func (s *Store) WithinTx(ctx context.Context, fn repositories.TxFn) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(ctx, &repos{store: s, tx: working}); err != nil {
		return err
	}
	s.state = working
	return nil
}

// Close implements repositories.Store
func (s *Store) Close() {}

func (s *Store) Posts() repositories.PostRepository             { return s.auto.Posts() }
func (s *Store) Matches() repositories.MatchRepository          { return s.auto.Matches() }
func (s *Store) Threads() repositories.ThreadRepository         { return s.auto.Threads() }
func (s *Store) Messages() repositories.MessageRepository       { return s.auto.Messages() }
func (s *Store) Memberships() repositories.MembershipRepository { return s.auto.Memberships() }
func (s *Store) Moderation() repositories.ModerationRepository  { return s.auto.Moderation() }

// repos binds the repositories either to an open transaction (tx != nil) or
// to the committed state, locking the store per call.
type repos struct {
	store *Store
	tx    *state
}

func (r *repos) run(op string, fn func(st *state) error) error {
	if err := r.store.injected(op); err != nil {
		return err
	}
	if r.tx != nil {
		return fn(r.tx)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return fn(r.store.state)
}

func (r *repos) Posts() repositories.PostRepository             { return postRepo{r} }
func (r *repos) Matches() repositories.MatchRepository          { return matchRepo{r} }
func (r *repos) Threads() repositories.ThreadRepository         { return threadRepo{r} }
func (r *repos) Messages() repositories.MessageRepository       { return messageRepo{r} }
func (r *repos) Memberships() repositories.MembershipRepository { return membershipRepo{r} }
func (r *repos) Moderation() repositories.ModerationRepository  { return moderationRepo{r} }
