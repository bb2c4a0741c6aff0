package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
)

type matchRepo struct{ r *repos }

// checkActivePair enforces at most one pending or accepted match per
// (post, responder), mirroring the partial unique index of the SQL schema.
func checkActivePair(st *state, m *models.Match) error {
	if !m.IsActive() {
		return nil
	}
	for id, other := range st.matches {
		if id != m.ID && other.PostID == m.PostID && other.ResponderID == m.ResponderID && other.IsActive() {
			return apperrors.NewCustomError(apperrors.ErrDuplicateInterest, apperrors.ErrDuplicateInterest.Error())
		}
	}
	return nil
}

func (m matchRepo) Create(ctx context.Context, match *models.Match) error {
	return m.r.run("matches.Create", func(st *state) error {
		if match.ID == uuid.Nil {
			match.ID = uuid.New()
		}
		if _, ok := st.posts[match.PostID]; !ok {
			return apperrors.NewResourceNotFoundError("post not found")
		}
		if err := checkActivePair(st, match); err != nil {
			return err
		}
		st.matches[match.ID] = copyMatch(match)
		return nil
	})
}

func (m matchRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	var out *models.Match
	err := m.r.run("matches.GetByID", func(st *state) error {
		match, ok := st.matches[id]
		if !ok {
			return apperrors.NewResourceNotFoundError("match not found")
		}
		out = copyMatch(match)
		return nil
	})
	return out, err
}

func (m matchRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	return m.GetByID(ctx, id)
}

func (m matchRepo) Update(ctx context.Context, match *models.Match) error {
	return m.r.run("matches.Update", func(st *state) error {
		if _, ok := st.matches[match.ID]; !ok {
			return apperrors.NewResourceNotFoundError("match not found")
		}
		if err := checkActivePair(st, match); err != nil {
			return err
		}
		st.matches[match.ID] = copyMatch(match)
		return nil
	})
}

func (m matchRepo) ListForPair(ctx context.Context, postID, responderID uuid.UUID) ([]*models.Match, error) {
	out, err := m.collect("matches.ListForPair", func(match *models.Match) bool {
		return match.PostID == postID && match.ResponderID == responderID
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (m matchRepo) ListByPost(ctx context.Context, postID uuid.UUID, statuses ...models.MatchStatus) ([]*models.Match, error) {
	return m.collect("matches.ListByPost", func(match *models.Match) bool {
		if match.PostID != postID {
			return false
		}
		if len(statuses) == 0 {
			return true
		}
		for _, s := range statuses {
			if match.Status == s {
				return true
			}
		}
		return false
	})
}

func (m matchRepo) ListByResponder(ctx context.Context, orgID, responderID uuid.UUID, variant models.Variant) ([]*models.Match, error) {
	return m.collect("matches.ListByResponder", func(match *models.Match) bool {
		return match.OrgID == orgID && match.ResponderID == responderID &&
			(variant == "" || match.Variant == variant)
	})
}

// collect returns copies of the matching rows, oldest first
func (m matchRepo) collect(op string, keep func(*models.Match) bool) ([]*models.Match, error) {
	var out []*models.Match
	err := m.r.run(op, func(st *state) error {
		for _, match := range st.matches {
			if keep(match) {
				out = append(out, copyMatch(match))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m matchRepo) AppendEvent(ctx context.Context, event *models.MatchEvent) error {
	return m.r.run("matches.AppendEvent", func(st *state) error {
		if event.ID == uuid.Nil {
			event.ID = uuid.New()
		}
		st.events = append(st.events, copyEvent(event))
		return nil
	})
}

func (m matchRepo) ListEvents(ctx context.Context, matchID uuid.UUID) ([]*models.MatchEvent, error) {
	var out []*models.MatchEvent
	err := m.r.run("matches.ListEvents", func(st *state) error {
		for _, e := range st.events {
			if e.MatchID == matchID {
				out = append(out, copyEvent(e))
			}
		}
		return nil
	})
	return out, err
}
