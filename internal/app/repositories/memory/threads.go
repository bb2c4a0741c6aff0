package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
)

type threadRepo struct{ r *repos }

func loadThread(st *state, id uuid.UUID) (*models.Thread, bool) {
	t, ok := st.threads[id]
	if !ok {
		return nil, false
	}
	out := copyThread(t)
	out.Participants = out.Participants[:0]
	for _, p := range st.participants[id] {
		out.Participants = append(out.Participants, p.UserID)
	}
	return out, true
}

func (t threadRepo) Create(ctx context.Context, thread *models.Thread) error {
	return t.r.run("threads.Create", func(st *state) error {
		if thread.ID == uuid.Nil {
			thread.ID = uuid.New()
		}
		if _, exists := st.threads[thread.ID]; exists {
			return apperrors.NewConflictError("thread already exists")
		}
		if key := thread.DirectKey(); key != "" && hasDirect(st, thread.OrgID, key) {
			return apperrors.NewConflictError("direct thread already exists")
		}
		row := copyThread(thread)
		row.Participants = nil
		st.threads[thread.ID] = row
		for _, userID := range thread.Participants {
			addParticipant(st, thread.ID, thread.OrgID, userID, thread.CreatedAt)
		}
		return nil
	})
}

// hasDirect mirrors the unique (org_id, direct_key) index of the postgres store
func hasDirect(st *state, orgID uuid.UUID, key string) bool {
	for id, row := range st.threads {
		if row.OrgID != orgID || row.Type != models.ThreadDirect {
			continue
		}
		ps := st.participants[id]
		if len(ps) >= 2 && models.DirectKey(ps[0].UserID, ps[1].UserID) == key {
			return true
		}
	}
	return false
}

func addParticipant(st *state, threadID, orgID, userID uuid.UUID, at time.Time) {
	for _, p := range st.participants[threadID] {
		if p.UserID == userID {
			return
		}
	}
	st.participants[threadID] = append(st.participants[threadID], &models.ThreadParticipant{
		ThreadID: threadID,
		OrgID:    orgID,
		UserID:   userID,
		JoinedAt: at,
	})
}

func (t threadRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Thread, error) {
	var out *models.Thread
	err := t.r.run("threads.GetByID", func(st *state) error {
		thread, ok := loadThread(st, id)
		if !ok {
			return apperrors.NewResourceNotFoundError("thread not found")
		}
		out = thread
		return nil
	})
	return out, err
}

func (t threadRepo) FindDirect(ctx context.Context, orgID, userA, userB uuid.UUID) (*models.Thread, error) {
	var found []*models.Thread
	err := t.r.run("threads.FindDirect", func(st *state) error {
		for id, row := range st.threads {
			if row.OrgID != orgID || row.Type != models.ThreadDirect {
				continue
			}
			thread, _ := loadThread(st, id)
			if thread.HasParticipant(userA) && thread.HasParticipant(userB) {
				found = append(found, thread)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, apperrors.NewResourceNotFoundError("direct thread not found")
	}
	sort.Slice(found, func(i, j int) bool { return found[i].CreatedAt.Before(found[j].CreatedAt) })
	return found[0], nil
}

func (t threadRepo) AddParticipant(ctx context.Context, threadID, orgID, userID uuid.UUID, at time.Time) error {
	return t.r.run("threads.AddParticipant", func(st *state) error {
		if _, ok := st.threads[threadID]; !ok {
			return apperrors.NewResourceNotFoundError("thread not found")
		}
		addParticipant(st, threadID, orgID, userID, at)
		return nil
	})
}

func (t threadRepo) RemoveParticipant(ctx context.Context, threadID, userID uuid.UUID) error {
	return t.r.run("threads.RemoveParticipant", func(st *state) error {
		if _, ok := st.threads[threadID]; !ok {
			return apperrors.NewResourceNotFoundError("thread not found")
		}
		kept := st.participants[threadID][:0]
		for _, p := range st.participants[threadID] {
			if p.UserID != userID {
				kept = append(kept, p)
			}
		}
		st.participants[threadID] = kept
		return nil
	})
}

func findParticipant(st *state, threadID, userID uuid.UUID) *models.ThreadParticipant {
	for _, p := range st.participants[threadID] {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

func (t threadRepo) GetParticipant(ctx context.Context, threadID, userID uuid.UUID) (*models.ThreadParticipant, error) {
	var out *models.ThreadParticipant
	err := t.r.run("threads.GetParticipant", func(st *state) error {
		p := findParticipant(st, threadID, userID)
		if p == nil {
			return apperrors.NewResourceNotFoundError("participant not found")
		}
		out = copyParticipant(p)
		return nil
	})
	return out, err
}

func (t threadRepo) MarkRead(ctx context.Context, threadID, userID uuid.UUID, at time.Time) error {
	return t.r.run("threads.MarkRead", func(st *state) error {
		p := findParticipant(st, threadID, userID)
		if p == nil {
			return apperrors.NewResourceNotFoundError("participant not found")
		}
		p.LastReadAt = &at
		return nil
	})
}

func (t threadRepo) TouchLastMessage(ctx context.Context, threadID uuid.UUID, at time.Time) error {
	return t.r.run("threads.TouchLastMessage", func(st *state) error {
		thread, ok := st.threads[threadID]
		if !ok {
			return apperrors.NewResourceNotFoundError("thread not found")
		}
		thread.LastMessageAt = &at
		thread.UpdatedAt = at
		return nil
	})
}

func (t threadRepo) ListForUser(ctx context.Context, orgID, userID uuid.UUID) ([]*models.Thread, error) {
	var out []*models.Thread
	err := t.r.run("threads.ListForUser", func(st *state) error {
		for id, row := range st.threads {
			if row.OrgID != orgID || findParticipant(st, id, userID) == nil {
				continue
			}
			thread, _ := loadThread(st, id)
			out = append(out, thread)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastMessageAt, out[j].LastMessageAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
