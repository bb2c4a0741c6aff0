package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
)

type messageRepo struct{ r *repos }

func (m messageRepo) Create(ctx context.Context, message *models.Message) error {
	return m.r.run("messages.Create", func(st *state) error {
		if _, ok := st.threads[message.ThreadID]; !ok {
			return apperrors.NewResourceNotFoundError("thread not found")
		}
		if message.ID == uuid.Nil {
			message.ID = uuid.New()
		}
		st.messages[message.ThreadID] = append(st.messages[message.ThreadID], copyMessage(message))
		return nil
	})
}

func (m messageRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var out *models.Message
	err := m.r.run("messages.GetByID", func(st *state) error {
		if msg := findMessage(st, id); msg != nil {
			out = copyMessage(msg)
			return nil
		}
		return apperrors.NewResourceNotFoundError("message not found")
	})
	return out, err
}

func findMessage(st *state, id uuid.UUID) *models.Message {
	for _, msgs := range st.messages {
		for _, msg := range msgs {
			if msg.ID == id {
				return msg
			}
		}
	}
	return nil
}

// ListByThread returns messages in append order
func (m messageRepo) ListByThread(ctx context.Context, threadID uuid.UUID, includeHidden bool) ([]*models.Message, error) {
	out := []*models.Message{}
	err := m.r.run("messages.ListByThread", func(st *state) error {
		for _, msg := range st.messages[threadID] {
			if msg.IsHidden && !includeHidden {
				continue
			}
			out = append(out, copyMessage(msg))
		}
		return nil
	})
	return out, err
}

func (m messageRepo) CountUnread(ctx context.Context, threadID, userID uuid.UUID, since *time.Time) (int, error) {
	count := 0
	err := m.r.run("messages.CountUnread", func(st *state) error {
		for _, msg := range st.messages[threadID] {
			if msg.SentBy(userID) {
				continue
			}
			if since != nil && !msg.CreatedAt.After(*since) {
				continue
			}
			count++
		}
		return nil
	})
	return count, err
}

func (m messageRepo) SetHidden(ctx context.Context, id uuid.UUID, hidden bool, reason string, at time.Time) error {
	return m.r.run("messages.SetHidden", func(st *state) error {
		msg := findMessage(st, id)
		if msg == nil {
			return apperrors.NewResourceNotFoundError("message not found")
		}
		msg.IsHidden = hidden
		msg.HiddenReason = reason
		msg.UpdatedAt = at
		return nil
	})
}
