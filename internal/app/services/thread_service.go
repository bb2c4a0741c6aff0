package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/app/repositories"
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
	"github.com/rs/zerolog"
)

const directSubject = "Direct Message"

// ThreadService defines the interface for thread and message operations
type ThreadService interface {
	// GetOrCreateDirect returns the direct thread shared by a and b, creating it on first use
	GetOrCreateDirect(ctx context.Context, orgID, userA, userB uuid.UUID) (*models.Thread, error)
	Get(ctx context.Context, threadID uuid.UUID) (*models.Thread, error)
	SendMessage(ctx context.Context, threadID, senderID uuid.UUID, body string) (*models.Message, error)
	// SendSystemMessage skips the participant check and records no sender
	SendSystemMessage(ctx context.Context, threadID uuid.UUID, body string) (*models.Message, error)
	MarkRead(ctx context.Context, threadID, userID uuid.UUID) error
	UnreadCount(ctx context.Context, threadID, userID uuid.UUID) (int, error)
	Inbox(ctx context.Context, orgID, userID uuid.UUID) ([]*models.ThreadSummary, error)
	// ListMessages returns the log in order. Hidden messages are only visible to moderators.
	ListMessages(ctx context.Context, threadID, viewerID uuid.UUID, moderator bool) ([]*models.Message, error)
	AddParticipant(ctx context.Context, threadID, userID uuid.UUID) error
	RemoveParticipant(ctx context.Context, threadID, userID uuid.UUID) error
	IsParticipant(ctx context.Context, threadID, userID uuid.UUID) (bool, error)
}

type threadServiceImpl struct {
	deps   Deps
	logger zerolog.Logger
}

// NewThreadService creates a new ThreadService
func NewThreadService(deps Deps) ThreadService {
	deps = deps.withDefaults()
	return &threadServiceImpl{deps: deps, logger: deps.Logger.With().Str("service", "threads").Logger()}
}

func notParticipant() error {
	return apperrors.NewCustomError(apperrors.ErrNotParticipant, apperrors.ErrNotParticipant.Error())
}

// appendMessage writes one message and advances the thread's last_message_at
func appendMessage(ctx context.Context, deps Deps, repos repositories.Repositories, thread *models.Thread,
	sender *uuid.UUID, kind models.MessageKind, body string) (*models.Message, error) {
	now := deps.now()
	msg := &models.Message{
		ID:        uuid.New(),
		OrgID:     thread.OrgID,
		ThreadID:  thread.ID,
		SenderID:  sender,
		Kind:      kind,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repos.Messages().Create(ctx, msg); err != nil {
		return nil, err
	}
	if err := repos.Threads().TouchLastMessage(ctx, thread.ID, now); err != nil {
		return nil, err
	}
	thread.LastMessageAt = &now
	deps.Metrics.Message(string(kind))
	return msg, nil
}

func appendSystemMessage(ctx context.Context, deps Deps, repos repositories.Repositories, thread *models.Thread, body string) (*models.Message, error) {
	return appendMessage(ctx, deps, repos, thread, nil, models.MessageSystem, body)
}

func (s *threadServiceImpl) GetOrCreateDirect(ctx context.Context, orgID, userA, userB uuid.UUID) (*models.Thread, error) {
	if userA == userB {
		return nil, apperrors.NewValidationError("userId", "cannot start a direct thread with yourself")
	}

	key := "direct:" + orgID.String() + ":" + models.DirectKey(userA, userB)
	unlock, err := s.deps.Locker.Lock(ctx, key, s.deps.LockTTL)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to acquire direct thread lock")
		return nil, apperrors.NewConsistencyError("direct_thread", err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to release direct thread lock")
		}
	}()

	var out *models.Thread
	created := false
	err = s.deps.tx(ctx, "direct_thread", func(ctx context.Context, repos repositories.Repositories) error {
		existing, err := repos.Threads().FindDirect(ctx, orgID, userA, userB)
		if err == nil {
			out = existing
			return nil
		}
		if !apperrors.Is(err, apperrors.ErrResourceNotFound) {
			return err
		}
		now := s.deps.now()
		out = &models.Thread{
			ID:           uuid.New(),
			OrgID:        orgID,
			Type:         models.ThreadDirect,
			Subject:      directSubject,
			CreatedAt:    now,
			UpdatedAt:    now,
			Participants: []uuid.UUID{userA, userB},
		}
		created = true
		return repos.Threads().Create(ctx, out)
	})
	if apperrors.Is(err, apperrors.ErrConflict) {
		// another instance created the pair's thread after our lookup
		return s.deps.Store.Threads().FindDirect(ctx, orgID, userA, userB)
	}
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info().Str("threadID", out.ID.String()).Msg("Direct thread created")
	}
	return out, nil
}

func (s *threadServiceImpl) Get(ctx context.Context, threadID uuid.UUID) (*models.Thread, error) {
	return s.deps.Store.Threads().GetByID(ctx, threadID)
}

func (s *threadServiceImpl) SendMessage(ctx context.Context, threadID, senderID uuid.UUID, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("body", "message body cannot be empty")
	}

	var out *models.Message
	err := s.deps.tx(ctx, "send_message", func(ctx context.Context, repos repositories.Repositories) error {
		thread, err := repos.Threads().GetByID(ctx, threadID)
		if err != nil {
			return err
		}
		if !thread.HasParticipant(senderID) {
			return notParticipant()
		}
		sender := senderID
		out, err = appendMessage(ctx, s.deps, repos, thread, &sender, models.MessageUser, body)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("threadID", threadID.String()).Str("messageID", out.ID.String()).Msg("Message sent")
	return out, nil
}

func (s *threadServiceImpl) SendSystemMessage(ctx context.Context, threadID uuid.UUID, body string) (*models.Message, error) {
	var out *models.Message
	err := s.deps.tx(ctx, "send_system_message", func(ctx context.Context, repos repositories.Repositories) error {
		thread, err := repos.Threads().GetByID(ctx, threadID)
		if err != nil {
			return err
		}
		out, err = appendSystemMessage(ctx, s.deps, repos, thread, body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *threadServiceImpl) participant(ctx context.Context, threadID, userID uuid.UUID) (*models.ThreadParticipant, error) {
	if _, err := s.deps.Store.Threads().GetByID(ctx, threadID); err != nil {
		return nil, err
	}
	p, err := s.deps.Store.Threads().GetParticipant(ctx, threadID, userID)
	if apperrors.Is(err, apperrors.ErrResourceNotFound) {
		return nil, notParticipant()
	}
	return p, err
}

func (s *threadServiceImpl) MarkRead(ctx context.Context, threadID, userID uuid.UUID) error {
	if _, err := s.participant(ctx, threadID, userID); err != nil {
		return err
	}
	return s.deps.Store.Threads().MarkRead(ctx, threadID, userID, s.deps.now())
}

func (s *threadServiceImpl) UnreadCount(ctx context.Context, threadID, userID uuid.UUID) (int, error) {
	p, err := s.participant(ctx, threadID, userID)
	if err != nil {
		return 0, err
	}
	return s.deps.Store.Messages().CountUnread(ctx, threadID, userID, p.LastReadAt)
}

func (s *threadServiceImpl) Inbox(ctx context.Context, orgID, userID uuid.UUID) ([]*models.ThreadSummary, error) {
	threads, err := s.deps.Store.Threads().ListForUser(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]*models.ThreadSummary, 0, len(threads))
	for _, t := range threads {
		p, err := s.deps.Store.Threads().GetParticipant(ctx, t.ID, userID)
		if err != nil {
			return nil, err
		}
		unread, err := s.deps.Store.Messages().CountUnread(ctx, t.ID, userID, p.LastReadAt)
		if err != nil {
			return nil, err
		}
		msgs, err := s.deps.Store.Messages().ListByThread(ctx, t.ID, false)
		if err != nil {
			return nil, err
		}
		summary := &models.ThreadSummary{Thread: t, UnreadCount: unread}
		if len(msgs) > 0 {
			summary.LastMessage = msgs[len(msgs)-1]
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *threadServiceImpl) ListMessages(ctx context.Context, threadID, viewerID uuid.UUID, moderator bool) ([]*models.Message, error) {
	thread, err := s.deps.Store.Threads().GetByID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !moderator && !thread.HasParticipant(viewerID) {
		return nil, notParticipant()
	}
	return s.deps.Store.Messages().ListByThread(ctx, threadID, moderator)
}

func (s *threadServiceImpl) AddParticipant(ctx context.Context, threadID, userID uuid.UUID) error {
	thread, err := s.deps.Store.Threads().GetByID(ctx, threadID)
	if err != nil {
		return err
	}
	if thread.HasParticipant(userID) {
		return nil
	}
	if err := s.deps.Store.Threads().AddParticipant(ctx, threadID, thread.OrgID, userID, s.deps.now()); err != nil {
		return err
	}
	s.logger.Info().Str("threadID", threadID.String()).Str("userID", userID.String()).Msg("Participant added")
	return nil
}

func (s *threadServiceImpl) RemoveParticipant(ctx context.Context, threadID, userID uuid.UUID) error {
	if _, err := s.deps.Store.Threads().GetByID(ctx, threadID); err != nil {
		return err
	}
	return s.deps.Store.Threads().RemoveParticipant(ctx, threadID, userID)
}

func (s *threadServiceImpl) IsParticipant(ctx context.Context, threadID, userID uuid.UUID) (bool, error) {
	thread, err := s.deps.Store.Threads().GetByID(ctx, threadID)
	if err != nil {
		return false, err
	}
	return thread.HasParticipant(userID), nil
}
