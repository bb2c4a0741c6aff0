package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/app/repositories"
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
	"github.com/kapwanet/exchange/internal/pkg/validation"
	"github.com/rs/zerolog"
)

// AcceptResult is everything the accept cascade wrote
type AcceptResult struct {
	Match    *models.Match   `json:"match"`
	Post     *models.Post    `json:"post"`
	Thread   *models.Thread  `json:"thread"`
	Declined []*models.Match `json:"declined"`
}

// MatchService defines the interface for match operations. Callers authorize
// the actor before invoking any of these; the state machines do not.
type MatchService interface {
	// ExpressInterest creates a pending match, or revives the pair's latest
	// declined or withdrawn match under the same id.
	ExpressInterest(ctx context.Context, postID, responderID uuid.UUID, in models.InterestInput) (*models.Match, error)
	Accept(ctx context.Context, matchID, actorID uuid.UUID) (*AcceptResult, error)
	Decline(ctx context.Context, matchID, actorID uuid.UUID) (*models.Match, error)
	Withdraw(ctx context.Context, matchID, actorID uuid.UUID) (*models.Match, error)
	// Close ends an accepted match. A failed exchange (completed=false) puts the post back on offer.
	Close(ctx context.Context, matchID, actorID uuid.UUID, completed bool) (*models.Match, error)

	Get(ctx context.Context, matchID uuid.UUID) (*models.Match, error)
	ListByPost(ctx context.Context, postID uuid.UUID) ([]*models.Match, error)
	ListMine(ctx context.Context, orgID, responderID uuid.UUID, variant models.Variant) ([]*models.Match, error)
	History(ctx context.Context, matchID uuid.UUID) ([]*models.MatchEvent, error)
}

type matchServiceImpl struct {
	deps   Deps
	logger zerolog.Logger
}

// NewMatchService creates a new MatchService
func NewMatchService(deps Deps) MatchService {
	deps = deps.withDefaults()
	return &matchServiceImpl{deps: deps, logger: deps.Logger.With().Str("service", "matches").Logger()}
}

func domainError(sentinel error, message string) error {
	return apperrors.NewCustomError(sentinel, message)
}

// moveMatch validates and persists a status change of m and records it in the
// match's audit log
func moveMatch(ctx context.Context, deps Deps, repos repositories.Repositories, m *models.Match,
	canonical models.MatchStatus, actorID *uuid.UUID, note string) error {
	from := m.Status
	to := models.MatchLabel(m.Variant, canonical)
	if err := models.TransitionMatch(m.Variant, from, to); err != nil {
		return err
	}

	now := deps.now()
	m.Status = to
	m.UpdatedAt = now
	switch canonical {
	case models.MatchAccepted:
		m.AcceptedAt = &now
	case models.MatchClosed:
		m.ClosedAt = &now
	}
	if err := repos.Matches().Update(ctx, m); err != nil {
		return err
	}
	if err := repos.Matches().AppendEvent(ctx, &models.MatchEvent{
		ID:         uuid.New(),
		OrgID:      m.OrgID,
		MatchID:    m.ID,
		ActorID:    actorID,
		FromStatus: from,
		ToStatus:   to,
		Message:    note,
		CreatedAt:  now,
	}); err != nil {
		return err
	}

	deps.Metrics.MatchTransition(string(m.Variant), string(from), string(to))
	deps.Logger.Info().
		Str("matchID", m.ID.String()).
		Str("postID", m.PostID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Match status changed")
	return nil
}

func (s *matchServiceImpl) ExpressInterest(ctx context.Context, postID, responderID uuid.UUID, in models.InterestInput) (*models.Match, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var out *models.Match
	err := s.deps.cascade(ctx, "express_interest", postID, func(ctx context.Context, repos repositories.Repositories) error {
		post, err := repos.Posts().GetByIDForUpdate(ctx, postID)
		if err != nil {
			return err
		}
		now := s.deps.now()

		if post.OwnerID == responderID {
			return domainError(apperrors.ErrSelfInterestForbidden, apperrors.ErrSelfInterestForbidden.Error())
		}
		if !post.IsOpen() {
			return domainError(apperrors.ErrPostNotOpen,
				fmt.Sprintf("post is %s, not %s", post.Status, models.OpenStatus(post.Variant)))
		}
		if post.IsExpired(now) {
			return domainError(apperrors.ErrPostNotOpen, "this item has expired")
		}

		quantity := 0
		if post.Variant == models.VariantItem {
			quantity = in.Quantity
			if quantity < 1 {
				quantity = 1
			}
			if quantity > post.Quantity {
				return domainError(apperrors.ErrQuantityExceeded,
					fmt.Sprintf("requested %d but only %d available", quantity, post.Quantity))
			}
		}

		previous, err := repos.Matches().ListForPair(ctx, postID, responderID)
		if err != nil {
			return err
		}
		for _, m := range previous {
			if m.IsActive() {
				return domainError(apperrors.ErrDuplicateInterest, apperrors.ErrDuplicateInterest.Error())
			}
		}

		responder := responderID
		if len(previous) > 0 && previous[0].IsRevivable() {
			m := previous[0]
			event := &models.MatchEvent{
				ID:           uuid.New(),
				OrgID:        m.OrgID,
				MatchID:      m.ID,
				ActorID:      &responder,
				FromStatus:   m.Status,
				ToStatus:     models.MatchPending,
				Message:      in.Message,
				PriorMessage: m.Message,
				CreatedAt:    now,
			}
			m.Status = models.MatchPending
			m.Message = in.Message
			m.Quantity = quantity
			m.AcceptedAt = nil
			m.ClosedAt = nil
			// the old thread stays as the log of the earlier exchange
			m.ThreadID = nil
			m.UpdatedAt = now
			if err := repos.Matches().Update(ctx, m); err != nil {
				return err
			}
			if err := repos.Matches().AppendEvent(ctx, event); err != nil {
				return err
			}
			s.deps.Metrics.MatchTransition(string(m.Variant), string(event.FromStatus), string(m.Status))
			s.logger.Info().
				Str("matchID", m.ID.String()).
				Str("from", string(event.FromStatus)).
				Msg("Match revived")
			m.OwnerID = post.OwnerID
			out = m
			return nil
		}

		m := &models.Match{
			ID:          uuid.New(),
			OrgID:       post.OrgID,
			Variant:     post.Variant,
			PostID:      post.ID,
			ResponderID: responderID,
			Status:      models.MatchPending,
			Message:     in.Message,
			Quantity:    quantity,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := repos.Matches().Create(ctx, m); err != nil {
			return err
		}
		if err := repos.Matches().AppendEvent(ctx, &models.MatchEvent{
			ID:        uuid.New(),
			OrgID:     m.OrgID,
			MatchID:   m.ID,
			ActorID:   &responder,
			ToStatus:  models.MatchPending,
			Message:   in.Message,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		s.logger.Info().
			Str("matchID", m.ID.String()).
			Str("postID", post.ID.String()).
			Msg("Interest expressed")
		m.OwnerID = post.OwnerID
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// withMatch runs fn under the post lock with the post and match both read for update
func (s *matchServiceImpl) withMatch(ctx context.Context, op string, matchID uuid.UUID,
	fn func(ctx context.Context, repos repositories.Repositories, post *models.Post, m *models.Match) error) error {
	current, err := s.deps.Store.Matches().GetByID(ctx, matchID)
	if err != nil {
		return err
	}
	return s.deps.cascade(ctx, op, current.PostID, func(ctx context.Context, repos repositories.Repositories) error {
		post, err := repos.Posts().GetByIDForUpdate(ctx, current.PostID)
		if err != nil {
			return err
		}
		m, err := repos.Matches().GetByIDForUpdate(ctx, matchID)
		if err != nil {
			return err
		}
		m.OwnerID = post.OwnerID
		return fn(ctx, repos, post, m)
	})
}

func threadSubject(post *models.Post) string {
	if post.Variant == models.VariantItem {
		return "Reservation: " + post.Title
	}
	return "Help: " + post.Title
}

func (s *matchServiceImpl) Accept(ctx context.Context, matchID, actorID uuid.UUID) (*AcceptResult, error) {
	var result *AcceptResult
	err := s.withMatch(ctx, "accept", matchID, func(ctx context.Context, repos repositories.Repositories, post *models.Post, m *models.Match) error {
		accepted := models.MatchLabel(m.Variant, models.MatchAccepted)
		if err := models.TransitionMatch(m.Variant, m.Status, accepted); err != nil {
			return err
		}
		if !post.IsOpen() {
			return domainError(apperrors.ErrPostNotOpen,
				fmt.Sprintf("post is %s, not %s", post.Status, models.OpenStatus(post.Variant)))
		}
		if post.Variant == models.VariantItem && m.Quantity > post.Quantity {
			return domainError(apperrors.ErrQuantityExceeded,
				fmt.Sprintf("reservation of %d exceeds the %d available", m.Quantity, post.Quantity))
		}
		actor := actorID

		pending, err := repos.Matches().ListByPost(ctx, post.ID, models.MatchPending)
		if err != nil {
			return err
		}
		declined := make([]*models.Match, 0, len(pending))
		for _, sibling := range pending {
			if sibling.ID == m.ID {
				continue
			}
			if err := moveMatch(ctx, s.deps, repos, sibling, models.MatchDeclined, &actor, "another match was accepted"); err != nil {
				return err
			}
			sibling.OwnerID = post.OwnerID
			declined = append(declined, sibling)
		}

		now := s.deps.now()
		ref := m.ID
		thread := &models.Thread{
			ID:           uuid.New(),
			OrgID:        post.OrgID,
			Type:         models.ThreadTypeFor(post.Variant),
			RefID:        &ref,
			Subject:      threadSubject(post),
			CreatedAt:    now,
			UpdatedAt:    now,
			Participants: []uuid.UUID{post.OwnerID, m.ResponderID},
		}
		if err := repos.Threads().Create(ctx, thread); err != nil {
			return err
		}
		threadID := thread.ID
		m.ThreadID = &threadID

		if err := moveMatch(ctx, s.deps, repos, m, models.MatchAccepted, &actor, ""); err != nil {
			return err
		}
		if err := transitionPost(ctx, s.deps, repos, post, models.MatchedStatus(post.Variant)); err != nil {
			return err
		}

		responder := displayName(ctx, repos, post.OrgID, m.ResponderID)
		var body string
		if post.Variant == models.VariantItem {
			body = fmt.Sprintf("Reservation approved! %s will pick up %dx %s.", responder, m.Quantity, post.Title)
		} else {
			body = fmt.Sprintf("Match accepted! %s will help with \"%s\".", responder, post.Title)
		}
		if _, err := appendSystemMessage(ctx, s.deps, repos, thread, body); err != nil {
			return err
		}

		result = &AcceptResult{Match: m, Post: post, Thread: thread, Declined: declined}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("matchID", matchID.String()).
		Str("threadID", result.Thread.ID.String()).
		Int("declined", len(result.Declined)).
		Msg("Match accepted")
	return result, nil
}

func (s *matchServiceImpl) Decline(ctx context.Context, matchID, actorID uuid.UUID) (*models.Match, error) {
	var out *models.Match
	err := s.withMatch(ctx, "decline", matchID, func(ctx context.Context, repos repositories.Repositories, post *models.Post, m *models.Match) error {
		actor := actorID
		out = m
		return moveMatch(ctx, s.deps, repos, m, models.MatchDeclined, &actor, "")
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *matchServiceImpl) Withdraw(ctx context.Context, matchID, actorID uuid.UUID) (*models.Match, error) {
	var out *models.Match
	err := s.withMatch(ctx, "withdraw", matchID, func(ctx context.Context, repos repositories.Repositories, post *models.Post, m *models.Match) error {
		wasAccepted := m.Is(models.MatchAccepted)
		actor := actorID
		if err := moveMatch(ctx, s.deps, repos, m, models.MatchWithdrawn, &actor, ""); err != nil {
			return err
		}
		out = m
		if !wasAccepted {
			return nil
		}

		reopened := false
		if post.Status == models.MatchedStatus(post.Variant) {
			if err := transitionPost(ctx, s.deps, repos, post, models.OpenStatus(post.Variant)); err != nil {
				return err
			}
			reopened = true
		}
		if m.ThreadID == nil {
			return nil
		}
		thread, err := repos.Threads().GetByID(ctx, *m.ThreadID)
		if err != nil {
			return err
		}

		name := displayName(ctx, repos, post.OrgID, actorID)
		var body string
		if post.Variant == models.VariantItem {
			body = fmt.Sprintf("Reservation cancelled by %s.", name)
			if reopened {
				body += " The item is available again."
			}
		} else {
			body = fmt.Sprintf("Match withdrawn by %s.", name)
			if reopened {
				body += " The post is open again."
			}
		}
		_, err = appendSystemMessage(ctx, s.deps, repos, thread, body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *matchServiceImpl) Close(ctx context.Context, matchID, actorID uuid.UUID, completed bool) (*models.Match, error) {
	var out *models.Match
	err := s.withMatch(ctx, "close", matchID, func(ctx context.Context, repos repositories.Repositories, post *models.Post, m *models.Match) error {
		actor := actorID
		note := "completed"
		if !completed {
			note = "closed without completion"
		}
		if err := moveMatch(ctx, s.deps, repos, m, models.MatchClosed, &actor, note); err != nil {
			return err
		}
		out = m

		// A post cancelled by moderation while matched stays where it is
		matched := post.Status == models.MatchedStatus(post.Variant)
		var body string
		switch {
		case completed && post.Variant == models.VariantItem:
			body = "Pickup confirmed! Thank you for sharing with the community."
		case completed:
			body = "Help completed! Thank you for supporting your community."
		case post.Variant == models.VariantItem:
			body = "Reservation closed without pickup."
			if matched {
				body += " The item is available again."
			}
		default:
			body = "Match closed without completion."
			if matched {
				body += " The post is open again."
			}
		}

		if matched {
			target := models.PostCompleted
			if !completed {
				target = models.OpenStatus(post.Variant)
			}
			if err := transitionPost(ctx, s.deps, repos, post, target); err != nil {
				return err
			}
		}

		if m.ThreadID == nil {
			return nil
		}
		thread, err := repos.Threads().GetByID(ctx, *m.ThreadID)
		if err != nil {
			return err
		}
		_, err = appendSystemMessage(ctx, s.deps, repos, thread, body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *matchServiceImpl) Get(ctx context.Context, matchID uuid.UUID) (*models.Match, error) {
	m, err := s.deps.Store.Matches().GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	post, err := s.deps.Store.Posts().GetByID(ctx, m.PostID)
	if err != nil {
		return nil, err
	}
	m.OwnerID = post.OwnerID
	return m, nil
}

func (s *matchServiceImpl) ListByPost(ctx context.Context, postID uuid.UUID) ([]*models.Match, error) {
	post, err := s.deps.Store.Posts().GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	matches, err := s.deps.Store.Matches().ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		m.OwnerID = post.OwnerID
	}
	return matches, nil
}

func (s *matchServiceImpl) ListMine(ctx context.Context, orgID, responderID uuid.UUID, variant models.Variant) ([]*models.Match, error) {
	return s.deps.Store.Matches().ListByResponder(ctx, orgID, responderID, variant)
}

func (s *matchServiceImpl) History(ctx context.Context, matchID uuid.UUID) ([]*models.MatchEvent, error) {
	if _, err := s.deps.Store.Matches().GetByID(ctx, matchID); err != nil {
		return nil, err
	}
	return s.deps.Store.Matches().ListEvents(ctx, matchID)
}
