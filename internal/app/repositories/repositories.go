package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models"
)

// Lookups that find nothing return an error wrapping apperrors.ErrResourceNotFound.

// PostRepository persists help and item posts
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	// GetByIDForUpdate locks the post row until the surrounding transaction ends
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.PostStatus, at time.Time) error
	List(ctx context.Context, filter models.PostFilter) ([]*models.Post, error)
}

// MatchRepository persists help matches and item reservations
type MatchRepository interface {
	Create(ctx context.Context, match *models.Match) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Match, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Match, error)
	Update(ctx context.Context, match *models.Match) error
	// ListForPair returns every match of responderID on postID, newest first
	ListForPair(ctx context.Context, postID, responderID uuid.UUID) ([]*models.Match, error)
	// ListByPost returns matches on postID, oldest first, restricted to statuses when given
	ListByPost(ctx context.Context, postID uuid.UUID, statuses ...models.MatchStatus) ([]*models.Match, error)
	ListByResponder(ctx context.Context, orgID, responderID uuid.UUID, variant models.Variant) ([]*models.Match, error)
	AppendEvent(ctx context.Context, event *models.MatchEvent) error
	ListEvents(ctx context.Context, matchID uuid.UUID) ([]*models.MatchEvent, error)
}

// ThreadRepository persists threads and their participants
type ThreadRepository interface {
	// Create inserts the thread and its initial participants
	Create(ctx context.Context, thread *models.Thread) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Thread, error)
	FindDirect(ctx context.Context, orgID, userA, userB uuid.UUID) (*models.Thread, error)
	// AddParticipant is a no-op when the user is already listed
	AddParticipant(ctx context.Context, threadID, orgID, userID uuid.UUID, at time.Time) error
	RemoveParticipant(ctx context.Context, threadID, userID uuid.UUID) error
	GetParticipant(ctx context.Context, threadID, userID uuid.UUID) (*models.ThreadParticipant, error)
	MarkRead(ctx context.Context, threadID, userID uuid.UUID, at time.Time) error
	TouchLastMessage(ctx context.Context, threadID uuid.UUID, at time.Time) error
	// ListForUser returns the user's threads ordered by last_message_at, newest first
	ListForUser(ctx context.Context, orgID, userID uuid.UUID) ([]*models.Thread, error)
}

// MessageRepository persists thread messages
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	ListByThread(ctx context.Context, threadID uuid.UUID, includeHidden bool) ([]*models.Message, error)
	// CountUnread counts messages not sent by userID created strictly after since (all when since is nil)
	CountUnread(ctx context.Context, threadID, userID uuid.UUID, since *time.Time) (int, error)
	SetHidden(ctx context.Context, id uuid.UUID, hidden bool, reason string, at time.Time) error
}

// MembershipRepository persists organization memberships
type MembershipRepository interface {
	Get(ctx context.Context, orgID, userID uuid.UUID) (*models.Membership, error)
	// Upsert inserts or overwrites the membership row for (org, user)
	Upsert(ctx context.Context, membership *models.Membership) error
}

// ModerationRepository persists reports and the moderation action log
type ModerationRepository interface {
	CreateReport(ctx context.Context, report *models.Report) error
	GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error)
	UpdateReport(ctx context.Context, report *models.Report) error
	ListReports(ctx context.Context, orgID uuid.UUID, status models.ReportStatus) ([]*models.Report, error)
	CreateAction(ctx context.Context, action *models.ModerationAction) error
	ListActions(ctx context.Context, orgID uuid.UUID) ([]*models.ModerationAction, error)
	// ListExpiredSuspensions returns, per user, the latest membership-changing
	// action when it is a suspension that expired at or before now
	ListExpiredSuspensions(ctx context.Context, now time.Time) ([]*models.ModerationAction, error)
}

// Repositories groups the repositories bound to one connection or transaction
type Repositories interface {
	Posts() PostRepository
	Matches() MatchRepository
	Threads() ThreadRepository
	Messages() MessageRepository
	Memberships() MembershipRepository
	Moderation() ModerationRepository
}

// TxFn is a unit of work executed inside one transaction
type TxFn func(ctx context.Context, repos Repositories) error

// Store is the backing store of the exchange workflow
type Store interface {
	Repositories
	// WithinTx runs fn in a single transaction. Every write made through repos
	// commits when fn returns nil and is discarded otherwise.
	WithinTx(ctx context.Context, fn TxFn) error
	Close()
}
