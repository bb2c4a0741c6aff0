package models

import (
	"time"

	"github.com/google/uuid"
)

// ThreadType tags what a thread was created for
type ThreadType string

const (
	ThreadHelpMatch       ThreadType = "help_match"
	ThreadItemReservation ThreadType = "item_reservation"
	ThreadDirect          ThreadType = "direct"
)

// ThreadTypeFor returns the thread type created on acceptance of a match
func ThreadTypeFor(v Variant) ThreadType {
	if v == VariantItem {
		return ThreadItemReservation
	}
	return ThreadHelpMatch
}

// Thread is a participant-scoped message channel
type Thread struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	OrgID         uuid.UUID  `json:"orgId" db:"org_id"`
	Type          ThreadType `json:"threadType" db:"thread_type"`
	RefID         *uuid.UUID `json:"refId,omitempty" db:"ref_id"`
	Subject       string     `json:"subject,omitempty" db:"subject"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty" db:"last_message_at"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" db:"updated_at"`

	// Ordered by join time
	Participants []uuid.UUID `json:"participants"`
}

// DirectKey identifies the unordered pair of users of a direct thread
func DirectKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if x > y {
		x, y = y, x
	}
	return x + ":" + y
}

// DirectKey returns the pair key of a direct thread from its first two
// participants, or "" for any other thread.
func (t *Thread) DirectKey() string {
	if t.Type != ThreadDirect || len(t.Participants) < 2 {
		return ""
	}
	return DirectKey(t.Participants[0], t.Participants[1])
}

// HasParticipant reports whether userID is listed on the loaded thread
func (t *Thread) HasParticipant(userID uuid.UUID) bool {
	for _, p := range t.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// ThreadParticipant tracks a member of a thread and their read watermark
type ThreadParticipant struct {
	ThreadID   uuid.UUID  `json:"threadId" db:"thread_id"`
	OrgID      uuid.UUID  `json:"orgId" db:"org_id"`
	UserID     uuid.UUID  `json:"userId" db:"user_id"`
	LastReadAt *time.Time `json:"lastReadAt,omitempty" db:"last_read_at"`
	JoinedAt   time.Time  `json:"joinedAt" db:"joined_at"`
}

// MessageKind distinguishes user-authored from system-authored messages
type MessageKind string

const (
	MessageUser   MessageKind = "user"
	MessageSystem MessageKind = "system"
)

// Message is one entry of a thread's append-only log
type Message struct {
	ID           uuid.UUID   `json:"id" db:"id"`
	OrgID        uuid.UUID   `json:"orgId" db:"org_id"`
	ThreadID     uuid.UUID   `json:"threadId" db:"thread_id"`
	SenderID     *uuid.UUID  `json:"senderId,omitempty" db:"sender_id"`
	Kind         MessageKind `json:"messageType" db:"message_type"`
	Body         string      `json:"body" db:"body"`
	IsHidden     bool        `json:"isHidden" db:"is_hidden"`
	HiddenReason string      `json:"hiddenReason,omitempty" db:"hidden_reason"`
	CreatedAt    time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time   `json:"updatedAt" db:"updated_at"`
}

// SentBy reports whether userID authored the message
func (m *Message) SentBy(userID uuid.UUID) bool {
	return m.SenderID != nil && *m.SenderID == userID
}

// ThreadSummary is an inbox row
type ThreadSummary struct {
	Thread      *Thread  `json:"thread"`
	UnreadCount int      `json:"unreadCount"`
	LastMessage *Message `json:"lastMessage,omitempty"`
}
