package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
)

// MatchStatus is a match state label. HelpMatch and ItemReservation share one
// five-state machine under different labels.
type MatchStatus string

const (
	MatchPending MatchStatus = "pending"

	// Help labels
	MatchAccepted  MatchStatus = "accepted"
	MatchDeclined  MatchStatus = "declined"
	MatchWithdrawn MatchStatus = "withdrawn"
	MatchClosed    MatchStatus = "closed"

	// Item labels
	MatchApproved  MatchStatus = "approved"
	MatchRejected  MatchStatus = "rejected"
	MatchCancelled MatchStatus = "cancelled"
	MatchCompleted MatchStatus = "completed"
)

// matchLabels maps the canonical help labels onto each variant
var matchLabels = map[Variant]map[MatchStatus]MatchStatus{
	VariantHelp: {
		MatchPending:   MatchPending,
		MatchAccepted:  MatchAccepted,
		MatchDeclined:  MatchDeclined,
		MatchWithdrawn: MatchWithdrawn,
		MatchClosed:    MatchClosed,
	},
	VariantItem: {
		MatchPending:   MatchPending,
		MatchAccepted:  MatchApproved,
		MatchDeclined:  MatchRejected,
		MatchWithdrawn: MatchCancelled,
		MatchClosed:    MatchCompleted,
	},
}

// canonical help label -> allowed canonical targets
var matchTransitions = map[MatchStatus][]MatchStatus{
	MatchPending:   {MatchAccepted, MatchDeclined, MatchWithdrawn},
	MatchAccepted:  {MatchClosed, MatchWithdrawn},
	MatchDeclined:  {},
	MatchWithdrawn: {},
	MatchClosed:    {},
}

// MatchLabel returns the variant's label for a canonical (help) status
func MatchLabel(v Variant, canonical MatchStatus) MatchStatus {
	return matchLabels[v][canonical]
}

// CanonicalMatchStatus maps a variant label back to its help label
func CanonicalMatchStatus(v Variant, s MatchStatus) (MatchStatus, bool) {
	for canonical, label := range matchLabels[v] {
		if label == s {
			return canonical, true
		}
	}
	return "", false
}

// ActiveMatchStatuses are the statuses covered by the (post, responder) uniqueness rule
func ActiveMatchStatuses(v Variant) []MatchStatus {
	return []MatchStatus{MatchPending, MatchLabel(v, MatchAccepted)}
}

// AllowedMatchTransitions lists the variant labels reachable from current
func AllowedMatchTransitions(v Variant, current MatchStatus) []MatchStatus {
	canonical, ok := CanonicalMatchStatus(v, current)
	if !ok {
		return nil
	}
	out := make([]MatchStatus, 0, len(matchTransitions[canonical]))
	for _, s := range matchTransitions[canonical] {
		out = append(out, MatchLabel(v, s))
	}
	return out
}

// TransitionMatch validates current -> desired for the variant's labels
func TransitionMatch(v Variant, current, desired MatchStatus) error {
	allowed := AllowedMatchTransitions(v, current)
	for _, s := range allowed {
		if s == desired {
			return nil
		}
	}
	labels := make([]string, 0, len(allowed))
	for _, s := range allowed {
		labels = append(labels, string(s))
	}
	return &apperrors.TransitionError{
		Entity:  MatchEntityName(v),
		From:    string(current),
		To:      string(desired),
		Allowed: labels,
	}
}

// MatchEntityName is the entity label for errors and audit rows
func MatchEntityName(v Variant) string {
	if v == VariantItem {
		return "item_reservation"
	}
	return "help_match"
}

// Match is one member's interest in a post: a HelpMatch or an ItemReservation
type Match struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	OrgID       uuid.UUID   `json:"orgId" db:"org_id"`
	Variant     Variant     `json:"variant" db:"variant"`
	PostID      uuid.UUID   `json:"postId" db:"post_id"`
	ResponderID uuid.UUID   `json:"responderId" db:"responder_id"`
	Status      MatchStatus `json:"status" db:"status"`
	Message     string      `json:"message,omitempty" db:"message"`
	Quantity    int         `json:"quantity,omitempty" db:"quantity"`
	ThreadID    *uuid.UUID  `json:"threadId,omitempty" db:"thread_id"`
	AcceptedAt  *time.Time  `json:"acceptedAt,omitempty" db:"accepted_at"`
	ClosedAt    *time.Time  `json:"closedAt,omitempty" db:"closed_at"`
	CreatedAt   time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time   `json:"updatedAt" db:"updated_at"`

	// Denormalized from the post when loaded by the service
	OwnerID uuid.UUID `json:"ownerId,omitempty" db:"-"`
}

// Is reports whether the match is in the variant label of a canonical status
func (m *Match) Is(canonical MatchStatus) bool {
	return m.Status == MatchLabel(m.Variant, canonical)
}

// IsActive reports whether the match blocks a new one for the same pair
func (m *Match) IsActive() bool {
	return m.Is(MatchPending) || m.Is(MatchAccepted)
}

// IsRevivable reports whether a new expression of interest reuses this row
func (m *Match) IsRevivable() bool {
	return m.Is(MatchDeclined) || m.Is(MatchWithdrawn)
}

// MatchEvent is an append-only audit record of a match status change
type MatchEvent struct {
	ID           uuid.UUID   `json:"id" db:"id"`
	OrgID        uuid.UUID   `json:"orgId" db:"org_id"`
	MatchID      uuid.UUID   `json:"matchId" db:"match_id"`
	ActorID      *uuid.UUID  `json:"actorId,omitempty" db:"actor_id"`
	FromStatus   MatchStatus `json:"fromStatus,omitempty" db:"from_status"`
	ToStatus     MatchStatus `json:"toStatus" db:"to_status"`
	Message      string      `json:"message,omitempty" db:"message"`
	PriorMessage string      `json:"priorMessage,omitempty" db:"prior_message"`
	CreatedAt    time.Time   `json:"createdAt" db:"created_at"`
}

// InterestInput is a responder's expression of interest in a post
type InterestInput struct {
	Message string `json:"message" validate:"max=2000"`
	// Quantity applies to item reservations and defaults to 1
	Quantity int `json:"quantity" validate:"omitempty,min=1"`
}
