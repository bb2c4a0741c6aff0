package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
)

// TargetKind is the persisted tag of a moderation target
type TargetKind string

const (
	TargetHelpPost TargetKind = "help_post"
	TargetItemPost TargetKind = "item_post"
	TargetMessage  TargetKind = "message"
	TargetUser     TargetKind = "user"
)

// Target is the closed set of things a report or moderation action points at.
// Implementations are HelpPostTarget, ItemPostTarget, MessageTarget and UserTarget.
type Target interface {
	Kind() TargetKind
	TargetID() uuid.UUID
	isTarget()
}

// HelpPostTarget refers to a help post
type HelpPostTarget struct{ PostID uuid.UUID }

// ItemPostTarget refers to an item post
type ItemPostTarget struct{ PostID uuid.UUID }

// MessageTarget refers to a thread message
type MessageTarget struct{ MessageID uuid.UUID }

// UserTarget refers to a member of the organization
type UserTarget struct{ UserID uuid.UUID }

func (HelpPostTarget) Kind() TargetKind { return TargetHelpPost }
func (ItemPostTarget) Kind() TargetKind { return TargetItemPost }
func (MessageTarget) Kind() TargetKind  { return TargetMessage }
func (UserTarget) Kind() TargetKind     { return TargetUser }

func (t HelpPostTarget) TargetID() uuid.UUID { return t.PostID }
func (t ItemPostTarget) TargetID() uuid.UUID { return t.PostID }
func (t MessageTarget) TargetID() uuid.UUID  { return t.MessageID }
func (t UserTarget) TargetID() uuid.UUID     { return t.UserID }

func (HelpPostTarget) isTarget() {}
func (ItemPostTarget) isTarget() {}
func (MessageTarget) isTarget()  {}
func (UserTarget) isTarget()     {}

// NewTarget decodes a persisted (kind, id) pair
func NewTarget(kind TargetKind, id uuid.UUID) (Target, error) {
	switch kind {
	case TargetHelpPost:
		return HelpPostTarget{PostID: id}, nil
	case TargetItemPost:
		return ItemPostTarget{PostID: id}, nil
	case TargetMessage:
		return MessageTarget{MessageID: id}, nil
	case TargetUser:
		return UserTarget{UserID: id}, nil
	}
	return nil, fmt.Errorf("unknown target type %q", kind)
}

// PostTarget returns the target referring to a post of the given variant
func PostTarget(v Variant, postID uuid.UUID) Target {
	if v == VariantItem {
		return ItemPostTarget{PostID: postID}
	}
	return HelpPostTarget{PostID: postID}
}

// ReportReason is why a member filed a report
type ReportReason string

const (
	ReasonSpam           ReportReason = "spam"
	ReasonHarassment     ReportReason = "harassment"
	ReasonInappropriate  ReportReason = "inappropriate"
	ReasonFraud          ReportReason = "fraud"
	ReasonProhibitedItem ReportReason = "prohibited_item"
	ReasonSafety         ReportReason = "safety"
	ReasonFalseInfo      ReportReason = "false_info"
	ReasonImpersonation  ReportReason = "impersonation"
	ReasonOther          ReportReason = "other"
)

// ReportStatus of a report under review
type ReportStatus string

const (
	ReportOpen      ReportStatus = "open"
	ReportReviewing ReportStatus = "reviewing"
	ReportResolved  ReportStatus = "resolved"
	ReportDismissed ReportStatus = "dismissed"
)

// Report is a member-submitted flag on content or a user
type Report struct {
	ID              uuid.UUID    `json:"id"`
	OrgID           uuid.UUID    `json:"orgId"`
	Target          Target       `json:"-"`
	ReporterID      uuid.UUID    `json:"reporterId"`
	Reason          ReportReason `json:"reason"`
	Details         string       `json:"details,omitempty"`
	Status          ReportStatus `json:"status"`
	ResolutionNotes string       `json:"resolutionNotes,omitempty"`
	ResolvedBy      *uuid.UUID   `json:"resolvedBy,omitempty"`
	ResolvedAt      *time.Time   `json:"resolvedAt,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// ActionType of a moderation log entry
type ActionType string

const (
	ActionWarn          ActionType = "warn"
	ActionRemoveContent ActionType = "remove_content"
	ActionHideContent   ActionType = "hide_content"
	ActionSuspend       ActionType = "suspend"
	ActionUnsuspend     ActionType = "unsuspend"
	ActionBan           ActionType = "ban"
	ActionUnban         ActionType = "unban"
)

// ChangesMembership reports whether the action writes membership status
func (t ActionType) ChangesMembership() bool {
	switch t {
	case ActionSuspend, ActionUnsuspend, ActionBan, ActionUnban:
		return true
	}
	return false
}

// ModerationAction is an audit entry of a privileged write
type ModerationAction struct {
	ID           uuid.UUID  `json:"id"`
	OrgID        uuid.UUID  `json:"orgId"`
	ModeratorID  *uuid.UUID `json:"moderatorId,omitempty"`
	Type         ActionType `json:"actionType"`
	Target       Target     `json:"-"`
	ReportID     *uuid.UUID `json:"reportId,omitempty"`
	Reason       string     `json:"reason"`
	Notes        string     `json:"internalNotes,omitempty"`
	UserMessage  string     `json:"userMessage,omitempty"`
	DurationDays *int       `json:"durationDays,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

var reportTransitions = map[ReportStatus][]ReportStatus{
	ReportOpen:      {ReportReviewing, ReportResolved, ReportDismissed},
	ReportReviewing: {ReportResolved, ReportDismissed},
	ReportResolved:  {},
	ReportDismissed: {},
}

// TransitionReport validates a report status change
func TransitionReport(current, desired ReportStatus) error {
	allowed := reportTransitions[current]
	labels := make([]string, 0, len(allowed))
	for _, s := range allowed {
		if s == desired {
			return nil
		}
		labels = append(labels, string(s))
	}
	return &apperrors.TransitionError{
		Entity:  "report",
		From:    string(current),
		To:      string(desired),
		Allowed: labels,
	}
}

// ValidReportReason reports whether r is a known reason
func ValidReportReason(r ReportReason) bool {
	switch r {
	case ReasonSpam, ReasonHarassment, ReasonInappropriate, ReasonFraud, ReasonProhibitedItem,
		ReasonSafety, ReasonFalseInfo, ReasonImpersonation, ReasonOther:
		return true
	}
	return false
}

// ModerationRequest is the input of every moderation action
type ModerationRequest struct {
	OrgID       uuid.UUID  `json:"-"`
	ModeratorID uuid.UUID  `json:"-"`
	Target      Target     `json:"-"`
	ReportID    *uuid.UUID `json:"reportId"`
	Reason      string     `json:"reason" validate:"required,max=500"`
	Notes       string     `json:"internalNotes"`
	UserMessage string     `json:"userMessage"`
	// DurationDays bounds a suspension; nil suspends indefinitely
	DurationDays *int `json:"durationDays" validate:"omitempty,min=1,max=365"`
}
