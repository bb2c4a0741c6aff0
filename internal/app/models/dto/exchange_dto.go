package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
)

// CreatePostRequest represents a request to publish a help or item post
type CreatePostRequest struct {
	Variant models.Variant `json:"variant" binding:"required,oneof=help item"`
	models.PostInput
}

// CloseMatchRequest represents a request to end an accepted match
type CloseMatchRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

// SendMessageRequest represents a message posted to a thread
type SendMessageRequest struct {
	Body string `json:"body" binding:"required,max=5000"`
}

// DirectThreadRequest opens a direct thread with another member
type DirectThreadRequest struct {
	UserID string `json:"userId" binding:"required,uuid"`
}

// TargetRequest names the subject of a report or moderation action
type TargetRequest struct {
	TargetType models.TargetKind `json:"targetType" binding:"required,oneof=help_post item_post message user"`
	TargetID   string            `json:"targetId" binding:"required,uuid"`
}

// Target decodes the request into a typed target
func (r TargetRequest) Target() (models.Target, error) {
	id, err := uuid.Parse(r.TargetID)
	if err != nil {
		return nil, apperrors.NewValidationError("targetId", "targetId must be a valid UUID")
	}
	target, err := models.NewTarget(r.TargetType, id)
	if err != nil {
		return nil, apperrors.NewValidationError("targetType", err.Error())
	}
	return target, nil
}

// ModerationActionRequest represents a moderator's action on a target
type ModerationActionRequest struct {
	TargetRequest
	ReportID      string `json:"reportId" binding:"omitempty,uuid"`
	Reason        string `json:"reason" binding:"required,max=500"`
	InternalNotes string `json:"internalNotes"`
	UserMessage   string `json:"userMessage"`
	DurationDays  *int   `json:"durationDays" binding:"omitempty,min=1,max=365"`
}

// ToModel builds the service request for the acting moderator
func (r *ModerationActionRequest) ToModel(orgID, moderatorID uuid.UUID) (models.ModerationRequest, error) {
	target, err := r.Target()
	if err != nil {
		return models.ModerationRequest{}, err
	}
	req := models.ModerationRequest{
		OrgID:        orgID,
		ModeratorID:  moderatorID,
		Target:       target,
		Reason:       r.Reason,
		Notes:        r.InternalNotes,
		UserMessage:  r.UserMessage,
		DurationDays: r.DurationDays,
	}
	if r.ReportID != "" {
		reportID, err := uuid.Parse(r.ReportID)
		if err != nil {
			return models.ModerationRequest{}, apperrors.NewValidationError("reportId", "reportId must be a valid UUID")
		}
		req.ReportID = &reportID
	}
	return req, nil
}

// FileReportRequest represents a member's report
type FileReportRequest struct {
	TargetRequest
	Reason  models.ReportReason `json:"reason" binding:"required"`
	Details string              `json:"details" binding:"max=2000"`
}

// SettleReportRequest carries the moderator's notes on a report decision
type SettleReportRequest struct {
	Notes string `json:"notes" binding:"max=2000"`
}

// TokenRequest asks for a development access token
type TokenRequest struct {
	UserID      string `json:"userId" binding:"required,uuid"`
	DisplayName string `json:"displayName"`
}

// TokenResponse is an issued access token
type TokenResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// TargetData is the wire form of a moderation target
type TargetData struct {
	Type models.TargetKind `json:"targetType"`
	ID   uuid.UUID         `json:"targetId"`
}

func newTargetData(t models.Target) TargetData {
	if t == nil {
		return TargetData{}
	}
	return TargetData{Type: t.Kind(), ID: t.TargetID()}
}

// ReportData is a report with its target flattened
type ReportData struct {
	*models.Report
	TargetData
}

// NewReportData renders a report
func NewReportData(r *models.Report) *ReportData {
	if r == nil {
		return nil
	}
	return &ReportData{Report: r, TargetData: newTargetData(r.Target)}
}

// ActionData is a moderation action with its target flattened
type ActionData struct {
	*models.ModerationAction
	TargetData
}

// NewActionData renders a moderation action
func NewActionData(a *models.ModerationAction) *ActionData {
	if a == nil {
		return nil
	}
	return &ActionData{ModerationAction: a, TargetData: newTargetData(a.Target)}
}

// NewReportList renders a list of reports
func NewReportList(reports []*models.Report) []*ReportData {
	out := make([]*ReportData, 0, len(reports))
	for _, r := range reports {
		out = append(out, NewReportData(r))
	}
	return out
}

// NewActionList renders a list of moderation actions
func NewActionList(actions []*models.ModerationAction) []*ActionData {
	out := make([]*ActionData, 0, len(actions))
	for _, a := range actions {
		out = append(out, NewActionData(a))
	}
	return out
}
