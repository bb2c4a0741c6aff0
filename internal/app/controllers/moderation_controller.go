package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/app/models/dto"
	"github.com/kapwanet/exchange/internal/app/services"
	"github.com/kapwanet/exchange/internal/middleware"
	"github.com/kapwanet/exchange/internal/pkg/apperrors"
	"github.com/rs/zerolog"
)

// ModerationController handles reports and moderator actions
type ModerationController struct {
	moderationService services.ModerationService
	logger            zerolog.Logger
}

// NewModerationController creates a new ModerationController
func NewModerationController(moderationService services.ModerationService, logger zerolog.Logger) *ModerationController {
	return &ModerationController{
		moderationService: moderationService,
		logger:            logger,
	}
}

type actionFunc func(ctx context.Context, req models.ModerationRequest) (*models.ModerationAction, error)

func (c *ModerationController) actions() map[string]actionFunc {
	return map[string]actionFunc{
		"hide":      c.moderationService.HideContent,
		"remove":    c.moderationService.RemoveContent,
		"warn":      c.moderationService.Warn,
		"suspend":   c.moderationService.Suspend,
		"unsuspend": c.moderationService.Unsuspend,
		"ban":       c.moderationService.Ban,
		"unban":     c.moderationService.Unban,
	}
}

// FileReport records a member's report
func (c *ModerationController) FileReport(ctx *gin.Context) {
	var req dto.FileReportRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	target, err := req.Target()
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	report, err := c.moderationService.FileReport(ctx.Request.Context(), middleware.OrgID(ctx), currentUser(ctx), services.ReportInput{
		Target:  target,
		Reason:  req.Reason,
		Details: req.Details,
	})
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.NewReportData(report), "Report submitted"))
}

// ListReports lists the organization's reports, optionally by status
func (c *ModerationController) ListReports(ctx *gin.Context) {
	reports, err := c.moderationService.ListReports(ctx.Request.Context(), middleware.OrgID(ctx), models.ReportStatus(ctx.Query("status")))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewReportList(reports), ""))
}

// ListActions returns the moderation log
func (c *ModerationController) ListActions(ctx *gin.Context) {
	actions, err := c.moderationService.ListActions(ctx.Request.Context(), middleware.OrgID(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewActionList(actions), ""))
}

func (c *ModerationController) settle(ctx *gin.Context, op func(ctx context.Context, reportID uuid.UUID, notes string) (*models.Report, error)) {
	reportID, ok := parseIDParam(ctx, "reportID")
	if !ok {
		return
	}
	report, err := c.moderationService.GetReport(ctx.Request.Context(), reportID)
	if err == nil {
		err = inOrg(ctx, report.OrgID, "report")
	}
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	var req dto.SettleReportRequest
	if ctx.Request.ContentLength != 0 && !middleware.BindJSON(ctx, &req) {
		return
	}

	updated, err := op(ctx.Request.Context(), reportID, req.Notes)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewReportData(updated), "Report updated"))
}

// ReviewReport moves a report under review
func (c *ModerationController) ReviewReport(ctx *gin.Context) {
	moderatorID := currentUser(ctx)
	c.settle(ctx, func(rctx context.Context, reportID uuid.UUID, _ string) (*models.Report, error) {
		return c.moderationService.ReviewReport(rctx, reportID, moderatorID)
	})
}

// ResolveReport closes a report as acted upon
func (c *ModerationController) ResolveReport(ctx *gin.Context) {
	moderatorID := currentUser(ctx)
	c.settle(ctx, func(rctx context.Context, reportID uuid.UUID, notes string) (*models.Report, error) {
		return c.moderationService.ResolveReport(rctx, reportID, moderatorID, notes)
	})
}

// DismissReport closes a report without action
func (c *ModerationController) DismissReport(ctx *gin.Context) {
	moderatorID := currentUser(ctx)
	c.settle(ctx, func(rctx context.Context, reportID uuid.UUID, notes string) (*models.Report, error) {
		return c.moderationService.DismissReport(rctx, reportID, moderatorID, notes)
	})
}

// TakeAction applies one of the moderator actions named by the :action path parameter
func (c *ModerationController) TakeAction(ctx *gin.Context) {
	name := ctx.Param("action")
	apply, ok := c.actions()[name]
	if !ok {
		middleware.HandleAPIError(ctx, apperrors.NewResourceNotFoundError("unknown moderation action "+name))
		return
	}

	var req dto.ModerationActionRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	moderatorID := currentUser(ctx)
	request, err := req.ToModel(middleware.OrgID(ctx), moderatorID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	action, err := apply(ctx.Request.Context(), request)
	if err != nil {
		c.logger.Warn().Err(err).Str("action", name).Str("moderatorID", moderatorID.String()).Msg("Moderation action failed")
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.NewActionData(action), "Moderation action recorded"))
}
