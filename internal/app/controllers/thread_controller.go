package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appauth "github.com/kapwanet/exchange/internal/app/auth"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/app/models/dto"
	"github.com/kapwanet/exchange/internal/app/services"
	"github.com/kapwanet/exchange/internal/middleware"
	"github.com/kapwanet/exchange/internal/pkg/helpers"
	"github.com/rs/zerolog"
)

// ThreadController handles threads and messages
type ThreadController struct {
	threadService services.ThreadService
	authz         *appauth.AuthorizationService
	logger        zerolog.Logger
}

// NewThreadController creates a new ThreadController
func NewThreadController(threadService services.ThreadService, authz *appauth.AuthorizationService, logger zerolog.Logger) *ThreadController {
	return &ThreadController{
		threadService: threadService,
		authz:         authz,
		logger:        logger,
	}
}

func (c *ThreadController) loadThread(ctx *gin.Context) (*models.Thread, bool) {
	threadID, ok := parseIDParam(ctx, "threadID")
	if !ok {
		return nil, false
	}
	thread, err := c.threadService.Get(ctx.Request.Context(), threadID)
	if err == nil {
		err = inOrg(ctx, thread.OrgID, "thread")
	}
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return nil, false
	}
	return thread, true
}

// Inbox lists the caller's threads, most recent activity first
func (c *ThreadController) Inbox(ctx *gin.Context) {
	summaries, err := c.threadService.Inbox(ctx.Request.Context(), middleware.OrgID(ctx), currentUser(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	page, size := helpers.ParsePaginationParams(ctx)
	start, end := helpers.CalculateSliceIndices(page, size, len(summaries))
	items := summaries[start:end]

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.PaginatedResponse{
		Items:      items,
		Pagination: helpers.NewPaginationInfo(len(items), page, size),
	}, ""))
}

// CreateDirect opens or returns the direct thread with another member
func (c *ThreadController) CreateDirect(ctx *gin.Context) {
	var req dto.DirectThreadRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	other := uuid.MustParse(req.UserID)
	orgID := middleware.OrgID(ctx)

	if !check(ctx, func(rctx context.Context) error { return c.authz.RequireMember(rctx, other, orgID) }) {
		return
	}

	thread, err := c.threadService.GetOrCreateDirect(ctx.Request.Context(), orgID, currentUser(ctx), other)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(thread, ""))
}

// ListMessages returns the thread log. Staff also see hidden messages.
func (c *ThreadController) ListMessages(ctx *gin.Context) {
	thread, ok := c.loadThread(ctx)
	if !ok {
		return
	}

	messages, err := c.threadService.ListMessages(ctx.Request.Context(), thread.ID, currentUser(ctx), middleware.IsStaff(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(messages, ""))
}

// SendMessage posts a message from the caller
func (c *ThreadController) SendMessage(ctx *gin.Context) {
	thread, ok := c.loadThread(ctx)
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	message, err := c.threadService.SendMessage(ctx.Request.Context(), thread.ID, currentUser(ctx), req.Body)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(message, "Message sent"))
}

// MarkRead moves the caller's read watermark to now
func (c *ThreadController) MarkRead(ctx *gin.Context) {
	thread, ok := c.loadThread(ctx)
	if !ok {
		return
	}

	if err := c.threadService.MarkRead(ctx.Request.Context(), thread.ID, currentUser(ctx)); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(nil, "Thread marked as read"))
}

// UnreadCount returns how many messages the caller has not read
func (c *ThreadController) UnreadCount(ctx *gin.Context) {
	thread, ok := c.loadThread(ctx)
	if !ok {
		return
	}

	count, err := c.threadService.UnreadCount(ctx.Request.Context(), thread.ID, currentUser(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"unreadCount": count}, ""))
}
