package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	appauth "github.com/kapwanet/exchange/internal/app/auth"
	"github.com/kapwanet/exchange/internal/app/models/dto"
	"github.com/kapwanet/exchange/internal/app/services"
	"github.com/kapwanet/exchange/internal/middleware"
	"github.com/rs/zerolog"
)

// MatchController handles help matches and item reservations
type MatchController struct {
	matchService services.MatchService
	authz        *appauth.AuthorizationService
	logger       zerolog.Logger
}

// NewMatchController creates a new MatchController
func NewMatchController(matchService services.MatchService, authz *appauth.AuthorizationService, logger zerolog.Logger) *MatchController {
	return &MatchController{
		matchService: matchService,
		authz:        authz,
		logger:       logger,
	}
}

// ListMine lists the caller's own matches
func (c *MatchController) ListMine(ctx *gin.Context) {
	variant, ok := parseVariant(ctx, false)
	if !ok {
		return
	}
	matches, err := c.matchService.ListMine(ctx.Request.Context(), middleware.OrgID(ctx), currentUser(ctx), variant)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(matches, ""))
}

// GetMatch returns one match to its parties or staff
func (c *MatchController) GetMatch(ctx *gin.Context) {
	match, ok := loadMatch(ctx, c.matchService)
	if !ok {
		return
	}
	userID := currentUser(ctx)
	if !check(ctx, func(rctx context.Context) error { return c.authz.CanView(rctx, userID, match) }) {
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(match, ""))
}

// GetHistory returns the audit trail of a match
func (c *MatchController) GetHistory(ctx *gin.Context) {
	match, ok := loadMatch(ctx, c.matchService)
	if !ok {
		return
	}
	userID := currentUser(ctx)
	if !check(ctx, func(rctx context.Context) error { return c.authz.CanView(rctx, userID, match) }) {
		return
	}

	events, err := c.matchService.History(ctx.Request.Context(), match.ID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(events, ""))
}

// Accept runs the accept cascade
func (c *MatchController) Accept(ctx *gin.Context) {
	match, ok := loadMatch(ctx, c.matchService)
	if !ok {
		return
	}
	userID := currentUser(ctx)
	if !check(ctx, func(rctx context.Context) error { return c.authz.CanDecide(rctx, userID, match) }) {
		return
	}

	result, err := c.matchService.Accept(ctx.Request.Context(), match.ID, userID)
	if err != nil {
		c.logger.Warn().Err(err).Str("matchID", match.ID.String()).Msg("Accept failed")
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(result, "Match accepted"))
}

// Decline rejects a pending match
func (c *MatchController) Decline(ctx *gin.Context) {
	match, ok := loadMatch(ctx, c.matchService)
	if !ok {
		return
	}
	userID := currentUser(ctx)
	if !check(ctx, func(rctx context.Context) error { return c.authz.CanDecide(rctx, userID, match) }) {
		return
	}

	declined, err := c.matchService.Decline(ctx.Request.Context(), match.ID, userID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(declined, "Match declined"))
}

// Withdraw runs the withdraw cascade for the responder
func (c *MatchController) Withdraw(ctx *gin.Context) {
	match, ok := loadMatch(ctx, c.matchService)
	if !ok {
		return
	}
	userID := currentUser(ctx)
	if !check(ctx, func(rctx context.Context) error { return c.authz.CanWithdraw(rctx, userID, match) }) {
		return
	}

	withdrawn, err := c.matchService.Withdraw(ctx.Request.Context(), match.ID, userID)
	if err != nil {
		c.logger.Warn().Err(err).Str("matchID", match.ID.String()).Msg("Withdraw failed")
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(withdrawn, "Match withdrawn"))
}

// Close runs the close cascade for either party
func (c *MatchController) Close(ctx *gin.Context) {
	match, ok := loadMatch(ctx, c.matchService)
	if !ok {
		return
	}
	userID := currentUser(ctx)
	if !check(ctx, func(rctx context.Context) error { return c.authz.CanClose(rctx, userID, match) }) {
		return
	}

	var req dto.CloseMatchRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	closed, err := c.matchService.Close(ctx.Request.Context(), match.ID, userID, *req.Completed)
	if err != nil {
		c.logger.Warn().Err(err).Str("matchID", match.ID.String()).Msg("Close failed")
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(closed, "Match closed"))
}
