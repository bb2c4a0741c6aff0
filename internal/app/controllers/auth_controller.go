package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models/dto"
	"github.com/kapwanet/exchange/internal/middleware"
	"github.com/kapwanet/exchange/internal/pkg/auth"
	"github.com/rs/zerolog"
)

// AuthController issues development tokens. Production tokens come from the
// identity provider sharing the JWT secret.
type AuthController struct {
	jwtService *auth.JWTService
	logger     zerolog.Logger
}

// NewAuthController creates a new AuthController
func NewAuthController(jwtService *auth.JWTService, logger zerolog.Logger) *AuthController {
	return &AuthController{
		jwtService: jwtService,
		logger:     logger,
	}
}

// IssueToken signs an access token for the given user id
func (c *AuthController) IssueToken(ctx *gin.Context) {
	var req dto.TokenRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	userID := uuid.MustParse(req.UserID)

	token, expiresAt, err := c.jwtService.GenerateToken(userID, req.DisplayName)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.logger.Info().Str("userID", userID.String()).Msg("Development token issued")
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	}, ""))
}
