package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appauth "github.com/kapwanet/exchange/internal/app/auth"
	"github.com/kapwanet/exchange/internal/app/models/dto"
	"github.com/kapwanet/exchange/internal/pkg/auth"
)

// Context keys set by the auth middleware
const (
	ContextUserID      = "userID"
	ContextDisplayName = "displayName"
	ContextOrgID       = "orgID"
	ContextIsStaff     = "isStaff"
)

// AuthMiddleware for authentication and authorization
type AuthMiddleware struct {
	jwtService *auth.JWTService
	authz      *appauth.AuthorizationService
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(jwtService *auth.JWTService, authz *appauth.AuthorizationService) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		authz:      authz,
	}
}

func abortUnauthorized(c *gin.Context, code dto.ErrorCode, details string) {
	errorDetail := dto.NewErrorDetail(code, "Authentication required").
		WithDetails(map[string]interface{}{"reason": details})
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(errorDetail))
}

// JWTAuth middleware for JWT token validation
func (m *AuthMiddleware) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, dto.ErrorCodeUnauthorized, "Authorization header missing")
			return
		}

		tokenString, err := auth.ExtractBearerToken(authHeader)
		if err != nil {
			abortUnauthorized(c, dto.ErrorCodeInvalidToken, "Invalid token format")
			return
		}

		claims, err := m.jwtService.ValidateAndExtractClaims(tokenString)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				abortUnauthorized(c, dto.ErrorCodeExpiredToken, "Token has expired")
				return
			}
			abortUnauthorized(c, dto.ErrorCodeInvalidToken, "Invalid token")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextDisplayName, claims.DisplayName)

		c.Next()
	}
}

// OrgMember resolves the :orgID path parameter and requires the caller to be
// an active member of that organization. Must run after JWTAuth.
func (m *AuthMiddleware) OrgMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, err := uuid.Parse(c.Param("orgID"))
		if err != nil {
			errorDetail := dto.NewErrorDetail(dto.ErrorCodeBadRequest, "Invalid organization ID").WithField("orgID")
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
			return
		}

		userID, ok := UserID(c)
		if !ok {
			abortUnauthorized(c, dto.ErrorCodeUnauthorized, "User information not found")
			return
		}

		if err := m.authz.RequireMember(c.Request.Context(), userID, orgID); err != nil {
			HandleAPIError(c, err)
			return
		}

		staff, err := m.authz.IsStaff(c.Request.Context(), userID, orgID)
		if err != nil {
			HandleAPIError(c, err)
			return
		}

		c.Set(ContextOrgID, orgID)
		c.Set(ContextIsStaff, staff)
		c.Next()
	}
}

// StaffRequired allows org admins and moderators only. Must run after OrgMember.
func (m *AuthMiddleware) StaffRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsStaff(c) {
			errorDetail := dto.NewErrorDetail(dto.ErrorCodeForbidden, "Access denied").
				WithDetails(map[string]interface{}{"reason": "You don't have sufficient permissions for this operation"})
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponse(errorDetail))
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(ContextUserID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// OrgID returns the organization resolved by OrgMember
func OrgID(c *gin.Context) uuid.UUID {
	v, _ := c.Get(ContextOrgID)
	id, _ := v.(uuid.UUID)
	return id
}

// IsStaff reports whether the caller moderates the current organization
func IsStaff(c *gin.Context) bool {
	return c.GetBool(ContextIsStaff)
}
