// Package controllers handles HTTP request handling
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
)

// parseIDParam reads a uuid path parameter, answering 400 when malformed
func parseIDParam(ctx *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param(name))
	if err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeBadRequest, "Invalid "+name).
			WithField(name).
			WithDetails(map[string]interface{}{"reason": name + " must be a valid UUID"})
		ctx.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return uuid.Nil, false
	}
	return id, true
}

// currentUser is set by JWTAuth on every authenticated route
func currentUser(ctx *gin.Context) uuid.UUID {
	id, _ := middleware.UserID(ctx)
	return id
}

// inOrg hides entities of other organizations behind a 404
func inOrg(ctx *gin.Context, orgID uuid.UUID, what string) error {
	if orgID != middleware.OrgID(ctx) {
		return apperrors.NewResourceNotFoundError(what + " not found")
	}
	return nil
}

func parseVariant(ctx *gin.Context, required bool) (models.Variant, bool) {
	v := models.Variant(ctx.Query("variant"))
	if v == "" && !required {
		return "", true
	}
	if !v.Valid() {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeBadRequest, "Invalid variant").
			WithField("variant").
			WithDetails(map[string]interface{}{"reason": "variant must be one of: help item"})
		ctx.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return "", false
	}
	return v, true
}

// loadPost fetches a post of the current organization
func loadPost(ctx *gin.Context, posts services.PostService) (*models.Post, bool) {
	postID, ok := parseIDParam(ctx, "postID")
	if !ok {
		return nil, false
	}
	post, err := posts.Get(ctx.Request.Context(), postID)
	if err == nil {
		err = inOrg(ctx, post.OrgID, "post")
	}
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return nil, false
	}
	return post, true
}

// loadMatch fetches a match of the current organization
func loadMatch(ctx *gin.Context, matches services.MatchService) (*models.Match, bool) {
	matchID, ok := parseIDParam(ctx, "matchID")
	if !ok {
		return nil, false
	}
	match, err := matches.Get(ctx.Request.Context(), matchID)
	if err == nil {
		err = inOrg(ctx, match.OrgID, "match")
	}
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return nil, false
	}
	return match, true
}

// check runs an authorization rule, answering with its error
func check(ctx *gin.Context, rule func(context.Context) error) bool {
	if err := rule(ctx.Request.Context()); err != nil {
		middleware.HandleAPIError(ctx, err)
		return false
	}
	return true
}
