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

// PostController handles help and item post operations
type PostController struct {
	postService  services.PostService
	matchService services.MatchService
	authz        *appauth.AuthorizationService
	logger       zerolog.Logger
}

// NewPostController creates a new PostController
func NewPostController(postService services.PostService, matchService services.MatchService, authz *appauth.AuthorizationService, logger zerolog.Logger) *PostController {
	return &PostController{
		postService:  postService,
		matchService: matchService,
		authz:        authz,
		logger:       logger,
	}
}

// PostDetail is a post with the statuses it can move to
type PostDetail struct {
	*models.Post
	ValidTransitions []models.PostStatus `json:"validTransitions"`
}

// ListCategories returns the category enumeration of a variant
func (c *PostController) ListCategories(ctx *gin.Context) {
	variant, ok := parseVariant(ctx, true)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(models.Categories(variant), ""))
}

// CreatePost publishes a new post owned by the caller
func (c *PostController) CreatePost(ctx *gin.Context) {
	var req dto.CreatePostRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	post, err := c.postService.Create(ctx.Request.Context(), middleware.OrgID(ctx), currentUser(ctx), req.Variant, req.PostInput)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Post creation failed")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(post, "Post created successfully"))
}

// ListPosts lists the organization's posts with optional filters
func (c *PostController) ListPosts(ctx *gin.Context) {
	variant, ok := parseVariant(ctx, false)
	if !ok {
		return
	}
	page, size := helpers.ParsePaginationParams(ctx)
	offset, limit := helpers.CalculateOffsetLimit(page, size)

	filter := models.PostFilter{
		OrgID:    middleware.OrgID(ctx),
		Variant:  variant,
		Status:   models.PostStatus(ctx.Query("status")),
		Kind:     models.PostKind(ctx.Query("kind")),
		Category: models.Category(ctx.Query("category")),
		Limit:    limit,
		Offset:   offset,
	}
	if owner := ctx.Query("ownerId"); owner != "" {
		ownerID, err := uuid.Parse(owner)
		if err != nil {
			errorDetail := dto.NewErrorDetail(dto.ErrorCodeBadRequest, "Invalid ownerId").WithField("ownerId")
			ctx.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
			return
		}
		filter.OwnerID = ownerID
	}

	posts, err := c.postService.List(ctx.Request.Context(), filter)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.PaginatedResponse{
		Items:      posts,
		Pagination: helpers.NewPaginationInfo(len(posts), page, limit),
	}, ""))
}

// GetPost returns one post and its valid transitions
func (c *PostController) GetPost(ctx *gin.Context) {
	post, ok := loadPost(ctx, c.postService)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(PostDetail{
		Post:             post,
		ValidTransitions: models.AllowedPostTransitions(post.Variant, post.Status),
	}, ""))
}

// UpdatePost rewrites the descriptive fields of a post
func (c *PostController) UpdatePost(ctx *gin.Context) {
	post, ok := loadPost(ctx, c.postService)
	if !ok {
		return
	}
	userID := currentUser(ctx)
	if !check(ctx, func(rctx context.Context) error { return c.authz.CanManagePost(rctx, userID, post) }) {
		return
	}

	var req models.PostInput
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	updated, err := c.postService.Update(ctx.Request.Context(), post.ID, req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(updated, "Post updated successfully"))
}

type postMove func(ctx context.Context, id uuid.UUID) (*models.Post, error)

func (c *PostController) move(ctx *gin.Context, op postMove, message string) {
	post, ok := loadPost(ctx, c.postService)
	if !ok {
		return
	}
	userID := currentUser(ctx)
	if !check(ctx, func(rctx context.Context) error { return c.authz.CanManagePost(rctx, userID, post) }) {
		return
	}

	moved, err := op(ctx.Request.Context(), post.ID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(moved, message))
}

// CancelPost is the soft delete of a post
func (c *PostController) CancelPost(ctx *gin.Context) {
	c.move(ctx, c.postService.Cancel, "Post cancelled")
}

// ReopenPost puts a cancelled or matched post back on offer
func (c *PostController) ReopenPost(ctx *gin.Context) {
	c.move(ctx, c.postService.Reopen, "Post reopened")
}

// CompletePost marks a matched post as completed
func (c *PostController) CompletePost(ctx *gin.Context) {
	c.move(ctx, c.postService.MarkCompleted, "Post completed")
}

// ExpressInterest creates a pending match from the caller on the post
func (c *PostController) ExpressInterest(ctx *gin.Context) {
	post, ok := loadPost(ctx, c.postService)
	if !ok {
		return
	}

	var req models.InterestInput
	if ctx.Request.ContentLength != 0 && !middleware.BindJSON(ctx, &req) {
		return
	}

	match, err := c.matchService.ExpressInterest(ctx.Request.Context(), post.ID, currentUser(ctx), req)
	if err != nil {
		c.logger.Debug().Err(err).Str("postID", post.ID.String()).Msg("Interest rejected")
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(match, "Interest recorded"))
}

// ListPostMatches lists every match on the post for its owner
func (c *PostController) ListPostMatches(ctx *gin.Context) {
	post, ok := loadPost(ctx, c.postService)
	if !ok {
		return
	}
	userID := currentUser(ctx)
	if !check(ctx, func(rctx context.Context) error { return c.authz.CanManagePost(rctx, userID, post) }) {
		return
	}

	matches, err := c.matchService.ListByPost(ctx.Request.Context(), post.ID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(matches, ""))
}
