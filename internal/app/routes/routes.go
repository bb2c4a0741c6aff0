package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kapwanet/exchange/internal/app/controllers"
	"github.com/kapwanet/exchange/internal/app/models/dto"
	"github.com/kapwanet/exchange/internal/middleware"
)

// Controllers groups the HTTP handlers mounted by SetupRouter
type Controllers struct {
	Auth       *controllers.AuthController
	Post       *controllers.PostController
	Match      *controllers.MatchController
	Thread     *controllers.ThreadController
	Moderation *controllers.ModerationController
}

// Options toggles the optional routes
type Options struct {
	// DevTokens mounts POST /api/v1/dev/token
	DevTokens bool
	// MetricsPath serves the Prometheus handler when set
	MetricsPath    string
	MetricsHandler http.Handler
}

// SetupRouter configures all application routes
func SetupRouter(router *gin.Engine, c Controllers, authMiddleware *middleware.AuthMiddleware, opts Options) {
	// API version group
	v1 := router.Group("/api/v1")

	// Health check endpoint (public)
	router.GET("/health", health)
	v1.GET("/health", health)

	if opts.MetricsPath != "" && opts.MetricsHandler != nil {
		router.GET(opts.MetricsPath, gin.WrapH(opts.MetricsHandler))
	}

	if opts.DevTokens {
		v1.POST("/dev/token", c.Auth.IssueToken)
	}

	// --- Authenticated, organization scoped routes ---
	org := v1.Group("/orgs/:orgID")
	org.Use(authMiddleware.JWTAuth(), authMiddleware.OrgMember())
	{
		org.GET("/categories", c.Post.ListCategories)

		posts := org.Group("/posts")
		{
			posts.POST("", c.Post.CreatePost)
			posts.GET("", c.Post.ListPosts)
			posts.GET("/:postID", c.Post.GetPost)
			posts.PUT("/:postID", c.Post.UpdatePost)
			posts.POST("/:postID/cancel", c.Post.CancelPost)
			posts.POST("/:postID/reopen", c.Post.ReopenPost)
			posts.POST("/:postID/complete", c.Post.CompletePost)
			posts.POST("/:postID/interest", c.Post.ExpressInterest)
			posts.GET("/:postID/matches", c.Post.ListPostMatches)
		}

		matches := org.Group("/matches")
		{
			matches.GET("/mine", c.Match.ListMine)
			matches.GET("/:matchID", c.Match.GetMatch)
			matches.GET("/:matchID/history", c.Match.GetHistory)
			matches.POST("/:matchID/accept", c.Match.Accept)
			matches.POST("/:matchID/decline", c.Match.Decline)
			matches.POST("/:matchID/withdraw", c.Match.Withdraw)
			matches.POST("/:matchID/close", c.Match.Close)
		}

		threads := org.Group("/threads")
		{
			threads.GET("", c.Thread.Inbox)
			threads.POST("/direct", c.Thread.CreateDirect)
			threads.GET("/:threadID/messages", c.Thread.ListMessages)
			threads.POST("/:threadID/messages", c.Thread.SendMessage)
			threads.POST("/:threadID/read", c.Thread.MarkRead)
			threads.GET("/:threadID/unread", c.Thread.UnreadCount)
		}

		org.POST("/reports", c.Moderation.FileReport)

		// Staff only
		moderation := org.Group("/moderation")
		moderation.Use(authMiddleware.StaffRequired())
		{
			moderation.GET("/reports", c.Moderation.ListReports)
			moderation.POST("/reports/:reportID/review", c.Moderation.ReviewReport)
			moderation.POST("/reports/:reportID/resolve", c.Moderation.ResolveReport)
			moderation.POST("/reports/:reportID/dismiss", c.Moderation.DismissReport)
			moderation.GET("/actions", c.Moderation.ListActions)
			moderation.POST("/actions/:action", c.Moderation.TakeAction)
		}
	}
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"status": "ok"}, ""))
}
