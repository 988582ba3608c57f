package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lfgraphics/khadimemillat-sub007/internal/config"
	"github.com/lfgraphics/khadimemillat-sub007/internal/handlers"
	"github.com/lfgraphics/khadimemillat-sub007/internal/metrics"
	"github.com/lfgraphics/khadimemillat-sub007/internal/middleware"
	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
)

// HandlerDependencies holds all the handlers needed for routing
type HandlerDependencies struct {
	AuthHandler         *handlers.AuthHandler
	HealthHandler       *handlers.HealthHandler
	AudienceHandler     *handlers.AudienceHandler
	SegmentHandler      *handlers.SegmentHandler
	CampaignHandler     *handlers.CampaignHandler
	NotificationHandler *handlers.NotificationHandler
	UserHandler         *handlers.UserHandler
	RecheckHandler      *handlers.RecheckHandler
}

// SetupRouter sets up the router with the middleware chain and route table
func SetupRouter(
	cfg *config.Config,
	deps HandlerDependencies,
	tokens middleware.TokenParser,
	m *metrics.Metrics,
	logger *slog.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", middleware.WorkerKeyHeader},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(logger))
	if m != nil {
		router.Use(m.GinMiddleware())
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Route not found"})
	})

	public := router.Group("/api/v1")
	{
		public.GET("/health", deps.HealthHandler.Health)
		public.POST("/auth/login", deps.AuthHandler.Login)
	}

	staffRoles := []models.Role{models.RoleAdmin, models.RoleModerator}

	// Workers post progress with the shared key. Staff may post it with a token.
	router.POST("/api/v1/admin/campaigns/:id/progress",
		middleware.WorkerKeyOrRoles(cfg.Worker.Key, tokens, staffRoles...),
		deps.CampaignHandler.UpdateProgress,
	)

	admin := router.Group("/api/v1/admin")
	admin.Use(middleware.JWTAuthMiddleware(tokens), middleware.RequireRoles(staffRoles...))
	{
		admin.POST("/audience/preview", deps.AudienceHandler.Preview)

		segments := admin.Group("/segments")
		{
			segments.GET("", deps.SegmentHandler.List)
			segments.POST("", deps.SegmentHandler.Create)
			segments.GET("/:id", deps.SegmentHandler.Get)
			segments.PUT("/:id", deps.SegmentHandler.Update)
			segments.DELETE("/:id", deps.SegmentHandler.Delete)
		}

		campaigns := admin.Group("/campaigns")
		{
			campaigns.GET("", deps.CampaignHandler.List)
			campaigns.POST("", deps.CampaignHandler.Create)
			campaigns.GET("/:id", deps.CampaignHandler.Get)
			campaigns.PUT("/:id", deps.CampaignHandler.Update)
			campaigns.DELETE("/:id", deps.CampaignHandler.Delete)
			campaigns.POST("/:id/start", deps.CampaignHandler.Start)
			campaigns.POST("/:id/pause", deps.CampaignHandler.Pause)
			campaigns.POST("/:id/resume", deps.CampaignHandler.Resume)
			campaigns.POST("/:id/cancel", deps.CampaignHandler.Cancel)
			campaigns.GET("/:id/progress", deps.CampaignHandler.GetProgress)
			campaigns.GET("/:id/notifications", deps.NotificationHandler.GetNotificationsByCampaignID)
		}

		users := admin.Group("/users")
		{
			users.GET("/:id/preferences", deps.UserHandler.GetPreferences)
			users.POST("/:id/opt-in", deps.UserHandler.OptIn)
			users.POST("/:id/opt-out", deps.UserHandler.OptOut)
		}

		admin.POST("/donations/recheck", deps.RecheckHandler.Recheck)
	}

	return router
}
