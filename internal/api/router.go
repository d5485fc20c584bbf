package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"gamehall/internal/api/handlers"
	"gamehall/internal/api/middleware"
	"gamehall/internal/metrics"
	"gamehall/internal/syncctl"

	"github.com/gin-gonic/gin"
)

// APIKeyHeader carries the shared API key on /v1 routes
const APIKeyHeader = "X-Gamehall-Key"

// RouterConfig holds dependencies for the API router
type RouterConfig struct {
	Console   syncctl.Console
	Events    handlers.EventSource
	Metrics   *metrics.Metrics // Optional: /metrics is only served when set
	Location  *time.Location
	KeepAlive time.Duration
	APIKey    string
	Logger    *slog.Logger
}

// NewRouter creates and configures the Gin router
func NewRouter(config RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logging(config.Logger))
	router.Use(middleware.NoiseFilter(config.Logger))
	router.Use(middleware.Recovery(config.Logger))
	router.Use(middleware.ContentType())

	// Health check (no auth)
	healthHandler := handlers.NewHealthHandler(config.Console)
	router.GET("/health", healthHandler.GetHealth)

	if config.Metrics != nil {
		router.GET("/metrics", gin.WrapH(config.Metrics.Handler()))
	}

	// API v1 routes (with authentication)
	v1 := router.Group("/v1")
	v1.Use(authMiddleware(config.APIKey))
	{
		authHandler := handlers.NewAuthHandler(config.Console, config.Logger)
		v1.POST("/login", authHandler.Login)
		v1.POST("/logout", authHandler.Logout)
		v1.GET("/mode", authHandler.GetMode)

		devicesHandler := handlers.NewDevicesHandler(config.Console)
		v1.GET("/devices", devicesHandler.ListDevices)

		sessionsHandler := handlers.NewSessionsHandler(config.Console, config.Logger)
		v1.POST("/sessions", sessionsHandler.CreateSession)
		v1.POST("/sessions/:id/end", sessionsHandler.EndSession)
		v1.POST("/sessions/:id/extend", sessionsHandler.ExtendSession)
		v1.POST("/sessions/:id/unlimited", sessionsHandler.SwitchToUnlimited)
		v1.POST("/expiry/:id/respond", sessionsHandler.RespondToExpiry)

		statsHandler := handlers.NewStatsHandler(config.Console, config.Logger)
		v1.GET("/stats", statsHandler.GetStats)

		reportsHandler := handlers.NewReportsHandler(config.Console, config.Location, config.Logger)
		v1.GET("/reports/daily", reportsHandler.GetDailyReport)

		themeHandler := handlers.NewThemeHandler(config.Console, config.Logger)
		v1.GET("/theme", themeHandler.GetTheme)
		v1.PUT("/theme", themeHandler.UpdateTheme)

		// Events endpoint (only register if an event source is provided)
		if config.Events != nil {
			eventsHandler := handlers.NewEventsHandler(config.Events, config.KeepAlive, config.Logger)
			v1.GET("/events", eventsHandler.StreamEvents)
		}
	}

	return router
}

// authMiddleware verifies API key authentication
func authMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
				"code":  "UNAUTHORIZED",
			})
			c.Abort()
			return
		}
		c.Set("authenticated", true)
		c.Next()
	}
}
