package router

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"chronicle-chat/backend/internal/api"
	"chronicle-chat/backend/internal/chat"
	"chronicle-chat/backend/internal/store"
	"chronicle-chat/backend/internal/ws"
	"chronicle-chat/backend/pkg/config"
	"chronicle-chat/backend/pkg/errors"
	"chronicle-chat/backend/pkg/logger"
	"chronicle-chat/backend/pkg/middleware"
	"chronicle-chat/backend/shared/observability"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Track server start time for uptime calculations
var startTime = time.Now()

// Deps carries everything the router wires together.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Coordinator *chat.Coordinator
	Profiles    *store.ProfileStore
	Metrics     *observability.Metrics
}

// Router is the main router for the application
type Router struct {
	Engine      *gin.Engine
	Logger      *logger.Logger
	Config      *config.Config
	coordinator *chat.Coordinator
	profiles    *store.ProfileStore
	metrics     *observability.Metrics
}

// New creates a new router with the given dependencies
func New(deps Deps) *Router {
	logger.SetGlobal(deps.Logger)

	if deps.Config.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Logger middleware first to capture all requests
	engine.Use(logger.Middleware(deps.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(middleware.RequestIDMiddleware())

	rateLimiter := middleware.NewRateLimiter(deps.Logger, middleware.RateLimiterOptions{
		Limit:          rate.Limit(deps.Config.Security.RateLimit),
		Burst:          deps.Config.Security.RateLimitBurst,
		ExpiryDuration: time.Hour,
		KeyFunc:        func(c *gin.Context) string { return c.ClientIP() },
	})
	engine.Use(rateLimiter.Middleware())

	engine.MaxMultipartMemory = deps.Config.Security.MaxBodySize

	return &Router{
		Engine:      engine,
		Logger:      deps.Logger,
		Config:      deps.Config,
		coordinator: deps.Coordinator,
		profiles:    deps.Profiles,
		metrics:     deps.Metrics,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() error {
	r.Engine.Use(corsMiddleware())

	uploadHandler, err := api.NewUploadHandler(
		r.profiles,
		r.Config.Storage.UploadDir,
		r.Config.Security.MaxUploadSize,
		r.Logger,
	)
	if err != nil {
		return fmt.Errorf("upload handler: %w", err)
	}
	characterHandler := api.NewCharacterHandler(r.profiles, r.Logger)

	r.setupHealthRoutes()
	r.Engine.GET("/metrics", gin.WrapH(r.metrics.Handler()))

	r.Engine.POST("/upload", uploadHandler.Upload)
	r.Engine.GET("/character/:name", characterHandler.Get)
	r.Engine.POST("/character/:name", characterHandler.Update)

	// WebSocket route
	wsServer := ws.NewServer(r.coordinator, r.Logger, r.Config)
	r.Engine.GET("/ws", wsServer.Handle)

	// Static client and uploaded files
	r.Engine.Static("/uploads", r.Config.Storage.UploadDir)
	r.Engine.StaticFile("/", filepath.Join(r.Config.Storage.ClientDir, "index.html"))
	r.Engine.Static("/assets", filepath.Join(r.Config.Storage.ClientDir, "assets"))
	r.Engine.NoRoute(func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			c.File(filepath.Join(r.Config.Storage.ClientDir, "index.html"))
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return nil
}

// corsMiddleware allows browser clients served from other origins, and
// exposes the headers the WebSocket upgrade negotiation needs.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, Origin, Upgrade, Connection, Cache-Control")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Upgrade, Connection")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
