package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/pagequery/api/handler"
	"github.com/use-agent/pagequery/api/middleware"
	"github.com/use-agent/pagequery/browser"
	"github.com/use-agent/pagequery/cache"
	"github.com/use-agent/pagequery/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(b *browser.Browser, srcs handler.Sources, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(b, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Query pipeline execution.
	protected.POST("/query", handler.Query(srcs, cc, cfg.Runner))

	return r
}
