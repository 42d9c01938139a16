package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/brandkit/api/handler"
	"github.com/use-agent/brandkit/api/middleware"
	"github.com/use-agent/brandkit/cache"
	"github.com/use-agent/brandkit/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health is outside auth so monitoring probes always work.
//
// pc may be nil to disable the profile cache.
func NewRouter(ing handler.Ingester, browser handler.StatsProvider, cfg *config.Config, pc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(browser, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/brand", handler.Brand(ing, pc))

	return r
}
