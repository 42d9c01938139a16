package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/brandkit/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// degradedPages is the number of concurrently open pages above which the
// service reports itself degraded.
const degradedPages = 8

// StatsProvider reports the shared browser state. scraper.Scraper
// implements it.
type StatsProvider interface {
	Stats() models.BrowserStats
}

// Health returns a handler for GET /api/v1/health.
func Health(sp StatsProvider, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := sp.Stats()

		status := "healthy"
		if stats.ActivePages > degradedPages {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:       status,
			Uptime:       time.Since(startTime).Round(time.Second).String(),
			BrowserStats: stats,
			Version:      Version,
		})
	}
}
