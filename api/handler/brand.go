package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/brandkit/cache"
	"github.com/use-agent/brandkit/models"
)

// Ingester is the error-propagating ingestion entry point.
// pipeline.Pipeline implements it.
type Ingester interface {
	Run(ctx context.Context, rawURL string) (*models.BrandProfile, error)
}

// Brand returns a handler for POST /api/v1/brand.
//
// Flow:
//  1. Bind the request.
//  2. Serve from the profile cache when possible (pc may be nil).
//  3. Run the ingestion pipeline.
//  4. Map failures to a status and a public error code.
func Brand(ing Ingester, pc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.BrandRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.BrandResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidURL,
					Message: "request body must be a JSON object with a url field",
				},
				Timing: models.TimingInfo{TotalMs: time.Since(start).Milliseconds()},
			})
			return
		}

		// ── 2. Cache lookup ─────────────────────────────────────────
		key, cacheable := "", false
		if pc != nil {
			key, cacheable = cache.Key(req.URL)
		}
		if cacheable {
			if cached, hit := pc.Get(key); hit {
				c.JSON(http.StatusOK, models.BrandResponse{
					Success:     true,
					Profile:     cached,
					CacheStatus: "hit",
					Timing:      models.TimingInfo{TotalMs: time.Since(start).Milliseconds()},
				})
				return
			}
		}

		// ── 3. Ingest ───────────────────────────────────────────────
		profile, err := ing.Run(c.Request.Context(), req.URL)
		timing := models.TimingInfo{TotalMs: time.Since(start).Milliseconds()}
		if err != nil {
			respondError(c, req.URL, err, timing)
			return
		}

		resp := models.BrandResponse{
			Success: true,
			Profile: profile,
			Timing:  timing,
		}
		if cacheable {
			pc.Set(key, profile)
			resp.CacheStatus = "miss"
		}
		c.JSON(http.StatusOK, resp)
	}
}

// respondError logs err once and writes its public form. Internal messages
// and wrapped errors never reach the response body.
func respondError(c *gin.Context, rawURL string, err error, timing models.TimingInfo) {
	status, detail := publicError(err)
	slog.Warn("brand ingestion failed",
		"url", rawURL,
		"code", models.CodeOf(err),
		"public_code", detail.Code,
		"error", err,
	)
	c.JSON(status, models.BrandResponse{
		Success: false,
		Error:   detail,
		Timing:  timing,
	})
}

// publicError maps an ingestion error to an HTTP status and response error.
func publicError(err error) (int, *models.ErrorDetail) {
	var se *models.ScrapeError
	if !errors.As(err, &se) {
		return http.StatusInternalServerError, &models.ErrorDetail{
			Code:    models.ErrCodeInternal,
			Message: "internal error",
		}
	}

	switch se.Code {
	case models.ErrCodeInvalidURL:
		return http.StatusBadRequest, &models.ErrorDetail{
			Code:    models.ErrCodeInvalidURL,
			Message: "url is malformed or uses an unsupported scheme",
		}
	case models.ErrCodeBlockedURL:
		return http.StatusForbidden, &models.ErrorDetail{
			Code:    models.ErrCodeBlockedURL,
			Message: "url does not point to a public host",
		}
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout, &models.ErrorDetail{
			Code:    models.ErrCodeScrapeTimeout,
			Message: "the site did not respond in time",
		}
	default:
		return http.StatusBadGateway, &models.ErrorDetail{
			Code:    models.ErrCodeScrapeFailed,
			Message: "the site could not be ingested",
		}
	}
}
