package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/brandkit/config"
	"github.com/use-agent/brandkit/models"
)

type stubIngester struct{}

func (stubIngester) Run(context.Context, string) (*models.BrandProfile, error) {
	return &models.BrandProfile{Name: "Stub", Website: "https://stub.example"}, nil
}

type stubStats struct{}

func (stubStats) Stats() models.BrowserStats { return models.BrowserStats{} }

func testRouterConfig() *config.Config {
	cfg := config.Load()
	cfg.Server.Mode = "test"
	cfg.Auth = config.AuthConfig{Enabled: true, APIKeys: []string{"secret"}}
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100}
	return cfg
}

func TestRouter_HealthIsPublic(t *testing.T) {
	r := NewRouter(stubIngester{}, stubStats{}, testRouterConfig(), nil, time.Now())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestRouter_BrandRequiresKey(t *testing.T) {
	r := NewRouter(stubIngester{}, stubStats{}, testRouterConfig(), nil, time.Now())

	for _, tt := range []struct {
		key  string
		want int
	}{
		{"", http.StatusUnauthorized},
		{"secret", http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/brand", strings.NewReader(`{"url":"stub.example"}`))
		req.Header.Set("Content-Type", "application/json")
		if tt.key != "" {
			req.Header.Set("X-API-Key", tt.key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Errorf("key %q: status = %d, want %d", tt.key, w.Code, tt.want)
		}
	}
}
