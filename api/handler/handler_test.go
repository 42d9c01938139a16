package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/brandkit/cache"
	"github.com/use-agent/brandkit/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeIngester struct {
	profile *models.BrandProfile
	err     error
	gotURL  string
	calls   int
}

func (f *fakeIngester) Run(_ context.Context, rawURL string) (*models.BrandProfile, error) {
	f.calls++
	f.gotURL = rawURL
	return f.profile, f.err
}

func postBrand(t *testing.T, ing Ingester, body string) (*httptest.ResponseRecorder, models.BrandResponse) {
	t.Helper()
	return postBrandCached(t, ing, nil, body)
}

func postBrandCached(t *testing.T, ing Ingester, pc *cache.Cache, body string) (*httptest.ResponseRecorder, models.BrandResponse) {
	t.Helper()
	r := gin.New()
	r.POST("/brand", Brand(ing, pc))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/brand", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var resp models.BrandResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not JSON: %v: %s", err, w.Body.String())
	}
	return w, resp
}

func TestBrand_Success(t *testing.T) {
	ing := &fakeIngester{profile: &models.BrandProfile{Name: "MyBrand", Website: "https://mybrand.example"}}
	w, resp := postBrand(t, ing, `{"url":"mybrand.example"}`)

	if w.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status = %d, resp = %+v", w.Code, resp)
	}
	if resp.Profile == nil || resp.Profile.Name != "MyBrand" {
		t.Errorf("profile = %+v", resp.Profile)
	}
	if ing.gotURL != "mybrand.example" {
		t.Errorf("url passed = %q", ing.gotURL)
	}
}

func TestBrand_Cache(t *testing.T) {
	ing := &fakeIngester{profile: &models.BrandProfile{Name: "MyBrand", Website: "https://mybrand.example"}}
	pc := cache.New(8, time.Minute)

	_, first := postBrandCached(t, ing, pc, `{"url":"mybrand.example"}`)
	_, second := postBrandCached(t, ing, pc, `{"url":"https://MYBRAND.example/"}`)

	if first.CacheStatus != "miss" || second.CacheStatus != "hit" {
		t.Errorf("cache status = %q, %q", first.CacheStatus, second.CacheStatus)
	}
	if ing.calls != 1 {
		t.Errorf("ingestions = %d, want 1", ing.calls)
	}
	if second.Profile == nil || second.Profile.Name != "MyBrand" {
		t.Errorf("cached profile = %+v", second.Profile)
	}
}

func TestBrand_ErrorsAreNotCached(t *testing.T) {
	ing := &fakeIngester{err: models.NewScrapeError(models.ErrCodeNavigation, "down", nil)}
	pc := cache.New(8, time.Minute)
	postBrandCached(t, ing, pc, `{"url":"down.example"}`)
	postBrandCached(t, ing, pc, `{"url":"down.example"}`)
	if ing.calls != 2 || pc.Len() != 0 {
		t.Errorf("calls = %d, cached = %d", ing.calls, pc.Len())
	}
}

func TestBrand_BadBody(t *testing.T) {
	w, resp := postBrand(t, &fakeIngester{}, `{"link":"x"}`)
	if w.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != models.ErrCodeInvalidURL {
		t.Errorf("status = %d, resp = %+v", w.Code, resp)
	}
}

func TestBrand_ErrorMapping(t *testing.T) {
	secret := "dial tcp 10.1.2.3:443: secret internal detail"
	tests := []struct {
		name     string
		err      error
		status   int
		wantCode string
	}{
		{"invalid", models.NewScrapeError(models.ErrCodeInvalidURL, "bad scheme", nil), http.StatusBadRequest, models.ErrCodeInvalidURL},
		{"blocked", models.NewScrapeError(models.ErrCodeBlockedURL, secret, nil), http.StatusForbidden, models.ErrCodeBlockedURL},
		{"timeout", models.NewScrapeError(models.ErrCodeTimeout, "deadline", errors.New(secret)), http.StatusGatewayTimeout, models.ErrCodeScrapeTimeout},
		{"navigation", models.NewScrapeError(models.ErrCodeNavigation, secret, nil), http.StatusBadGateway, models.ErrCodeScrapeFailed},
		{"parse", models.NewScrapeError(models.ErrCodeParse, secret, nil), http.StatusBadGateway, models.ErrCodeScrapeFailed},
		{"wrapped", errors.Join(errors.New("ctx"), models.NewScrapeError(models.ErrCodeTimeout, secret, nil)), http.StatusGatewayTimeout, models.ErrCodeScrapeTimeout},
		{"untyped", errors.New(secret), http.StatusInternalServerError, models.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := postBrand(t, &fakeIngester{err: tt.err}, `{"url":"https://x.example"}`)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if resp.Success || resp.Profile != nil || resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("resp = %+v", resp)
			}
			if strings.Contains(w.Body.String(), "secret") || strings.Contains(w.Body.String(), "10.1.2.3") {
				t.Errorf("internal detail leaked: %s", w.Body.String())
			}
		})
	}
}

type fakeStats models.BrowserStats

func (f fakeStats) Stats() models.BrowserStats { return models.BrowserStats(f) }

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		stats  fakeStats
		status string
	}{
		{"idle", fakeStats{Running: true, Age: "1m0s", Restarts: 2, ActivePages: 1}, "healthy"},
		{"busy", fakeStats{Running: true, ActivePages: degradedPages + 1}, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/health", Health(tt.stats, time.Now().Add(-time.Minute)))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			var resp models.HealthResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if w.Code != http.StatusOK || resp.Status != tt.status || resp.Version != Version {
				t.Errorf("status = %d, resp = %+v", w.Code, resp)
			}
			if resp.BrowserStats != models.BrowserStats(tt.stats) {
				t.Errorf("stats = %+v", resp.BrowserStats)
			}
		})
	}
}
