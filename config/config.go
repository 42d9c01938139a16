package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Ingest    IngestConfig
	Search    SearchConfig
	Cache     CacheConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for browser traffic.
	Proxy string

	// RestartInterval is the browser age after which it is recycled on
	// the next page request.
	RestartInterval time.Duration // default: 10m

	UserAgent      string
	ViewportWidth  int // default: 1366
	ViewportHeight int // default: 900

	// Stealth injects go-rod/stealth into every new page.
	Stealth bool // default: true

	// BlockedResourceTypes lists resource types aborted by the request
	// filter. Images are never blocked.
	// default: ["Media", "Font"]
	BlockedResourceTypes []string

	// BlockAds aborts requests to well-known ad and analytics domains.
	BlockAds bool // default: true
}

// IngestConfig controls the ingestion pipeline budget and crawl shape.
type IngestConfig struct {
	// Budget is the wall-clock deadline for one ingestion.
	Budget time.Duration // default: 10s

	// NavigationTimeout bounds a single page navigation.
	NavigationTimeout time.Duration // default: 8s

	// IdleWait caps the best-effort network idle wait.
	IdleWait time.Duration // default: 2s

	RetryAttempts int           // default: 2
	RetryBackoff  time.Duration // default: 1s, multiplied by the attempt number

	// CollectionReserve is the remaining budget required to load a
	// collection page.
	CollectionReserve time.Duration // default: 3s

	// ProductReserve is the remaining budget required per product page.
	ProductReserve time.Duration // default: 2s

	MaxProductPages int // default: 4
	CatalogLimit    int // default: 8
}

// SearchConfig controls the web-search enhancement stage.
type SearchConfig struct {
	Enabled bool // default: true

	// Endpoint is the HTML search results URL; the query is posted as "q".
	Endpoint string // default: "https://html.duckduckgo.com/html/"

	// MaxQueries is the shared per-ingestion search budget.
	MaxQueries int // default: 6

	// RequestsPerSecond paces outbound search queries process-wide.
	RequestsPerSecond float64 // default: 2

	// Timeout bounds each search or result page fetch.
	Timeout time.Duration // default: 3s

	// Proxy is the proxy URL for search traffic.
	Proxy string
}

// CacheConfig controls the in-memory profile cache of the HTTP API.
type CacheConfig struct {
	Enabled    bool          // default: true
	MaxEntries int           // default: 256
	TTL        time.Duration // default: 30m
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("BRANDKIT_HOST", "0.0.0.0"),
			Port: envIntOr("BRANDKIT_PORT", 8080),
			Mode: envOr("BRANDKIT_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:        envBoolOr("BRANDKIT_HEADLESS", true),
			NoSandbox:       envBoolOr("BRANDKIT_NO_SANDBOX", false),
			BrowserBin:      os.Getenv("BRANDKIT_BROWSER_BIN"),
			Proxy:           os.Getenv("BRANDKIT_PROXY"),
			RestartInterval: envDurationOr("BRANDKIT_BROWSER_RESTART", 10*time.Minute),
			UserAgent:       envOr("BRANDKIT_USER_AGENT", DefaultUserAgent),
			ViewportWidth:   envIntOr("BRANDKIT_VIEWPORT_WIDTH", 1366),
			ViewportHeight:  envIntOr("BRANDKIT_VIEWPORT_HEIGHT", 900),
			Stealth:         envBoolOr("BRANDKIT_STEALTH", true),
			BlockedResourceTypes: envSliceOr("BRANDKIT_BLOCKED_RESOURCES", []string{
				"Media", "Font",
			}),
			BlockAds: envBoolOr("BRANDKIT_BLOCK_ADS", true),
		},
		Ingest: IngestConfig{
			Budget:            envDurationOr("BRANDKIT_BUDGET", 10*time.Second),
			NavigationTimeout: envDurationOr("BRANDKIT_NAV_TIMEOUT", 8*time.Second),
			IdleWait:          envDurationOr("BRANDKIT_IDLE_WAIT", 2*time.Second),
			RetryAttempts:     envIntOr("BRANDKIT_RETRY_ATTEMPTS", 2),
			RetryBackoff:      envDurationOr("BRANDKIT_RETRY_BACKOFF", time.Second),
			CollectionReserve: envDurationOr("BRANDKIT_COLLECTION_RESERVE", 3*time.Second),
			ProductReserve:    envDurationOr("BRANDKIT_PRODUCT_RESERVE", 2*time.Second),
			MaxProductPages:   envIntOr("BRANDKIT_MAX_PRODUCT_PAGES", 4),
			CatalogLimit:      envIntOr("BRANDKIT_CATALOG_LIMIT", 8),
		},
		Search: SearchConfig{
			Enabled:           envBoolOr("BRANDKIT_SEARCH_ENABLED", true),
			Endpoint:          envOr("BRANDKIT_SEARCH_ENDPOINT", "https://html.duckduckgo.com/html/"),
			MaxQueries:        envIntOr("BRANDKIT_SEARCH_MAX_QUERIES", 6),
			RequestsPerSecond: envFloatOr("BRANDKIT_SEARCH_RPS", 2),
			Timeout:           envDurationOr("BRANDKIT_SEARCH_TIMEOUT", 3*time.Second),
			Proxy:             os.Getenv("BRANDKIT_SEARCH_PROXY"),
		},
		Cache: CacheConfig{
			Enabled:    envBoolOr("BRANDKIT_CACHE_ENABLED", true),
			MaxEntries: envIntOr("BRANDKIT_CACHE_MAX_ENTRIES", 256),
			TTL:        envDurationOr("BRANDKIT_CACHE_TTL", 30*time.Minute),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("BRANDKIT_AUTH_ENABLED", true),
			APIKeys: envSliceOr("BRANDKIT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("BRANDKIT_RATE_RPS", 2.0),
			Burst:             envIntOr("BRANDKIT_RATE_BURST", 5),
		},
		Log: LogConfig{
			Level:  envOr("BRANDKIT_LOG_LEVEL", "info"),
			Format: envOr("BRANDKIT_LOG_FORMAT", "json"),
		},
	}
}

// DefaultUserAgent is the fixed desktop Chrome user agent used for every page.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
