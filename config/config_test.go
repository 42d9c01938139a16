package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Ingest.Budget != 10*time.Second {
		t.Errorf("Budget = %v, want 10s", cfg.Ingest.Budget)
	}
	if cfg.Ingest.CollectionReserve != 3*time.Second || cfg.Ingest.ProductReserve != 2*time.Second {
		t.Errorf("reserves = %v/%v, want 3s/2s", cfg.Ingest.CollectionReserve, cfg.Ingest.ProductReserve)
	}
	if cfg.Ingest.MaxProductPages != 4 || cfg.Ingest.CatalogLimit != 8 {
		t.Errorf("crawl shape = %d pages/%d products", cfg.Ingest.MaxProductPages, cfg.Ingest.CatalogLimit)
	}
	if cfg.Ingest.RetryAttempts != 2 || cfg.Ingest.RetryBackoff != time.Second {
		t.Errorf("retry = %d x %v", cfg.Ingest.RetryAttempts, cfg.Ingest.RetryBackoff)
	}
	if cfg.Browser.RestartInterval != 10*time.Minute {
		t.Errorf("RestartInterval = %v", cfg.Browser.RestartInterval)
	}
	if !cfg.Cache.Enabled || cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Search.MaxQueries != 6 {
		t.Errorf("MaxQueries = %d, want 6", cfg.Search.MaxQueries)
	}
	for _, rt := range cfg.Browser.BlockedResourceTypes {
		if rt == "Image" {
			t.Error("images must never be blocked by default")
		}
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BRANDKIT_BUDGET", "15s")
	t.Setenv("BRANDKIT_MAX_PRODUCT_PAGES", "2")
	t.Setenv("BRANDKIT_API_KEYS", "a, b ,,c")
	t.Setenv("BRANDKIT_STEALTH", "false")
	t.Setenv("BRANDKIT_PORT", "not-a-number")

	cfg := Load()
	if cfg.Ingest.Budget != 15*time.Second {
		t.Errorf("Budget = %v", cfg.Ingest.Budget)
	}
	if cfg.Ingest.MaxProductPages != 2 {
		t.Errorf("MaxProductPages = %d", cfg.Ingest.MaxProductPages)
	}
	if got := cfg.Auth.APIKeys; len(got) != 3 || got[1] != "b" {
		t.Errorf("APIKeys = %q", got)
	}
	if cfg.Browser.Stealth {
		t.Error("Stealth should be disabled")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("invalid port should fall back to default, got %d", cfg.Server.Port)
	}
}
