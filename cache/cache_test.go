package cache

import (
	"testing"
	"time"

	"github.com/use-agent/brandkit/models"
)

func TestKey(t *testing.T) {
	a, ok := Key("Example.com")
	if !ok {
		t.Fatal("Key failed")
	}
	for _, raw := range []string{"https://example.com", "https://EXAMPLE.com/", " example.com#top"} {
		if k, _ := Key(raw); k != a {
			t.Errorf("Key(%q) differs from Key(Example.com)", raw)
		}
	}
	if k, _ := Key("https://example.com/shop"); k == a {
		t.Error("different paths share a key")
	}
	if _, ok := Key("javascript:alert(1)"); ok {
		t.Error("invalid url produced a key")
	}
}

func TestCache_TTL(t *testing.T) {
	now := time.Now()
	c := New(4, time.Minute)
	c.now = func() time.Time { return now }

	p := &models.BrandProfile{Name: "Acme"}
	c.Set("k", p)
	if got, ok := c.Get("k"); !ok || got != p {
		t.Fatalf("Get = (%v, %v)", got, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Error("expired entry returned")
	}
}

func TestCache_EvictsOldestAtCapacity(t *testing.T) {
	now := time.Now()
	c := New(2, time.Hour)
	c.now = func() time.Time { return now }

	c.Set("a", &models.BrandProfile{Name: "A"})
	now = now.Add(time.Second)
	c.Set("b", &models.BrandProfile{Name: "B"})
	now = now.Add(time.Second)
	c.Set("c", &models.BrandProfile{Name: "C"})

	if c.Len() != 2 {
		t.Fatalf("Len = %d", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry not evicted")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("newest entry missing")
	}
}
