// Package cache keeps recently built brand profiles so repeated requests
// for the same site skip the browser.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/brandkit/models"
	"github.com/use-agent/brandkit/urlguard"
)

// entry holds a cached profile with its creation timestamp.
type entry struct {
	profile   *models.BrandProfile
	createdAt time.Time
}

// Cache is an in-memory profile cache with a fixed TTL. It is safe for
// concurrent use. Cached profiles are shared and must not be mutated.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

// New creates a Cache holding at most maxEntries profiles for ttl each.
func New(maxEntries int, ttl time.Duration) *Cache {
	return &Cache{
		store:      make(map[string]*entry),
		maxEntries: max(maxEntries, 1),
		ttl:        ttl,
		now:        time.Now,
	}
}

// Key derives the cache key of a request URL. Inputs that normalize to the
// same site URL share a key; ok is false for URLs that cannot be normalized.
func Key(rawURL string) (string, bool) {
	u, err := urlguard.Normalize(rawURL)
	if err != nil {
		return "", false
	}
	u.Host = strings.ToLower(u.Host)
	if u.Path == "/" {
		u.Path = ""
	}
	sum := sha256.Sum256([]byte(u.String()))
	return hex.EncodeToString(sum[:]), true
}

// Get returns the profile stored under key if it is younger than the TTL.
func (c *Cache) Get(key string) (*models.BrandProfile, bool) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.createdAt) > c.ttl {
		return nil, false
	}
	return e.profile, true
}

// Set stores profile under key. At capacity, expired entries are dropped
// first, then the oldest one.
func (c *Cache) Set(key string, profile *models.BrandProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.store[key] = &entry{profile: profile, createdAt: now}
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

func (c *Cache) evictLocked(now time.Time) {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.store {
		if now.Sub(e.createdAt) > c.ttl {
			delete(c.store, k)
			continue
		}
		if oldestKey == "" || e.createdAt.Before(oldest) {
			oldestKey, oldest = k, e.createdAt
		}
	}
	if len(c.store) >= c.maxEntries && oldestKey != "" {
		delete(c.store, oldestKey)
	}
}
