package application

import (
	"slices"
	"sync"
	"time"

	"github.com/example/lab-scheduler/internal/seating"
)

// catalogCache holds the active seat list between catalog mutations so the
// booking path does not re-read storage for every request.
type catalogCache struct {
	mu        sync.RWMutex
	now       func() time.Time
	ttl       time.Duration
	seats     []seating.Seat
	loaded    bool
	expiresAt time.Time
}

func newCatalogCache(ttl time.Duration, now func() time.Time) *catalogCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &catalogCache{now: now, ttl: ttl}
}

// Get returns a copy of the cached seats while the entry is fresh.
func (c *catalogCache) Get() ([]seating.Seat, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded || c.now().After(c.expiresAt) {
		return nil, false
	}
	return slices.Clone(c.seats), true
}

// Store replaces the cached seat list.
func (c *catalogCache) Store(seats []seating.Seat) {
	if c == nil {
		return
	}
	cloned := slices.Clone(seats)
	c.mu.Lock()
	c.seats = cloned
	c.loaded = true
	c.expiresAt = c.now().Add(c.ttl)
	c.mu.Unlock()
}

// Invalidate drops the cached list.
func (c *catalogCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.seats = nil
	c.loaded = false
	c.mu.Unlock()
}
