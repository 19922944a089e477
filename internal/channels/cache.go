package channels

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
	"github.com/rzilem/Community-Intelligence-sub005/internal/repo"
)

// ActiveCache serves each tenant's active channels, ordered by priority,
// from a short-lived per-tenant cache. Writes to the channel set call
// Invalidate, so staleness is bounded by the TTL only for changes made by
// other processes.
type ActiveCache struct {
	DB  *gorm.DB
	TTL time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry

	now func() time.Time
}

type cacheEntry struct {
	channels []domain.Channel
	fetched  time.Time
}

// NewActiveCache builds a cache over the channels table.
func NewActiveCache(db *gorm.DB, ttl time.Duration) *ActiveCache {
	return &ActiveCache{
		DB:      db,
		TTL:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Active returns the tenant's active channels in dispatch order,
// refreshing from the database when the cached copy has expired.
func (c *ActiveCache) Active(ctx context.Context, tenantID string) ([]domain.Channel, error) {
	c.mu.Lock()
	if e, ok := c.entries[tenantID]; ok && c.now().Sub(e.fetched) < c.TTL {
		out := e.channels
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	fresh, err := repo.ListActiveChannels(ctx, c.DB, tenantID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[tenantID] = cacheEntry{channels: fresh, fetched: c.now()}
	c.mu.Unlock()
	return fresh, nil
}

// Invalidate drops the tenant's cached entry. Called after any channel
// create, update, or deactivation.
func (c *ActiveCache) Invalidate(tenantID string) {
	c.mu.Lock()
	delete(c.entries, tenantID)
	c.mu.Unlock()
}
