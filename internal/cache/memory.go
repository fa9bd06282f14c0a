package cache

import (
	"context"
	"sync"
	"time"
)

// item is a cached decision with expiration
type item struct {
	allowed   bool
	expiresAt time.Time
}

// Memory is a thread-safe in-process decision cache with per-entry TTL
type Memory struct {
	items           map[string]item
	mu              sync.RWMutex
	now             func() time.Time
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewMemory creates a cache that sweeps expired entries every cleanupInterval.
// A non-positive interval disables the background sweep.
func NewMemory(cleanupInterval time.Duration) *Memory {
	c := &Memory{
		items:           make(map[string]item),
		now:             time.Now,
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go c.cleanup()
	}

	return c
}

// Get returns the cached decision; found is false for absent or expired entries
func (c *Memory) Get(ctx context.Context, videoID, viewerID int64) (bool, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.items[Key(videoID, viewerID)]
	if !ok || !c.now().Before(it.expiresAt) {
		// expired entries are left for cleanup
		return false, false, nil
	}

	return it.allowed, true, nil
}

// Set stores a decision for ttl
func (c *Memory) Set(ctx context.Context, videoID, viewerID int64, allowed bool, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[Key(videoID, viewerID)] = item{
		allowed:   allowed,
		expiresAt: c.now().Add(ttl),
	}

	return nil
}

// Invalidate drops the decisions of the given viewers for a video
func (c *Memory) Invalidate(ctx context.Context, videoID int64, viewerIDs ...int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, viewerID := range viewerIDs {
		delete(c.items, Key(videoID, viewerID))
	}

	return nil
}

// Size returns the number of stored entries, expired ones included
func (c *Memory) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// removeExpired deletes all expired entries
func (c *Memory) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, it := range c.items {
		if !now.Before(it.expiresAt) {
			delete(c.items, key)
		}
	}
}

// cleanup periodically removes expired items
func (c *Memory) cleanup() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stopCleanup:
			return
		}
	}
}

// Stop stops the cleanup goroutine
func (c *Memory) Stop() {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
}
