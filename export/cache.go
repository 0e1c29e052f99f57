// ABOUTME: In-memory export cache keyed by a sha256 of the board's cards and the output format.
// ABOUTME: Entries expire after a TTL; errors are never cached.
package export

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/2389-research/snapboard/board/core"
)

// maxCacheEntries bounds the cache; boards change often and old sheets are rarely asked for again.
const maxCacheEntries = 16

// RenderFunc writes one export of cards to w.
type RenderFunc func(ctx context.Context, w io.Writer, cards []core.Card) error

type cacheEntry struct {
	data      []byte
	createdAt time.Time
}

// Cache memoizes exports of unchanged boards.
type Cache struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

// NewCache creates a Cache whose entries live for ttl.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, now: time.Now, entries: make(map[string]*cacheEntry)}
}

// Render returns the cached export of cards in format, rendering it with fn on a miss.
func (c *Cache) Render(ctx context.Context, format string, cards []core.Card, fn RenderFunc) ([]byte, error) {
	key, err := cacheKey(format, cards)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	if entry, ok := c.entries[key]; ok && c.now().Sub(entry.createdAt) < c.ttl {
		data := entry.data
		c.mu.RUnlock()
		return data, nil
	}
	c.mu.RUnlock()

	var buf bytes.Buffer
	if err := fn(ctx, &buf, cards); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if now.Sub(e.createdAt) >= c.ttl {
			delete(c.entries, k)
		}
	}
	if len(c.entries) >= maxCacheEntries {
		c.entries = make(map[string]*cacheEntry)
	}
	c.entries[key] = &cacheEntry{data: buf.Bytes(), createdAt: now}
	return buf.Bytes(), nil
}

// Len returns the number of entries currently held, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

func cacheKey(format string, cards []core.Card) (string, error) {
	data, err := json.Marshal(cards)
	if err != nil {
		return "", fmt.Errorf("hash cards: %w", err)
	}
	return fmt.Sprintf("%x:%s", sha256.Sum256(data), format), nil
}
