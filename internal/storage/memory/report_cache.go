package memory

import (
	"context"
	"sync"

	"solana-risk-engine/internal/storage"
)

// ReportCache is an in-memory implementation of storage.ReportCache.
type ReportCache struct {
	mu   sync.RWMutex
	data map[reportKey][]byte
}

// NewReportCache creates a new in-memory report cache.
func NewReportCache() *ReportCache {
	return &ReportCache{data: make(map[reportKey][]byte)}
}

// SetIfAbsent stores payload unless an entry for (mint, height) exists.
func (c *ReportCache) SetIfAbsent(_ context.Context, mint string, height int64, payload []byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := reportKey{mint: mint, height: height}
	if _, exists := c.data[key]; exists {
		return false, nil
	}
	c.data[key] = append([]byte(nil), payload...)
	return true, nil
}

// Get returns the payload for (mint, height). Returns ErrNotFound if absent.
func (c *ReportCache) Get(_ context.Context, mint string, height int64) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	payload, exists := c.data[reportKey{mint: mint, height: height}]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), payload...), nil
}

// Verify interface compliance at compile time.
var _ storage.ReportCache = (*ReportCache)(nil)
