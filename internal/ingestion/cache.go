package ingestion

import (
	"context"
	"sync"

	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/observability"
)

type snapshotKey struct {
	mint   string
	height int64
}

// inflight is a fetch in progress. done is closed once snap/err are set.
type inflight struct {
	done chan struct{}
	snap *domain.Snapshot
	err  error
}

// SnapshotCache holds captured snapshots keyed by (mint, height). Each key is
// written at most once, by the first caller to miss it; concurrent callers for
// the same key wait for that fetch instead of starting their own. Only
// complete snapshots are stored. Stored snapshots are shared and must be
// treated as read-only.
type SnapshotCache struct {
	horizon int64

	mu       sync.Mutex
	entries  map[snapshotKey]*domain.Snapshot
	inflight map[snapshotKey]*inflight
	floor    int64 // heights below floor are neither served nor stored
}

// NewSnapshotCache creates a cache keeping heights within horizon slots of
// the latest height passed to Advance.
func NewSnapshotCache(horizon int64) *SnapshotCache {
	return &SnapshotCache{
		horizon:  horizon,
		entries:  make(map[snapshotKey]*domain.Snapshot),
		inflight: make(map[snapshotKey]*inflight),
	}
}

// FetchFunc captures a snapshot on a cache miss.
type FetchFunc func(ctx context.Context) (*domain.Snapshot, error)

// Get returns the snapshot of (mint, height), calling fetch on a miss. The
// returned event is one of observability.CacheHit, CacheMiss or CacheShared.
// A waiter whose leader failed retries, becoming the leader itself.
func (c *SnapshotCache) Get(ctx context.Context, mint string, height int64, fetch FetchFunc) (*domain.Snapshot, string, error) {
	key := snapshotKey{mint: mint, height: height}

	for {
		c.mu.Lock()
		if snap, ok := c.entries[key]; ok {
			c.mu.Unlock()
			return snap, observability.CacheHit, nil
		}
		if call, ok := c.inflight[key]; ok {
			c.mu.Unlock()
			select {
			case <-call.done:
			case <-ctx.Done():
				return nil, observability.CacheShared, ctx.Err()
			}
			if call.err == nil {
				return call.snap, observability.CacheShared, nil
			}
			if err := ctx.Err(); err != nil {
				return nil, observability.CacheShared, err
			}
			continue
		}

		call := &inflight{done: make(chan struct{})}
		c.inflight[key] = call
		c.mu.Unlock()

		call.snap, call.err = fetch(ctx)

		c.mu.Lock()
		delete(c.inflight, key)
		if call.err == nil && call.snap != nil && call.snap.Complete() && height >= c.floor {
			c.entries[key] = call.snap
		}
		size := len(c.entries)
		c.mu.Unlock()
		close(call.done)

		observability.SetCacheEntries(size)
		return call.snap, observability.CacheMiss, call.err
	}
}

// Advance moves the horizon to latestHeight and evicts snapshots older than
// latestHeight-horizon. Returns the number of evicted entries.
func (c *SnapshotCache) Advance(latestHeight int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	floor := latestHeight - c.horizon
	if floor <= c.floor {
		return 0
	}
	c.floor = floor

	evicted := 0
	for key := range c.entries {
		if key.height < floor {
			delete(c.entries, key)
			evicted++
		}
	}
	if evicted > 0 {
		observability.RecordCacheEvictions(evicted, len(c.entries))
	}
	return evicted
}

// Len returns the number of stored snapshots.
func (c *SnapshotCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
