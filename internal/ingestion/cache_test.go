package ingestion

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/observability"
)

func completeSnapshot(mint string, height int64) *domain.Snapshot {
	return &domain.Snapshot{
		Mint:              mint,
		Height:            height,
		Token:             &domain.Token{Mint: mint},
		Pool:              &domain.LiquidityPool{},
		TransfersResolved: true,
		HoldersResolved:   true,
	}
}

func countingFetch(calls *atomic.Int64, snap *domain.Snapshot, delay time.Duration) FetchFunc {
	return func(ctx context.Context) (*domain.Snapshot, error) {
		calls.Add(1)
		time.Sleep(delay)
		return snap, nil
	}
}

func TestSnapshotCache_SingleWriter(t *testing.T) {
	cache := NewSnapshotCache(1000)
	snap := completeSnapshot("mint1", 100)
	var calls atomic.Int64

	const callers = 32
	got := make([]*domain.Snapshot, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, _, err := cache.Get(context.Background(), "mint1", 100, countingFetch(&calls, snap, 20*time.Millisecond))
			if err != nil {
				t.Errorf("Get: %v", err)
			}
			got[i] = s
		}(i)
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("expected exactly one fetch, got %d", n)
	}
	for i, s := range got {
		if s != snap {
			t.Errorf("caller %d got a different snapshot", i)
		}
	}
	if cache.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", cache.Len())
	}
}

func TestSnapshotCache_HitAfterMiss(t *testing.T) {
	cache := NewSnapshotCache(1000)
	var calls atomic.Int64
	fetch := countingFetch(&calls, completeSnapshot("mint1", 100), 0)

	_, event, _ := cache.Get(context.Background(), "mint1", 100, fetch)
	if event != observability.CacheMiss {
		t.Errorf("expected miss, got %s", event)
	}
	_, event, _ = cache.Get(context.Background(), "mint1", 100, fetch)
	if event != observability.CacheHit {
		t.Errorf("expected hit, got %s", event)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 fetch, got %d", calls.Load())
	}
}

func TestSnapshotCache_DegradedNotStored(t *testing.T) {
	cache := NewSnapshotCache(1000)
	degraded := completeSnapshot("mint1", 100)
	degraded.Pool = nil
	degraded.Unavailable = map[domain.Fact]string{domain.FactPool: "timeout"}
	var calls atomic.Int64
	fetch := countingFetch(&calls, degraded, 0)

	for i := 0; i < 3; i++ {
		s, _, err := cache.Get(context.Background(), "mint1", 100, fetch)
		if err != nil || s != degraded {
			t.Fatalf("Get %d: snapshot=%p err=%v", i, s, err)
		}
	}
	if calls.Load() != 3 {
		t.Errorf("degraded snapshots must be refetched, got %d fetches", calls.Load())
	}
	if cache.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", cache.Len())
	}
}

func TestSnapshotCache_FetchErrorNotStored(t *testing.T) {
	cache := NewSnapshotCache(1000)
	boom := errors.New("boom")

	_, _, err := cache.Get(context.Background(), "mint1", 100, func(context.Context) (*domain.Snapshot, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var calls atomic.Int64
	if _, _, err := cache.Get(context.Background(), "mint1", 100, countingFetch(&calls, completeSnapshot("mint1", 100), 0)); err != nil {
		t.Fatalf("Get after failure: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a fresh fetch after failure, got %d", calls.Load())
	}
}

func TestSnapshotCache_WaiterRetriesAfterLeaderCanceled(t *testing.T) {
	cache := NewSnapshotCache(1000)
	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	started := make(chan struct{})

	leaderDone := make(chan error, 1)
	go func() {
		_, _, err := cache.Get(leaderCtx, "mint1", 100, func(ctx context.Context) (*domain.Snapshot, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		})
		leaderDone <- err
	}()
	<-started

	waiterDone := make(chan *domain.Snapshot, 1)
	snap := completeSnapshot("mint1", 100)
	go func() {
		s, _, err := cache.Get(context.Background(), "mint1", 100, func(context.Context) (*domain.Snapshot, error) {
			return snap, nil
		})
		if err != nil {
			t.Errorf("waiter: %v", err)
		}
		waiterDone <- s
	}()

	// let the waiter block on the in-flight fetch
	time.Sleep(20 * time.Millisecond)
	cancelLeader()

	if err := <-leaderDone; !errors.Is(err, context.Canceled) {
		t.Errorf("leader: expected context.Canceled, got %v", err)
	}
	if s := <-waiterDone; s != snap {
		t.Error("waiter should have fetched its own snapshot")
	}
}

func TestSnapshotCache_WaiterContextCanceled(t *testing.T) {
	cache := NewSnapshotCache(1000)
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _, _ = cache.Get(context.Background(), "mint1", 100, func(context.Context) (*domain.Snapshot, error) {
			close(started)
			<-release
			return completeSnapshot("mint1", 100), nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := cache.Get(ctx, "mint1", 100, func(context.Context) (*domain.Snapshot, error) {
		t.Error("waiter must not fetch while the leader is in flight")
		return nil, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
	close(release)
}

func TestSnapshotCache_AdvanceEvicts(t *testing.T) {
	cache := NewSnapshotCache(150)
	var calls atomic.Int64
	for _, h := range []int64{100, 200, 300} {
		if _, _, err := cache.Get(context.Background(), "mint1", h, countingFetch(&calls, completeSnapshot("mint1", h), 0)); err != nil {
			t.Fatalf("Get(%d): %v", h, err)
		}
	}

	if n := cache.Advance(300); n != 1 {
		t.Errorf("expected 1 eviction, got %d", n)
	}
	if cache.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", cache.Len())
	}

	// a height below the horizon is fetched but not stored
	calls.Store(0)
	fetch := countingFetch(&calls, completeSnapshot("mint1", 100), 0)
	cache.Get(context.Background(), "mint1", 100, fetch)
	cache.Get(context.Background(), "mint1", 100, fetch)
	if calls.Load() != 2 {
		t.Errorf("expected 2 fetches below the horizon, got %d", calls.Load())
	}

	if n := cache.Advance(250); n != 0 {
		t.Errorf("moving the horizon backwards must not evict, got %d", n)
	}
	if n := cache.Advance(500); n != 2 {
		t.Errorf("expected 2 evictions, got %d", n)
	}
}
