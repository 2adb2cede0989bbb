package rediscache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-risk-engine/internal/storage"
)

func setupTestCache(t *testing.T, ttl time.Duration) (*ReportCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })

	return NewWithClient(client, ttl), mr
}

func TestReportCache_SetIfAbsentFirstWriterWins(t *testing.T) {
	cache, _ := setupTestCache(t, time.Hour)
	ctx := context.Background()

	ok, err := cache.SetIfAbsent(ctx, "MintA", 100, []byte(`{"score":80}`))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.SetIfAbsent(ctx, "MintA", 100, []byte(`{"score":10}`))
	require.NoError(t, err)
	assert.False(t, ok)

	payload, err := cache.Get(ctx, "MintA", 100)
	require.NoError(t, err)
	assert.Equal(t, `{"score":80}`, string(payload))
}

func TestReportCache_KeyedByHeight(t *testing.T) {
	cache, mr := setupTestCache(t, time.Hour)
	ctx := context.Background()

	_, err := cache.SetIfAbsent(ctx, "MintA", 100, []byte("a"))
	require.NoError(t, err)
	_, err = cache.SetIfAbsent(ctx, "MintA", 101, []byte("b"))
	require.NoError(t, err)

	assert.True(t, mr.Exists("risk:report:MintA:100"))
	assert.True(t, mr.Exists("risk:report:MintA:101"))

	_, err = cache.Get(ctx, "MintB", 100)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReportCache_EntriesExpire(t *testing.T) {
	cache, mr := setupTestCache(t, time.Minute)
	ctx := context.Background()

	_, err := cache.SetIfAbsent(ctx, "MintA", 100, []byte("a"))
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = cache.Get(ctx, "MintA", 100)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReportCache_ConcurrentWritersSingleWinner(t *testing.T) {
	cache, _ := setupTestCache(t, time.Hour)
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := cache.SetIfAbsent(ctx, "MintA", 100, []byte("x"))
			if err != nil {
				t.Errorf("SetIfAbsent: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestReportCache_ServerDown(t *testing.T) {
	cache, mr := setupTestCache(t, time.Hour)
	require.NoError(t, cache.Check(context.Background()))
	mr.Close()

	_, err := cache.SetIfAbsent(context.Background(), "MintA", 100, []byte("x"))
	assert.Error(t, err)
	assert.Error(t, cache.Check(context.Background()))
}
