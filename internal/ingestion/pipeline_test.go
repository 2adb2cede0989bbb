package ingestion_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-risk-engine/internal/config"
	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/engine"
	"solana-risk-engine/internal/ingestion"
	"solana-risk-engine/internal/ingestion/stub"
	"solana-risk-engine/internal/riskerr"
	"solana-risk-engine/internal/storage"
	"solana-risk-engine/internal/storage/memory"
)

type pipelineFixture struct {
	src      *stub.FactSource
	pipeline *ingestion.Pipeline
	reports  *memory.ReportStore
	history  *memory.SignalHistoryStore
	cache    *memory.ReportCache
	logs     *bytes.Buffer
}

func newPipeline(t *testing.T, src *stub.FactSource, reports storage.ReportStore) *pipelineFixture {
	t.Helper()
	policy := config.DefaultPolicy()
	eng, err := engine.New(policy)
	require.NoError(t, err)

	f := &pipelineFixture{
		src:     src,
		history: memory.NewSignalHistoryStore(),
		cache:   memory.NewReportCache(),
		logs:    &bytes.Buffer{},
	}
	if reports == nil {
		f.reports = memory.NewReportStore()
		reports = f.reports
	}

	f.pipeline = ingestion.NewPipeline(ingestion.PipelineOptions{
		Collector:         newCollector(src, time.Second),
		Cache:             ingestion.NewSnapshotCache(1500),
		Engine:            eng,
		Reports:           reports,
		History:           f.history,
		ReportCache:       f.cache,
		HighRiskThreshold: int(policy.Scoring.HighRiskThreshold),
		Logger:            slog.New(slog.NewJSONHandler(f.logs, nil)),
	})
	return f
}

func TestEvaluateToken_CleanToken(t *testing.T) {
	f := newPipeline(t, newFixture(), nil)
	ctx := context.Background()

	r, err := f.pipeline.EvaluateToken(ctx, testMint, testHeight)
	require.NoError(t, err)
	assert.Equal(t, 100, r.Score)
	assert.Equal(t, testHeight, r.SnapshotHeight)
	assert.Equal(t, testTimeMs, r.EvaluatedAt.UnixMilli())

	stored, err := f.reports.Get(ctx, testMint, testHeight)
	require.NoError(t, err)
	assert.Equal(t, r.ID, stored.ID)

	payload, err := f.cache.Get(ctx, testMint, testHeight)
	require.NoError(t, err)
	want, _ := r.CanonicalJSON()
	assert.Equal(t, string(want), string(payload))
}

func TestEvaluateToken_PoolFailureDegradesLiquidity(t *testing.T) {
	src := newFixture()
	src.FailMethod(stub.MethodGetLiquidityPool, errors.New("rpc 503"))
	f := newPipeline(t, src, nil)

	r, err := f.pipeline.EvaluateToken(context.Background(), testMint, testHeight)
	require.NoError(t, err, "a failed fact must not fail the evaluation")

	sig, ok := r.Signal(domain.SignalLiquidityUnlocked)
	require.True(t, ok)
	assert.Equal(t, domain.ConfidenceUnknown, sig.Confidence)
	assert.Equal(t, -17.5, sig.Contribution)
	assert.Greater(t, -sig.Contribution, 0.0)
	assert.Less(t, -sig.Contribution, sig.Severity, "unknown penalty must be smaller than a fully observed unlock")
	assert.Equal(t, 83, r.Score)

	// degraded reports are not persisted
	_, err = f.reports.Get(context.Background(), testMint, testHeight)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = f.cache.Get(context.Background(), testMint, testHeight)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// degraded snapshots are not cached
	_, err = f.pipeline.EvaluateToken(context.Background(), testMint, testHeight)
	require.NoError(t, err)
	assert.Equal(t, int64(2), src.Calls(stub.MethodGetLiquidityPool))
}

func TestEvaluateToken_RecoveredFactsPublishCompleteReport(t *testing.T) {
	src := newFixture()
	src.FailMethod(stub.MethodGetLiquidityPool, errors.New("rpc 503"))
	f := newPipeline(t, src, nil)
	ctx := context.Background()

	degraded, err := f.pipeline.EvaluateToken(ctx, testMint, testHeight)
	require.NoError(t, err)
	assert.Equal(t, 83, degraded.Score)

	src.FailMethod(stub.MethodGetLiquidityPool, nil)

	r, err := f.pipeline.EvaluateToken(ctx, testMint, testHeight)
	require.NoError(t, err)
	assert.Equal(t, 100, r.Score)

	stored, err := f.reports.Get(ctx, testMint, testHeight)
	require.NoError(t, err)
	assert.Equal(t, 100, stored.Score)
}

func TestEvaluateToken_SnapshotCachedAndDeterministic(t *testing.T) {
	f := newPipeline(t, newFixture(), nil)
	ctx := context.Background()

	first, err := f.pipeline.EvaluateToken(ctx, testMint, testHeight)
	require.NoError(t, err)
	second, err := f.pipeline.EvaluateToken(ctx, testMint, testHeight)
	require.NoError(t, err)

	a, _ := first.CanonicalJSON()
	b, _ := second.CanonicalJSON()
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, int64(1), f.src.Calls(stub.MethodGetToken))
}

func TestEvaluateToken_ConcurrentCallersShareOneFetch(t *testing.T) {
	src := newFixture()
	src.DelayMethod(stub.MethodGetToken, 50*time.Millisecond)
	f := newPipeline(t, src, nil)

	var wg sync.WaitGroup
	scores := make([]int, 16)
	for i := range scores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := f.pipeline.EvaluateToken(context.Background(), testMint, testHeight)
			if err != nil {
				t.Errorf("EvaluateToken: %v", err)
				return
			}
			scores[i] = r.Score
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), src.Calls(stub.MethodGetToken))
	for _, s := range scores {
		assert.Equal(t, 100, s)
	}
}

func TestEvaluateToken_InvalidInput(t *testing.T) {
	f := newPipeline(t, newFixture(), nil)

	_, err := f.pipeline.EvaluateToken(context.Background(), "not a mint", testHeight)
	assert.ErrorIs(t, err, riskerr.ErrInvalidInput)

	_, err = f.pipeline.EvaluateToken(context.Background(), testMint, -1)
	assert.ErrorIs(t, err, riskerr.ErrInvalidInput)

	assert.Equal(t, int64(0), f.src.Calls(stub.MethodGetToken))
}

func TestEvaluateToken_Canceled(t *testing.T) {
	src := newFixture()
	src.DelayMethod(stub.MethodGetToken, 10*time.Second)
	f := newPipeline(t, src, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.pipeline.EvaluateToken(ctx, testMint, testHeight)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEvaluateToken_HighRiskLogged(t *testing.T) {
	src := newFixture()
	tok := src.Tokens[testMint]
	tok.MintAuthority = domain.Principal{Address: "creator", Resolved: true}
	tok.FreezeAuthority = domain.Principal{Address: "creator", Resolved: true}
	src.Tokens[testMint] = tok
	pool := src.Pools[testMint]
	pool.Holders = nil
	src.Pools[testMint] = pool
	f := newPipeline(t, src, nil)

	r, err := f.pipeline.EvaluateToken(context.Background(), testMint, testHeight)
	require.NoError(t, err)
	assert.Equal(t, 15, r.Score)
	assert.Contains(t, f.logs.String(), "high risk token")

	records, err := f.history.GetByMint(context.Background(), testMint, 0, testHeight)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

type failingReportStore struct {
	storage.ReportStore
}

func (failingReportStore) Insert(context.Context, *domain.TrustScoreReport) error {
	return errors.New("database down")
}

func TestEvaluateToken_PublishFailureIsNotReturned(t *testing.T) {
	f := newPipeline(t, newFixture(), failingReportStore{})

	r, err := f.pipeline.EvaluateToken(context.Background(), testMint, testHeight)
	require.NoError(t, err)
	assert.NotNil(t, r)
	assert.True(t, strings.Contains(f.logs.String(), "publish report failed"))
}

func TestRecentPurchases_NewestBuysFirst(t *testing.T) {
	src := newFixture()
	for i := 0; i < 4; i++ {
		src.Transfers[testMint] = append(src.Transfers[testMint], domain.TransferEvent{
			ID:          fmt.Sprintf("buy-%d", i),
			Slot:        testHeight - 100 + int64(i),
			Source:      "pool-vault",
			Destination: fmt.Sprintf("buyer-%d", i),
			Mint:        testMint,
			Amount:      50,
			TimestampMs: testTimeMs - 60_000 + int64(i)*1_000,
			Kind:        domain.TransferBuy,
		})
	}
	for _, addr := range []string{"pool-vault", "buyer-0", "buyer-1", "buyer-2", "buyer-3"} {
		src.Wallets[addr] = domain.Wallet{Address: addr, FirstSeenSlot: 1, FirstSeenMs: 1_000}
	}
	f := newPipeline(t, src, nil)

	buys, partial, err := f.pipeline.RecentPurchases(context.Background(), testMint, testHeight, 3)
	require.NoError(t, err)
	assert.False(t, partial)
	require.Len(t, buys, 3)
	assert.Equal(t, "buyer-3", buys[0].Destination)
	assert.Equal(t, "buyer-1", buys[2].Destination)

	// the evaluation reuses the same snapshot
	_, err = f.pipeline.EvaluateToken(context.Background(), testMint, testHeight)
	require.NoError(t, err)
	assert.Equal(t, int64(1), src.Calls(stub.MethodGetTransferWindow))
}

func TestRecentPurchases_WindowUnavailable(t *testing.T) {
	src := newFixture()
	src.FailMethod(stub.MethodGetTransferWindow, errors.New("rpc 503"))
	f := newPipeline(t, src, nil)

	_, _, err := f.pipeline.RecentPurchases(context.Background(), testMint, testHeight, 10)
	assert.ErrorIs(t, err, riskerr.ErrDataUnavailable)

	_, _, err = f.pipeline.RecentPurchases(context.Background(), "not a mint", testHeight, 10)
	assert.ErrorIs(t, err, riskerr.ErrInvalidInput)
}
