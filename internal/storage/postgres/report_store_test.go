package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/storage"
)

func testReport(id, mint string, height int64, score int) *domain.TrustScoreReport {
	return domain.NewTrustScoreReport(id, mint, score,
		[]domain.SignalContribution{
			{
				Name:         domain.SignalMintAuthorityActive,
				Severity:     30,
				RawValue:     1,
				Confidence:   domain.ConfidenceObserved,
				Contribution: -30,
			},
			{
				Name:         domain.SignalLiquidityUnlocked,
				Severity:     35,
				Confidence:   domain.ConfidenceUnknown,
				Contribution: -17.5,
			},
		},
		time.UnixMilli(1700000000000),
		height, height-9000,
		[]domain.WalletCluster{{
			Members:  []string{"walletA", "walletB"},
			Reason:   domain.ClusterFundingLineage,
			Cohesion: 1,
		}},
		[]domain.Note{{
			Signal: domain.SignalLiquidityUnlocked,
			Kind:   domain.NoteDataUnavailable,
			Detail: "pool: rpc unavailable",
		}},
	)
}

func TestReportStore_InsertAndGet(t *testing.T) {
	pool := setupTestDB(t)

	store := NewReportStore(pool)
	ctx := context.Background()

	report := testReport("report-001", "MintAddress123", 1000, 53)
	require.NoError(t, store.Insert(ctx, report))

	byID, err := store.GetByID(ctx, "report-001")
	require.NoError(t, err)

	assert.Equal(t, report.Mint, byID.Mint)
	assert.Equal(t, report.Score, byID.Score)
	assert.Equal(t, report.SnapshotHeight, byID.SnapshotHeight)
	assert.Equal(t, report.WindowStart, byID.WindowStart)
	assert.True(t, report.EvaluatedAt.Equal(byID.EvaluatedAt))
	assert.Equal(t, report.Signals, byID.Signals)
	assert.Equal(t, report.Clusters, byID.Clusters)
	assert.Equal(t, report.Notes, byID.Notes)

	byHeight, err := store.Get(ctx, "MintAddress123", 1000)
	require.NoError(t, err)
	assert.Equal(t, "report-001", byHeight.ID)

	// Canonical serialization survives the round trip
	want, err := report.CanonicalJSON()
	require.NoError(t, err)
	got, err := byHeight.CanonicalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))
}

func TestReportStore_InsertDuplicate(t *testing.T) {
	pool := setupTestDB(t)

	store := NewReportStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testReport("report-dup", "MintAddress123", 1000, 53)))

	// Same id
	err := store.Insert(ctx, testReport("report-dup", "MintAddress123", 2000, 53))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Same (mint, height) under a different id
	err = store.Insert(ctx, testReport("report-other", "MintAddress123", 1000, 60))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestReportStore_NotFound(t *testing.T) {
	pool := setupTestDB(t)

	store := NewReportStore(pool)
	ctx := context.Background()

	_, err := store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.Get(ctx, "MintAddress123", 42)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReportStore_ListByMint(t *testing.T) {
	pool := setupTestDB(t)

	store := NewReportStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testReport("r-1", "MintA", 100, 90)))
	require.NoError(t, store.Insert(ctx, testReport("r-3", "MintA", 300, 70)))
	require.NoError(t, store.Insert(ctx, testReport("r-2", "MintA", 200, 80)))
	require.NoError(t, store.Insert(ctx, testReport("r-other", "MintB", 500, 10)))

	reports, err := store.ListByMint(ctx, "MintA", 2)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, int64(300), reports[0].SnapshotHeight)
	assert.Equal(t, int64(200), reports[1].SnapshotHeight)

	_, err = store.ListByMint(ctx, "MintA", 0)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
