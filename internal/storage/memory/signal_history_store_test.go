package memory

import (
	"context"
	"errors"
	"testing"

	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/storage"
)

func TestSignalHistoryStore_InsertAndQuery(t *testing.T) {
	store := NewSignalHistoryStore()
	ctx := context.Background()

	r1 := testReport("mint1", 200, 70)
	r1.Signals = append(r1.Signals, domain.SignalContribution{
		Name: domain.SignalLiquidityUnlocked, Severity: 35, Confidence: domain.ConfidenceUnknown, Contribution: -17.5,
	})
	r2 := testReport("mint1", 100, 70)

	// insert the later height first, ordering comes from the store
	if err := store.InsertBulk(ctx, storage.SignalRecordsFromReport(r1)); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	if err := store.InsertBulk(ctx, storage.SignalRecordsFromReport(r2)); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByMint(ctx, "mint1", 0, 1000)
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if got[0].SnapshotHeight != 100 {
		t.Errorf("expected first record at height 100, got %d", got[0].SnapshotHeight)
	}
	if got[1].Name != domain.SignalMintAuthorityActive || got[2].Name != domain.SignalLiquidityUnlocked {
		t.Errorf("expected rank order within a height, got %s, %s", got[1].Name, got[2].Name)
	}

	got, _ = store.GetByMint(ctx, "mint1", 150, 250)
	if len(got) != 2 {
		t.Errorf("expected 2 records in [150, 250], got %d", len(got))
	}
}

func TestSignalHistoryStore_DuplicateReport(t *testing.T) {
	store := NewSignalHistoryStore()
	ctx := context.Background()

	records := storage.SignalRecordsFromReport(testReport("mint1", 100, 70))
	if err := store.InsertBulk(ctx, records); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	if err := store.InsertBulk(ctx, records); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestSignalHistoryStore_InvalidRange(t *testing.T) {
	store := NewSignalHistoryStore()
	ctx := context.Background()

	if _, err := store.GetByMint(ctx, "mint1", 200, 100); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for inverted range, got %v", err)
	}
	if _, err := store.GetByMint(ctx, "mint1", -1, 100); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for negative height, got %v", err)
	}
}
