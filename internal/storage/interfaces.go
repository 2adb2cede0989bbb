package storage

import (
	"context"
	"sort"
	"time"

	"solana-risk-engine/internal/domain"
)

// ReportStore provides access to trust_reports storage.
// Reports are append-only: one report per (mint, snapshot height).
type ReportStore interface {
	// Insert adds a new report. Returns ErrDuplicateKey if the report id exists.
	Insert(ctx context.Context, r *domain.TrustScoreReport) error

	// GetByID retrieves a report by its id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.TrustScoreReport, error)

	// Get retrieves the report of mint at height. Returns ErrNotFound if not exists.
	Get(ctx context.Context, mint string, height int64) (*domain.TrustScoreReport, error)

	// ListByMint retrieves up to limit reports for mint, newest height first.
	ListByMint(ctx context.Context, mint string, limit int) ([]*domain.TrustScoreReport, error)
}

// SignalRecord is one signal contribution of a published report, flattened
// for time-series storage.
type SignalRecord struct {
	ReportID       string            `json:"reportId"`
	Mint           string            `json:"mint"`
	SnapshotHeight int64             `json:"snapshotHeight"`
	EvaluatedAt    time.Time         `json:"evaluatedAt"`
	Score          int               `json:"score"`
	Name           domain.SignalName `json:"name"`
	Confidence     domain.Confidence `json:"confidence"`
	Severity       float64           `json:"severity"`
	RawValue       float64           `json:"rawValue"`
	Contribution   float64           `json:"contribution"`
}

// SignalRecordsFromReport flattens a report into signal records.
func SignalRecordsFromReport(r *domain.TrustScoreReport) []SignalRecord {
	records := make([]SignalRecord, 0, len(r.Signals))
	for _, s := range r.Signals {
		records = append(records, SignalRecord{
			ReportID:       r.ID,
			Mint:           r.Mint,
			SnapshotHeight: r.SnapshotHeight,
			EvaluatedAt:    r.EvaluatedAt,
			Score:          r.Score,
			Name:           s.Name,
			Confidence:     s.Confidence,
			Severity:       s.Severity,
			RawValue:       s.RawValue,
			Contribution:   s.Contribution,
		})
	}
	return records
}

// SignalHistoryStore provides access to signal_history storage.
type SignalHistoryStore interface {
	// InsertBulk adds records. Records of an already stored report are rejected
	// with ErrDuplicateKey.
	InsertBulk(ctx context.Context, records []SignalRecord) error

	// GetByMint retrieves records for mint with snapshot height in [from, to],
	// ordered by (height, signal rank).
	GetByMint(ctx context.Context, mint string, from, to int64) ([]SignalRecord, error)
}

// ReportCache is the shared write-once cache of canonical report payloads.
type ReportCache interface {
	// SetIfAbsent stores payload for (mint, height) unless an entry exists.
	// Returns true if this call wrote the entry.
	SetIfAbsent(ctx context.Context, mint string, height int64, payload []byte) (bool, error)

	// Get returns the payload for (mint, height). Returns ErrNotFound if absent.
	Get(ctx context.Context, mint string, height int64) ([]byte, error)
}

// SortSignalRecords orders records by (snapshot height, signal rank).
func SortSignalRecords(records []SignalRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].SnapshotHeight != records[j].SnapshotHeight {
			return records[i].SnapshotHeight < records[j].SnapshotHeight
		}
		return records[i].Name.Rank() < records[j].Name.Rank()
	})
}
