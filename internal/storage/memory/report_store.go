package memory

import (
	"context"
	"sort"
	"sync"

	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/storage"
)

type reportKey struct {
	mint   string
	height int64
}

// ReportStore is an in-memory implementation of storage.ReportStore.
type ReportStore struct {
	mu       sync.RWMutex
	data     map[string]*domain.TrustScoreReport // keyed by report id
	byHeight map[reportKey]string                // (mint, height) -> report id
}

// NewReportStore creates a new in-memory report store.
func NewReportStore() *ReportStore {
	return &ReportStore{
		data:     make(map[string]*domain.TrustScoreReport),
		byHeight: make(map[reportKey]string),
	}
}

func cloneReport(r *domain.TrustScoreReport) *domain.TrustScoreReport {
	return domain.NewTrustScoreReport(r.ID, r.Mint, r.Score, r.Signals, r.EvaluatedAt,
		r.SnapshotHeight, r.WindowStart, r.Clusters, r.Notes)
}

// Insert adds a new report. Returns ErrDuplicateKey if the id or (mint, height) exists.
func (s *ReportStore) Insert(_ context.Context, r *domain.TrustScoreReport) error {
	if r == nil || r.ID == "" || r.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := reportKey{mint: r.Mint, height: r.SnapshotHeight}
	if _, exists := s.data[r.ID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.byHeight[key]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	s.data[r.ID] = cloneReport(r)
	s.byHeight[key] = r.ID
	return nil
}

// GetByID retrieves a report by its id. Returns ErrNotFound if not exists.
func (s *ReportStore) GetByID(_ context.Context, id string) (*domain.TrustScoreReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneReport(r), nil
}

// Get retrieves the report of mint at height. Returns ErrNotFound if not exists.
func (s *ReportStore) Get(_ context.Context, mint string, height int64) (*domain.TrustScoreReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byHeight[reportKey{mint: mint, height: height}]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneReport(s.data[id]), nil
}

// ListByMint retrieves up to limit reports for mint, newest height first.
func (s *ReportStore) ListByMint(_ context.Context, mint string, limit int) ([]*domain.TrustScoreReport, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TrustScoreReport
	for _, r := range s.data {
		if r.Mint == mint {
			result = append(result, r)
		}
	}

	// Sort by snapshot_height DESC
	sort.Slice(result, func(i, j int) bool {
		return result[i].SnapshotHeight > result[j].SnapshotHeight
	})

	if len(result) > limit {
		result = result[:limit]
	}
	for i, r := range result {
		result[i] = cloneReport(r)
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.ReportStore = (*ReportStore)(nil)
