package memory

import (
	"context"
	"fmt"
	"sync"

	"solana-risk-engine/internal/storage"
)

// SignalHistoryStore is an in-memory implementation of storage.SignalHistoryStore.
type SignalHistoryStore struct {
	mu      sync.RWMutex
	data    []storage.SignalRecord
	reports map[string]struct{} // report ids already stored
}

// NewSignalHistoryStore creates a new in-memory signal history store.
func NewSignalHistoryStore() *SignalHistoryStore {
	return &SignalHistoryStore{
		reports: make(map[string]struct{}),
	}
}

// InsertBulk adds records atomically. Fails the entire batch if any report id
// is already stored.
func (s *SignalHistoryStore) InsertBulk(_ context.Context, records []storage.SignalRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[string]struct{})
	for _, r := range records {
		if r.ReportID == "" || r.Mint == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.reports[r.ReportID]; exists {
			return storage.ErrDuplicateKey
		}
		batch[r.ReportID] = struct{}{}
	}

	for id := range batch {
		s.reports[id] = struct{}{}
	}
	s.data = append(s.data, records...)
	return nil
}

// GetByMint retrieves records for mint with height in [from, to], ordered by
// (height, signal rank).
func (s *SignalHistoryStore) GetByMint(_ context.Context, mint string, from, to int64) ([]storage.SignalRecord, error) {
	if from < 0 || to < from {
		return nil, fmt.Errorf("%w: height range [%d, %d]", storage.ErrInvalidInput, from, to)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []storage.SignalRecord
	for _, r := range s.data {
		if r.Mint == mint && r.SnapshotHeight >= from && r.SnapshotHeight <= to {
			result = append(result, r)
		}
	}
	storage.SortSignalRecords(result)
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.SignalHistoryStore = (*SignalHistoryStore)(nil)
