package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/observability"
	"solana-risk-engine/internal/storage"
)

// SignalHistoryStore implements storage.SignalHistoryStore using ClickHouse.
type SignalHistoryStore struct {
	conn *Conn
}

// NewSignalHistoryStore creates a new SignalHistoryStore.
func NewSignalHistoryStore(conn *Conn) *SignalHistoryStore {
	return &SignalHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SignalHistoryStore = (*SignalHistoryStore)(nil)

// InsertBulk adds records. Fails entire batch if any report is already stored.
func (s *SignalHistoryStore) InsertBulk(ctx context.Context, records []storage.SignalRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	defer observeQuery("insert_signals", time.Now(), &err)

	// Check for intra-batch duplicates
	type key struct {
		reportID string
		name     domain.SignalName
	}
	seen := make(map[key]struct{})
	reports := make(map[string]struct{})
	for _, r := range records {
		k := key{r.ReportID, r.Name}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		reports[r.ReportID] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for id := range reports {
		exists, err := s.exists(ctx, id)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO signal_history (
			report_id, mint, snapshot_height, evaluated_at_ms, score,
			signal, signal_rank, confidence, severity, raw_value, contribution
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			r.ReportID, r.Mint, uint64(r.SnapshotHeight), r.EvaluatedAt.UnixMilli(), uint8(r.Score),
			string(r.Name), uint8(r.Name.Rank()), string(r.Confidence), r.Severity, r.RawValue, r.Contribution,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByMint retrieves records for mint with snapshot height in [from, to] (inclusive).
func (s *SignalHistoryStore) GetByMint(ctx context.Context, mint string, from, to int64) (_ []storage.SignalRecord, err error) {
	if from < 0 || to < from {
		return nil, storage.ErrInvalidInput
	}
	defer observeQuery("get_signals", time.Now(), &err)

	query := `
		SELECT
			report_id, mint, snapshot_height, evaluated_at_ms, score,
			signal, confidence, severity, raw_value, contribution
		FROM signal_history FINAL
		WHERE mint = ? AND snapshot_height >= ? AND snapshot_height <= ?
		ORDER BY snapshot_height ASC, signal_rank ASC
	`

	rows, err := s.conn.Query(ctx, query, mint, uint64(from), uint64(to))
	if err != nil {
		return nil, fmt.Errorf("query by mint: %w", err)
	}
	defer rows.Close()

	return scanSignalRecords(rows)
}

// exists checks if any record of the report is stored.
func (s *SignalHistoryStore) exists(ctx context.Context, reportID string) (bool, error) {
	query := `SELECT count(*) FROM signal_history WHERE report_id = ?`

	var count uint64
	err := s.conn.QueryRow(ctx, query, reportID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanSignalRecords scans multiple rows.
func scanSignalRecords(rows chRows) ([]storage.SignalRecord, error) {
	var records []storage.SignalRecord

	for rows.Next() {
		var (
			r                storage.SignalRecord
			height           uint64
			evaluatedAtMs    int64
			score            uint8
			name, confidence string
		)

		err := rows.Scan(
			&r.ReportID, &r.Mint, &height, &evaluatedAtMs, &score,
			&name, &confidence, &r.Severity, &r.RawValue, &r.Contribution,
		)
		if err != nil {
			return nil, fmt.Errorf("scan signal history row: %w", err)
		}

		r.SnapshotHeight = int64(height)
		r.EvaluatedAt = time.UnixMilli(evaluatedAtMs).UTC()
		r.Score = int(score)
		r.Name = domain.SignalName(name)
		r.Confidence = domain.Confidence(confidence)

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal history rows: %w", err)
	}

	return records, nil
}

func observeQuery(op string, start time.Time, errp *error) {
	err := *errp
	if errors.Is(err, storage.ErrDuplicateKey) {
		err = nil
	}
	observability.RecordDBQuery("clickhouse", op, time.Since(start).Seconds(), err)
}
