package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/observability"
	"solana-risk-engine/internal/storage"
)

// ReportStore implements storage.ReportStore using PostgreSQL.
type ReportStore struct {
	pool *Pool
}

// NewReportStore creates a new ReportStore.
func NewReportStore(pool *Pool) *ReportStore {
	return &ReportStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ReportStore = (*ReportStore)(nil)

const reportColumns = `report_id, mint, snapshot_height, window_start, score, evaluated_at, signals, clusters, notes`

// Insert adds a new report. Returns ErrDuplicateKey if report_id or (mint, snapshot_height) exists.
func (s *ReportStore) Insert(ctx context.Context, r *domain.TrustScoreReport) (err error) {
	if r == nil || r.ID == "" || r.Mint == "" {
		return storage.ErrInvalidInput
	}
	defer observeQuery("insert_report", time.Now(), &err)

	signals, err := json.Marshal(nonNil(r.Signals))
	if err != nil {
		return fmt.Errorf("marshal signals: %w", err)
	}
	clusters, err := json.Marshal(nonNil(r.Clusters))
	if err != nil {
		return fmt.Errorf("marshal clusters: %w", err)
	}
	notes, err := json.Marshal(nonNil(r.Notes))
	if err != nil {
		return fmt.Errorf("marshal notes: %w", err)
	}

	query := `
		INSERT INTO trust_reports (` + reportColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = s.pool.Exec(ctx, query,
		r.ID,
		r.Mint,
		r.SnapshotHeight,
		r.WindowStart,
		r.Score,
		r.EvaluatedAt,
		signals,
		clusters,
		notes,
	)
	return classify("insert report", err)
}

// GetByID retrieves a report by its id. Returns ErrNotFound if not exists.
func (s *ReportStore) GetByID(ctx context.Context, id string) (_ *domain.TrustScoreReport, err error) {
	defer observeQuery("get_report", time.Now(), &err)

	query := `SELECT ` + reportColumns + ` FROM trust_reports WHERE report_id = $1`

	r, err := scanReport(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, classify("get report by id", err)
	}
	return r, nil
}

// Get retrieves the report of mint at height. Returns ErrNotFound if not exists.
func (s *ReportStore) Get(ctx context.Context, mint string, height int64) (_ *domain.TrustScoreReport, err error) {
	defer observeQuery("get_report", time.Now(), &err)

	query := `SELECT ` + reportColumns + ` FROM trust_reports WHERE mint = $1 AND snapshot_height = $2`

	r, err := scanReport(s.pool.QueryRow(ctx, query, mint, height))
	if err != nil {
		return nil, classify("get report", err)
	}
	return r, nil
}

// ListByMint retrieves up to limit reports for mint, newest height first.
func (s *ReportStore) ListByMint(ctx context.Context, mint string, limit int) (_ []*domain.TrustScoreReport, err error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}
	defer observeQuery("list_reports", time.Now(), &err)

	query := `
		SELECT ` + reportColumns + `
		FROM trust_reports
		WHERE mint = $1
		ORDER BY snapshot_height DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, mint, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports by mint: %w", err)
	}
	defer rows.Close()

	var result []*domain.TrustScoreReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return result, nil
}

func scanReport(row pgx.Row) (*domain.TrustScoreReport, error) {
	var (
		id, mint                string
		height, windowStart     int64
		score                   int
		evaluatedAt             time.Time
		signalsRaw, clustersRaw []byte
		notesRaw                []byte
		signals                 []domain.SignalContribution
		clusters                []domain.WalletCluster
		notes                   []domain.Note
	)

	err := row.Scan(&id, &mint, &height, &windowStart, &score, &evaluatedAt, &signalsRaw, &clustersRaw, &notesRaw)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(signalsRaw, &signals); err != nil {
		return nil, fmt.Errorf("unmarshal signals: %w", err)
	}
	if err := json.Unmarshal(clustersRaw, &clusters); err != nil {
		return nil, fmt.Errorf("unmarshal clusters: %w", err)
	}
	if err := json.Unmarshal(notesRaw, &notes); err != nil {
		return nil, fmt.Errorf("unmarshal notes: %w", err)
	}

	return domain.NewTrustScoreReport(id, mint, score, signals, evaluatedAt, height, windowStart, clusters, notes), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// observeQuery records query latency. Sentinel storage errors are expected
// outcomes and are not counted as failures.
func observeQuery(op string, start time.Time, errp *error) {
	err := *errp
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrDuplicateKey) {
		err = nil
	}
	observability.RecordDBQuery("postgres", op, time.Since(start).Seconds(), err)
}
