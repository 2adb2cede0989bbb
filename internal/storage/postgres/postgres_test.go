package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-risk-engine/internal/storage"
)

func TestClassify(t *testing.T) {
	assert.NoError(t, classify("op", nil))
	assert.ErrorIs(t, classify("op", pgx.ErrNoRows), storage.ErrNotFound)
	assert.ErrorIs(t, classify("op", fmt.Errorf("scan: %w", pgx.ErrNoRows)), storage.ErrNotFound)

	dup := &pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "trust_reports_pkey"}
	assert.ErrorIs(t, classify("insert report", dup), storage.ErrDuplicateKey)

	other := &pgconn.PgError{Code: "23514", Message: "score out of range"}
	err := classify("insert report", other)
	assert.NotErrorIs(t, err, storage.ErrDuplicateKey)
	assert.Contains(t, err.Error(), "insert report")
	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr))
}

func TestPool_Check(t *testing.T) {
	pool := setupTestDB(t)
	require.NoError(t, pool.Check(context.Background()))
}
