package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatements(t *testing.T) {
	script := `
-- header comment; with a semicolon
CREATE TABLE a (x String DEFAULT 'a;b'); -- trailing
CREATE TABLE b (y String DEFAULT 'it''s');

`
	stmts, err := Statements(script)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x String DEFAULT 'a;b')", stmts[0])
	assert.Equal(t, "CREATE TABLE b (y String DEFAULT 'it''s')", stmts[1])
}

func TestStatements_Unterminated(t *testing.T) {
	_, err := Statements("SELECT 'oops;")
	assert.Error(t, err)
}

func TestEmbeddedSchemas(t *testing.T) {
	for _, dir := range []string{"postgres", "clickhouse"} {
		names, err := files(dir)
		require.NoError(t, err)
		require.NotEmpty(t, names, dir)
		for _, n := range names {
			data, err := schemas.ReadFile(dir + "/" + n)
			require.NoError(t, err)
			stmts, err := Statements(string(data))
			require.NoError(t, err, n)
			assert.NotEmpty(t, stmts, n)
		}
	}
	assert.Equal(t, "001_trust_reports", version("001_trust_reports.sql"))
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://user:pw@localhost:9000/risk")
	require.NoError(t, err)
	assert.Equal(t, "risk", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}
