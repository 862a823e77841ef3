package storage

// Test Plan for SQLite Schema:
// - GetSchemaVersion returns "0" for a database without the journal schema
// - CreateSchema creates runs, run_items and journal_metadata with idx_ indexes
// - Deleting a run cascades to its items

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSchemaVersion_NewDatabase(t *testing.T) {
	t.Parallel()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	version, err := GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, "0", version)
}

func TestCreateSchema_TablesAndIndexes(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	require.NoError(t, err)
	var tables []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		tables = append(tables, name)
	}
	require.NoError(t, rows.Close())
	assert.Equal(t, []string{"journal_metadata", "run_items", "runs"}, tables)

	var indexCount int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name LIKE 'idx_%'").Scan(&indexCount))
	assert.Equal(t, len(indexes), indexCount)
}

func TestCreateSchema_CascadeDelete(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)
	_, err := db.Exec(`INSERT INTO runs (run_id, origin, started_at, finished_at, states, warnings)
		VALUES ('r1', 'a.ts', '2026-01-01T00:00:00Z', '2026-01-01T00:00:01Z', '[]', '[]')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO run_items (run_id, seq, path, name, kind, status, detail)
		VALUES ('r1', 0, 'a.types.ts', 'User', 'type', 'applied', 'moved from a.ts')`)
	require.NoError(t, err)

	_, err = db.Exec("DELETE FROM runs WHERE run_id = 'r1'")
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM run_items").Scan(&n))
	assert.Equal(t, 0, n)
}
