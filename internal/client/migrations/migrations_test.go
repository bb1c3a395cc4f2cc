package migrations

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunMigrations_CreatesSchema(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	require.NoError(t, RunMigrations(ctx, db))
	// idempotent
	require.NoError(t, RunMigrations(ctx, db))

	for _, table := range []string{"records", "id_map", "operations", "metadata"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestBackfillOrder_FillsMissingOrderByTieBreak(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	require.NoError(t, RunMigrationsTo(ctx, db, 1))

	_, err := db.Exec(`INSERT INTO records (id, resource, ord, updated_at, is_deleted) VALUES
		('ordered',  'account', 0,    5,  0),
		('old',      'account', NULL, 10, 0),
		('new',      'account', NULL, 30, 0),
		('gone',     'account', NULL, 50, 1),
		('cat',      'category', NULL, 1, 0),
		('tx',       'transaction', NULL, 1, 0)`)
	require.NoError(t, err)

	require.NoError(t, RunMigrations(ctx, db))

	got := map[string]sql.NullInt64{}
	rows, err := db.Query(`SELECT id, ord FROM records`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var id string
		var ord sql.NullInt64
		require.NoError(t, rows.Scan(&id, &ord))
		got[id] = ord
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, sql.NullInt64{Int64: 0, Valid: true}, got["ordered"])
	assert.Equal(t, sql.NullInt64{Int64: 1, Valid: true}, got["new"])
	assert.Equal(t, sql.NullInt64{Int64: 2, Valid: true}, got["old"])
	assert.False(t, got["gone"].Valid, "tombstones are not ordered")
	assert.Equal(t, sql.NullInt64{Int64: 0, Valid: true}, got["cat"])
	assert.False(t, got["tx"].Valid, "transactions are listed by recency")
}
