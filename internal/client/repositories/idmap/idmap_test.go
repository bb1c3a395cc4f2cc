package idmap

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/finkeeper/internal/client/migrations"
	"github.com/dmitrijs2005/finkeeper/internal/client/repositories/filedb"
	"github.com/dmitrijs2005/finkeeper/internal/common"
	"github.com/dmitrijs2005/finkeeper/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func backends(t *testing.T) map[string]Repository {
	t.Helper()
	ctx := context.Background()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.RunMigrations(ctx, db))

	fdb, err := filedb.Open(ctx, filepath.Join(t.TempDir(), "store.json"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fdb.Close() })

	return map[string]Repository{
		"sqlite": NewSQLiteRepository(db, timex.SystemClock{}),
		"file":   NewFileRepository(fdb),
	}
}

func TestMap_IsIdempotent(t *testing.T) {
	for name, r := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, r.Map(ctx, "L1", "S1"))
			require.NoError(t, r.Map(ctx, "L1", "S1"))

			got, err := r.Resolve(ctx, "L1")
			require.NoError(t, err)
			assert.Equal(t, "S1", got)

			local, err := r.ResolveLocal(ctx, "S1")
			require.NoError(t, err)
			assert.Equal(t, "L1", local)
		})
	}
}

func TestMap_RemapFailsLoudly(t *testing.T) {
	for name, r := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, r.Map(ctx, "L1", "S1"))

			err := r.Map(ctx, "L1", "S2")
			require.ErrorIs(t, err, common.ErrMappingConflict)

			// server ids are never reused across local ids
			err = r.Map(ctx, "L2", "S1")
			require.ErrorIs(t, err, common.ErrMappingConflict)

			err = r.Map(ctx, "L3", "")
			require.ErrorIs(t, err, common.ErrMappingConflict)

			got, err := r.Resolve(ctx, "L1")
			require.NoError(t, err)
			assert.Equal(t, "S1", got, "original mapping is kept")

			got, err = r.Resolve(ctx, "L2")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestResolve_Unmapped(t *testing.T) {
	for name, r := range backends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), "nope")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}
