package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/finkeeper/internal/client/migrations"
	"github.com/dmitrijs2005/finkeeper/internal/client/models"
	"github.com/dmitrijs2005/finkeeper/internal/client/repositories/filedb"
	"github.com/dmitrijs2005/finkeeper/internal/common"
	"github.com/dmitrijs2005/finkeeper/internal/shared"
	"github.com/dmitrijs2005/finkeeper/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

type factory func(t *testing.T, clock timex.Clock) Repository

func sqliteFactory(t *testing.T, clock timex.Clock) Repository {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.RunMigrations(context.Background(), db))
	return NewSQLiteRepository(db, clock)
}

func fileFactory(t *testing.T, clock timex.Clock) Repository {
	t.Helper()
	db, err := filedb.Open(context.Background(), filepath.Join(t.TempDir(), "store.json"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewFileRepository(db, clock)
}

func forEachBackend(t *testing.T, fn func(t *testing.T, r Repository, clock *timex.FixedClock)) {
	for name, f := range map[string]factory{"sqlite": sqliteFactory, "file": fileFactory} {
		t.Run(name, func(t *testing.T) {
			clock := &timex.FixedClock{T: time.UnixMilli(1_000)}
			fn(t, f(t, clock), clock)
		})
	}
}

func account(id string, order *int) *models.Record {
	return &models.Record{ID: id, Resource: shared.ResourceAccount, Order: order, Data: json.RawMessage(`{"name":"` + id + `"}`)}
}

func orders(recs []*models.Record) []int {
	out := make([]int, len(recs))
	for i, r := range recs {
		out[i] = -1
		if r.Order != nil {
			out[i] = *r.Order
		}
	}
	return out
}

func recIDs(recs []*models.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestSave_UpdatedAtIsMonotonic(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repository, clock *timex.FixedClock) {
		ctx := context.Background()

		rec := account("L1", models.IntPtr(0))
		require.NoError(t, r.Save(ctx, rec))
		assert.Equal(t, int64(1_000), rec.UpdatedAt)
		assert.False(t, rec.Synced)

		// same clock reading: must still move forward
		require.NoError(t, r.Save(ctx, rec))
		assert.Equal(t, int64(1_001), rec.UpdatedAt)

		// clock went backwards
		clock.T = time.UnixMilli(10)
		require.NoError(t, r.Save(ctx, rec))
		assert.Equal(t, int64(1_002), rec.UpdatedAt)

		// caller-supplied timestamp ahead of the clock is kept
		rec.UpdatedAt = 5_000
		require.NoError(t, r.Save(ctx, rec))
		assert.Equal(t, int64(5_000), rec.UpdatedAt)

		got, err := r.GetByID(ctx, "L1")
		require.NoError(t, err)
		assert.Equal(t, int64(5_000), got.UpdatedAt)
		assert.JSONEq(t, `{"name":"L1"}`, string(got.Data))
	})
}

func TestSave_MarksUnsyncedEvenIfCallerSaysSynced(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repository, clock *timex.FixedClock) {
		ctx := context.Background()
		rec := account("L1", nil)
		rec.Synced = true
		require.NoError(t, r.Save(ctx, rec))

		got, err := r.GetByID(ctx, "L1")
		require.NoError(t, err)
		assert.False(t, got.Synced)
	})
}

func TestGetByID_MissingReturnsNilNil(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repository, clock *timex.FixedClock) {
		got, err := r.GetByID(context.Background(), "absent")
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = r.GetByServerID(context.Background(), "absent")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestPut_StoresVerbatim(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repository, clock *timex.FixedClock) {
		ctx := context.Background()
		rec := account("L1", models.IntPtr(3))
		rec.ServerID = "S1"
		rec.UpdatedAt = 42
		rec.ServerUpdatedAt = models.Int64Ptr(42)
		rec.Synced = true
		require.NoError(t, r.Put(ctx, rec))

		got, err := r.GetByServerID(ctx, "S1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, rec, got)
	})
}

func TestGetAll_OrderingAndTombstones(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repository, clock *timex.FixedClock) {
		ctx := context.Background()

		require.NoError(t, r.Put(ctx, &models.Record{ID: "u-old", Resource: shared.ResourceAccount, UpdatedAt: 10}))
		require.NoError(t, r.Put(ctx, &models.Record{ID: "o1", Resource: shared.ResourceAccount, Order: models.IntPtr(1), UpdatedAt: 1}))
		require.NoError(t, r.Put(ctx, &models.Record{ID: "u-new", Resource: shared.ResourceAccount, UpdatedAt: 30}))
		require.NoError(t, r.Put(ctx, &models.Record{ID: "o0", Resource: shared.ResourceAccount, Order: models.IntPtr(0), UpdatedAt: 1}))
		require.NoError(t, r.Put(ctx, &models.Record{ID: "dead", Resource: shared.ResourceAccount, UpdatedAt: 99, IsDeleted: true}))
		require.NoError(t, r.Put(ctx, &models.Record{ID: "cat", Resource: shared.ResourceCategory, UpdatedAt: 1}))

		live, err := r.GetAll(ctx, shared.ResourceAccount, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"o0", "o1", "u-new", "u-old"}, recIDs(live))

		all, err := r.GetAll(ctx, shared.ResourceAccount, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"o0", "o1", "dead", "u-new", "u-old"}, recIDs(all))
	})
}

func TestSoftDelete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repository, clock *timex.FixedClock) {
		ctx := context.Background()
		rec := account("L1", models.IntPtr(0))
		require.NoError(t, r.Save(ctx, rec))

		del, err := r.SoftDelete(ctx, "L1")
		require.NoError(t, err)
		assert.True(t, del.IsDeleted)
		assert.Nil(t, del.Order)
		assert.Greater(t, del.UpdatedAt, rec.UpdatedAt)

		live, err := r.GetAll(ctx, shared.ResourceAccount, false)
		require.NoError(t, err)
		assert.Empty(t, live)

		_, err = r.SoftDelete(ctx, "absent")
		require.ErrorIs(t, err, common.ErrorNotFound)

		require.NoError(t, r.Purge(ctx, "L1"))
		got, err := r.GetByID(ctx, "L1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestReassignOrder_ContiguousAndScoped(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repository, clock *timex.FixedClock) {
		ctx := context.Background()
		for i, id := range []string{"a", "b", "c"} {
			rec := account(id, models.IntPtr(i))
			require.NoError(t, r.Save(ctx, rec))
		}
		cat := &models.Record{ID: "cat", Resource: shared.ResourceCategory, Order: models.IntPtr(7), UpdatedAt: 1, Synced: true}
		require.NoError(t, r.Put(ctx, cat))

		clock.Advance(time.Second)
		changed, err := r.ReassignOrder(ctx, shared.ResourceAccount, []string{"c", "b", "a"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"c", "a"}, recIDs(changed), "b kept its position")
		for _, rec := range changed {
			assert.False(t, rec.Synced)
			assert.Equal(t, int64(2_000), rec.UpdatedAt)
		}

		live, err := r.GetAll(ctx, shared.ResourceAccount, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "b", "a"}, recIDs(live))
		assert.Equal(t, []int{0, 1, 2}, orders(live))

		gotCat, err := r.GetByID(ctx, "cat")
		require.NoError(t, err)
		assert.Equal(t, cat, gotCat)
	})
}

func TestReassignOrder_RejectsBadInput(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repository, clock *timex.FixedClock) {
		ctx := context.Background()
		require.NoError(t, r.Save(ctx, account("a", models.IntPtr(0))))
		require.NoError(t, r.Save(ctx, account("b", models.IntPtr(1))))

		_, err := r.ReassignOrder(ctx, shared.ResourceAccount, []string{"a", "a"})
		require.ErrorIs(t, err, common.ErrInvalidOrder)

		_, err = r.ReassignOrder(ctx, shared.ResourceAccount, []string{"a", "zzz"})
		require.ErrorIs(t, err, common.ErrInvalidOrder)

		_, err = r.ReassignOrder(ctx, shared.ResourceCategory, []string{"a"})
		require.ErrorIs(t, err, common.ErrInvalidOrder)

		_, err = r.ReassignOrder(ctx, shared.ResourceAccount, []string{"b"})
		require.ErrorIs(t, err, common.ErrInvalidOrder)
		assert.Contains(t, err.Error(), `["a"]`)

		live, err := r.GetAll(ctx, shared.ResourceAccount, false)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1}, orders(live), "nothing written on failure")
	})
}

func TestListUnsyncedAndClear(t *testing.T) {
	forEachBackend(t, func(t *testing.T, r Repository, clock *timex.FixedClock) {
		ctx := context.Background()
		require.NoError(t, r.Save(ctx, account("a", nil)))
		require.NoError(t, r.Put(ctx, &models.Record{ID: "s", Resource: shared.ResourceAccount, UpdatedAt: 1, Synced: true}))

		un, err := r.ListUnsynced(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, recIDs(un))

		require.NoError(t, r.Clear(ctx))
		all, err := r.GetAll(ctx, shared.ResourceAccount, true)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestSQLite_SaveErrorPropagates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ioErr := errors.New("disk I/O error")
	mock.ExpectQuery("INSERT INTO records").WillReturnError(ioErr)

	r := NewSQLiteRepository(db, &timex.FixedClock{T: time.UnixMilli(1)})
	rec := account("L1", nil)
	err = r.Save(context.Background(), rec)
	require.ErrorIs(t, err, ioErr)
	assert.Zero(t, rec.UpdatedAt, "record must not look saved")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite_ReassignOrderRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cols := []string{"id", "server_id", "resource", "ord", "updated_at", "server_updated_at", "is_deleted", "synced", "data"}
	ioErr := errors.New("disk I/O error")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM records").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("a", nil, "account", int64(1), int64(10), nil, false, false, []byte(`{}`)).
			AddRow("b", nil, "account", int64(0), int64(10), nil, false, false, []byte(`{}`)))
	mock.ExpectQuery("UPDATE records").WillReturnError(ioErr)
	mock.ExpectRollback()

	r := NewSQLiteRepository(db, &timex.FixedClock{T: time.UnixMilli(1)})
	_, err = r.ReassignOrder(context.Background(), shared.ResourceAccount, []string{"a", "b"})
	require.ErrorIs(t, err, ioErr)
	require.NoError(t, mock.ExpectationsWereMet())
}
