package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/finkeeper/internal/shared"
	"github.com/dmitrijs2005/finkeeper/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Repository = (*PostgresRepository)(nil)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var entryCols = []string{"id", "resource", "ord", "updated_at", "changed_at", "is_deleted", "data", "created_by", "created_as"}

func TestPostgresGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, resource, ord, .* FROM records WHERE id = \$1`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(entryCols).
			AddRow("r1", "account", int64(2), int64(10), int64(20), false, []byte(`{"name":"Cash"}`), "dev-1", "L1"))

	e, err := repo.Get(context.Background(), "r1")
	require.NoError(t, err)
	require.NotNil(t, e)

	assert.Equal(t, "r1", e.ID)
	assert.Equal(t, shared.ResourceAccount, e.Resource)
	require.NotNil(t, e.Order)
	assert.Equal(t, 2, *e.Order)
	assert.Equal(t, int64(10), e.UpdatedAt)
	assert.Equal(t, int64(20), e.ChangedAt)
	assert.JSONEq(t, `{"name":"Cash"}`, string(e.Data))
	assert.Equal(t, "dev-1", e.CreatedBy)
	assert.Equal(t, "L1", e.CreatedAs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGet_NullColumns(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM records WHERE id = \$1`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(entryCols).
			AddRow("r1", "category", nil, int64(1), int64(2), true, nil, "", ""))

	e, err := repo.Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Nil(t, e.Order)
	assert.Nil(t, e.Data)
	assert.True(t, e.IsDeleted)
}

func TestPostgresGet_MissingIsNil(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM records WHERE id = \$1`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(entryCols))

	e, err := repo.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestPostgresGet_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM records WHERE id = \$1`).
		WithArgs("r1").
		WillReturnError(errors.New("db is down"))

	_, err := repo.Get(context.Background(), "r1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db is down")
}

func TestPostgresPut_Upserts(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	order := 3
	mock.ExpectExec(`INSERT INTO records .* ON CONFLICT \(id\) DO UPDATE SET .*changed_at = EXCLUDED\.changed_at`).
		WithArgs("r1", "account", int64(3), int64(10), int64(20), false, []byte(`{"name":"Cash"}`), "dev-1", "L1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Put(context.Background(), &Entry{
		ID:        "r1",
		Resource:  shared.ResourceAccount,
		Order:     &order,
		UpdatedAt: 10,
		ChangedAt: 20,
		Data:      json.RawMessage(`{"name":"Cash"}`),
		CreatedBy: "dev-1",
		CreatedAs: "L1",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPut_TombstoneWithoutOrder(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO records`).
		WithArgs("r1", "transaction", nil, int64(10), int64(20), true, sqlmock.AnyArg(), "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Put(context.Background(), &Entry{
		ID: "r1", Resource: shared.ResourceTransaction, UpdatedAt: 10, ChangedAt: 20, IsDeleted: true,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPut_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO records`).WillReturnError(errors.New("db is down"))

	err := repo.Put(context.Background(), &Entry{ID: "r1", Resource: shared.ResourceAccount})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error performing sql request")
}

func TestPostgresChangedSince_OrdersByChangeThenID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM records\s+WHERE changed_at > \$1 AND changed_at <= \$2\s+ORDER BY changed_at, id`).
		WithArgs(int64(5), int64(50)).
		WillReturnRows(sqlmock.NewRows(entryCols).
			AddRow("a", "account", int64(1), int64(1), int64(10), false, []byte(`{}`), "", "").
			AddRow("b", "account", int64(2), int64(1), int64(10), false, []byte(`{}`), "", ""))

	out, err := repo.ChangedSince(context.Background(), 5, 50)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresChangedSince_ScanError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM records`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a"))

	_, err := repo.ChangedSince(context.Background(), 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error scanning row")
}

func TestPostgresChangedSince_RowsError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM records`).
		WillReturnRows(sqlmock.NewRows(entryCols).
			AddRow("a", "account", nil, int64(1), int64(2), false, nil, "", "").
			RowError(0, errors.New("broken row")))

	_, err := repo.ChangedSince(context.Background(), 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken row")
}

func TestPostgresCreates(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id FROM creates WHERE device_id = \$1 AND record_id = \$2`).
		WithArgs("dev-1", "L1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`INSERT INTO creates .* ON CONFLICT \(device_id, record_id\) DO UPDATE`).
		WithArgs("dev-1", "L1", "S1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT id FROM creates`).
		WithArgs("dev-1", "L1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("S1"))

	ctx := context.Background()
	id, err := repo.CreatedBy(ctx, "dev-1", "L1")
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, repo.RememberCreate(ctx, "dev-1", "L1", "S1"))

	id, err = repo.CreatedBy(ctx, "dev-1", "L1")
	require.NoError(t, err)
	assert.Equal(t, "S1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreates_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id FROM creates`).WillReturnError(errors.New("db is down"))
	mock.ExpectExec(`INSERT INTO creates`).WillReturnError(errors.New("db is down"))

	_, err := repo.CreatedBy(context.Background(), "dev-1", "L1")
	require.Error(t, err)
	require.Error(t, repo.RememberCreate(context.Background(), "dev-1", "L1", "S1"))
}

func TestService_CreateOverPostgres(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id FROM creates`).
		WithArgs("dev-1", "L1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`INSERT INTO records`).
		WithArgs(sqlmock.AnyArg(), "account", nil, int64(5), sqlmock.AnyArg(), false, sqlmock.AnyArg(), "dev-1", "L1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO creates`).
		WithArgs("dev-1", "L1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM records\s+WHERE changed_at >`).
		WillReturnRows(sqlmock.NewRows(entryCols))

	s := NewService(repo, &timex.FixedClock{T: time.UnixMilli(1_000)}, nil)
	resp, err := s.Push(context.Background(), "dev-1", &shared.PushRequest{
		Operations: []shared.WireOperation{accountOp("op-1", "L1", shared.OpCreate, 5, "Cash")},
	})
	require.NoError(t, err)
	require.Len(t, resp.Accepted, 1)
	assert.NotEmpty(t, resp.Accepted[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
