package models

import (
	"encoding/json"
	"testing"

	"github.com/dmitrijs2005/finkeeper/internal/shared"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(recs []*Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestSortRecords_OrderThenUpdatedAtDesc(t *testing.T) {
	recs := []*Record{
		{ID: "u-old", UpdatedAt: 10},
		{ID: "o1", Order: IntPtr(1), UpdatedAt: 1},
		{ID: "u-new", UpdatedAt: 30},
		{ID: "o0", Order: IntPtr(0), UpdatedAt: 1},
		{ID: "u-tie-b", UpdatedAt: 20},
		{ID: "u-tie-a", UpdatedAt: 20},
	}

	SortRecords(recs)

	want := []string{"o0", "o1", "u-new", "u-tie-a", "u-tie-b", "u-old"}
	if diff := cmp.Diff(want, ids(recs)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestClone_IsDeep(t *testing.T) {
	r := &Record{ID: "a", Order: IntPtr(2), ServerUpdatedAt: Int64Ptr(5), Data: json.RawMessage(`{"x":1}`)}
	c := r.Clone()

	*c.Order = 9
	*c.ServerUpdatedAt = 9
	c.Data[2] = 'y'

	assert.Equal(t, 2, *r.Order)
	assert.Equal(t, int64(5), *r.ServerUpdatedAt)
	assert.Equal(t, `{"x":1}`, string(r.Data))
	assert.Nil(t, (*Record)(nil).Clone())
}

func TestChangedSinceConfirm(t *testing.T) {
	assert.True(t, (&Record{UpdatedAt: 1}).ChangedSinceConfirm())
	assert.True(t, (&Record{UpdatedAt: 6, ServerUpdatedAt: Int64Ptr(5)}).ChangedSinceConfirm())
	assert.False(t, (&Record{UpdatedAt: 5, ServerUpdatedAt: Int64Ptr(5)}).ChangedSinceConfirm())
}

func TestFromWire_ToWire(t *testing.T) {
	w := shared.WireRecord{ID: "S1", Order: IntPtr(0), UpdatedAt: 42, Data: json.RawMessage(`{}`)}
	r := FromWire(shared.ResourceAccount, w)

	require.NotNil(t, r.ServerUpdatedAt)
	assert.Equal(t, int64(42), *r.ServerUpdatedAt)
	assert.True(t, r.Synced)
	assert.Empty(t, r.ID)
	assert.Equal(t, w, r.ToWire())
}

func TestMergeOpTypes(t *testing.T) {
	tests := []struct {
		prev, next, want shared.OpType
	}{
		{shared.OpCreate, shared.OpUpdate, shared.OpCreate},
		{shared.OpCreate, shared.OpDelete, shared.OpDelete},
		{shared.OpUpdate, shared.OpUpdate, shared.OpUpdate},
		{shared.OpUpdate, shared.OpDelete, shared.OpDelete},
		{shared.OpDelete, shared.OpUpdate, shared.OpCreate},
		{shared.OpDelete, shared.OpCreate, shared.OpCreate},
	}
	for _, tt := range tests {
		t.Run(string(tt.prev)+"+"+string(tt.next), func(t *testing.T) {
			assert.Equal(t, tt.want, MergeOpTypes(tt.prev, tt.next))
		})
	}
}

func TestOperation_Coalesce_KeepsOriginalPosition(t *testing.T) {
	snap := &Record{ID: "L1", UpdatedAt: 1}
	op := &Operation{Seq: 3, OperationID: "op1", Type: shared.OpCreate, LocalTimestamp: 100, RetryCount: 2, Rollback: snap, Data: json.RawMessage(`{"name":"a"}`)}
	op.Coalesce(&Operation{OperationID: "op2", Type: shared.OpUpdate, LocalTimestamp: 200, Data: json.RawMessage(`{"name":"b"}`)})

	assert.Equal(t, int64(3), op.Seq)
	assert.Equal(t, "op2", op.OperationID)
	assert.Equal(t, shared.OpCreate, op.Type)
	assert.Equal(t, int64(100), op.LocalTimestamp)
	assert.Equal(t, 0, op.RetryCount)
	assert.Same(t, snap, op.Rollback)
	assert.JSONEq(t, `{"name":"b"}`, string(op.Data))
}

func TestNewOperation(t *testing.T) {
	rec := &Record{ID: "L1", Resource: shared.ResourceAccount, Data: json.RawMessage(`{"name":"x"}`)}

	a := NewOperation(shared.OpCreate, rec, "dev", 42)
	b := NewOperation(shared.OpUpdate, rec, "dev", 43)

	assert.Len(t, a.OperationID, 26)
	assert.NotEqual(t, a.OperationID, b.OperationID)
	assert.Less(t, a.OperationID, b.OperationID, "ulids sort by creation time")
	assert.Equal(t, "L1", a.RecordID)
	assert.Equal(t, shared.ResourceAccount, a.Resource)
	assert.Equal(t, int64(42), a.LocalTimestamp)
	assert.Equal(t, "dev", a.DeviceID)
}

func TestPendingType(t *testing.T) {
	assert.Equal(t, shared.OpCreate, PendingType(&Record{}))
	assert.Equal(t, shared.OpUpdate, PendingType(&Record{ServerID: "S"}))
	assert.Equal(t, shared.OpDelete, PendingType(&Record{ServerID: "S", IsDeleted: true}))
}
