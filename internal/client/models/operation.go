package models

import (
	"encoding/json"

	"github.com/dmitrijs2005/finkeeper/internal/shared"
	"github.com/oklog/ulid/v2"
)

// Operation is a queued mutation intent for one record.
type Operation struct {
	// Seq is the queue position; assigned on first enqueue, kept on coalesce.
	Seq int64 `json:"seq"`

	OperationID    string          `json:"operationId"`
	Type           shared.OpType   `json:"type"`
	Resource       shared.Resource `json:"resource"`
	RecordID       string          `json:"recordId"`
	Data           json.RawMessage `json:"data,omitempty"`
	LocalTimestamp int64           `json:"localTimestamp"`
	RetryCount     int             `json:"retryCount"`
	DeviceID       string          `json:"deviceId"`

	// Rollback is the record before the first queued mutation; nil when the
	// record did not exist.
	Rollback *Record `json:"rollback,omitempty"`
}

// NewOperation builds a queue entry for a mutation of rec at local time ts.
// Operation ids are ULIDs, so they sort by creation time.
func NewOperation(typ shared.OpType, rec *Record, deviceID string, ts int64) *Operation {
	return &Operation{
		OperationID:    ulid.Make().String(),
		Type:           typ,
		Resource:       rec.Resource,
		RecordID:       rec.ID,
		Data:           rec.Data,
		LocalTimestamp: ts,
		DeviceID:       deviceID,
	}
}

// PendingType is the operation type that re-asserts rec as it is now.
func PendingType(rec *Record) shared.OpType {
	switch {
	case rec.IsDeleted:
		return shared.OpDelete
	case rec.ServerID == "":
		return shared.OpCreate
	default:
		return shared.OpUpdate
	}
}

// Coalesce folds a newer intent for the same record into o. The original
// sequence, local timestamp and rollback snapshot are kept.
func (o *Operation) Coalesce(next *Operation) {
	o.Type = MergeOpTypes(o.Type, next.Type)
	o.OperationID = next.OperationID
	o.Data = next.Data
	o.DeviceID = next.DeviceID
	o.RetryCount = 0
}

// MergeOpTypes returns the single intent equivalent to prev followed by next.
func MergeOpTypes(prev, next shared.OpType) shared.OpType {
	switch {
	case next == shared.OpDelete:
		return shared.OpDelete
	case prev == shared.OpCreate:
		return shared.OpCreate
	case prev == shared.OpDelete:
		// update after delete re-creates the record
		return shared.OpCreate
	case next == shared.OpCreate:
		return shared.OpCreate
	default:
		return shared.OpUpdate
	}
}

// ToWire renders the operation with the record's current sync fields.
func (o *Operation) ToWire(rec *Record, serverID string) shared.WireOperation {
	w := shared.WireOperation{
		OperationID:    o.OperationID,
		Type:           o.Type,
		Resource:       o.Resource,
		RecordID:       o.RecordID,
		ServerID:       serverID,
		Data:           o.Data,
		LocalTimestamp: o.LocalTimestamp,
		RetryCount:     o.RetryCount,
		DeviceID:       o.DeviceID,
	}
	if rec != nil {
		w.Order = rec.Order
		w.UpdatedAt = rec.UpdatedAt
		if rec.Data != nil {
			w.Data = rec.Data
		}
	}
	return w
}
