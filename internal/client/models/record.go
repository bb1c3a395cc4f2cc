// Package models defines client-side data models of the sync engine.
package models

import (
	"encoding/json"
	"sort"

	"github.com/dmitrijs2005/finkeeper/internal/shared"
)

// Record is the local sync envelope around a resource payload.
type Record struct {
	// ID is the stable local identifier assigned at creation.
	ID string `json:"id"`
	// ServerID is set once the server has accepted the record.
	ServerID string `json:"serverId,omitempty"`

	Resource shared.Resource `json:"resource"`

	// Order is the display position within Resource; nil means unordered.
	Order *int `json:"order,omitempty"`

	// UpdatedAt is the logical timestamp (Unix ms) of the last local change.
	UpdatedAt int64 `json:"updatedAt"`
	// ServerUpdatedAt is the last timestamp known to be on the server.
	ServerUpdatedAt *int64 `json:"serverUpdatedAt,omitempty"`

	IsDeleted bool `json:"isDeleted"`
	Synced    bool `json:"synced"`

	Data json.RawMessage `json:"data,omitempty"`
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Order != nil {
		o := *r.Order
		c.Order = &o
	}
	if r.ServerUpdatedAt != nil {
		s := *r.ServerUpdatedAt
		c.ServerUpdatedAt = &s
	}
	if r.Data != nil {
		c.Data = append(json.RawMessage(nil), r.Data...)
	}
	return &c
}

// ConfirmedAt reports the server timestamp, 0 when never confirmed.
func (r *Record) ConfirmedAt() int64 {
	if r.ServerUpdatedAt == nil {
		return 0
	}
	return *r.ServerUpdatedAt
}

// ChangedSinceConfirm reports a local edit newer than the server copy.
func (r *Record) ChangedSinceConfirm() bool {
	return r.ServerUpdatedAt == nil || r.UpdatedAt > *r.ServerUpdatedAt
}

// ToWire converts a record for the wire using its server id.
func (r *Record) ToWire() shared.WireRecord {
	return shared.WireRecord{
		ID:        r.ServerID,
		Order:     r.Order,
		UpdatedAt: r.UpdatedAt,
		IsDeleted: r.IsDeleted,
		Data:      r.Data,
	}
}

// FromWire builds a server-side view of a record. The local ID is left
// empty; callers fill it from the id map.
func FromWire(res shared.Resource, w shared.WireRecord) *Record {
	ts := w.UpdatedAt
	return &Record{
		ServerID:        w.ID,
		Resource:        res,
		Order:           w.Order,
		UpdatedAt:       w.UpdatedAt,
		ServerUpdatedAt: &ts,
		IsDeleted:       w.IsDeleted,
		Synced:          true,
		Data:            w.Data,
	}
}

func IntPtr(v int) *int       { return &v }
func Int64Ptr(v int64) *int64 { return &v }

// SortRecords orders by Order ascending with unordered records last, then by
// UpdatedAt descending, then by ID.
func SortRecords(recs []*Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return Less(recs[i], recs[j])
	})
}

func Less(a, b *Record) bool {
	switch {
	case a.Order != nil && b.Order == nil:
		return true
	case a.Order == nil && b.Order != nil:
		return false
	case a.Order != nil && b.Order != nil && *a.Order != *b.Order:
		return *a.Order < *b.Order
	}
	if a.UpdatedAt != b.UpdatedAt {
		return a.UpdatedAt > b.UpdatedAt
	}
	return a.ID < b.ID
}
