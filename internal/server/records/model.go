package records

import (
	"encoding/json"

	"github.com/dmitrijs2005/finkeeper/internal/shared"
)

// Entry is the server copy of a synced record.
type Entry struct {
	ID       string
	Resource shared.Resource
	Order    *int
	// UpdatedAt is the client logical timestamp used for last-write-wins.
	UpdatedAt int64
	// ChangedAt is the server clock value of the last write; pulls filter on it.
	ChangedAt int64
	IsDeleted bool
	Data      json.RawMessage

	// CreatedBy and CreatedAs name the device and its local record id that
	// created the entry.
	CreatedBy string
	CreatedAs string
}

func (e *Entry) clone() *Entry {
	c := *e
	if e.Order != nil {
		o := *e.Order
		c.Order = &o
	}
	if e.Data != nil {
		c.Data = append(json.RawMessage(nil), e.Data...)
	}
	return &c
}

// Wire renders the entry for pull and push responses to deviceID. The
// creating device gets its own local id back.
func (e *Entry) Wire(deviceID string) shared.WireRecord {
	w := shared.WireRecord{
		ID:        e.ID,
		Order:     e.Order,
		UpdatedAt: e.UpdatedAt,
		IsDeleted: e.IsDeleted,
		Data:      e.Data,
	}
	if deviceID != "" && deviceID == e.CreatedBy {
		w.LocalID = e.CreatedAs
	}
	return w
}
