// Package resolver merges a local record with its server counterpart using
// whole-record last-write-wins on logical timestamps.
//
// Resolve is pure: it never mutates its inputs and returns the same result
// for the same arguments.
package resolver

import "github.com/dmitrijs2005/finkeeper/internal/client/models"

// Outcome says which side a Resolution came from.
type Outcome string

const (
	// KeepLocal: no server copy and the local record has unpushed changes.
	KeepLocal Outcome = "keep_local"
	// Drop: the record is gone on the server and locally nothing is pending.
	Drop Outcome = "drop"
	// KeepTombstone: a local delete outlives a stale live server copy.
	KeepTombstone Outcome = "keep_tombstone"
	// LocalWins: both exist and the local edit is strictly newer.
	LocalWins Outcome = "local_wins"
	// ServerWins: both exist and the server copy is newer or equally new.
	ServerWins Outcome = "server_wins"
	// Created: server record unknown locally; caller assigns a local id.
	Created Outcome = "created"
)

type Resolution struct {
	// Record is the merged record; nil for Drop.
	Record  *models.Record
	Outcome Outcome
}

// Resolve merges local (may be nil) with server (may be nil). Server records
// are expected to come from models.FromWire.
func Resolve(local, server *models.Record) Resolution {
	switch {
	case local == nil && server == nil:
		return Resolution{Outcome: Drop}
	case local == nil:
		return fromServer(server)
	case server == nil:
		return withoutServer(local)
	}

	if local.IsDeleted && !server.IsDeleted && server.UpdatedAt <= max(local.UpdatedAt, local.ConfirmedAt()) {
		return Resolution{Record: local.Clone(), Outcome: KeepTombstone}
	}

	if local.UpdatedAt > server.UpdatedAt {
		rec := local.Clone()
		rec.Synced = false
		if rec.ServerID == "" {
			rec.ServerID = server.ServerID
		}
		rec.ServerUpdatedAt = models.Int64Ptr(server.UpdatedAt)
		return Resolution{Record: rec, Outcome: LocalWins}
	}

	rec := server.Clone()
	rec.ID = local.ID
	rec.Resource = local.Resource
	if rec.ServerID == "" {
		rec.ServerID = local.ServerID
	}
	rec.Synced = true
	rec.ServerUpdatedAt = models.Int64Ptr(server.UpdatedAt)
	// a pending local reorder survives; a pending delete has no order
	if !local.Synced && !local.IsDeleted {
		rec.Order = local.Clone().Order
	}
	return Resolution{Record: rec, Outcome: ServerWins}
}

func fromServer(server *models.Record) Resolution {
	if server.IsDeleted {
		return Resolution{Outcome: Drop}
	}
	rec := server.Clone()
	rec.ID = ""
	rec.Synced = true
	rec.ServerUpdatedAt = models.Int64Ptr(server.UpdatedAt)
	return Resolution{Record: rec, Outcome: Created}
}

func withoutServer(local *models.Record) Resolution {
	if !local.Synced {
		return Resolution{Record: local.Clone(), Outcome: KeepLocal}
	}
	// synced yet edited after the last confirmation: a local re-creation
	if !local.IsDeleted && local.ChangedSinceConfirm() {
		rec := local.Clone()
		rec.Synced = false
		return Resolution{Record: rec, Outcome: KeepLocal}
	}
	return Resolution{Outcome: Drop}
}
