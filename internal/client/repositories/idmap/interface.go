// Package idmap is the ID Mapper: a permanent, append-only translation from
// locally generated record ids to server-assigned ids.
package idmap

import "context"

type Repository interface {
	// Map records localID -> serverID. Repeating an existing pair is a no-op;
	// any other collision fails with common.ErrMappingConflict.
	Map(ctx context.Context, localID, serverID string) error
	// Resolve returns the server id for localID, "" when unmapped.
	Resolve(ctx context.Context, localID string) (string, error)
	// ResolveLocal returns the local id bound to serverID, "" when unmapped.
	ResolveLocal(ctx context.Context, serverID string) (string, error)
}
