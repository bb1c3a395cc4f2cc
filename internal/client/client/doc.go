// Package client talks to the FinKeeper sync server.
//
// # Overview
//
// The Client interface is the transport-agnostic contract used by the sync
// coordinator: Ping, Pull(lastPulledAt, schemaVersion) and Push(operations,
// lastPulledAt). Two implementations share one JSON schema:
//
//   - HTTPClient: GET /ping, GET /sync/pull, POST /sync/push, with an
//     optional bearer token.
//   - GRPCClient: finkeeper.sync.SyncService with the JSON bodies wrapped in
//     google.protobuf.BytesValue and the token in the access_token metadata.
//
// # Error Handling
//
// Failures map to sentinel errors matched with errors.Is: ErrUnavailable
// (transient, retry later), ErrUnauthorized and ErrBadRequest. Context
// cancellation is returned unchanged.
//
// All methods honor context cancellation and deadlines and are safe for
// concurrent use.
package client
