// Package shared holds the sync wire protocol and resource payloads used by
// both the client engine and the reference server.
//
// Records travel as WireRecord with the resource payload kept as raw JSON.
// Pull returns PullResponse; push sends PushRequest and receives
// PushResponse. All timestamps are logical Unix milliseconds.
package shared
