// Package common contains shared constants and sentinel errors used across
// FinKeeper components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// DeviceIDHeaderName carries the calling device id when auth is disabled.
const DeviceIDHeaderName = "x-device-id"

// SchemaVersion is the record schema version the client sends on pull.
const SchemaVersion = 1
