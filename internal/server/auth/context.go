package auth

import "context"

type ctxKey string

const deviceIDKey ctxKey = "deviceID"

// WithDeviceID stores the authenticated device id in ctx.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDKey, deviceID)
}

// DeviceIDFromContext returns the device id stored by WithDeviceID, or "".
func DeviceIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(deviceIDKey).(string)
	return v
}
