package metadata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	KeyLastPulledAt = "last_pulled_at"
	KeyLastSyncedAt = "last_synced_at"
	KeyDeviceID     = "device_id"
)

// ErrCorrupt marks a stored value that does not parse.
var ErrCorrupt = errors.New("corrupt metadata")

func getInt(ctx context.Context, r Repository, key string) (int64, error) {
	b, err := r.Get(ctx, key)
	if err != nil || b == nil {
		return 0, err
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrCorrupt, key, b)
	}
	return v, nil
}

func setInt(ctx context.Context, r Repository, key string, v int64) error {
	return r.Set(ctx, key, []byte(strconv.FormatInt(v, 10)))
}

// LastPulledAt returns the sync watermark, 0 when never synced.
func LastPulledAt(ctx context.Context, r Repository) (int64, error) {
	return getInt(ctx, r, KeyLastPulledAt)
}

// SetLastPulledAt advances the watermark. A negative value is refused.
func SetLastPulledAt(ctx context.Context, r Repository, ts int64) error {
	if ts < 0 {
		return fmt.Errorf("negative watermark %d", ts)
	}
	return setInt(ctx, r, KeyLastPulledAt, ts)
}

// ResetWatermark forgets the watermark so the next pull is a full snapshot.
func ResetWatermark(ctx context.Context, r Repository) error {
	return r.Delete(ctx, KeyLastPulledAt)
}

// SyncMark is what the store remembers about its last successful cycle.
type SyncMark struct {
	// Watermark is the server timestamp the next pull starts from.
	Watermark int64
	// SyncedAt is the local time the cycle finished; zero when never synced.
	SyncedAt time.Time
}

// Never reports whether the store has never completed a sync.
func (m SyncMark) Never() bool { return m.SyncedAt.IsZero() }

// RecordSync stores the outcome of a successful cycle.
func RecordSync(ctx context.Context, r Repository, m SyncMark) error {
	if err := SetLastPulledAt(ctx, r, m.Watermark); err != nil {
		return err
	}
	return setInt(ctx, r, KeyLastSyncedAt, m.SyncedAt.UnixMilli())
}

// LoadSyncMark returns the last recorded SyncMark. A store that was never
// synced yields the zero value.
func LoadSyncMark(ctx context.Context, r Repository) (SyncMark, error) {
	wm, err := LastPulledAt(ctx, r)
	if err != nil {
		return SyncMark{}, err
	}
	ms, err := getInt(ctx, r, KeyLastSyncedAt)
	if err != nil {
		return SyncMark{}, err
	}
	m := SyncMark{Watermark: wm}
	if ms > 0 {
		m.SyncedAt = time.UnixMilli(ms)
	}
	return m, nil
}

// DeviceID returns the persisted device id. When none is stored, preferred
// (or a fresh UUID if preferred is empty) is stored and returned.
func DeviceID(ctx context.Context, r Repository, preferred string) (string, error) {
	b, err := r.Get(ctx, KeyDeviceID)
	if err != nil {
		return "", err
	}
	if len(b) > 0 && (preferred == "" || string(b) == preferred) {
		return string(b), nil
	}
	id := preferred
	if id == "" {
		id = uuid.NewString()
	}
	if err := r.Set(ctx, KeyDeviceID, []byte(id)); err != nil {
		return "", err
	}
	return id, nil
}
