package timex

import (
	"sync"
	"time"
)

// Clock abstracts the wall clock so tests can pin logical timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// NowMillis returns the clock reading as Unix milliseconds, the unit used
// for updatedAt and the sync watermark.
func NowMillis(c Clock) int64 {
	return c.Now().UnixMilli()
}

// FixedClock always returns T. Advance moves it forward.
type FixedClock struct {
	mu sync.Mutex
	T  time.Time
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.T
}

func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.T = c.T.Add(d)
}
