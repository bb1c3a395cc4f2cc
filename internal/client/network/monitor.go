// Package network tracks server reachability and notifies subscribers about
// online/offline transitions.
package network

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/finkeeper/internal/logging"
)

// Pinger checks the remote side; a nil error means reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type listener struct {
	id int
	fn func(online bool)
}

// Monitor holds the debounced connectivity state.
type Monitor struct {
	logger   logging.Logger
	debounce time.Duration

	mu        sync.Mutex
	online    bool
	gen       uint64
	timer     *time.Timer
	target    bool // state the armed timer will publish
	nextID    int
	listeners []listener
}

// NewMonitor creates a monitor with the given initial state. A transition is
// published only after the new state has held for debounce.
func NewMonitor(logger logging.Logger, debounce time.Duration, initial bool) *Monitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Monitor{
		logger:   logger.With("module", "network"),
		debounce: debounce,
		online:   initial,
	}
}

func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnChange registers fn for transitions and returns a function removing it.
func (m *Monitor) OnChange(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, listener{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, l := range m.listeners {
				if l.id == id {
					m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// SetOnline reports an observed state. A report reverting to the published
// state cancels any pending transition; repeating the pending state leaves
// its timer running.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.timer != nil && online == m.target && online != m.online {
		m.mu.Unlock()
		return
	}
	m.gen++
	gen := m.gen
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if online == m.online {
		m.mu.Unlock()
		return
	}
	if m.debounce <= 0 {
		m.mu.Unlock()
		m.commit(gen, online)
		return
	}
	m.target = online
	m.timer = time.AfterFunc(m.debounce, func() { m.commit(gen, online) })
	m.mu.Unlock()
}

func (m *Monitor) commit(gen uint64, online bool) {
	m.mu.Lock()
	if gen != m.gen || online == m.online {
		m.mu.Unlock()
		return
	}
	m.online = online
	m.timer = nil
	ls := make([]listener, len(m.listeners))
	copy(ls, m.listeners)
	m.mu.Unlock()

	m.logger.Info(context.Background(), "connectivity changed", "online", online)
	for _, l := range ls {
		m.notify(l, online)
	}
}

func (m *Monitor) notify(l listener, online bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error(context.Background(), "connectivity listener panicked", "listener", l.id, "panic", r)
		}
	}()
	l.fn(online)
}

// Run pings p immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, p Pinger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.check(ctx, p, interval)
	for {
		select {
		case <-ticker.C:
			m.check(ctx, p, interval)
		case <-ctx.Done():
			m.mu.Lock()
			m.gen++
			if m.timer != nil {
				m.timer.Stop()
				m.timer = nil
			}
			m.mu.Unlock()
			return
		}
	}
}

func (m *Monitor) check(ctx context.Context, p Pinger, timeout time.Duration) {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	err := p.Ping(pctx)
	cancel()

	if ctx.Err() != nil {
		return
	}
	if err != nil {
		m.logger.Debug(ctx, "ping failed", "error", err)
	}
	m.SetOnline(err == nil)
}
