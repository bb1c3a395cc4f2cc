// Package coordinator runs the pull-then-push sync cycle between the local
// store and the server.
//
// A cycle pulls changes since the watermark and merges them record by
// record, pushes the queued operations, applies the per-operation results and
// merges the server data returned with them, then advances the watermark.
// Only one cycle runs at a time. Transient failures leave the queue and the
// watermark untouched and schedule a retry with capped exponential backoff.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/finkeeper/internal/client/client"
	"github.com/dmitrijs2005/finkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/finkeeper/internal/client/storage"
	"github.com/dmitrijs2005/finkeeper/internal/common"
	"github.com/dmitrijs2005/finkeeper/internal/logging"
	"github.com/dmitrijs2005/finkeeper/internal/timex"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Connectivity is the part of the network monitor the coordinator uses.
type Connectivity interface {
	IsOnline() bool
	OnChange(fn func(online bool)) (unsubscribe func())
}

type Options struct {
	DeviceID      string
	SchemaVersion int

	// RequestTimeout bounds each network call.
	RequestTimeout time.Duration
	// SyncInterval enables periodic syncs in Start; zero disables them.
	SyncInterval time.Duration

	RetryBase time.Duration
	RetryMax  time.Duration

	// MutationInterval is the minimum spacing of syncs triggered by
	// NotifyLocalChange.
	MutationInterval time.Duration
}

func (o *Options) defaults() {
	if o.SchemaVersion == 0 {
		o.SchemaVersion = common.SchemaVersion
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 15 * time.Second
	}
	if o.RetryBase <= 0 {
		o.RetryBase = time.Second
	}
	if o.RetryMax <= 0 {
		o.RetryMax = 5 * time.Minute
	}
	if o.MutationInterval <= 0 {
		o.MutationInterval = 2 * time.Second
	}
}

type Coordinator struct {
	store  storage.Store
	client client.Client
	conn   Connectivity
	logger logging.Logger
	clock  timex.Clock
	opts   Options

	group   singleflight.Group
	busy    atomic.Bool
	state   atomic.Value
	last    atomic.Pointer[SyncResult]
	limiter *rate.Limiter

	kick  chan struct{}
	retry chan struct{}

	mu         sync.Mutex
	backoff    retry.Backoff
	retryTimer *time.Timer
	started    bool
}

func New(store storage.Store, c client.Client, conn Connectivity, logger logging.Logger, clock timex.Clock, opts Options) *Coordinator {
	opts.defaults()
	if logger == nil {
		logger = logging.NewNop()
	}
	if clock == nil {
		clock = timex.SystemClock{}
	}
	co := &Coordinator{
		store:   store,
		client:  c,
		conn:    conn,
		logger:  logger.With("module", "sync"),
		clock:   clock,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(opts.MutationInterval), 1),
		kick:    make(chan struct{}, 1),
		retry:   make(chan struct{}, 1),
	}
	co.state.Store(StateIdle)
	co.backoff = co.newBackoff()
	return co
}

func (c *Coordinator) newBackoff() retry.Backoff {
	return retry.WithCappedDuration(c.opts.RetryMax, retry.NewExponential(c.opts.RetryBase))
}

func (c *Coordinator) State() State {
	return c.state.Load().(State)
}

func (c *Coordinator) setState(s State) {
	c.state.Store(s)
}

// LastResult returns the result of the last completed cycle, nil before the
// first one.
func (c *Coordinator) LastResult() *SyncResult {
	return c.last.Load()
}

// Sync runs one cycle. While a cycle is in flight, force=false returns
// StatusSkipped without I/O and force=true waits for the running cycle and
// returns its result. Offline returns StatusOffline and ErrOffline.
//
// The returned error is non-nil when the cycle failed or when the server
// rejected operations; rejections are combined with multierr and each one
// is a *RejectedError.
func (c *Coordinator) Sync(ctx context.Context, force bool) (*SyncResult, error) {
	if !c.conn.IsOnline() {
		return &SyncResult{Status: StatusOffline, Err: ErrOffline}, ErrOffline
	}
	if !force && c.busy.Load() {
		c.logger.Debug(ctx, "sync skipped, cycle in flight")
		return &SyncResult{Status: StatusSkipped}, nil
	}

	ch := c.group.DoChan("sync", func() (interface{}, error) {
		c.busy.Store(true)
		defer c.busy.Store(false)
		res := c.run(ctx)
		return res, res.Err
	})

	select {
	case r := <-ch:
		return r.Val.(*SyncResult), r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Refresh forgets the watermark and runs a forced cycle, which pulls a full
// snapshot and drops synced records the server no longer has.
func (c *Coordinator) Refresh(ctx context.Context) (*SyncResult, error) {
	if c.busy.Load() {
		return nil, ErrSyncInProgress
	}
	if !c.conn.IsOnline() {
		return &SyncResult{Status: StatusOffline, Err: ErrOffline}, ErrOffline
	}
	if err := metadata.ResetWatermark(ctx, c.store.Repos().Metadata); err != nil {
		return nil, err
	}
	return c.Sync(ctx, true)
}

func (c *Coordinator) run(ctx context.Context) *SyncResult {
	res := &SyncResult{StartedAt: c.clock.Now()}

	err := c.cycle(ctx, res)
	res.FinishedAt = c.clock.Now()

	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		c.setState(StateError)
		if isTransient(err) && ctx.Err() == nil {
			res.NextRetryIn = c.scheduleRetry()
			c.logger.Warn(ctx, "sync failed, will retry", "error", err, "retryIn", res.NextRetryIn)
		} else {
			c.logger.Error(ctx, "sync failed", "error", err)
		}
		c.setState(StateIdle)
		c.last.Store(res)
		return res
	}

	res.Status = StatusOK
	for _, r := range res.Rejected {
		res.Err = multierr.Append(res.Err, r)
	}
	c.resetBackoff()
	c.setState(StateIdle)
	c.logger.Info(ctx, "sync finished",
		"pulled", res.Pulled, "pushed", res.Pushed, "merged", res.Merged,
		"accepted", len(res.Accepted), "conflicts", len(res.Conflicts),
		"rejected", len(res.Rejected), "retried", len(res.Retried),
		"watermark", res.Watermark)
	c.last.Store(res)
	return res
}

func isTransient(err error) bool {
	return errors.Is(err, client.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded)
}

func (c *Coordinator) resetBackoff() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backoff = c.newBackoff()
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

// scheduleRetry arms the retry timer when Start is running and returns the
// delay either way.
func (c *Coordinator) scheduleRetry() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, _ := c.backoff.Next()
	if !c.started {
		return d
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	c.retryTimer = time.AfterFunc(d, func() {
		select {
		case c.retry <- struct{}{}:
		default:
		}
	})
	return d
}

// NotifyLocalChange asks for a background sync after a local mutation.
// Requests are coalesced and spaced by MutationInterval.
func (c *Coordinator) NotifyLocalChange() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// Start drives automatic syncs until ctx is cancelled: one sync per
// offline-to-online transition, the periodic timer, scheduled retries and
// local change notifications. It blocks.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()

	reconnect := make(chan struct{}, 1)
	unsubscribe := c.conn.OnChange(func(online bool) {
		if !online {
			return
		}
		select {
		case reconnect <- struct{}{}:
		default:
		}
	})

	var tick <-chan time.Time
	if c.opts.SyncInterval > 0 {
		t := time.NewTicker(c.opts.SyncInterval)
		defer t.Stop()
		tick = t.C
	}

	defer func() {
		unsubscribe()
		c.mu.Lock()
		c.started = false
		if c.retryTimer != nil {
			c.retryTimer.Stop()
			c.retryTimer = nil
		}
		c.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-reconnect:
			c.trigger(ctx, "reconnect")
		case <-tick:
			c.trigger(ctx, "interval")
		case <-c.retry:
			c.trigger(ctx, "retry")
		case <-c.kick:
			if err := c.limiter.Wait(ctx); err != nil {
				return
			}
			c.trigger(ctx, "local change")
		}
	}
}

func (c *Coordinator) trigger(ctx context.Context, reason string) {
	res, err := c.Sync(ctx, false)
	if errors.Is(err, ErrOffline) {
		c.logger.Debug(ctx, "sync not started, offline", "trigger", reason)
		return
	}
	if res != nil {
		c.logger.Debug(ctx, "sync triggered", "trigger", reason, "status", res.Status)
	}
}
