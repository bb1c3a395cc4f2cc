package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/dmitrijs2005/finkeeper/internal/client/client"
	"github.com/dmitrijs2005/finkeeper/internal/client/config"
	"github.com/dmitrijs2005/finkeeper/internal/client/coordinator"
	"github.com/dmitrijs2005/finkeeper/internal/client/network"
	"github.com/dmitrijs2005/finkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/finkeeper/internal/client/services"
	"github.com/dmitrijs2005/finkeeper/internal/client/storage"
	"github.com/dmitrijs2005/finkeeper/internal/filex"
	"github.com/dmitrijs2005/finkeeper/internal/logging"
	"github.com/dmitrijs2005/finkeeper/internal/timex"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// syncEngine is what the CLI needs from the coordinator besides the ledger.
type syncEngine interface {
	Start(ctx context.Context)
	State() coordinator.State
	LastResult() *coordinator.SyncResult
}

type App struct {
	config   *config.Config
	ledger   services.LedgerService
	engine   syncEngine
	monitor  *network.Monitor
	client   client.Client
	store    storage.Store
	logger   logging.Logger
	closers  []io.Closer
	deviceID string

	clock  timex.Clock
	reader *bufio.Reader
	out    io.Writer
	prompt bool

	mu   sync.Mutex
	mode Mode
}

// NewApp opens local storage and builds the sync stack for cfg.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	for _, p := range []string{c.LogFile, c.DataPath} {
		if err := filex.EnsureParentDir(p); err != nil {
			return nil, err
		}
	}

	fileLogger, logCloser := logging.NewFileLogger(logging.FileOptions{
		Filename:   c.LogFile,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Level:      slog.LevelInfo,
	})
	logger := fileLogger.With("device", c.DeviceID)
	clock := timex.SystemClock{}

	store, err := storage.Open(ctx, storage.Backend(c.StorageBackend), c.DataPath, clock)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("error initializing storage: %w", err)
	}

	deviceID, err := metadata.DeviceID(ctx, store.Repos().Metadata, c.DeviceID)
	if err != nil {
		store.Close()
		logCloser.Close()
		return nil, fmt.Errorf("error loading device id: %w", err)
	}

	apiClient, err := client.New(client.Transport(c.Transport), c.ServerEndpointAddr, c.AccessToken, deviceID)
	if err != nil {
		store.Close()
		logCloser.Close()
		return nil, err
	}

	monitor := network.NewMonitor(logger, c.DebounceWindow, false)
	coord := coordinator.New(store, apiClient, monitor, logger, clock, coordinator.Options{
		DeviceID:       deviceID,
		SchemaVersion:  c.SchemaVersion,
		RequestTimeout: c.RequestTimeout,
		SyncInterval:   c.SyncInterval,
		RetryBase:      c.RetryBase,
		RetryMax:       c.RetryMax,
	})

	a := &App{
		config:   c,
		ledger:   services.NewLedgerService(store, coord, deviceID, logger),
		engine:   coord,
		monitor:  monitor,
		client:   apiClient,
		store:    store,
		logger:   logger,
		closers:  []io.Closer{apiClient, store, logCloser},
		deviceID: deviceID,
		clock:    clock,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		prompt:   interactive(),
		mode:     ModeOffline,
	}
	monitor.OnChange(func(online bool) {
		if online {
			a.setMode(ModeOnline)
		} else {
			a.setMode(ModeOffline)
		}
	})
	return a, nil
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode != mode {
		a.mode = mode
		a.logger.Info(context.Background(), "switched mode", "mode", mode)
	}
}

func (a *App) getMode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// Run starts the connectivity watcher and the sync coordinator, then blocks
// in the REPL. Background work stops when the REPL returns or ctx ends.
func (a *App) Run(ctx context.Context) error {
	bg, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(bg)

	g.Go(func() error {
		a.monitor.Run(gctx, a.client, a.config.OnlineCheckInterval)
		return nil
	})
	g.Go(func() error {
		a.engine.Start(gctx)
		return nil
	})

	a.Root(ctx)

	cancel()
	err := g.Wait()
	return multierr.Append(err, a.Close())
}

func (a *App) Close() error {
	var err error
	for _, c := range a.closers {
		err = multierr.Append(err, c.Close())
	}
	a.closers = nil
	return err
}
