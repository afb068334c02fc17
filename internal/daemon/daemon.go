package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"boardcast/internal/api"
	"boardcast/internal/config"
	"boardcast/internal/gateway"
	"boardcast/internal/hub"
	"boardcast/internal/logging"
	"boardcast/internal/pipeline"
	"boardcast/internal/queue"
)

// Daemon coordinates the narration pipeline, the viewer gateway, and the HTTP
// API, and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *queue.Store
	runner  *pipeline.Runner
	hub     *hub.Hub
	gateway *gateway.Gateway
	api     *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, runner *pipeline.Runner, h *hub.Hub, gw *gateway.Gateway, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || runner == nil || h == nil || gw == nil {
		return nil, errors.New("daemon requires config, store, runner, hub, and gateway")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "boardcastd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		runner:   runner,
		hub:      h,
		gateway:  gw,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and brings up the HTTP API and gateway.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another boardcast daemon instance is already running")
	}

	serverCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	srv, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return err
	}
	d.api = srv
	if err := d.api.start(serverCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("boardcast daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.addr()),
	)
	return nil
}

// Stop drains in-flight pipeline runs and shuts the servers down.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.runner.Wait()
	if d.api != nil {
		d.api.stop()
		d.api = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("boardcast daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the bound API address, valid after Start.
func (d *Daemon) Addr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Status summarizes daemon runtime state.
func (d *Daemon) Status(ctx context.Context) api.StatusResponse {
	stats := map[string]int{}
	if counts, err := d.store.Stats(ctx); err == nil {
		for status, count := range counts {
			stats[string(status)] = count
		}
	} else {
		d.logger.Warn("job stats unavailable", logging.Error(err))
	}
	return api.StatusResponse{
		Running:    d.running.Load(),
		PID:        os.Getpid(),
		DBPath:     d.store.Path(),
		JobStats:   stats,
		Subscriber: d.hub.Subscribers(),
	}
}
