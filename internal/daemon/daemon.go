package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"vidqueue/internal/catalog"
	"vidqueue/internal/config"
	"vidqueue/internal/ingest"
	"vidqueue/internal/logging"
	"vidqueue/internal/progress"
	"vidqueue/internal/queue"
	"vidqueue/internal/storage"
)

const (
	// defaultDrainTimeout bounds how long Stop waits for the active job.
	defaultDrainTimeout = 30 * time.Second
	// abortTimeout bounds the wait after the active job is cancelled.
	abortTimeout = 10 * time.Second
)

// Submitter accepts new videos.
type Submitter interface {
	Submit(ctx context.Context, req ingest.Request) (*catalog.Video, error)
	UploadDir() string
}

// Catalog reads catalog records.
type Catalog interface {
	Get(ctx context.Context, id string) (*catalog.Video, error)
	List(ctx context.Context, limit int) ([]*catalog.Video, error)
}

// Deps are the components the daemon serves and supervises.
type Deps struct {
	Catalog  Catalog
	Registry *progress.Registry
	Queue    *queue.Queue
	Ingest   Submitter
	Store    storage.Store

	// CancelJobs cancels the context jobs run under. Stop calls it when the
	// active job outlives DrainTimeout.
	CancelJobs   context.CancelFunc
	DrainTimeout time.Duration
}

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	deps   Deps
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Queue        queue.Snapshot
	Snapshots    int
	DatabasePath string
	LockFilePath string
	APIAddress   string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || deps.Catalog == nil || deps.Registry == nil || deps.Queue == nil || deps.Ingest == nil || deps.Store == nil {
		return nil, errors.New("daemon requires config, catalog, registry, queue, ingest, and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		deps:     deps,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg.Paths.APIBind, d, logging.NewComponentLogger(logger, "api"))
	return d, nil
}

// Start acquires the daemon lock, starts the retention sweeper, and begins serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another vidqueue daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start api: %w", err)
	}

	go d.deps.Registry.Run(d.ctx, d.cfg.SweepInterval(), func(removed int) {
		d.logger.Debug("evicted finished progress snapshots", logging.Int("removed", removed))
	})

	d.running.Store(true)
	d.logger.Info("vidqueue daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
	)
	return nil
}

// Stop stops accepting work, drains the active job, and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.stop()

	d.drainQueue()

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("vidqueue daemon stopped")
}

// drainQueue waits for the active job, then cancels it and waits once more so
// its final catalog writes land before the lock is released.
func (d *Daemon) drainQueue() {
	timeout := d.deps.DrainTimeout
	if timeout <= 0 {
		timeout = defaultDrainTimeout
	}
	drainCtx, cancel := context.WithTimeout(context.Background(), timeout)
	err := d.deps.Queue.Shutdown(drainCtx)
	cancel()
	if err == nil {
		return
	}
	logging.WarnWithContext(d.logger, "active job did not finish before shutdown", "queue_drain_timeout",
		logging.Error(err),
		logging.Duration("drain_timeout", timeout),
		logging.String(logging.FieldImpact, "the active video is cancelled and marked failed"),
	)
	if d.deps.CancelJobs == nil {
		return
	}
	d.deps.CancelJobs()
	abortCtx, cancel := context.WithTimeout(context.Background(), abortTimeout)
	defer cancel()
	if err := d.deps.Queue.Wait(abortCtx); err != nil {
		logging.WarnWithContext(d.logger, "cancelled job still running at shutdown", "queue_abort_timeout",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the video is marked failed on next start"),
		)
	}
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Address returns the bound API address once started.
func (d *Daemon) Address() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Queue:        d.deps.Queue.Status(),
		Snapshots:    d.deps.Registry.Len(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		APIAddress:   d.api.address(),
	}
}
