package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"vidqueue/internal/api"
	"vidqueue/internal/catalog"
	"vidqueue/internal/config"
	"vidqueue/internal/daemon"
	"vidqueue/internal/ingest"
	"vidqueue/internal/media/ffprobe"
	"vidqueue/internal/progress"
	"vidqueue/internal/queue"
	"vidqueue/internal/storage"
	"vidqueue/internal/testsupport"
)

type noopProber struct{}

func (noopProber) Probe(context.Context, string) (ffprobe.Metadata, error) {
	return ffprobe.Metadata{DurationSeconds: 1}, nil
}

func newDaemon(t *testing.T, cfg *config.Config, store *catalog.Store) *daemon.Daemon {
	t.Helper()
	local, err := storage.NewLocal(cfg.Storage.LocalDir, "")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	registry := progress.New()
	q := queue.New(registry)
	svc := ingest.NewService(noopProber{}, store, q, func(context.Context, queue.Job) error { return nil },
		filepath.Join(cfg.Paths.WorkDir, "uploads"))
	d, err := daemon.New(cfg, daemon.Deps{Catalog: store, Registry: registry, Queue: q, Ingest: svc, Store: local}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	d := newDaemon(t, cfg, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}

	status := d.Status()
	if !status.Running || status.LockFilePath != cfg.LockPath() || status.DatabasePath != cfg.DatabasePath() {
		t.Fatalf("unexpected status %#v", status)
	}

	resp, err := http.Get("http://" + d.Address() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	var health api.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil || health.Status != "ok" {
		t.Fatalf("unexpected health response %#v %v", health, err)
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to report stopped")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	first := newDaemon(t, cfg, store)
	second := newDaemon(t, cfg, store)

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected lock contention error")
	}
	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemon.New(cfg, daemon.Deps{}, nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestStopCancelsOverdueJobBeforeReleasingLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	local, err := storage.NewLocal(cfg.Storage.LocalDir, "")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	jobCtx, jobCancel := context.WithCancel(context.Background())
	defer jobCancel()
	registry := progress.New()
	q := queue.New(registry, queue.WithBaseContext(jobCtx))

	var recorded atomic.Bool
	started := make(chan struct{})
	task := func(ctx context.Context, _ queue.Job) error {
		close(started)
		<-ctx.Done()
		// Stands in for the failed outcome written after ffmpeg is killed.
		time.Sleep(50 * time.Millisecond)
		recorded.Store(true)
		return ctx.Err()
	}
	svc := ingest.NewService(noopProber{}, store, q, task, filepath.Join(cfg.Paths.WorkDir, "uploads"))
	d, err := daemon.New(cfg, daemon.Deps{
		Catalog: store, Registry: registry, Queue: q, Ingest: svc, Store: local,
		CancelJobs:   jobCancel,
		DrainTimeout: 20 * time.Millisecond,
	}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := q.Enqueue(queue.Job{ID: "long"}, task); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never started")
	}

	d.Stop()
	if !recorded.Load() {
		t.Fatal("Stop returned before the cancelled job finished")
	}
	if snap := registry.Get("long"); snap.Status != progress.StatusFailed {
		t.Fatalf("status = %s, want failed", snap.Status)
	}
	if q.Status().Current != "" {
		t.Fatalf("queue still reports a running job: %#v", q.Status())
	}
}
