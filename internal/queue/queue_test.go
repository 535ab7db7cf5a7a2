package queue_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vidqueue/internal/progress"
	"vidqueue/internal/queue"
)

func waitIdle(t *testing.T, q *queue.Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Wait(ctx); err != nil {
		t.Fatalf("queue did not drain: %v", err)
	}
}

// gate blocks a task until released and reports when it has started.
type gate struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGate(t *testing.T) *gate {
	g := &gate{started: make(chan struct{}), release: make(chan struct{})}
	t.Cleanup(g.open)
	return g
}

func (g *gate) open() { g.once.Do(func() { close(g.release) }) }

func (g *gate) task(err error) queue.Task {
	return func(ctx context.Context, job queue.Job) error {
		close(g.started)
		<-g.release
		return err
	}
}

func (g *gate) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-g.started:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not start")
	}
}

func TestJobsRunInEnqueueOrderOneAtATime(t *testing.T) {
	reg := progress.New()
	q := queue.New(reg)

	var (
		mu       sync.Mutex
		order    []string
		active   atomic.Int32
		overlaps atomic.Int32
	)
	task := func(ctx context.Context, job queue.Job) error {
		if active.Add(1) > 1 {
			overlaps.Add(1)
		}
		defer active.Add(-1)
		mu.Lock()
		order = append(order, job.ID)
		mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		return nil
	}

	ids := []string{"a", "b", "c", "d", "e", "f"}
	for _, id := range ids {
		if err := q.Enqueue(queue.Job{ID: id}, task); err != nil {
			t.Fatalf("Enqueue %s: %v", id, err)
		}
	}
	waitIdle(t, q)

	if got := strings.Join(order, ","); got != strings.Join(ids, ",") {
		t.Fatalf("order = %s", got)
	}
	if overlaps.Load() != 0 {
		t.Fatalf("observed %d overlapping jobs", overlaps.Load())
	}
	for _, id := range ids {
		snap := reg.Get(id)
		if snap.Status != progress.StatusCompleted || snap.Progress != 100 {
			t.Fatalf("%s: unexpected terminal snapshot %#v", id, snap)
		}
	}
}

func TestProcessingStartsAtZero(t *testing.T) {
	reg := progress.New()
	q := queue.New(reg)

	var seen progress.Snapshot
	err := q.Enqueue(queue.Job{ID: "job"}, func(ctx context.Context, job queue.Job) error {
		seen = reg.Get(job.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitIdle(t, q)

	if seen.Status != progress.StatusProcessing || seen.Progress != 0 {
		t.Fatalf("unexpected processing snapshot %#v", seen)
	}
}

func TestQueuedSnapshotsTrackPosition(t *testing.T) {
	reg := progress.New()
	q := queue.New(reg)

	first := newGate(t)
	second := newGate(t)
	if err := q.Enqueue(queue.Job{ID: "a"}, first.task(nil)); err != nil {
		t.Fatalf("Enqueue a: %v", err)
	}
	first.waitStarted(t)
	if err := q.Enqueue(queue.Job{ID: "b"}, second.task(nil)); err != nil {
		t.Fatalf("Enqueue b: %v", err)
	}
	for _, id := range []string{"c", "d"} {
		if err := q.Enqueue(queue.Job{ID: id}, func(context.Context, queue.Job) error { return nil }); err != nil {
			t.Fatalf("Enqueue %s: %v", id, err)
		}
	}

	if snap := reg.Get("a"); snap.Status != progress.StatusProcessing {
		t.Fatalf("a status = %s, want processing", snap.Status)
	}
	if snap := reg.Get("b"); snap.Status != progress.StatusQueued || snap.QueuePosition != 0 {
		t.Fatalf("unexpected b snapshot %#v", snap)
	}
	if pos := reg.Get("d").QueuePosition; pos != 2 {
		t.Fatalf("d position = %d, want 2", pos)
	}
	status := q.Status()
	if status.Current != "a" || status.Length != 3 || strings.Join(status.Pending, ",") != "b,c,d" {
		t.Fatalf("unexpected status %#v", status)
	}

	first.open()
	second.waitStarted(t)
	if pos := reg.Get("d").QueuePosition; pos != 1 {
		t.Fatalf("d position after dequeue = %d, want 1", pos)
	}
	if pos := reg.Get("c").QueuePosition; pos != 0 {
		t.Fatalf("c position after dequeue = %d, want 0", pos)
	}

	second.open()
	waitIdle(t, q)
	if status := q.Status(); status.Length != 0 || status.Current != "" {
		t.Fatalf("expected idle status, got %#v", status)
	}
}

func TestFailureDoesNotStopLoop(t *testing.T) {
	reg := progress.New()
	q := queue.New(reg)

	var bStart progress.Snapshot
	tasks := []struct {
		id   string
		task queue.Task
	}{
		{"fails", func(context.Context, queue.Job) error { return errors.New("tier 360p: ffmpeg exited 1") }},
		{"panics", func(context.Context, queue.Job) error { panic("boom") }},
		{"ok", func(ctx context.Context, job queue.Job) error {
			bStart = reg.Get(job.ID)
			return nil
		}},
	}
	for _, tc := range tasks {
		if err := q.Enqueue(queue.Job{ID: tc.id}, tc.task); err != nil {
			t.Fatalf("Enqueue %s: %v", tc.id, err)
		}
	}
	waitIdle(t, q)

	failed := reg.Get("fails")
	if failed.Status != progress.StatusFailed || failed.Error != "tier 360p: ffmpeg exited 1" {
		t.Fatalf("unexpected failed snapshot %#v", failed)
	}
	if failed.Progress == 100 {
		t.Fatal("failed job must not report 100")
	}
	panicked := reg.Get("panics")
	if panicked.Status != progress.StatusFailed || !strings.Contains(panicked.Error, "boom") {
		t.Fatalf("unexpected panic snapshot %#v", panicked)
	}
	if bStart.Status != progress.StatusProcessing || bStart.Progress != 0 {
		t.Fatalf("next job did not start cleanly: %#v", bStart)
	}
	if reg.Get("ok").Status != progress.StatusCompleted {
		t.Fatal("expected last job to complete")
	}
}

func TestTerminalSnapshotKeepsPipelineFields(t *testing.T) {
	reg := progress.New()
	q := queue.New(reg)

	err := q.Enqueue(queue.Job{ID: "j"}, func(ctx context.Context, job queue.Job) error {
		return reg.Set(job.ID, progress.Snapshot{
			Status:           progress.StatusProcessing,
			Progress:         62,
			ActiveResolution: "360p",
			CurrentStep:      3,
			TotalSteps:       4,
			Visible:          true,
		})
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitIdle(t, q)

	snap := reg.Get("j")
	if snap.Status != progress.StatusCompleted || snap.Progress != 100 {
		t.Fatalf("unexpected snapshot %#v", snap)
	}
	if !snap.Visible || snap.TotalSteps != 4 || snap.ActiveResolution != "" {
		t.Fatalf("pipeline fields not preserved: %#v", snap)
	}
}

func TestEnqueueValidation(t *testing.T) {
	reg := progress.New()
	q := queue.New(reg)
	noop := func(context.Context, queue.Job) error { return nil }

	if err := q.Enqueue(queue.Job{ID: "  "}, noop); err == nil {
		t.Fatal("expected error for blank id")
	}
	if err := q.Enqueue(queue.Job{ID: "x"}, nil); err == nil {
		t.Fatal("expected error for nil task")
	}

	g := newGate(t)
	if err := q.Enqueue(queue.Job{ID: "running"}, g.task(nil)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	g.waitStarted(t)
	if err := q.Enqueue(queue.Job{ID: "running"}, noop); !errors.Is(err, queue.ErrDuplicateJob) {
		t.Fatalf("expected ErrDuplicateJob for running id, got %v", err)
	}
	if err := q.Enqueue(queue.Job{ID: "waiting"}, noop); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Enqueue(queue.Job{ID: "waiting"}, noop); !errors.Is(err, queue.ErrDuplicateJob) {
		t.Fatalf("expected ErrDuplicateJob for queued id, got %v", err)
	}
	g.open()
	waitIdle(t, q)

	if err := q.Enqueue(queue.Job{ID: "running"}, noop); err != nil {
		t.Fatalf("resubmitting a finished id should be accepted: %v", err)
	}
	waitIdle(t, q)
}

func TestDrainRearmsAfterIdle(t *testing.T) {
	reg := progress.New()
	q := queue.New(reg)
	var runs atomic.Int32
	task := func(context.Context, queue.Job) error {
		runs.Add(1)
		return nil
	}

	for i, id := range []string{"one", "two"} {
		if err := q.Enqueue(queue.Job{ID: id}, task); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		waitIdle(t, q)
		if got := runs.Load(); got != int32(i+1) {
			t.Fatalf("runs = %d, want %d", got, i+1)
		}
	}
}

func TestTasksReceiveJobContext(t *testing.T) {
	reg := progress.New()
	type ctxKey struct{}
	base := context.WithValue(context.Background(), ctxKey{}, "base")
	q := queue.New(reg, queue.WithBaseContext(base))

	var got any
	var job queue.Job
	err := q.Enqueue(queue.Job{ID: "ctx", InputPath: "/in.mp4", OutputStem: "in"}, func(ctx context.Context, j queue.Job) error {
		got = ctx.Value(ctxKey{})
		job = j
		return nil
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitIdle(t, q)

	if got != "base" {
		t.Fatalf("task context lost base value: %v", got)
	}
	if job.InputPath != "/in.mp4" || job.OutputStem != "in" || job.EnqueuedAt.IsZero() {
		t.Fatalf("unexpected job %#v", job)
	}
}

func TestShutdownDropsPendingJobs(t *testing.T) {
	reg := progress.New()
	q := queue.New(reg)

	g := newGate(t)
	if err := q.Enqueue(queue.Job{ID: "active"}, g.task(nil)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	g.waitStarted(t)
	if err := q.Enqueue(queue.Job{ID: "later"}, func(context.Context, queue.Job) error { return nil }); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- q.Shutdown(ctx)
	}()

	// Shutdown rejects new work before the running job finishes.
	deadline := time.Now().Add(5 * time.Second)
	for {
		err := q.Enqueue(queue.Job{ID: "rejected"}, func(context.Context, queue.Job) error { return nil })
		if errors.Is(err, queue.ErrClosed) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
		time.Sleep(time.Millisecond)
	}

	g.open()
	if err := <-done; err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if snap := reg.Get("later"); snap.Status != progress.StatusFailed {
		t.Fatalf("pending job status = %s, want failed", snap.Status)
	}
	if snap := reg.Get("active"); snap.Status != progress.StatusCompleted {
		t.Fatalf("active job status = %s, want completed", snap.Status)
	}
}
