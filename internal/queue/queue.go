package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"vidqueue/internal/logging"
	"vidqueue/internal/metrics"
	"vidqueue/internal/progress"
	"vidqueue/internal/services"
)

var (
	// ErrDuplicateJob is returned when a job id is already queued or running.
	ErrDuplicateJob = errors.New("job already queued")
	// ErrClosed is returned by Enqueue after Shutdown.
	ErrClosed = errors.New("queue closed")
)

// Status messages written by the queue.
const (
	MessageQueued     = "Queued for processing"
	MessageProcessing = "Processing started"
	MessageCompleted  = "Processing complete"
	MessageFailed     = "Processing failed"
	MessageDropped    = "Dropped at shutdown"
)

// Job is one unit of work.
type Job struct {
	ID              string
	Title           string
	InputPath       string
	OutputStem      string
	DurationSeconds float64
	EnqueuedAt      time.Time
}

// Task performs a job. The returned error becomes the failed snapshot's error.
type Task func(ctx context.Context, job Job) error

// Snapshot describes the queue at one instant.
type Snapshot struct {
	Length  int      `json:"queueLength"`
	Current string   `json:"currentProcessing,omitempty"`
	Pending []string `json:"queue"`
}

type entry struct {
	job  Job
	task Task
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithBaseContext sets the context tasks run under.
func WithBaseContext(ctx context.Context) Option {
	return func(q *Queue) {
		if ctx != nil {
			q.baseCtx = ctx
		}
	}
}

// Queue is a FIFO of jobs with at most one running.
type Queue struct {
	registry *progress.Registry
	logger   *slog.Logger
	baseCtx  context.Context
	now      func() time.Time

	mu      sync.Mutex
	pending []entry
	current string
	running bool
	closed  bool
	idle    chan struct{}
}

// New constructs a queue writing snapshots to registry and registers itself
// as the registry's positioner.
func New(registry *progress.Registry, opts ...Option) *Queue {
	q := &Queue{
		registry: registry,
		logger:   logging.NewNop(),
		baseCtx:  context.Background(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = logging.NewComponentLogger(q.logger, "queue")
	if registry != nil {
		registry.SetPositioner(q)
	}
	return q
}

// Enqueue appends job to the tail and starts draining when the queue is idle.
func (q *Queue) Enqueue(job Job, task Task) error {
	job.ID = strings.TrimSpace(job.ID)
	if job.ID == "" {
		return services.Wrap(services.ErrValidation, "queue", "enqueue", "Job id required", nil)
	}
	if task == nil {
		return services.Wrap(services.ErrValidation, "queue", "enqueue", "Job task required", nil)
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = q.now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	if q.current == job.ID || q.indexLocked(job.ID) >= 0 {
		return fmt.Errorf("%s: %w", job.ID, ErrDuplicateJob)
	}

	q.pending = append(q.pending, entry{job: job, task: task})
	position := len(q.pending) - 1
	if err := q.registry.Set(job.ID, progress.Snapshot{
		Status:        progress.StatusQueued,
		Message:       MessageQueued,
		QueuePosition: position,
	}); err != nil {
		q.pending = q.pending[:position]
		return fmt.Errorf("record queued snapshot: %w", err)
	}
	metrics.JobsEnqueuedTotal.Inc()
	metrics.QueueDepth.Set(float64(len(q.pending)))

	q.logger.Info("job queued",
		logging.JobID(job.ID),
		logging.Int("queue_position", position),
		logging.String("input", job.InputPath),
	)

	if !q.running {
		q.running = true
		q.idle = make(chan struct{})
		go q.drain(q.idle)
	}
	return nil
}

func (q *Queue) drain(done chan struct{}) {
	defer close(done)
	for {
		next, ok := q.pop()
		if !ok {
			return
		}
		q.execute(next)
	}
}

// pop removes the head and records it as processing, or marks the queue idle
// when nothing is pending.
func (q *Queue) pop() (entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.current = ""
	if len(q.pending) == 0 {
		q.running = false
		metrics.JobActive.Set(0)
		return entry{}, false
	}
	head := q.pending[0]
	q.pending[0] = entry{}
	q.pending = q.pending[1:]
	q.current = head.job.ID
	metrics.QueueDepth.Set(float64(len(q.pending)))
	metrics.JobActive.Set(1)

	if err := q.registry.Set(head.job.ID, progress.Snapshot{
		Status:  progress.StatusProcessing,
		Message: MessageProcessing,
	}); err != nil {
		q.logger.Debug("processing snapshot rejected", logging.JobID(head.job.ID), logging.Error(err))
	}
	return head, true
}

func (q *Queue) execute(e entry) {
	ctx := services.WithJobID(q.baseCtx, e.job.ID)
	logger := logging.WithContext(ctx, q.logger)
	logger.Info("job started", logging.Duration("waited", q.now().Sub(e.job.EnqueuedAt)))

	started := q.now()
	err := q.runTask(ctx, e)
	elapsed := q.now().Sub(started)
	metrics.JobDuration.Observe(elapsed.Seconds())

	if err != nil {
		metrics.JobsFinishedTotal.WithLabelValues(string(progress.StatusFailed)).Inc()
		details := services.Details(err)
		logger.Error("job failed",
			logging.String(logging.FieldEventType, "job_failed"),
			logging.String(logging.FieldErrorHint, "resubmit the source once the cause is fixed"),
			logging.String("error_kind", string(details.Kind)),
			logging.Duration("elapsed", elapsed),
			logging.Error(err),
		)
		q.finish(e.job.ID, progress.StatusFailed, err.Error())
		return
	}
	metrics.JobsFinishedTotal.WithLabelValues(string(progress.StatusCompleted)).Inc()
	logger.Info("job completed", logging.Duration("elapsed", elapsed))
	q.finish(e.job.ID, progress.StatusCompleted, "")
}

func (q *Queue) runTask(ctx context.Context, e entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
			logging.WithContext(ctx, q.logger).Error("job task panicked",
				logging.String(logging.FieldEventType, "job_panic"),
				logging.String(logging.FieldErrorHint, "report the stack trace"),
				logging.String("stack", string(debug.Stack())),
			)
		}
	}()
	return e.task(ctx, e.job)
}

// finish writes the terminal snapshot, keeping the pipeline's step and
// visibility fields. Progress is 100 only for completed jobs.
func (q *Queue) finish(jobID string, status progress.Status, errMsg string) {
	err := q.registry.Update(jobID, func(cur progress.Snapshot) progress.Snapshot {
		cur.Status = status
		cur.ActiveResolution = ""
		cur.QueuePosition = 0
		switch status {
		case progress.StatusCompleted:
			cur.Progress = 100
			cur.Message = MessageCompleted
			cur.Error = ""
		default:
			cur.Progress = min(cur.Progress, 99)
			cur.Message = MessageFailed
			cur.Error = errMsg
		}
		return cur
	})
	if err != nil {
		q.logger.Warn("terminal snapshot rejected",
			logging.JobID(jobID),
			logging.String(logging.FieldEventType, "snapshot_rejected"),
			logging.String(logging.FieldErrorHint, "tasks must not write terminal snapshots"),
			logging.String(logging.FieldImpact, "progress readers may see a stale status"),
			logging.Error(err),
		)
	}
}

// Position implements progress.Positioner.
func (q *Queue) Position(jobID string) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := q.indexLocked(jobID)
	return idx, idx >= 0
}

func (q *Queue) indexLocked(jobID string) int {
	for i, e := range q.pending {
		if e.job.ID == jobID {
			return i
		}
	}
	return -1
}

// Status returns the pending ids in order and the running job id.
func (q *Queue) Status() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]string, 0, len(q.pending))
	for _, e := range q.pending {
		ids = append(ids, e.job.ID)
	}
	return Snapshot{Length: len(q.pending), Current: q.current, Pending: ids}
}

// Wait blocks until the queue is idle or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	running := q.running
	q.mu.Unlock()
	if !running || idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs, fails every pending job, and waits for the
// running job to finish or ctx to expire.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	dropped := q.pending
	q.pending = nil
	metrics.QueueDepth.Set(0)
	q.mu.Unlock()

	for _, e := range dropped {
		if err := q.registry.Set(e.job.ID, progress.Snapshot{
			Status:  progress.StatusFailed,
			Message: MessageDropped,
			Error:   ErrClosed.Error(),
		}); err != nil {
			q.logger.Debug("drop snapshot rejected", logging.JobID(e.job.ID), logging.Error(err))
		}
	}
	if len(dropped) > 0 {
		logging.WarnWithContext(q.logger, "dropped pending jobs at shutdown", "queue_dropped",
			logging.Int("count", len(dropped)),
			logging.String(logging.FieldErrorHint, "resubmit the sources after restart"),
			logging.String(logging.FieldImpact, "dropped videos stay unconverted"),
		)
	}
	return q.Wait(ctx)
}
