package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vidqueue/internal/metrics"
)

// ErrFinal is returned when a write targets a job whose snapshot is terminal.
var ErrFinal = errors.New("snapshot is final")

// Positioner reports a job's 0-based distance from the front of the pending
// sequence. ok is false once the job is no longer pending.
type Positioner interface {
	Position(jobID string) (int, bool)
}

// Option configures a Registry.
type Option func(*Registry)

// WithRetention evicts terminal snapshots older than d during Sweep. Zero
// disables eviction.
func WithRetention(d time.Duration) Option {
	return func(r *Registry) {
		if d >= 0 {
			r.retention = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// Registry maps job identifiers to their latest snapshot. Writers replace
// whole values under the write lock; readers copy a value out under the read
// lock, so a reader never sees a mix of two writes.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]Snapshot
	positions Positioner
	retention time.Duration
	now       func() time.Time
}

// New constructs an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]Snapshot),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetPositioner attaches the live pending sequence used to recompute queue
// positions on read.
func (r *Registry) SetPositioner(p Positioner) {
	r.mu.Lock()
	r.positions = p
	r.mu.Unlock()
}

// Set replaces the snapshot for jobID and stamps UpdatedAt. A terminal
// snapshot can only be replaced by a fresh queued one.
func (r *Registry) Set(jobID string, snap Snapshot) error {
	if jobID == "" {
		return errors.New("progress: empty job id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkWritable(jobID, snap.Status); err != nil {
		return err
	}
	snap.UpdatedAt = r.now()
	r.entries[jobID] = snap
	metrics.RegistrySnapshots.Set(float64(len(r.entries)))
	return nil
}

// Update applies fn to the current snapshot and stores the result as one
// atomic replacement. fn sees the unknown sentinel when no snapshot exists and
// must not call back into the registry.
func (r *Registry) Update(jobID string, fn func(Snapshot) Snapshot) error {
	if jobID == "" {
		return errors.New("progress: empty job id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.entries[jobID]
	if !ok {
		current = Unknown()
	}
	next := fn(current)
	if err := r.checkWritable(jobID, next.Status); err != nil {
		return err
	}
	next.UpdatedAt = r.now()
	r.entries[jobID] = next
	metrics.RegistrySnapshots.Set(float64(len(r.entries)))
	return nil
}

func (r *Registry) checkWritable(jobID string, next Status) error {
	current, ok := r.entries[jobID]
	if ok && current.Status.Terminal() && next != StatusQueued {
		return fmt.Errorf("progress: %s is %s: %w", jobID, current.Status, ErrFinal)
	}
	return nil
}

// Get returns the snapshot for jobID, or the unknown sentinel. Queued
// snapshots have QueuePosition recomputed against the live pending sequence;
// a job that has just left the sequence reports position 0.
func (r *Registry) Get(jobID string) Snapshot {
	r.mu.RLock()
	snap, ok := r.entries[jobID]
	positions := r.positions
	r.mu.RUnlock()
	if !ok {
		return Unknown()
	}
	if snap.Status == StatusQueued && positions != nil {
		if pos, pending := positions.Position(jobID); pending {
			snap.QueuePosition = pos
		} else {
			snap.QueuePosition = 0
		}
	}
	return snap
}

// Len returns the number of stored snapshots.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Sweep evicts terminal snapshots whose last write is older than the retention
// window and returns how many were removed.
func (r *Registry) Sweep() int {
	if r.retention <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.retention)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, snap := range r.entries {
		if snap.Status.Terminal() && snap.UpdatedAt.Before(cutoff) {
			delete(r.entries, id)
			removed++
		}
	}
	metrics.RegistrySnapshots.Set(float64(len(r.entries)))
	return removed
}

// Run sweeps on every interval tick until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	if r.retention <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := r.Sweep(); removed > 0 && onSweep != nil {
				onSweep(removed)
			}
		}
	}
}
