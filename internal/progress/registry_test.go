package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakePositions map[string]int

func (f fakePositions) Position(id string) (int, bool) {
	pos, ok := f[id]
	return pos, ok
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestGetUnknownReturnsSentinel(t *testing.T) {
	r := New()
	snap := r.Get("never-enqueued")
	if snap.Status != StatusUnknown {
		t.Fatalf("status = %q, want unknown", snap.Status)
	}
	if snap.Message != UnknownMessage {
		t.Fatalf("message = %q, want %q", snap.Message, UnknownMessage)
	}
}

func TestSetReplacesWholeSnapshotAndStampsTime(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	r := New(WithClock(clock.Now))

	if err := r.Set("a", Snapshot{Status: StatusProcessing, Progress: 40, ActiveResolution: "240p", Visible: true}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	clock.Advance(time.Second)
	if err := r.Set("a", Snapshot{Status: StatusProcessing, Progress: 50}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got := r.Get("a")
	if got.ActiveResolution != "" || got.Visible {
		t.Fatalf("expected fields from the first write to be gone, got %+v", got)
	}
	if got.Progress != 50 {
		t.Fatalf("progress = %d, want 50", got.Progress)
	}
	if !got.UpdatedAt.Equal(clock.Now()) {
		t.Fatalf("updatedAt = %s, want %s", got.UpdatedAt, clock.Now())
	}
}

func TestUpdateReadsCurrentValue(t *testing.T) {
	r := New()
	_ = r.Set("a", Snapshot{Status: StatusProcessing, Progress: 10, Visible: true})

	err := r.Update("a", func(s Snapshot) Snapshot {
		s.Progress = 20
		return s
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	got := r.Get("a")
	if got.Progress != 20 || !got.Visible {
		t.Fatalf("unexpected snapshot %+v", got)
	}

	var seen Status
	_ = r.Update("b", func(s Snapshot) Snapshot {
		seen = s.Status
		return Snapshot{Status: StatusQueued}
	})
	if seen != StatusUnknown {
		t.Fatalf("expected sentinel for missing id, got %q", seen)
	}
}

func TestTerminalSnapshotIsFinal(t *testing.T) {
	r := New()
	_ = r.Set("a", Snapshot{Status: StatusFailed, Progress: 37, Error: "boom"})

	if err := r.Set("a", Snapshot{Status: StatusProcessing}); !errors.Is(err, ErrFinal) {
		t.Fatalf("expected ErrFinal, got %v", err)
	}
	if err := r.Update("a", func(s Snapshot) Snapshot { s.Status = StatusCompleted; return s }); !errors.Is(err, ErrFinal) {
		t.Fatalf("expected ErrFinal from Update, got %v", err)
	}
	if got := r.Get("a"); got.Status != StatusFailed || got.Progress != 37 {
		t.Fatalf("terminal snapshot mutated: %+v", got)
	}
	if err := r.Set("a", Snapshot{Status: StatusQueued}); err != nil {
		t.Fatalf("fresh queued lifecycle should be accepted: %v", err)
	}
}

func TestGetRecomputesQueuePosition(t *testing.T) {
	r := New()
	positions := fakePositions{"b": 1}
	r.SetPositioner(positions)
	_ = r.Set("b", Snapshot{Status: StatusQueued, QueuePosition: 5})
	_ = r.Set("c", Snapshot{Status: StatusProcessing, QueuePosition: 5})

	if got := r.Get("b").QueuePosition; got != 1 {
		t.Fatalf("queued position = %d, want 1", got)
	}
	positions["b"] = 0
	if got := r.Get("b").QueuePosition; got != 0 {
		t.Fatalf("queued position after shift = %d, want 0", got)
	}
	delete(positions, "b")
	if got := r.Get("b").QueuePosition; got != 0 {
		t.Fatalf("dequeued job should default to 0, got %d", got)
	}
	if got := r.Get("c").QueuePosition; got != 5 {
		t.Fatalf("non-queued snapshot should keep stored position, got %d", got)
	}
}

func TestSweepEvictsOnlyExpiredTerminalSnapshots(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	r := New(WithClock(clock.Now), WithRetention(time.Hour))

	_ = r.Set("done", Snapshot{Status: StatusCompleted, Progress: 100})
	_ = r.Set("failed", Snapshot{Status: StatusFailed})
	_ = r.Set("running", Snapshot{Status: StatusProcessing})
	clock.Advance(30 * time.Minute)
	_ = r.Set("recent", Snapshot{Status: StatusCompleted, Progress: 100})
	clock.Advance(31 * time.Minute)

	if removed := r.Sweep(); removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if r.Get("done").Status != StatusUnknown || r.Get("failed").Status != StatusUnknown {
		t.Fatal("expected expired terminal snapshots to be evicted")
	}
	if r.Get("running").Status != StatusProcessing {
		t.Fatal("in-flight snapshot must never be evicted")
	}
	if r.Get("recent").Status != StatusCompleted {
		t.Fatal("recent terminal snapshot should be retained")
	}
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}
}

func TestSweepDisabledWithoutRetention(t *testing.T) {
	r := New()
	_ = r.Set("done", Snapshot{Status: StatusCompleted})
	if removed := r.Sweep(); removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	r := New(WithRetention(time.Nanosecond))
	_ = r.Set("done", Snapshot{Status: StatusCompleted})

	ctx, cancel := context.WithCancel(context.Background())
	swept := make(chan int, 1)
	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Millisecond, func(n int) {
			select {
			case swept <- n:
			default:
			}
		})
		close(done)
	}()

	select {
	case n := <-swept:
		if n != 1 {
			t.Fatalf("swept %d, want 1", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never ran")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	r := New()
	const writes = 500
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i <= writes; i++ {
			_ = r.Set("job", Snapshot{
				Status:           StatusProcessing,
				Progress:         i % 100,
				ActiveResolution: fmt.Sprintf("tier-%d", i%100),
				Message:          fmt.Sprintf("step %d", i%100),
			})
		}
	}()

	for reader := 0; reader < 4; reader++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < writes; i++ {
				snap := r.Get("job")
				if snap.Status == StatusUnknown {
					continue
				}
				want := fmt.Sprintf("tier-%d", snap.Progress)
				if snap.ActiveResolution != want || snap.Message != fmt.Sprintf("step %d", snap.Progress) {
					t.Errorf("torn snapshot: %+v", snap)
					return
				}
			}
		}()
	}
	wg.Wait()
}
