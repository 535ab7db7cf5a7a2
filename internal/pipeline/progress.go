package pipeline

import (
	"math"

	"vidqueue/internal/progress"
)

// processingCeiling keeps processing snapshots below 100; only the queue's
// completed snapshot reports 100.
const processingCeiling = 99

// OverallPercent folds per-tier progress into one job percentage.
func OverallPercent(completedTiers, tierPercent, totalTiers int) int {
	if totalTiers <= 0 {
		return 0
	}
	tierPercent = max(0, min(tierPercent, 100))
	return (completedTiers*100 + tierPercent) / totalTiers
}

func tierPercent(p float64) int {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	return min(int(math.Floor(p)), 100)
}

// tracker holds the job's running state and renders snapshots from it.
type tracker struct {
	total     int
	completed int
	visible   bool
	overall   int
}

func (t *tracker) snapshot(message, tier string, tierPct, step int) progress.Snapshot {
	return progress.Snapshot{
		Status:             progress.StatusProcessing,
		Progress:           t.overall,
		Message:            message,
		ActiveResolution:   tier,
		ResolutionProgress: tierPct,
		CurrentStep:        step,
		TotalSteps:         t.total,
		Visible:            t.visible,
	}
}

// advance records a tier event and reports whether overall progress moved.
// Progress never decreases within a job.
func (t *tracker) advance(tierPct int) bool {
	next := min(OverallPercent(t.completed, tierPct, t.total), processingCeiling)
	if next <= t.overall {
		return false
	}
	t.overall = next
	return true
}

func (t *tracker) finishTier() {
	t.completed++
	t.visible = true
	t.overall = max(t.overall, min(OverallPercent(t.completed, 0, t.total), processingCeiling))
}
