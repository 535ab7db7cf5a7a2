package logging

import (
	"strings"
	"time"
)

// ProgressSampler thins per-tier encode progress to one log line per percent
// bucket. A heartbeat line is let through when a slow encode has not crossed
// a bucket for a while, so long tiers never go silent.
type ProgressSampler struct {
	bucket    float64
	heartbeat time.Duration
	now       func() time.Time

	tier     string
	reached  int
	loggedAt time.Time
}

// NewProgressSampler builds a sampler with the given bucket width in percent
// (default 5). A zero heartbeat disables time-based lines.
func NewProgressSampler(bucket float64, heartbeat time.Duration) *ProgressSampler {
	if bucket <= 0 {
		bucket = 5
	}
	return &ProgressSampler{bucket: bucket, heartbeat: heartbeat, now: time.Now, reached: -1}
}

// ShouldLog reports whether the observation for tier deserves a log line.
// Negative percent means the encoder has not reported a position yet.
func (s *ProgressSampler) ShouldLog(percent float64, tier string) bool {
	if s == nil {
		return true
	}
	now := s.now()
	tier = strings.TrimSpace(tier)
	if tier != s.tier {
		s.tier = tier
		s.reached = s.bucketOf(percent)
		s.loggedAt = now
		return true
	}
	if b := s.bucketOf(percent); b > s.reached {
		s.reached = b
		s.loggedAt = now
		return true
	}
	if s.heartbeat > 0 && now.Sub(s.loggedAt) >= s.heartbeat {
		s.loggedAt = now
		return true
	}
	return false
}

func (s *ProgressSampler) bucketOf(percent float64) int {
	if percent < 0 {
		return -1
	}
	return int(min(percent, 100) / s.bucket)
}
