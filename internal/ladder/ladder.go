package ladder

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"vidqueue/internal/config"
)

// Tier is one target rendition: output height and encoder bitrate.
type Tier struct {
	Label   string
	Height  int
	Bitrate string
}

// Task is a single planned encode for one tier of one input.
type Task struct {
	Tier       Tier
	Step       int
	TotalSteps int
	OutputPath string
}

// FromConfig converts the configured ladder into planner tiers, preserving order.
func FromConfig(tiers []config.Tier) []Tier {
	out := make([]Tier, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, Tier{Label: t.Label, Height: t.Height, Bitrate: t.Bitrate})
	}
	return out
}

// Validate rejects ladders the pipeline cannot drive: empty, non-ascending,
// duplicate labels, or unparseable bitrates.
func Validate(tiers []Tier) error {
	if len(tiers) == 0 {
		return errors.New("ladder: no tiers configured")
	}
	seen := make(map[string]struct{}, len(tiers))
	for i, tier := range tiers {
		if strings.TrimSpace(tier.Label) == "" {
			return fmt.Errorf("ladder: tier %d has no label", i)
		}
		if _, dup := seen[tier.Label]; dup {
			return fmt.Errorf("ladder: duplicate tier %q", tier.Label)
		}
		seen[tier.Label] = struct{}{}
		if tier.Height <= 0 {
			return fmt.Errorf("ladder: tier %q height must be positive", tier.Label)
		}
		if i > 0 && tier.Height <= tiers[i-1].Height {
			return fmt.Errorf("ladder: tier %q is not higher than %q", tier.Label, tiers[i-1].Label)
		}
		if _, err := ParseBitrate(tier.Bitrate); err != nil {
			return fmt.Errorf("ladder: tier %q: %w", tier.Label, err)
		}
	}
	return nil
}

// Plan maps the ladder onto encode tasks for one input, lowest tier first.
// Outputs are named <stem>_<label>.<container> inside outputDir.
func Plan(tiers []Tier, outputDir, stem, container string) []Task {
	container = strings.TrimPrefix(strings.TrimSpace(container), ".")
	if container == "" {
		container = "webm"
	}
	tasks := make([]Task, 0, len(tiers))
	for i, tier := range tiers {
		tasks = append(tasks, Task{
			Tier:       tier,
			Step:       i + 1,
			TotalSteps: len(tiers),
			OutputPath: filepath.Join(outputDir, fmt.Sprintf("%s_%s.%s", stem, tier.Label, container)),
		})
	}
	return tasks
}

// ParseBitrate converts an ffmpeg-style rate ("400k", "1.5M", "250000") to bits per second.
func ParseBitrate(value string) (int64, error) {
	cleaned := strings.ToLower(strings.TrimSpace(value))
	if cleaned == "" {
		return 0, errors.New("empty bitrate")
	}
	multiplier := 1.0
	switch {
	case strings.HasSuffix(cleaned, "k"):
		multiplier = 1e3
		cleaned = strings.TrimSuffix(cleaned, "k")
	case strings.HasSuffix(cleaned, "m"):
		multiplier = 1e6
		cleaned = strings.TrimSuffix(cleaned, "m")
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid bitrate %q", value)
	}
	return int64(n * multiplier), nil
}
