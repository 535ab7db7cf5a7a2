package ladder

import (
	"path/filepath"
	"testing"

	"vidqueue/internal/config"
)

func TestPlanOrdersTiersAndNamesOutputs(t *testing.T) {
	tiers := FromConfig(config.DefaultTiers())
	tasks := Plan(tiers, "/work/abc", "clip", ".webm")

	if len(tasks) != 4 {
		t.Fatalf("expected 4 tasks, got %d", len(tasks))
	}
	wantLabels := []string{"144p", "240p", "360p", "480p"}
	for i, task := range tasks {
		if task.Tier.Label != wantLabels[i] {
			t.Fatalf("task %d label = %q, want %q", i, task.Tier.Label, wantLabels[i])
		}
		if task.Step != i+1 || task.TotalSteps != 4 {
			t.Fatalf("task %d step = %d/%d", i, task.Step, task.TotalSteps)
		}
		want := filepath.Join("/work/abc", "clip_"+wantLabels[i]+".webm")
		if task.OutputPath != want {
			t.Fatalf("task %d output = %q, want %q", i, task.OutputPath, want)
		}
	}
}

func TestPlanDefaultsContainer(t *testing.T) {
	tasks := Plan([]Tier{{Label: "144p", Height: 144, Bitrate: "100k"}}, "/out", "v", "")
	if got := filepath.Ext(tasks[0].OutputPath); got != ".webm" {
		t.Fatalf("expected .webm default, got %q", got)
	}
}

func TestPlanEmptyLadder(t *testing.T) {
	if tasks := Plan(nil, "/out", "v", "webm"); len(tasks) != 0 {
		t.Fatalf("expected no tasks, got %d", len(tasks))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		tiers   []Tier
		wantErr bool
	}{
		{"default ladder", FromConfig(config.DefaultTiers()), false},
		{"empty", nil, true},
		{"missing label", []Tier{{Height: 144, Bitrate: "100k"}}, true},
		{"duplicate", []Tier{{Label: "a", Height: 144, Bitrate: "100k"}, {Label: "a", Height: 240, Bitrate: "200k"}}, true},
		{"descending", []Tier{{Label: "480p", Height: 480, Bitrate: "600k"}, {Label: "144p", Height: 144, Bitrate: "100k"}}, true},
		{"equal heights", []Tier{{Label: "a", Height: 240, Bitrate: "100k"}, {Label: "b", Height: 240, Bitrate: "200k"}}, true},
		{"bad bitrate", []Tier{{Label: "144p", Height: 144, Bitrate: "lots"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.tiers)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseBitrate(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"100k", 100_000, false},
		{"1.5M", 1_500_000, false},
		{"250000", 250_000, false},
		{" 600K ", 600_000, false},
		{"", 0, true},
		{"0k", 0, true},
		{"fast", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseBitrate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseBitrate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseBitrate(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
