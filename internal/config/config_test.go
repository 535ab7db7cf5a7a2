package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"vidqueue/internal/config"
)

func clearMinIOEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"MINIO_ENDPOINT", "MINIO_ROOT_USER", "MINIO_ROOT_PASSWORD", "MINIO_BUCKET"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearMinIOEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "vidqueue", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "vidqueue", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7490" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Storage.Backend != config.StorageLocal {
		t.Fatalf("expected local storage by default, got %q", cfg.Storage.Backend)
	}
	if got := len(cfg.Transcode.Tiers); got != 4 {
		t.Fatalf("expected four default tiers, got %d", got)
	}
	if cfg.DatabasePath() != filepath.Join(cfg.Paths.DataDir, "vidqueue.db") {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath())
	}
	if cfg.StreamURLExpiry() != 24*time.Hour {
		t.Fatalf("unexpected stream expiry %s", cfg.StreamURLExpiry())
	}
	if cfg.ThumbnailURLExpiry() != time.Hour {
		t.Fatalf("unexpected thumbnail expiry %s", cfg.ThumbnailURLExpiry())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Storage.LocalDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearMinIOEnv(t)
	configPath := filepath.Join(t.TempDir(), "vidqueue.toml")

	type payload struct {
		Transcode struct {
			Threads int           `toml:"threads"`
			Tiers   []config.Tier `toml:"tiers"`
		} `toml:"transcode"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Transcode.Threads = 8
	custom.Transcode.Tiers = []config.Tier{
		{Label: " 360p ", Height: 360, Bitrate: "400K"},
		{Height: 720, Bitrate: "1500k"},
	}
	custom.Logging.Format = "JSON"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Transcode.Threads != 8 {
		t.Fatalf("expected threads 8, got %d", cfg.Transcode.Threads)
	}
	want := []config.Tier{
		{Label: "360p", Height: 360, Bitrate: "400k"},
		{Label: "720p", Height: 720, Bitrate: "1500k"},
	}
	if len(cfg.Transcode.Tiers) != len(want) {
		t.Fatalf("unexpected tiers: %+v", cfg.Transcode.Tiers)
	}
	for i := range want {
		if cfg.Transcode.Tiers[i] != want[i] {
			t.Fatalf("tier %d = %+v, want %+v", i, cfg.Transcode.Tiers[i], want[i])
		}
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", cfg.Logging.Format)
	}
	if cfg.Transcode.VideoCodec != "libvpx-vp9" {
		t.Fatalf("expected default video codec to survive partial file, got %q", cfg.Transcode.VideoCodec)
	}
}

func TestMinIOCredentialsFallBackToEnvironment(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "vidqueue.toml")
	contents := "[storage]\nbackend = \"minio\"\nbucket = \"from-file\"\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("MINIO_ENDPOINT", "minio:9000")
	t.Setenv("MINIO_ROOT_USER", "env-user")
	t.Setenv("MINIO_ROOT_PASSWORD", "env-pass")
	t.Setenv("MINIO_BUCKET", "from-env")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Storage.Endpoint != "minio:9000" {
		t.Errorf("expected endpoint from env, got %q", cfg.Storage.Endpoint)
	}
	if cfg.Storage.AccessKey != "env-user" || cfg.Storage.SecretKey != "env-pass" {
		t.Errorf("expected credentials from env, got %q/%q", cfg.Storage.AccessKey, cfg.Storage.SecretKey)
	}
	if cfg.Storage.Bucket != "from-file" {
		t.Errorf("expected file bucket to win over env, got %q", cfg.Storage.Bucket)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[[transcode.tiers]]") {
		t.Fatalf("sample config missing ladder table: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	defaults := config.DefaultTiers()
	if len(cfg.Transcode.Tiers) != len(defaults) {
		t.Fatalf("sample ladder has %d tiers, want %d", len(cfg.Transcode.Tiers), len(defaults))
	}
	for i := range defaults {
		if cfg.Transcode.Tiers[i] != defaults[i] {
			t.Fatalf("sample tier %d = %+v, want %+v", i, cfg.Transcode.Tiers[i], defaults[i])
		}
	}
	if !strings.Contains(cfg.Paths.WorkDir, "vidqueue") {
		t.Fatalf("expected work dir to contain vidqueue, got %q", cfg.Paths.WorkDir)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty ladder", func(c *config.Config) { c.Transcode.Tiers = nil }},
		{"descending heights", func(c *config.Config) {
			c.Transcode.Tiers = []config.Tier{{Label: "480p", Height: 480, Bitrate: "600k"}, {Label: "144p", Height: 144, Bitrate: "100k"}}
		}},
		{"duplicate label", func(c *config.Config) {
			c.Transcode.Tiers = []config.Tier{{Label: "a", Height: 144, Bitrate: "100k"}, {Label: "a", Height: 240, Bitrate: "200k"}}
		}},
		{"bad bitrate", func(c *config.Config) { c.Transcode.Tiers[0].Bitrate = "fast" }},
		{"zero bitrate", func(c *config.Config) { c.Transcode.Tiers[0].Bitrate = "0k" }},
		{"zero frame rate", func(c *config.Config) { c.Transcode.FrameRate = 0 }},
		{"bad aspect", func(c *config.Config) { c.Transcode.DisplayAspect = "wide" }},
		{"bad deadline", func(c *config.Config) { c.Transcode.Deadline = "soon" }},
		{"thumbnail position", func(c *config.Config) { c.Thumbnail.PositionPercent = 100 }},
		{"unknown backend", func(c *config.Config) { c.Storage.Backend = "s3" }},
		{"minio without endpoint", func(c *config.Config) { c.Storage.Backend = config.StorageMinIO }},
		{"minio without credentials", func(c *config.Config) {
			c.Storage.Backend = config.StorageMinIO
			c.Storage.Endpoint = "localhost:9000"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestExpandPathHandlesTilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := config.ExpandPath("~/videos/in.mp4")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if got != filepath.Join(home, "videos", "in.mp4") {
		t.Fatalf("unexpected expansion %q", got)
	}
}

func TestLoadNormalizesInputRoots(t *testing.T) {
	clearMinIOEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	configPath := filepath.Join(t.TempDir(), "vidqueue.toml")
	data := "[paths]\ninput_roots = [\"~/incoming\", \"  \", \"/srv/media\"]\n"
	if err := os.WriteFile(configPath, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	want := []string{filepath.Join(home, "incoming"), "/srv/media"}
	if strings.Join(cfg.Paths.InputRoots, "|") != strings.Join(want, "|") {
		t.Fatalf("input roots = %v, want %v", cfg.Paths.InputRoots, want)
	}
}
