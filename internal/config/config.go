package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	WorkDir string `toml:"work_dir"`
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
	// InputRoots limits which directories path submissions may read from.
	// Empty allows any file the daemon can read.
	InputRoots []string `toml:"input_roots"`
}

// Tier is one row of the rendition ladder as written in the config file.
type Tier struct {
	Label   string `toml:"label"`
	Height  int    `toml:"height"`
	Bitrate string `toml:"bitrate"`
}

// Transcode contains encoder binaries, quality knobs, and the rendition ladder.
type Transcode struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	VideoCodec    string `toml:"video_codec"`
	AudioCodec    string `toml:"audio_codec"`
	Container     string `toml:"container"`
	FrameRate     int    `toml:"frame_rate"`
	DisplayAspect string `toml:"display_aspect"`
	Deadline      string `toml:"deadline"`
	CPUUsed       int    `toml:"cpu_used"`
	RowMT         bool   `toml:"row_mt"`
	TileColumns   int    `toml:"tile_columns"`
	Threads       int    `toml:"threads"`
	Tiers         []Tier `toml:"tiers"`
}

// Thumbnail contains preview image settings.
type Thumbnail struct {
	Width           int     `toml:"width"`
	Height          int     `toml:"height"`
	PositionPercent float64 `toml:"position_percent"`
	JPEGQuality     int     `toml:"jpeg_quality"`
}

// Storage selects and configures the artifact store.
type Storage struct {
	Backend                 string `toml:"backend"`
	LocalDir                string `toml:"local_dir"`
	Endpoint                string `toml:"endpoint"`
	AccessKey               string `toml:"access_key"`
	SecretKey               string `toml:"secret_key"`
	Bucket                  string `toml:"bucket"`
	Region                  string `toml:"region"`
	UseSSL                  bool   `toml:"use_ssl"`
	PresignHours            int    `toml:"presign_hours"`
	ThumbnailPresignMinutes int    `toml:"thumbnail_presign_minutes"`
}

// Registry controls retention of finished progress snapshots.
type Registry struct {
	RetentionMinutes     int `toml:"retention_minutes"`
	SweepIntervalSeconds int `toml:"sweep_interval_seconds"`
}

// Notifications configures ntfy push alerts for finished conversions.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for vidqueue.
//
// Configuration sections by subsystem:
//   - Paths: work, data, and log directories plus the API bind address
//   - Transcode: ffmpeg/ffprobe binaries, encoder knobs, rendition ladder
//   - Thumbnail: preview frame size and position
//   - Storage: artifact store backend (local directory or MinIO)
//   - Registry: retention of terminal progress snapshots
//   - Notifications: optional ntfy alerts
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Transcode     Transcode     `toml:"transcode"`
	Thumbnail     Thumbnail     `toml:"thumbnail"`
	Storage       Storage       `toml:"storage"`
	Registry      Registry      `toml:"registry"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vidqueue.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkDir, c.Paths.DataDir, c.Paths.LogDir}
	if c.Storage.Backend == StorageLocal {
		dirs = append(dirs, c.Storage.LocalDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite catalog location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "vidqueue.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "vidqueued.lock")
}

// JobDir returns the scratch directory used for a single job's outputs.
func (c *Config) JobDir(jobID string) string {
	return filepath.Join(c.Paths.WorkDir, jobID)
}

// FFmpegBinary returns the ffmpeg executable used for encodes and frame grabs.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Transcode.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Transcode.FFprobeBinary); bin != "" {
		return bin
	}
	return defaultFFprobeBinary
}

// StreamURLExpiry is how long presigned rendition URLs stay valid.
func (c *Config) StreamURLExpiry() time.Duration {
	return time.Duration(c.Storage.PresignHours) * time.Hour
}

// ThumbnailURLExpiry is how long presigned thumbnail URLs stay valid.
func (c *Config) ThumbnailURLExpiry() time.Duration {
	return time.Duration(c.Storage.ThumbnailPresignMinutes) * time.Minute
}

// SnapshotRetention is how long terminal progress snapshots are kept.
func (c *Config) SnapshotRetention() time.Duration {
	return time.Duration(c.Registry.RetentionMinutes) * time.Minute
}

// NotifyTimeout bounds a single ntfy request.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeoutSeconds) * time.Second
}

// SweepInterval is how often the registry evicts expired snapshots.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Registry.SweepIntervalSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
