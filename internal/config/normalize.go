package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTranscode()
	c.normalizeThumbnail()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeRegistry()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	roots := make([]string, 0, len(c.Paths.InputRoots))
	for i, root := range c.Paths.InputRoots {
		if strings.TrimSpace(root) == "" {
			continue
		}
		expanded, err := expandPath(root)
		if err != nil {
			return fmt.Errorf("paths.input_roots[%d]: %w", i, err)
		}
		roots = append(roots, expanded)
	}
	c.Paths.InputRoots = roots
	return nil
}

func (c *Config) normalizeTranscode() {
	t := &c.Transcode
	t.FFmpegBinary = strings.TrimSpace(t.FFmpegBinary)
	t.FFprobeBinary = strings.TrimSpace(t.FFprobeBinary)
	t.VideoCodec = strings.TrimSpace(t.VideoCodec)
	if t.VideoCodec == "" {
		t.VideoCodec = defaultVideoCodec
	}
	t.AudioCodec = strings.TrimSpace(t.AudioCodec)
	if t.AudioCodec == "" {
		t.AudioCodec = defaultAudioCodec
	}
	t.Container = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(t.Container)), ".")
	if t.Container == "" {
		t.Container = defaultContainer
	}
	t.DisplayAspect = strings.TrimSpace(t.DisplayAspect)
	t.Deadline = strings.ToLower(strings.TrimSpace(t.Deadline))
	if len(t.Tiers) == 0 {
		t.Tiers = DefaultTiers()
	}
	for i := range t.Tiers {
		t.Tiers[i].Label = strings.TrimSpace(t.Tiers[i].Label)
		t.Tiers[i].Bitrate = strings.ToLower(strings.TrimSpace(t.Tiers[i].Bitrate))
		if t.Tiers[i].Label == "" && t.Tiers[i].Height > 0 {
			t.Tiers[i].Label = fmt.Sprintf("%dp", t.Tiers[i].Height)
		}
	}
}

func (c *Config) normalizeThumbnail() {
	if c.Thumbnail.JPEGQuality <= 0 {
		c.Thumbnail.JPEGQuality = defaultThumbQuality
	}
}

func (c *Config) normalizeStorage() error {
	s := &c.Storage
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	if s.Backend == "" {
		s.Backend = StorageLocal
	}
	if strings.TrimSpace(s.LocalDir) == "" {
		s.LocalDir = defaultArtifactDir
	}
	var err error
	if s.LocalDir, err = expandPath(s.LocalDir); err != nil {
		return fmt.Errorf("storage.local_dir: %w", err)
	}
	s.Endpoint = envFallback(s.Endpoint, "MINIO_ENDPOINT")
	s.AccessKey = envFallback(s.AccessKey, "MINIO_ROOT_USER")
	s.SecretKey = envFallback(s.SecretKey, "MINIO_ROOT_PASSWORD")
	s.Bucket = envFallback(s.Bucket, "MINIO_BUCKET")
	if s.Bucket == "" {
		s.Bucket = defaultBucket
	}
	s.Region = strings.TrimSpace(s.Region)
	if s.Region == "" {
		s.Region = defaultRegion
	}
	if s.PresignHours <= 0 {
		s.PresignHours = defaultPresignHours
	}
	if s.ThumbnailPresignMinutes <= 0 {
		s.ThumbnailPresignMinutes = defaultThumbPresignMin
	}
	return nil
}

func (c *Config) normalizeRegistry() {
	if c.Registry.RetentionMinutes < 0 {
		c.Registry.RetentionMinutes = 0
	}
	if c.Registry.SweepIntervalSeconds <= 0 {
		c.Registry.SweepIntervalSeconds = defaultSweepSeconds
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		c.Notifications.NtfyTopic = strings.TrimSpace(os.Getenv("NTFY_TOPIC"))
	}
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// envFallback keeps a configured value and only consults the environment when
// the file left it empty.
func envFallback(value, key string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	if env, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(env)
	}
	return ""
}
