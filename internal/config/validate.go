package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateTiers(); err != nil {
		return err
	}
	if err := c.validateThumbnail(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateRegistry(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTranscode() error {
	t := c.Transcode
	if err := ensurePositiveMap(map[string]int{
		"transcode.frame_rate": t.FrameRate,
		"transcode.threads":    t.Threads,
	}); err != nil {
		return err
	}
	if t.TileColumns < 0 {
		return errors.New("transcode.tile_columns must be >= 0")
	}
	if t.CPUUsed < -8 || t.CPUUsed > 8 {
		return errors.New("transcode.cpu_used must be between -8 and 8")
	}
	switch t.Deadline {
	case "", "good", "best", "realtime":
	default:
		return fmt.Errorf("transcode.deadline: unsupported value %q (want good, best, or realtime)", t.Deadline)
	}
	if t.DisplayAspect != "" && !validAspect(t.DisplayAspect) {
		return fmt.Errorf("transcode.display_aspect: %q is not of the form W/H", t.DisplayAspect)
	}
	return nil
}

func (c *Config) validateTiers() error {
	tiers := c.Transcode.Tiers
	if len(tiers) == 0 {
		return errors.New("transcode.tiers must include at least one tier")
	}
	seen := make(map[string]struct{}, len(tiers))
	prevHeight := 0
	for i, tier := range tiers {
		if tier.Label == "" {
			return fmt.Errorf("transcode.tiers[%d].label must be set", i)
		}
		if _, dup := seen[tier.Label]; dup {
			return fmt.Errorf("transcode.tiers[%d]: duplicate label %q", i, tier.Label)
		}
		seen[tier.Label] = struct{}{}
		if tier.Height <= 0 {
			return fmt.Errorf("transcode.tiers[%d].height must be positive", i)
		}
		if tier.Height <= prevHeight {
			return fmt.Errorf("transcode.tiers[%d]: heights must be strictly ascending (%d after %d)", i, tier.Height, prevHeight)
		}
		prevHeight = tier.Height
		if !validBitrate(tier.Bitrate) {
			return fmt.Errorf("transcode.tiers[%d].bitrate: %q is not a positive rate such as 400k", i, tier.Bitrate)
		}
	}
	return nil
}

func (c *Config) validateThumbnail() error {
	if c.Thumbnail.Width <= 0 || c.Thumbnail.Height <= 0 {
		return errors.New("thumbnail.width and thumbnail.height must be positive")
	}
	if c.Thumbnail.PositionPercent < 0 || c.Thumbnail.PositionPercent >= 100 {
		return errors.New("thumbnail.position_percent must be in [0, 100)")
	}
	if c.Thumbnail.JPEGQuality > 100 {
		return errors.New("thumbnail.jpeg_quality must be <= 100")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageLocal:
		if strings.TrimSpace(c.Storage.LocalDir) == "" {
			return errors.New("storage.local_dir must be set when storage.backend is local")
		}
	case StorageMinIO:
		if c.Storage.Endpoint == "" {
			return errors.New("storage.endpoint must be set when storage.backend is minio (or set MINIO_ENDPOINT)")
		}
		if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			return errors.New("storage.access_key and storage.secret_key must be set when storage.backend is minio (or set MINIO_ROOT_USER/MINIO_ROOT_PASSWORD)")
		}
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (want local or minio)", c.Storage.Backend)
	}
	return nil
}

func (c *Config) validateRegistry() error {
	if c.Registry.SweepIntervalSeconds <= 0 {
		return errors.New("registry.sweep_interval_seconds must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func validBitrate(value string) bool {
	digits := strings.TrimRight(value, "km")
	if digits == "" || len(value)-len(digits) > 1 {
		return false
	}
	n, err := strconv.Atoi(digits)
	return err == nil && n > 0
}

func validAspect(value string) bool {
	w, h, ok := strings.Cut(value, "/")
	if !ok {
		return false
	}
	wn, err := strconv.Atoi(w)
	if err != nil || wn <= 0 {
		return false
	}
	hn, err := strconv.Atoi(h)
	return err == nil && hn > 0
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL, got %q", topic)
	}
	return nil
}
