package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"vidqueue/internal/config"
	"vidqueue/internal/logging"
	"vidqueue/internal/services"
)

var commandContext = exec.CommandContext

// Settings controls preview frame selection and output size.
type Settings struct {
	FFmpegBinary    string
	Width           int
	Height          int
	PositionPercent float64
	JPEGQuality     int
}

// SettingsFromConfig extracts thumbnail settings from configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		FFmpegBinary:    cfg.FFmpegBinary(),
		Width:           cfg.Thumbnail.Width,
		Height:          cfg.Thumbnail.Height,
		PositionPercent: cfg.Thumbnail.PositionPercent,
		JPEGQuality:     cfg.Thumbnail.JPEGQuality,
	}
}

// Extractor grabs one still frame from a video and writes a fixed-size JPEG.
type Extractor struct {
	settings Settings
	logger   *slog.Logger
}

// NewExtractor constructs an extractor.
func NewExtractor(settings Settings, logger *slog.Logger) *Extractor {
	if strings.TrimSpace(settings.FFmpegBinary) == "" {
		settings.FFmpegBinary = "ffmpeg"
	}
	if settings.JPEGQuality <= 0 {
		settings.JPEGQuality = 85
	}
	return &Extractor{settings: settings, logger: logging.NewComponentLogger(logger, "thumbnail")}
}

// OutputPath returns the conventional thumbnail location for a job.
func OutputPath(outputDir, stem string) string {
	return filepath.Join(outputDir, stem+"_thumbnail.jpg")
}

// Extract seeks to the configured share of durationSeconds, decodes the frame,
// and stores a cropped-to-fill JPEG at outputPath.
func (e *Extractor) Extract(ctx context.Context, inputPath, outputPath string, durationSeconds float64) error {
	offset := 0.0
	if durationSeconds > 0 {
		offset = durationSeconds * e.settings.PositionPercent / 100
	}

	args := []string{
		"-hide_banner", "-nostdin", "-v", "error",
		"-ss", strconv.FormatFloat(offset, 'f', 3, 64),
		"-i", inputPath,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	}
	cmd := commandContext(ctx, e.settings.FFmpegBinary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return services.Wrap(services.ErrExternalTool, "thumbnail", "extract frame",
			"ffmpeg could not extract a preview frame",
			fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())))
	}
	if stdout.Len() == 0 {
		return services.Wrap(services.ErrExternalTool, "thumbnail", "extract frame",
			"ffmpeg produced no preview frame", nil)
	}

	img, err := imaging.Decode(&stdout)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "thumbnail", "decode frame",
			"Preview frame could not be decoded", err)
	}
	thumb := imaging.Fill(img, e.settings.Width, e.settings.Height, imaging.Center, imaging.Lanczos)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "thumbnail", "prepare output", "Failed to create thumbnail directory", err)
	}
	if err := imaging.Save(thumb, outputPath, imaging.JPEGQuality(e.settings.JPEGQuality)); err != nil {
		return services.Wrap(services.ErrTransient, "thumbnail", "write jpeg", "Failed to write thumbnail", err)
	}

	logging.WithContext(ctx, e.logger).Debug("thumbnail extracted",
		logging.String("output", outputPath),
		logging.Float64("offset_seconds", offset),
	)
	return nil
}
