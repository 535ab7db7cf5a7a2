package encoding

import (
	"strconv"

	"vidqueue/internal/config"
)

// Settings holds the fixed encoder knobs shared by every tier.
type Settings struct {
	FFmpegBinary  string
	FFprobeBinary string
	VideoCodec    string
	AudioCodec    string
	FrameRate     int
	DisplayAspect string
	Deadline      string
	CPUUsed       int
	RowMT         bool
	TileColumns   int
	Threads       int
}

// SettingsFromConfig extracts encoder settings from the transcode section.
func SettingsFromConfig(cfg *config.Config) Settings {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	t := cfg.Transcode
	return Settings{
		FFmpegBinary:  cfg.FFmpegBinary(),
		FFprobeBinary: cfg.FFprobeBinary(),
		VideoCodec:    t.VideoCodec,
		AudioCodec:    t.AudioCodec,
		FrameRate:     t.FrameRate,
		DisplayAspect: t.DisplayAspect,
		Deadline:      t.Deadline,
		CPUUsed:       t.CPUUsed,
		RowMT:         t.RowMT,
		TileColumns:   t.TileColumns,
		Threads:       t.Threads,
	}
}

// buildArgs renders the ffmpeg argument list for one tier.
func (s Settings) buildArgs(req Request) []string {
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-nostats", "-progress", "pipe:1",
		"-i", req.InputPath,
	}
	if s.VideoCodec != "" {
		args = append(args, "-c:v", s.VideoCodec)
	}
	if s.AudioCodec != "" {
		args = append(args, "-c:a", s.AudioCodec)
	}
	args = append(args, "-b:v", req.Bitrate)
	if s.FrameRate > 0 {
		args = append(args, "-r", strconv.Itoa(s.FrameRate))
	}
	args = append(args, "-vf", s.videoFilter(req.Height))
	if s.Deadline != "" {
		args = append(args, "-deadline", s.Deadline)
	}
	args = append(args, "-cpu-used", strconv.Itoa(s.CPUUsed))
	if s.RowMT {
		args = append(args, "-row-mt", "1")
	}
	if s.TileColumns > 0 {
		args = append(args, "-tile-columns", strconv.Itoa(s.TileColumns))
	}
	if s.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(s.Threads))
	}
	return append(args, req.OutputPath)
}

// videoFilter scales to the tier height keeping an even width, then pins the
// display aspect so every rendition presents identically.
func (s Settings) videoFilter(height int) string {
	filter := "scale=-2:" + strconv.Itoa(height)
	if s.DisplayAspect != "" {
		filter += ",setdar=" + s.DisplayAspect
	}
	return filter
}
