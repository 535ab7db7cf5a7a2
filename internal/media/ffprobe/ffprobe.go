package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
	raw     []byte
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
	FrameRate  string `json:"avg_frame_rate"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Metadata is the flattened source summary recorded when a video is submitted.
type Metadata struct {
	DurationSeconds float64 `json:"duration"`
	SizeBytes       int64   `json:"size"`
	FormatName      string  `json:"format"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	VideoCodec      string  `json:"videoCodec"`
	AudioCodec      string  `json:"audioCodec,omitempty"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := commandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	result.raw = append([]byte(nil), output...)
	return result, nil
}

// RawJSON returns the raw ffprobe JSON payload.
func (r Result) RawJSON() []byte {
	return append([]byte(nil), r.raw...)
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	return r.countType("video")
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	return r.countType("audio")
}

func (r Result) countType(codecType string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, codecType) {
			count++
		}
	}
	return count
}

// PrimaryVideo returns the first video stream, skipping attached cover art.
func (r Result) PrimaryVideo() (Stream, bool) {
	return r.first("video")
}

// PrimaryAudio returns the first audio stream.
func (r Result) PrimaryAudio() (Stream, bool) {
	return r.first("audio")
}

func (r Result) first(codecType string) (Stream, bool) {
	for _, stream := range r.Streams {
		if !strings.EqualFold(stream.CodecType, codecType) {
			continue
		}
		if codecType == "video" && isStillImageCodec(stream.CodecName) {
			continue
		}
		return stream, true
	}
	return Stream{}, false
}

func isStillImageCodec(name string) bool {
	switch strings.ToLower(name) {
	case "mjpeg", "png", "bmp", "gif":
		return true
	}
	return false
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
// When the container omits a duration the primary video stream's value is used.
func (r Result) DurationSeconds() float64 {
	if strings.TrimSpace(r.Format.Duration) == "" {
		if video, ok := r.PrimaryVideo(); ok {
			return parseFloat(video.Duration)
		}
	}
	return parseFloat(r.Format.Duration)
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

// BitRate returns the container bitrate in bits per second, or 0 when unavailable.
func (r Result) BitRate() int64 {
	rate := parseFloat(r.Format.BitRate)
	if math.IsNaN(rate) || rate < 0 {
		return 0
	}
	return int64(rate)
}

// Metadata summarizes the probe into the fields stored with a video record.
func (r Result) Metadata() Metadata {
	meta := Metadata{
		SizeBytes:  r.SizeBytes(),
		FormatName: r.Format.FormatName,
	}
	if d := r.DurationSeconds(); !math.IsNaN(d) && d > 0 {
		meta.DurationSeconds = d
	}
	if video, ok := r.PrimaryVideo(); ok {
		meta.Width = video.Width
		meta.Height = video.Height
		meta.VideoCodec = video.CodecName
	}
	if audio, ok := r.PrimaryAudio(); ok {
		meta.AudioCodec = audio.CodecName
	}
	return meta
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" || cleaned == "N/A" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
