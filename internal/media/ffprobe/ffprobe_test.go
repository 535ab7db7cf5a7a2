package ffprobe

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"
	"testing"
)

const sampleProbe = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1280, "height": 720, "duration": "61.0"},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "channels": 2, "sample_rate": "48000"},
    {"index": 2, "codec_name": "mjpeg", "codec_type": "video", "width": 300, "height": 300}
  ],
  "format": {"filename": "clip.mp4", "nb_streams": 3, "duration": "61.500000", "size": "1048576", "bit_rate": "136000", "format_name": "mov,mp4,m4a,3gp,3g2,mj2"}
}`

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio"},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
			BitRate:  "32000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if result.BitRate() != 32000 {
		t.Fatalf("unexpected bitrate: %d", result.BitRate())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
			BitRate:  "nope",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.BitRate() != 0 {
		t.Fatalf("expected bitrate 0, got %d", result.BitRate())
	}
	if meta := result.Metadata(); meta.DurationSeconds != 0 {
		t.Fatalf("expected metadata to drop NaN duration, got %v", meta.DurationSeconds)
	}
}

func TestDurationFallsBackToVideoStream(t *testing.T) {
	result := Result{Streams: []Stream{{CodecType: "video", CodecName: "vp9", Duration: "12.5"}}}
	if got := result.DurationSeconds(); got != 12.5 {
		t.Fatalf("expected stream duration fallback, got %v", got)
	}
}

func TestInspectParsesMetadata(t *testing.T) {
	var capturedArgs []string
	setHelperCommand(t, "success", &capturedArgs)

	result, err := Inspect(context.Background(), "", "/media/clip.mp4")
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	if last := capturedArgs[len(capturedArgs)-1]; last != "/media/clip.mp4" {
		t.Fatalf("expected path as final argument, got %v", capturedArgs)
	}

	meta := result.Metadata()
	want := Metadata{
		DurationSeconds: 61.5,
		SizeBytes:       1048576,
		FormatName:      "mov,mp4,m4a,3gp,3g2,mj2",
		Width:           1280,
		Height:          720,
		VideoCodec:      "h264",
		AudioCodec:      "aac",
	}
	if meta != want {
		t.Fatalf("Metadata() = %+v, want %+v", meta, want)
	}
	if len(result.RawJSON()) == 0 {
		t.Fatal("expected raw JSON to be retained")
	}
}

func TestInspectReportsToolFailure(t *testing.T) {
	setHelperCommand(t, "failure", nil)

	_, err := Inspect(context.Background(), "ffprobe", "/media/broken.bin")
	if err == nil {
		t.Fatal("expected error from failing ffprobe")
	}
	if got := err.Error(); !strings.Contains(got, "Invalid data found") {
		t.Fatalf("expected stderr text in error, got %q", got)
	}
}

func TestInspectRejectsEmptyPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "ffprobe", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func setHelperCommand(t *testing.T, mode string, captured *[]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if captured != nil {
			*captured = append([]string(nil), args...)
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("FFPROBE_HELPER_MODE=%s", mode))
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("FFPROBE_HELPER_MODE") {
	case "success":
		fmt.Print(sampleProbe)
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "/media/broken.bin: Invalid data found when processing input")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}
