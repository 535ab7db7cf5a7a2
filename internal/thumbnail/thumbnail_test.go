package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"vidqueue/internal/logging"
	"vidqueue/internal/services"
)

func setHelperCommand(t *testing.T, mode string, captured *[]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if captured != nil {
			*captured = append([]string(nil), args...)
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("THUMB_HELPER_MODE=%s", mode))
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func newExtractor() *Extractor {
	return NewExtractor(Settings{Width: 320, Height: 240, PositionPercent: 10, JPEGQuality: 80}, logging.NewNop())
}

func TestExtractWritesFixedSizeJPEG(t *testing.T) {
	var args []string
	setHelperCommand(t, "frame", &args)
	out := OutputPath(filepath.Join(t.TempDir(), "job"), "clip")

	if err := newExtractor().Extract(context.Background(), "/media/clip.mp4", out, 120); err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if filepath.Base(out) != "clip_thumbnail.jpg" {
		t.Fatalf("unexpected output name %q", out)
	}

	img, err := imaging.Open(out)
	if err != nil {
		t.Fatalf("open thumbnail: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 240 {
		t.Fatalf("thumbnail size = %dx%d, want 320x240", b.Dx(), b.Dy())
	}

	seek := ""
	for i, arg := range args {
		if arg == "-ss" && i+1 < len(args) {
			seek = args[i+1]
		}
	}
	if seek != "12.000" {
		t.Fatalf("expected seek to 10%% of 120s, got %q in %v", seek, args)
	}
}

func TestExtractUnknownDurationSeeksToStart(t *testing.T) {
	var args []string
	setHelperCommand(t, "frame", &args)
	out := filepath.Join(t.TempDir(), "thumb.jpg")

	if err := newExtractor().Extract(context.Background(), "/media/clip.mp4", out, 0); err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if args[5] != "0.000" {
		t.Fatalf("expected zero seek, got %v", args)
	}
}

func TestExtractFailures(t *testing.T) {
	for _, mode := range []string{"failure", "empty", "garbage"} {
		t.Run(mode, func(t *testing.T) {
			setHelperCommand(t, mode, nil)
			out := filepath.Join(t.TempDir(), "thumb.jpg")
			err := newExtractor().Extract(context.Background(), "/media/clip.mp4", out, 60)
			if !errors.Is(err, services.ErrExternalTool) {
				t.Fatalf("expected external tool error, got %v", err)
			}
			if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
				t.Fatalf("expected no thumbnail written, stat err = %v", statErr)
			}
		})
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("THUMB_HELPER_MODE") {
	case "frame":
		img := image.NewRGBA(image.Rect(0, 0, 640, 360))
		for y := 0; y < 360; y++ {
			for x := 0; x < 640; x++ {
				img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
			}
		}
		_ = png.Encode(os.Stdout, img)
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "Output file is empty, nothing was encoded")
		os.Exit(1)
	case "garbage":
		fmt.Print("not an image")
		os.Exit(0)
	default:
		os.Exit(0)
	}
}
