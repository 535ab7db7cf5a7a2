package encoding

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"vidqueue/internal/fileutil"
	"vidqueue/internal/logging"
	"vidqueue/internal/media/ffprobe"
	"vidqueue/internal/services"
)

var commandContext = exec.CommandContext

// probe is swapped in tests that exercise duration discovery.
var probe = ffprobe.Inspect

// Request describes one tier encode.
type Request struct {
	InputPath       string
	OutputPath      string
	Label           string
	Height          int
	Bitrate         string
	DurationSeconds float64
}

// Event is a single progress observation for the active encode.
type Event struct {
	Percent float64
}

// Artifact describes a finished encode output.
type Artifact struct {
	Path      string
	SizeBytes int64
	Elapsed   time.Duration
}

// Stream yields progress events for one encode. Call Next until it returns
// false, then check Err; on success Artifact describes the output. Streams are
// single-use and must be closed.
type Stream interface {
	Next() bool
	Event() Event
	Err() error
	Artifact() Artifact
	Close() error
}

// Option configures the FFmpeg adapter.
type Option func(*FFmpeg)

// WithLogger attaches a logger for launch and completion messages.
func WithLogger(logger *slog.Logger) Option {
	return func(f *FFmpeg) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// FFmpeg encodes tiers with the ffmpeg CLI.
type FFmpeg struct {
	settings Settings
	logger   *slog.Logger
}

// NewFFmpeg constructs the adapter.
func NewFFmpeg(settings Settings, opts ...Option) *FFmpeg {
	if strings.TrimSpace(settings.FFmpegBinary) == "" {
		settings.FFmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(settings.FFprobeBinary) == "" {
		settings.FFprobeBinary = "ffprobe"
	}
	f := &FFmpeg{settings: settings, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.NewComponentLogger(f.logger, "encoder")
	return f
}

// Encode starts ffmpeg for one tier. The returned stream owns the process.
func (f *FFmpeg) Encode(ctx context.Context, req Request) (Stream, error) {
	if strings.TrimSpace(req.InputPath) == "" {
		return nil, services.Wrap(services.ErrValidation, "encoding", "validate request", "Input path required", nil)
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return nil, services.Wrap(services.ErrValidation, "encoding", "validate request", "Output path required", nil)
	}
	if req.Height <= 0 || strings.TrimSpace(req.Bitrate) == "" {
		return nil, services.Wrap(services.ErrValidation, "encoding", "validate request",
			fmt.Sprintf("Tier %q needs a height and bitrate", req.Label), nil)
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, "encoding", "prepare output", "Failed to create output directory", err)
	}

	duration := req.DurationSeconds
	if duration <= 0 {
		if result, err := probe(ctx, f.settings.FFprobeBinary, req.InputPath); err == nil {
			duration = result.DurationSeconds()
		} else {
			f.logger.Debug("duration probe failed; progress will be coarse", logging.Error(err))
		}
	}

	args := f.settings.buildArgs(req)
	logger := logging.WithContext(ctx, f.logger).With(logging.Tier(req.Label))
	logger.Info("launching ffmpeg encode",
		logging.String("command", f.settings.FFmpegBinary+" "+strings.Join(args, " ")),
		logging.String("input", req.InputPath),
		logging.String("output", req.OutputPath),
	)

	cmd := commandContext(ctx, f.settings.FFmpegBinary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := newTailBuffer(stderrTailBytes)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "encoding", "start ffmpeg",
			fmt.Sprintf("Failed to launch %s", f.settings.FFmpegBinary), err)
	}

	return &ffmpegStream{
		ctx:      ctx,
		cmd:      cmd,
		scanner:  bufio.NewScanner(stdout),
		stderr:   stderr,
		duration: duration,
		req:      req,
		started:  time.Now(),
		last:     -1,
		logger:   logger,
	}, nil
}

// Probe returns the static metadata of an input without transcoding it.
// Inputs ffprobe cannot read, or that carry no video stream, are reported as
// unsupported.
func (f *FFmpeg) Probe(ctx context.Context, path string) (ffprobe.Metadata, error) {
	result, err := probe(ctx, f.settings.FFprobeBinary, path)
	if err != nil {
		return ffprobe.Metadata{}, services.Wrap(services.ErrUnsupportedInput, "ingest", "probe source",
			"Source could not be read as media", err)
	}
	if _, ok := result.PrimaryVideo(); !ok {
		return ffprobe.Metadata{}, services.Wrap(services.ErrUnsupportedInput, "ingest", "probe source",
			"Source has no video stream", nil)
	}
	return result.Metadata(), nil
}

// maxStreamPercent keeps in-flight events below 100; completion is reported
// by the stream ending without error.
const maxStreamPercent = 99.9

type ffmpegStream struct {
	ctx      context.Context
	cmd      *exec.Cmd
	scanner  *bufio.Scanner
	stderr   *tailBuffer
	duration float64
	req      Request
	started  time.Time
	logger   *slog.Logger

	outTime  float64
	last     float64
	current  Event
	done     bool
	err      error
	artifact Artifact
}

func (s *ffmpegStream) Next() bool {
	if s.done {
		return false
	}
	for s.scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(s.scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			if seconds, ok := parseMicros(value); ok {
				s.outTime = seconds
			}
		case "progress":
			percent := s.percent()
			if percent > s.last {
				s.last = percent
				s.current = Event{Percent: percent}
				return true
			}
		}
	}
	s.finish(s.scanner.Err())
	return false
}

func (s *ffmpegStream) percent() float64 {
	if s.duration <= 0 {
		return 0
	}
	p := s.outTime / s.duration * 100
	if p < 0 {
		return 0
	}
	if p > maxStreamPercent {
		return maxStreamPercent
	}
	return p
}

func (s *ffmpegStream) finish(readErr error) {
	s.done = true
	waitErr := s.cmd.Wait()
	switch {
	case waitErr != nil:
		cause := waitErr
		if ctxErr := s.ctx.Err(); ctxErr != nil {
			cause = errors.Join(waitErr, ctxErr)
		}
		s.err = s.failure("ffmpeg exited abnormally", cause)
	case readErr != nil:
		s.err = s.failure("failed to read ffmpeg progress", readErr)
	default:
		info, err := os.Stat(s.req.OutputPath)
		if err != nil || info.Size() == 0 {
			if err == nil {
				err = errors.New("empty output file")
			}
			s.err = s.failure("ffmpeg produced no output", err)
			break
		}
		s.artifact = Artifact{Path: s.req.OutputPath, SizeBytes: info.Size(), Elapsed: time.Since(s.started)}
		s.logger.Info("ffmpeg encode finished",
			logging.String("output", s.req.OutputPath),
			logging.Int64("size_bytes", info.Size()),
			logging.Duration("elapsed", s.artifact.Elapsed),
		)
		return
	}
	s.discardOutput()
}

// discardOutput deletes whatever a failed encode left at the output path.
func (s *ffmpegStream) discardOutput() {
	if err := fileutil.RemoveIfExists(s.req.OutputPath); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove partial encode output", "partial_output_cleanup_failed",
			logging.String("output", s.req.OutputPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the file manually"),
			logging.String(logging.FieldImpact, "disk space is held by an unusable file"),
		)
	}
}

func (s *ffmpegStream) failure(message string, cause error) error {
	detail := s.stderr.String()
	if detail != "" {
		cause = fmt.Errorf("%w: %s", cause, detail)
	}
	return services.Wrap(services.ErrExternalTool, "encoding", "encode "+s.req.Label,
		fmt.Sprintf("Encoding %s: %s", s.req.Label, message), cause)
}

func (s *ffmpegStream) Event() Event { return s.current }

func (s *ffmpegStream) Err() error { return s.err }

func (s *ffmpegStream) Artifact() Artifact { return s.artifact }

// Close stops an unfinished encode and removes its partial output.
func (s *ffmpegStream) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	s.err = s.failure("encode abandoned before completion", context.Canceled)
	return fileutil.RemoveIfExists(s.req.OutputPath)
}
