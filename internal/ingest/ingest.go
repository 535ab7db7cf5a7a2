package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"vidqueue/internal/catalog"
	"vidqueue/internal/fileutil"
	"vidqueue/internal/logging"
	"vidqueue/internal/media/ffprobe"
	"vidqueue/internal/queue"
	"vidqueue/internal/services"
)

// Prober reads static media metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (ffprobe.Metadata, error)
}

// Catalog records submitted videos.
type Catalog interface {
	Create(ctx context.Context, video *catalog.Video) error
	ApplyOutcome(ctx context.Context, id string, outcome catalog.Outcome) error
}

// Enqueuer accepts conversion jobs.
type Enqueuer interface {
	Enqueue(job queue.Job, task queue.Task) error
}

// Request describes one submission.
type Request struct {
	Title       string
	Description string
	Tags        []string
	SourcePath  string
	// Name is the client-side file name of an upload. Output files are named
	// after it instead of SourcePath when set.
	Name string
	// Staged marks SourcePath as already owned by vidqueue; it is consumed in
	// place instead of copied.
	Staged bool
}

// Service wires submissions into the catalog and the queue.
type Service struct {
	prober     Prober
	catalog    Catalog
	queue      Enqueuer
	task       queue.Task
	uploadDir  string
	inputRoots []string
	newID      func() string
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIDGenerator overrides video id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithInputRoots restricts path submissions to files under roots.
func WithInputRoots(roots []string) Option {
	return func(s *Service) {
		s.inputRoots = append([]string(nil), roots...)
	}
}

// NewService constructs the ingest flow. task runs each conversion.
func NewService(prober Prober, cat Catalog, q Enqueuer, task queue.Task, uploadDir string, opts ...Option) *Service {
	s := &Service{
		prober:    prober,
		catalog:   cat,
		queue:     q,
		task:      task,
		uploadDir: uploadDir,
		newID:     uuid.NewString,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "ingest")
	return s
}

// UploadDir returns where staged sources are kept.
func (s *Service) UploadDir() string {
	return s.uploadDir
}

// Submit registers a new video and queues its conversion.
func (s *Service) Submit(ctx context.Context, req Request) (*catalog.Video, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, services.Wrap(services.ErrValidation, "ingest", "validate", "Title required", nil)
	}
	source := strings.TrimSpace(req.SourcePath)
	if source == "" {
		return nil, services.Wrap(services.ErrValidation, "ingest", "validate", "Source path required", nil)
	}
	ok, err := fileutil.IsRegularFile(source)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "ingest", "validate", "Source file unreadable", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "ingest", "validate",
			fmt.Sprintf("Source %s is missing or empty", source), nil)
	}
	if !req.Staged {
		if err := s.checkInputRoot(source); err != nil {
			return nil, err
		}
	}

	meta, err := s.prober.Probe(ctx, source)
	if err != nil {
		return nil, err
	}

	id := s.newID()
	stemSource := source
	if name := strings.TrimSpace(req.Name); name != "" {
		stemSource = name
	}
	stem := OutputStem(stemSource, id)
	input := source
	if !req.Staged {
		input = filepath.Join(s.uploadDir, id+strings.ToLower(filepath.Ext(source)))
		if err := fileutil.CopyFileVerified(source, input); err != nil {
			return nil, services.Wrap(services.ErrTransient, "ingest", "stage source", "Failed to copy source", err)
		}
	}

	video := &catalog.Video{
		ID:          id,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Tags:        NormalizeTags(req.Tags),
		SourcePath:  input,
		Original:    meta,
		Status:      catalog.StatusPending,
	}
	if err := s.catalog.Create(ctx, video); err != nil {
		s.discard(input, req.Staged)
		return nil, fmt.Errorf("record video: %w", err)
	}

	job := queue.Job{ID: id, Title: title, InputPath: input, OutputStem: stem, DurationSeconds: meta.DurationSeconds}
	if err := s.queue.Enqueue(job, s.task); err != nil {
		if outcomeErr := s.catalog.ApplyOutcome(ctx, id, catalog.Outcome{
			Status:       catalog.StatusFailed,
			ErrorMessage: err.Error(),
		}); outcomeErr != nil {
			err = errors.Join(err, outcomeErr)
		}
		s.discard(input, req.Staged)
		return nil, fmt.Errorf("enqueue video: %w", err)
	}

	s.logger.Info("video submitted",
		logging.JobID(id),
		logging.String("title", title),
		logging.String("input", input),
		logging.Float64("duration_seconds", meta.DurationSeconds),
		logging.String("resolution", fmt.Sprintf("%dx%d", meta.Width, meta.Height)),
	)
	return video, nil
}

func (s *Service) discard(input string, staged bool) {
	if staged {
		return
	}
	if err := os.Remove(input); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Debug("failed to remove staged source", logging.String("path", input), logging.Error(err))
	}
}

var unsafeStemChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// OutputStem derives a filesystem-safe artifact name from the source file,
// falling back to the video id.
func OutputStem(source, id string) string {
	stem := unsafeStemChars.ReplaceAllString(fileutil.Stem(source), "_")
	stem = strings.Trim(stem, "_-")
	if len(stem) > 64 {
		stem = stem[:64]
	}
	if stem == "" {
		return id
	}
	return stem
}

// NormalizeTags trims, lowercases, and de-duplicates tags in order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		for _, part := range strings.Split(tag, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			if _, dup := seen[part]; dup {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// checkInputRoot rejects sources that resolve outside every configured root.
// Symlinks are resolved on both sides so a link cannot point out of a root.
func (s *Service) checkInputRoot(source string) error {
	if len(s.inputRoots) == 0 {
		return nil
	}
	resolved, err := filepath.EvalSymlinks(source)
	if err == nil {
		resolved, err = filepath.Abs(resolved)
	}
	if err != nil {
		return services.Wrap(services.ErrValidation, "ingest", "validate", "Source path could not be resolved", err)
	}
	for _, root := range s.inputRoots {
		base, err := filepath.EvalSymlinks(root)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(base, resolved)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil
		}
	}
	return services.Wrap(services.ErrValidation, "ingest", "validate",
		fmt.Sprintf("Source %s is outside paths.input_roots", source), nil)
}
