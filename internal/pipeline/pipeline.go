package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidqueue/internal/catalog"
	"vidqueue/internal/encoding"
	"vidqueue/internal/ladder"
	"vidqueue/internal/logging"
	"vidqueue/internal/metrics"
	"vidqueue/internal/progress"
	"vidqueue/internal/queue"
	"vidqueue/internal/services"
	"vidqueue/internal/storage"
	"vidqueue/internal/thumbnail"
)

// Encoder starts one tier encode.
type Encoder interface {
	Encode(ctx context.Context, req encoding.Request) (encoding.Stream, error)
}

// Thumbnailer writes a preview image for an input.
type Thumbnailer interface {
	Extract(ctx context.Context, inputPath, outputPath string, durationSeconds float64) error
}

// Catalog receives the processing and terminal updates for a video.
type Catalog interface {
	MarkProcessing(ctx context.Context, id string) error
	RecordArtifacts(ctx context.Context, id string, outcome catalog.Outcome) error
	ApplyOutcome(ctx context.Context, id string, outcome catalog.Outcome) error
}

// Reporter stores progress snapshots.
type Reporter interface {
	Set(jobID string, snap progress.Snapshot) error
}

// Result describes one stored tier.
type Result struct {
	Label   string
	Path    string
	Key     string
	Bitrate string
}

// Artifact kinds used for metrics and logs.
const (
	KindThumbnail = "thumbnail"
	KindRendition = "rendition"
)

// Notifier is told about finished conversions.
type Notifier interface {
	NotifyVideoReady(ctx context.Context, title string, renditions int) error
	NotifyVideoFailed(ctx context.Context, title string, err error) error
}

// Config wires the pipeline's collaborators. Notifier is optional.
type Config struct {
	Encoder     Encoder
	Thumbnailer Thumbnailer
	Store       storage.Store
	Catalog     Catalog
	Progress    Reporter
	Tiers       []ladder.Tier
	Container   string
	WorkDir     string
	Notifier    Notifier
	Logger      *slog.Logger
}

// Pipeline runs the conversion stages for one job at a time.
type Pipeline struct {
	encoder   Encoder
	thumbs    Thumbnailer
	store     storage.Store
	catalog   Catalog
	progress  Reporter
	tiers     []ladder.Tier
	container string
	workDir   string
	notifier  Notifier
	logger    *slog.Logger
}

// New validates cfg and builds a pipeline.
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Encoder == nil:
		return nil, errors.New("pipeline: encoder required")
	case cfg.Thumbnailer == nil:
		return nil, errors.New("pipeline: thumbnailer required")
	case cfg.Store == nil:
		return nil, errors.New("pipeline: artifact store required")
	case cfg.Catalog == nil:
		return nil, errors.New("pipeline: catalog required")
	case cfg.Progress == nil:
		return nil, errors.New("pipeline: progress reporter required")
	case strings.TrimSpace(cfg.WorkDir) == "":
		return nil, errors.New("pipeline: work directory required")
	}
	if err := ladder.Validate(cfg.Tiers); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		encoder:   cfg.Encoder,
		thumbs:    cfg.Thumbnailer,
		store:     cfg.Store,
		catalog:   cfg.Catalog,
		progress:  cfg.Progress,
		tiers:     append([]ladder.Tier(nil), cfg.Tiers...),
		container: cfg.Container,
		workDir:   cfg.WorkDir,
		notifier:  cfg.Notifier,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
	}, nil
}

// run carries the state of one execution.
type run struct {
	job          queue.Job
	outputDir    string
	stem         string
	track        tracker
	thumbnailKey string
	results      []Result
	handoffsOK   bool
	logger       *slog.Logger
}

// Run converts job.InputPath. It satisfies queue.Task; the returned error is
// the job's failure detail.
func (p *Pipeline) Run(ctx context.Context, job queue.Job) error {
	stem := strings.TrimSpace(job.OutputStem)
	if stem == "" {
		stem = job.ID
	}
	r := &run{
		job:        job,
		outputDir:  filepath.Join(p.workDir, job.ID),
		stem:       stem,
		track:      tracker{total: len(p.tiers)},
		handoffsOK: true,
		logger:     logging.WithContext(ctx, p.logger),
	}

	if err := p.catalog.MarkProcessing(ctx, job.ID); err != nil {
		logging.WarnWithContext(r.logger, "catalog processing update failed", "catalog_update_failed",
			logging.String(logging.FieldErrorHint, "check the catalog database"),
			logging.String(logging.FieldImpact, "video listing shows a stale status"),
			logging.Error(err),
		)
	}
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return p.fail(ctx, r, services.Wrap(services.ErrTransient, "pipeline", "prepare output",
			"Failed to create job directory", err))
	}

	if err := p.thumbnailStage(ctx, r); err != nil {
		return p.fail(ctx, r, err)
	}
	for _, task := range ladder.Plan(p.tiers, r.outputDir, r.stem, p.container) {
		if err := p.encodeTier(ctx, r, task); err != nil {
			return p.fail(ctx, r, err)
		}
	}
	p.finalize(ctx, r)
	return nil
}

func (p *Pipeline) thumbnailStage(ctx context.Context, r *run) error {
	ctx = services.WithStage(ctx, "thumbnail")
	p.report(r, r.track.snapshot("Extracting thumbnail", "", 0, 0))

	output := thumbnail.OutputPath(r.outputDir, r.stem)
	if err := p.thumbs.Extract(ctx, r.job.InputPath, output, r.job.DurationSeconds); err != nil {
		return err
	}
	if key, ok := p.handoff(ctx, r, KindThumbnail, output, "image/jpeg"); ok {
		r.thumbnailKey = key
		p.recordArtifacts(ctx, r)
	}
	return nil
}

func (p *Pipeline) encodeTier(ctx context.Context, r *run, task ladder.Task) error {
	tier := task.Tier
	ctx = services.WithStage(ctx, "encode")
	logger := r.logger.With(logging.Tier(tier.Label))
	message := fmt.Sprintf("Encoding %s (%d/%d)", tier.Label, task.Step, task.TotalSteps)
	p.report(r, r.track.snapshot(message, tier.Label, 0, task.Step))

	started := time.Now()
	stream, err := p.encoder.Encode(ctx, encoding.Request{
		InputPath:       r.job.InputPath,
		OutputPath:      task.OutputPath,
		Label:           tier.Label,
		Height:          tier.Height,
		Bitrate:         tier.Bitrate,
		DurationSeconds: r.job.DurationSeconds,
	})
	if err != nil {
		return err
	}
	defer stream.Close()

	sampler := logging.NewProgressSampler(25, time.Minute)
	lastTier := 0
	for stream.Next() {
		pct := tierPercent(stream.Event().Percent)
		moved := r.track.advance(pct)
		if !moved && pct <= lastTier {
			continue
		}
		lastTier = max(lastTier, pct)
		p.report(r, r.track.snapshot(message, tier.Label, lastTier, task.Step))
		if sampler.ShouldLog(float64(pct), tier.Label) {
			logger.Debug("tier progress", logging.Int("tier_percent", pct), logging.Int("overall_percent", r.track.overall))
		}
	}
	if err := stream.Err(); err != nil {
		return err
	}
	artifact := stream.Artifact()
	metrics.TierEncodeDuration.WithLabelValues(tier.Label).Observe(time.Since(started).Seconds())

	r.track.finishTier()
	p.report(r, r.track.snapshot(fmt.Sprintf("Finished %s (%d/%d)", tier.Label, task.Step, task.TotalSteps),
		tier.Label, 100, task.Step))
	logger.Info("tier encoded",
		logging.Int("step", task.Step),
		logging.Int("total_steps", task.TotalSteps),
		logging.Int64("size_bytes", artifact.SizeBytes),
		logging.Bool("visible", r.track.visible),
	)

	path := artifact.Path
	if path == "" {
		path = task.OutputPath
	}
	if key, ok := p.handoff(ctx, r, KindRendition, path, storage.ContentType(path)); ok {
		r.results = append(r.results, Result{Label: tier.Label, Path: path, Key: key, Bitrate: tier.Bitrate})
		p.recordArtifacts(ctx, r)
	}
	return nil
}

func (p *Pipeline) report(r *run, snap progress.Snapshot) {
	if err := p.progress.Set(r.job.ID, snap); err != nil {
		r.logger.Debug("progress write rejected", logging.Error(err))
	}
}

func (p *Pipeline) finalize(ctx context.Context, r *run) {
	outcome := r.outcome(catalog.StatusCompleted, "")
	if len(r.results) == 0 {
		logging.WarnWithContext(r.logger, "no rendition reached the artifact store", "renditions_not_stored",
			logging.String(logging.FieldErrorHint, "check storage connectivity; encoded files remain in the work directory"),
			logging.String(logging.FieldImpact, "video has no playable rendition"),
			logging.String("work_dir", r.outputDir),
		)
	}
	p.applyOutcome(ctx, r, outcome)
	p.cleanup(r)
	p.notify(ctx, r, func(ctx context.Context, n Notifier) error {
		return n.NotifyVideoReady(ctx, r.title(), len(r.results))
	})
	r.logger.Info("video converted",
		logging.Int("renditions", len(r.results)),
		logging.String("default_key", outcome.DefaultKey),
	)
}

func (p *Pipeline) fail(ctx context.Context, r *run, err error) error {
	removeEmptyDir(r.outputDir)
	p.applyOutcome(ctx, r, r.outcome(catalog.StatusFailed, err.Error()))
	p.notify(ctx, r, func(ctx context.Context, n Notifier) error {
		return n.NotifyVideoFailed(ctx, r.title(), err)
	})
	return err
}

func (p *Pipeline) notify(ctx context.Context, r *run, send func(context.Context, Notifier) error) {
	if p.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := send(notifyCtx, p.notifier); err != nil {
		logging.WarnWithContext(r.logger, "notification failed", "notification_failed",
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.Error(err),
		)
	}
}

// recordArtifacts publishes stored artifacts while the job is still running.
// A failed write is retried implicitly by the next artifact or the outcome.
func (p *Pipeline) recordArtifacts(ctx context.Context, r *run) {
	if err := p.catalog.RecordArtifacts(ctx, r.job.ID, r.outcome(catalog.StatusProcessing, "")); err != nil {
		logging.WarnWithContext(r.logger, "catalog artifact update failed", "catalog_update_failed",
			logging.String(logging.FieldErrorHint, "check the catalog database"),
			logging.String(logging.FieldImpact, "finished renditions are not playable until the job ends"),
			logging.Error(err),
		)
	}
}

func (p *Pipeline) applyOutcome(ctx context.Context, r *run, outcome catalog.Outcome) {
	// The job's own context may already be cancelled on failure.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.catalog.ApplyOutcome(writeCtx, r.job.ID, outcome); err != nil {
		logging.ErrorWithContext(r.logger, "catalog outcome update failed", "catalog_update_failed",
			logging.String(logging.FieldErrorHint, "check the catalog database"),
			logging.String("conversion_status", string(outcome.Status)),
			logging.Error(err),
		)
	}
}

func (r *run) title() string {
	if title := strings.TrimSpace(r.job.Title); title != "" {
		return title
	}
	return r.stem
}

// outcome builds the catalog update. The lowest stored tier is the default
// rendition.
func (r *run) outcome(status catalog.Status, errMsg string) catalog.Outcome {
	out := catalog.Outcome{
		Status:       status,
		ThumbnailKey: r.thumbnailKey,
		ErrorMessage: errMsg,
	}
	for _, res := range r.results {
		out.Renditions = append(out.Renditions, catalog.Rendition{
			Resolution: res.Label,
			Key:        res.Key,
			Bitrate:    res.Bitrate,
		})
	}
	if len(r.results) > 0 {
		out.DefaultKey = r.results[0].Key
	}
	return out
}
