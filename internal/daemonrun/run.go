package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"vidqueue/internal/catalog"
	"vidqueue/internal/config"
	"vidqueue/internal/daemon"
	"vidqueue/internal/encoding"
	"vidqueue/internal/ingest"
	"vidqueue/internal/ladder"
	"vidqueue/internal/logging"
	"vidqueue/internal/notifications"
	"vidqueue/internal/pipeline"
	"vidqueue/internal/preflight"
	"vidqueue/internal/progress"
	"vidqueue/internal/queue"
	"vidqueue/internal/storage"
	"vidqueue/internal/thumbnail"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the vidqueue daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logPreflight(signalCtx, logger, cfg)

	pidPath := filepath.Join(cfg.Paths.DataDir, "vidqueued.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	cat, err := catalog.Open(cfg)
	if err != nil {
		logger.Error("open catalog", logging.Error(err))
		return err
	}
	defer cat.Close()

	if n, err := cat.FailInterrupted(signalCtx); err != nil {
		return fmt.Errorf("recover interrupted videos: %w", err)
	} else if n > 0 {
		logging.WarnWithContext(logger, "marked interrupted conversions failed", "interrupted_videos_failed",
			logging.Int64("count", n),
			logging.String(logging.FieldErrorHint, "resubmit the sources to convert them again"),
			logging.String(logging.FieldImpact, "videos from the previous run have no complete ladder"),
		)
	}

	store, err := storage.Open(signalCtx, cfg)
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}

	// Jobs outlive the signal so Stop can drain the active encode.
	jobCtx, jobCancel := context.WithCancel(context.WithoutCancel(cmdCtx))
	defer jobCancel()

	registry := progress.New(progress.WithRetention(cfg.SnapshotRetention()))
	q := queue.New(registry, queue.WithLogger(logger), queue.WithBaseContext(jobCtx))

	encoder := encoding.NewFFmpeg(encoding.SettingsFromConfig(cfg), encoding.WithLogger(logger))
	notifier := notifications.NewService(cfg)
	if notifications.Enabled(notifier) {
		logger.Info("ntfy notifications enabled", logging.String("topic", cfg.Notifications.NtfyTopic))
	}

	pipe, err := pipeline.New(pipeline.Config{
		Encoder:     encoder,
		Thumbnailer: thumbnail.NewExtractor(thumbnail.SettingsFromConfig(cfg), logger),
		Store:       store,
		Catalog:     cat,
		Progress:    registry,
		Tiers:       ladder.FromConfig(cfg.Transcode.Tiers),
		Container:   cfg.Transcode.Container,
		WorkDir:     cfg.Paths.WorkDir,
		Notifier:    notifier,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	submitter := ingest.NewService(encoder, cat, q, pipe.Run, filepath.Join(cfg.Paths.WorkDir, "uploads"),
		ingest.WithLogger(logger), ingest.WithInputRoots(cfg.Paths.InputRoots))

	d, err := daemon.New(cfg, daemon.Deps{
		Catalog:  cat,
		Registry: registry,
		Queue:    q,
		Ingest:   submitter,
		Store:    store,

		CancelJobs: jobCancel,
	}, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.String(logging.FieldErrorHint, "check for another running daemon and the api bind address"),
			logging.Error(err),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("vidqueue daemon shutting down")
	return nil
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, status := range preflight.CheckSystemDeps(ctx, cfg) {
		if status.Available {
			logger.Info("dependency available",
				logging.String(logging.FieldEventType, "dependency_snapshot"),
				logging.String("dependency", status.Name),
				logging.String("command", status.Command),
			)
			continue
		}
		logging.WarnWithContext(logger, "dependency unavailable", "dependency_missing",
			logging.String("dependency", status.Name),
			logging.String("command", status.Command),
			logging.String("detail", status.Detail),
			logging.String(logging.FieldImpact, "transcodes will fail until it is installed"),
		)
	}
	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
