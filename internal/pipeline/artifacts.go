package pipeline

import (
	"context"
	"os"

	"vidqueue/internal/fileutil"
	"vidqueue/internal/logging"
	"vidqueue/internal/metrics"
	"vidqueue/internal/storage"
)

// handoff stores a local artifact and removes the local copy once stored. A
// failed upload keeps the local file and marks the run so the source is kept.
func (p *Pipeline) handoff(ctx context.Context, r *run, kind, localPath, contentType string) (string, bool) {
	key := storage.Key(r.job.ID, localPath)
	err := p.store.Put(ctx, localPath, key, contentType)
	metrics.ObserveUpload(kind, err)
	if err != nil {
		r.handoffsOK = false
		logging.WarnWithContext(r.logger, "artifact upload failed", "artifact_upload_failed",
			logging.String("artifact_kind", kind),
			logging.String("key", key),
			logging.String("local_path", localPath),
			logging.String(logging.FieldErrorHint, "check storage connectivity; the local file was kept"),
			logging.String(logging.FieldImpact, "artifact missing from the catalog"),
			logging.Error(err),
		)
		return "", false
	}
	if err := fileutil.RemoveIfExists(localPath); err != nil {
		p.warnCleanup(r, localPath, err)
	}
	return key, true
}

// cleanup removes the source after every handoff succeeded and drops the job
// directory when it is empty.
func (p *Pipeline) cleanup(r *run) {
	if r.handoffsOK {
		if err := fileutil.RemoveIfExists(r.job.InputPath); err != nil {
			p.warnCleanup(r, r.job.InputPath, err)
		}
	} else {
		r.logger.Info("keeping source file; some artifacts were not stored", logging.String("input", r.job.InputPath))
	}
	removeEmptyDir(r.outputDir)
}

func removeEmptyDir(dir string) {
	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		_ = os.Remove(dir)
	}
}

func (p *Pipeline) warnCleanup(r *run, path string, err error) {
	logging.WarnWithContext(r.logger, "cleanup failed", "cleanup_failed",
		logging.String("path", path),
		logging.String(logging.FieldErrorHint, "remove the file manually"),
		logging.String(logging.FieldImpact, "disk space is not reclaimed"),
		logging.Error(err),
	)
}
