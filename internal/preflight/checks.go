package preflight

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"vidqueue/internal/config"
	"vidqueue/internal/deps"
	"vidqueue/internal/storage"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckStorage verifies the configured artifact store is usable. The MinIO
// backend is contacted and its bucket created when missing.
func CheckStorage(ctx context.Context, cfg *config.Config) Result {
	const name = "Artifact store"

	if cfg.Storage.Backend != config.StorageMinIO {
		result := CheckDirectoryAccess(name, cfg.Storage.LocalDir)
		result.Name = name
		return result
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := storage.Open(checkCtx, cfg); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", cfg.Storage.Endpoint, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("bucket %q on %s", cfg.Storage.Bucket, cfg.Storage.Endpoint)}
}

// CheckSystemDeps evaluates all system-level dependencies for the given config.
// Both the daemon and the CLI check command use this to avoid duplicating
// the requirements list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	results := deps.CheckTools(ctx, []deps.Tool{
		{Name: "FFmpeg", Command: cfg.FFmpegBinary(), Purpose: "Required for encoding and thumbnails"},
		{Name: "FFprobe", Command: cfg.FFprobeBinary(), Purpose: "Required for media inspection"},
	})
	if results[0].Available {
		results = append(results, deps.CheckEncoders(ctx, cfg.FFmpegBinary(),
			cfg.Transcode.VideoCodec, cfg.Transcode.AudioCodec))
	}
	return results
}
