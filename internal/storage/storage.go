package storage

import (
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"vidqueue/internal/config"
	"vidqueue/internal/services"
)

// Store persists artifacts under logical keys.
type Store interface {
	// Put copies the file at localPath to key.
	Put(ctx context.Context, localPath, key, contentType string) error
	// URL returns a location a viewer can fetch key from.
	URL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Open builds the backend selected in configuration.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageLocal, "":
		local, err := NewLocal(cfg.Storage.LocalDir, LocalURLPrefix)
		if err != nil {
			return nil, err
		}
		return local, nil
	case config.StorageMinIO:
		remote, err := NewMinIO(ctx, MinIOOptions{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		return remote, nil
	default:
		return nil, services.Wrap(services.ErrValidation, "storage", "open",
			fmt.Sprintf("Unsupported storage backend %q", cfg.Storage.Backend), nil)
	}
}

// Key joins a video id and file name into an object key.
func Key(videoID, name string) string {
	return path.Join(videoID, filepath.Base(name))
}

// CleanKey normalizes key and rejects keys that escape the store root.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	escapes := false
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			escapes = true
		}
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+key), "/")
	if cleaned == "" || escapes {
		return "", services.Wrap(services.ErrValidation, "storage", "clean key",
			fmt.Sprintf("Invalid artifact key %q", key), nil)
	}
	return cleaned, nil
}

// ContentType guesses a MIME type from the key extension.
func ContentType(key string) string {
	ext := strings.ToLower(path.Ext(key))
	switch ext {
	case ".webm":
		return "video/webm"
	case ".mp4":
		return "video/mp4"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
