package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidqueue/internal/fileutil"
	"vidqueue/internal/services"
)

// LocalURLPrefix is the daemon route that serves the local backend.
const LocalURLPrefix = "/files/"

// Local stores artifacts in a directory tree.
type Local struct {
	root      string
	urlPrefix string
}

// NewLocal creates root if needed.
func NewLocal(root, urlPrefix string) (*Local, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("local storage: root directory required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: create root: %w", err)
	}
	if urlPrefix == "" {
		urlPrefix = LocalURLPrefix
	}
	return &Local{root: root, urlPrefix: urlPrefix}, nil
}

// Root returns the directory backing the store.
func (l *Local) Root() string {
	return l.root
}

// Path maps a key to its file location.
func (l *Local) Path(key string) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(cleaned)), nil
}

// Put copies localPath into the store and verifies the copy.
func (l *Local) Put(ctx context.Context, localPath, key, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, err := l.Path(key)
	if err != nil {
		return err
	}
	if err := fileutil.CopyFileVerified(localPath, dst); err != nil {
		return services.Wrap(services.ErrTransient, "storage", "put",
			fmt.Sprintf("Failed to store %s", key), err)
	}
	return nil
}

// URL returns the daemon-relative path for key. Local URLs do not expire.
func (l *Local) URL(_ context.Context, key string, _ time.Duration) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(l.root, filepath.FromSlash(cleaned))
	if ok, err := fileutil.IsRegularFile(dst); err != nil || !ok {
		return "", services.Wrap(services.ErrNotFound, "storage", "url",
			fmt.Sprintf("Artifact %s not stored", cleaned), err)
	}
	parts := strings.Split(cleaned, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return l.urlPrefix + strings.Join(parts, "/"), nil
}
