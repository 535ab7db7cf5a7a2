package testsupport

import (
	"context"
	"testing"

	"vidqueue/internal/catalog"
	"vidqueue/internal/config"
)

// MustOpenCatalog opens a catalog.Store for tests and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewVideo inserts a pending video record for tests.
func NewVideo(t testing.TB, store *catalog.Store, id, title string) *catalog.Video {
	t.Helper()

	video := &catalog.Video{ID: id, Title: title, SourcePath: "/tmp/" + id + ".mp4"}
	if err := store.Create(context.Background(), video); err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return video
}
