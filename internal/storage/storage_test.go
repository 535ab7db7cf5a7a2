package storage_test

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"vidqueue/internal/config"
	"vidqueue/internal/services"
	"vidqueue/internal/storage"
	"vidqueue/internal/testsupport"
)

func TestCleanKey(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "abc/abc_144p.webm", want: "abc/abc_144p.webm"},
		{in: "/abc/thumb.jpg", want: "abc/thumb.jpg"},
		{in: `abc\thumb.jpg`, want: "abc/thumb.jpg"},
		{in: "../etc/passwd", wantErr: true},
		{in: "abc/../../x", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := storage.CleanKey(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("CleanKey(%q) expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("CleanKey(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestKeyAndContentType(t *testing.T) {
	if got := storage.Key("vid", "/work/vid/vid_240p.webm"); got != "vid/vid_240p.webm" {
		t.Fatalf("Key = %q", got)
	}
	cases := map[string]string{
		"a/b.webm": "video/webm",
		"a/b.JPG":  "image/jpeg",
		"a/b.mp4":  "video/mp4",
		"a/b":      "application/octet-stream",
	}
	for key, want := range cases {
		if got := storage.ContentType(key); got != want {
			t.Fatalf("ContentType(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestLocalPutAndURL(t *testing.T) {
	root := filepath.Join(t.TempDir(), "store")
	store, err := storage.NewLocal(root, "")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	src := filepath.Join(t.TempDir(), "clip_144p.webm")
	testsupport.WriteFile(t, src, 4096)

	ctx := context.Background()
	if err := store.Put(ctx, src, "clip id/clip_144p.webm", "video/webm"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	stored, err := store.Path("clip id/clip_144p.webm")
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	info, err := os.Stat(stored)
	if err != nil || info.Size() != 4096 {
		t.Fatalf("stored file missing or wrong size: %v %v", info, err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("Put must leave the source in place: %v", err)
	}

	u, err := store.URL(ctx, "clip id/clip_144p.webm", time.Hour)
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	if u != "/files/clip%20id/clip_144p.webm" {
		t.Fatalf("URL = %q", u)
	}
}

func TestLocalRejectsEscapesAndMissing(t *testing.T) {
	store, err := storage.NewLocal(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	src := filepath.Join(t.TempDir(), "x.webm")
	testsupport.WriteFile(t, src, 10)

	if err := store.Put(context.Background(), src, "../x.webm", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := store.URL(context.Background(), "nope/x.webm", time.Hour); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Put(context.Background(), filepath.Join(t.TempDir(), "missing"), "a/b.webm", ""); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestOpenSelectsLocalBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := storage.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	local, ok := store.(*storage.Local)
	if !ok {
		t.Fatalf("expected *storage.Local, got %T", store)
	}
	if local.Root() != cfg.Storage.LocalDir {
		t.Fatalf("root = %q, want %q", local.Root(), cfg.Storage.LocalDir)
	}

	cfg.Storage.Backend = "ftp"
	if _, err := storage.Open(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

// fakeS3 answers the handful of calls the MinIO backend makes.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Bucket-level calls arrive as "/bucket/" so the trailing slash is dropped first.
	parts := strings.SplitN(strings.Trim(r.URL.Path, "/"), "/", 2)
	bucket := parts[0]
	bucketLevel := len(parts) == 1 || parts[1] == ""
	switch {
	case bucketLevel && r.Method == http.MethodGet && r.URL.Query().Has("location"):
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
			`<LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/">us-east-1</LocationConstraint>`)
	case bucketLevel && r.Method == http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case bucketLevel && r.Method == http.MethodPut:
		_, _ = io.Copy(io.Discard, r.Body)
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case !bucketLevel && r.Method == http.MethodPut:
		data, err := readObjectBody(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.objects[bucket+"/"+parts[1]] = data
		f.types[bucket+"/"+parts[1]] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

// readObjectBody returns the payload, unwrapping aws-chunked framing used for
// streaming signatures over plain HTTP.
func readObjectBody(r *http.Request) ([]byte, error) {
	if !strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") {
		return io.ReadAll(r.Body)
	}
	var out bytes.Buffer
	reader := bufio.NewReader(r.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		sizeField, _, _ := strings.Cut(strings.TrimSpace(line), ";")
		size, err := strconv.ParseInt(sizeField, 16, 64)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return out.Bytes(), nil
		}
		if _, err := io.CopyN(&out, reader, size); err != nil {
			return nil, err
		}
		if _, err := reader.Discard(2); err != nil {
			return nil, err
		}
	}
}

func TestMinIOCreatesBucketAndUploads(t *testing.T) {
	fake := newFakeS3()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	ctx := context.Background()
	store, err := storage.NewMinIO(ctx, storage.MinIOOptions{
		Endpoint:  strings.TrimPrefix(server.URL, "http://"),
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "videos",
		Region:    "us-east-1",
	})
	if err != nil {
		t.Fatalf("NewMinIO: %v", err)
	}
	fake.mu.Lock()
	created := fake.buckets["videos"]
	fake.mu.Unlock()
	if !created {
		t.Fatal("expected bucket to be created")
	}

	src := filepath.Join(t.TempDir(), "thumb.jpg")
	testsupport.WriteFile(t, src, 512)
	if err := store.Put(ctx, src, "vid/vid_thumbnail.jpg", ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	fake.mu.Lock()
	body := fake.objects["videos/vid/vid_thumbnail.jpg"]
	contentType := fake.types["videos/vid/vid_thumbnail.jpg"]
	fake.mu.Unlock()
	if len(body) != 512 {
		t.Fatalf("uploaded %d bytes, want 512", len(body))
	}
	if contentType != "image/jpeg" {
		t.Fatalf("content type = %q", contentType)
	}

	u, err := store.URL(ctx, "vid/vid_thumbnail.jpg", 10*time.Minute)
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	if !strings.HasPrefix(u, server.URL+"/videos/vid/vid_thumbnail.jpg?") {
		t.Fatalf("unexpected presigned url %q", u)
	}
	if !strings.Contains(u, "X-Amz-Expires=600") || !strings.Contains(u, "X-Amz-Signature=") {
		t.Fatalf("presigned url missing signature params: %q", u)
	}
}

func TestOpenMinIOFromConfig(t *testing.T) {
	fake := newFakeS3()
	fake.buckets["media"] = true
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t)
	cfg.Storage.Backend = config.StorageMinIO
	cfg.Storage.Endpoint = strings.TrimPrefix(server.URL, "http://")
	cfg.Storage.AccessKey = "k"
	cfg.Storage.SecretKey = "s"
	cfg.Storage.Bucket = "media"

	store, err := storage.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	m, ok := store.(*storage.MinIO)
	if !ok || m.Bucket() != "media" {
		t.Fatalf("unexpected store %T", store)
	}
}
