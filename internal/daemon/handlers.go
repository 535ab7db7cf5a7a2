package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"vidqueue/internal/api"
	"vidqueue/internal/catalog"
	"vidqueue/internal/ingest"
	"vidqueue/internal/logging"
	"vidqueue/internal/services"
	"vidqueue/internal/storage"
)

const (
	maxJSONBody    = 1 << 20
	maxFormField   = 64 << 10
	maxUploadBytes = 16 << 30
	uploadTimeout  = 30 * time.Minute
)

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok"})
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var (
		req ingest.Request
		err error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		req, err = s.receiveUpload(w, r)
	} else {
		req, err = decodeSubmit(w, r)
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	video, err := s.daemon.deps.Ingest.Submit(r.Context(), req)
	if err != nil {
		if req.Staged {
			_ = os.Remove(req.SourcePath)
		}
		s.writeServiceError(w, r, err)
		return
	}
	snap := s.daemon.deps.Registry.Get(video.ID)
	s.writeJSON(w, http.StatusAccepted, api.SubmitResponse{ID: video.ID, Progress: api.FromSnapshot(snap)})
}

func decodeSubmit(w http.ResponseWriter, r *http.Request) (ingest.Request, error) {
	var body api.SubmitRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		return ingest.Request{}, services.Wrap(services.ErrValidation, "api", "decode", "Invalid JSON body", err)
	}
	return ingest.Request{
		Title:       body.Title,
		Description: body.Description,
		Tags:        body.Tags,
		SourcePath:  body.SourcePath,
	}, nil
}

// receiveUpload streams a multipart upload into the ingest upload directory.
// The returned request is staged: ingest consumes the file in place.
func (s *apiServer) receiveUpload(w http.ResponseWriter, r *http.Request) (req ingest.Request, err error) {
	rc := http.NewResponseController(w)
	deadline := time.Now().Add(uploadTimeout)
	_ = rc.SetReadDeadline(deadline)
	_ = rc.SetWriteDeadline(deadline)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	reader, err := r.MultipartReader()
	if err != nil {
		return req, services.Wrap(services.ErrValidation, "api", "upload", "Invalid multipart body", err)
	}

	defer func() {
		if err != nil && req.SourcePath != "" {
			_ = os.Remove(req.SourcePath)
			req.SourcePath = ""
		}
	}()

	for {
		part, nextErr := reader.NextPart()
		if errors.Is(nextErr, io.EOF) {
			break
		}
		if nextErr != nil {
			return req, services.Wrap(services.ErrValidation, "api", "upload", "Malformed multipart body", nextErr)
		}
		switch part.FormName() {
		case "title":
			req.Title, err = readField(part)
		case "description":
			req.Description, err = readField(part)
		case "tags":
			var tags string
			tags, err = readField(part)
			req.Tags = append(req.Tags, tags)
		case "file":
			if req.SourcePath != "" {
				err = services.Wrap(services.ErrValidation, "api", "upload", "Only one file per upload", nil)
				break
			}
			req.Name = filepath.Base(strings.TrimSpace(part.FileName()))
			req.SourcePath, err = s.stageUpload(part, req.Name)
		}
		_ = part.Close()
		if err != nil {
			return req, err
		}
	}
	if req.SourcePath == "" {
		return req, services.Wrap(services.ErrValidation, "api", "upload", "File part required", nil)
	}
	req.Staged = true
	return req, nil
}

func (s *apiServer) stageUpload(src io.Reader, name string) (string, error) {
	dir := s.daemon.deps.Ingest.UploadDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(name))
	file, err := os.CreateTemp(dir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	path := file.Name()
	written, copyErr := io.Copy(file, src)
	closeErr := file.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(path)
		var tooLarge *http.MaxBytesError
		if errors.As(copyErr, &tooLarge) {
			return "", services.Wrap(services.ErrValidation, "api", "upload",
				fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit), nil)
		}
		return "", services.Wrap(services.ErrTransient, "api", "upload", "Failed to receive upload", copyErr)
	}
	s.log().Debug("upload received", logging.String("path", path), logging.Int64("size_bytes", written))
	return path, nil
}

func readField(src io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(src, maxFormField))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "api", "upload", "Unreadable form field", err)
	}
	return string(data), nil
}

func (s *apiServer) handleListVideos(w http.ResponseWriter, r *http.Request) {
	limit := catalog.DefaultListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer", services.KindValidation)
			return
		}
		limit = parsed
	}
	videos, err := s.daemon.deps.Catalog.List(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.VideoListResponse{Videos: api.FromVideos(videos)})
}

func (s *apiServer) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	video, ok := s.lookupVideo(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, api.VideoResponse{Video: api.FromVideo(video)})
}

func (s *apiServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.writeJSON(w, http.StatusOK, api.FromSnapshot(s.daemon.deps.Registry.Get(id)))
}

func (s *apiServer) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	video, ok := s.lookupVideo(w, r)
	if !ok {
		return
	}
	if video.ThumbnailKey == "" {
		s.writeError(w, http.StatusNotFound, "thumbnail not available", services.KindNotFound)
		return
	}
	s.redirectToArtifact(w, r, video.ThumbnailKey, s.daemon.cfg.ThumbnailURLExpiry())
}

func (s *apiServer) handleStream(w http.ResponseWriter, r *http.Request) {
	video, ok := s.lookupVideo(w, r)
	if !ok {
		return
	}
	key := video.DefaultKey
	if resolution := strings.TrimSpace(r.URL.Query().Get("resolution")); resolution != "" {
		rendition, found := video.Rendition(resolution)
		if !found {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("rendition %s not available", resolution), services.KindNotFound)
			return
		}
		key = rendition.Key
	}
	if key == "" {
		s.writeError(w, http.StatusNotFound, "no playable rendition yet", services.KindNotFound)
		return
	}
	s.redirectToArtifact(w, r, key, s.daemon.cfg.StreamURLExpiry())
}

func (s *apiServer) redirectToArtifact(w http.ResponseWriter, r *http.Request, key string, expiry time.Duration) {
	target, err := s.daemon.deps.Store.URL(r.Context(), key, expiry)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *apiServer) lookupVideo(w http.ResponseWriter, r *http.Request) (*catalog.Video, bool) {
	id := mux.Vars(r)["id"]
	video, err := s.daemon.deps.Catalog.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return nil, false
	}
	if video == nil {
		s.writeError(w, http.StatusNotFound, "video not found", services.KindNotFound)
		return nil, false
	}
	return video, true
}

func (s *apiServer) handleQueue(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.FromQueueSnapshot(s.daemon.deps.Queue.Status()))
}

// fileHandler serves artifacts held by the local store.
func (s *apiServer) fileHandler(local *storage.Local) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, storage.LocalURLPrefix)
		path, err := local.Path(key)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			s.writeError(w, http.StatusNotFound, "artifact not found", services.KindNotFound)
			return
		}
		w.Header().Set("Content-Type", storage.ContentType(key))
		http.ServeFile(w, r, path)
	})
}
