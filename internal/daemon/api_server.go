package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vidqueue/internal/api"
	"vidqueue/internal/logging"
	"vidqueue/internal/queue"
	"vidqueue/internal/services"
	"vidqueue/internal/storage"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(bind string, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(bind),
		logger: logger,
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(metricsMiddleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/videos", s.handleSubmit).Methods(http.MethodPost)
	apiRouter.HandleFunc("/videos", s.handleListVideos).Methods(http.MethodGet)
	apiRouter.HandleFunc("/videos/{id}", s.handleGetVideo).Methods(http.MethodGet)
	apiRouter.HandleFunc("/videos/{id}/progress", s.handleProgress).Methods(http.MethodGet)
	apiRouter.HandleFunc("/videos/{id}/thumbnail", s.handleThumbnail).Methods(http.MethodGet)
	apiRouter.HandleFunc("/videos/{id}/stream", s.handleStream).Methods(http.MethodGet)
	apiRouter.HandleFunc("/queue", s.handleQueue).Methods(http.MethodGet)

	if local, ok := s.daemon.deps.Store.(*storage.Local); ok {
		r.PathPrefix(storage.LocalURLPrefix).Handler(s.fileHandler(local)).Methods(http.MethodGet, http.MethodHead)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "route not found", services.KindNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("api bind address not configured")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	s.mu.Unlock()
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Debug("encode response failed", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string, kind services.Kind) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message, Kind: string(kind)})
}

// writeServiceError maps a classified error onto an HTTP status.
func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	details := services.Details(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, queue.ErrClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, queue.ErrDuplicateJob):
		status = http.StatusConflict
	case details.Kind == services.KindValidation:
		status = http.StatusBadRequest
	case details.Kind == services.KindNotFound:
		status = http.StatusNotFound
	case details.Kind == services.KindUnsupportedInput:
		status = http.StatusUnprocessableEntity
	case details.Kind == services.KindExternalTool:
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.log()).Error("request failed",
			logging.String("route", routeTemplate(r)),
			logging.String("error_kind", string(details.Kind)),
			logging.Error(err),
		)
	}
	s.writeError(w, status, details.Message, details.Kind)
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logging.NewNop()
}
