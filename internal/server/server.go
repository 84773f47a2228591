// Package server exposes the recorder's control surface as a local HTTP API:
// the start/stop/status operations a GUI or scripting client drives.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/offlinefirst/taskrecorder/pkg/recorder"
	"github.com/offlinefirst/taskrecorder/pkg/registry"
)

// Controller is the slice of the session controller the API consumes.
type Controller interface {
	Start(output string) (string, error)
	Stop() (recorder.Summary, error)
	Status() recorder.Status
}

// SessionLister reads finished sessions from the index. Optional.
type SessionLister interface {
	List(ctx context.Context, limit int) ([]registry.Record, error)
}

type Server struct {
	Router *chi.Mux
	Addr   string

	logger     *slog.Logger
	controller Controller
	sessions   SessionLister
}

// New wires the control routes. lister may be nil when no registry is
// configured; the listing endpoint then reports 404.
func New(addr string, logger *slog.Logger, controller Controller, lister SessionLister) *Server {
	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	s := &Server{
		Router:     r,
		Addr:       addr,
		logger:     logger,
		controller: controller,
		sessions:   lister,
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/v1/status", s.handleStatus)
	r.Post("/v1/sessions", s.handleStart)
	r.Post("/v1/sessions/stop", s.handleStop)
	r.Get("/v1/sessions", s.handleList)

	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.Addr,
		Handler:      s.Router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("control API listening", "addr", s.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

type startRequest struct {
	Path string `json:"path"`
}

type startResponse struct {
	SessionID string `json:"session_id"`
}

type statusResponse struct {
	State     string `json:"state"`
	SessionID string `json:"session_id,omitempty"`
	Output    string `json:"output,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms,omitempty"`
	Degraded  bool   `json:"degraded,omitempty"`
}

type summaryResponse struct {
	SessionID     string `json:"session_id"`
	Output        string `json:"output"`
	EventsWritten uint64 `json:"events_written"`
	Dropped       uint64 `json:"dropped"`
	Unrecognized  uint64 `json:"unrecognized"`
	Coalesced     uint64 `json:"coalesced"`
	DurationMS    int64  `json:"duration_ms"`
	Degraded      bool   `json:"degraded"`
	FailureReason string `json:"failure_reason,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := s.controller.Status()
	resp := statusResponse{State: string(status.State)}
	if status.State != recorder.StateIdle {
		resp.SessionID = status.SessionID
		resp.Output = status.Output
		resp.ElapsedMS = status.Elapsed.Milliseconds()
		resp.Degraded = status.Degraded
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Detail: err.Error()})
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Detail: "path must not be empty"})
		return
	}

	id, err := s.controller.Start(req.Path)
	switch {
	case errors.Is(err, recorder.ErrAlreadyRecording):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "already_recording"})
	case errors.Is(err, recorder.ErrOutputUnavailable):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "output_unavailable", Detail: err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal", Detail: err.Error()})
	default:
		writeJSON(w, http.StatusCreated, startResponse{SessionID: id})
	}
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	summary, err := s.controller.Stop()
	switch {
	case errors.Is(err, recorder.ErrNotRecording):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "not_recording"})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal", Detail: err.Error()})
	default:
		writeJSON(w, http.StatusOK, summaryResponse{
			SessionID:     summary.SessionID,
			Output:        summary.Output,
			EventsWritten: summary.EventsWritten,
			Dropped:       summary.Dropped,
			Unrecognized:  summary.Unrecognized,
			Coalesced:     summary.Coalesced,
			DurationMS:    summary.Duration.Milliseconds(),
			Degraded:      summary.Degraded,
			FailureReason: summary.FailureReason,
		})
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "registry_disabled"})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Detail: "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	records, err := s.sessions.List(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal", Detail: err.Error()})
		return
	}
	if records == nil {
		records = []registry.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
