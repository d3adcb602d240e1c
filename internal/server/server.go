// Package server exposes the insight stream and the profile API over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/raphaelgruber/careerpulse/internal/db"
	"github.com/raphaelgruber/careerpulse/internal/metrics"
	"github.com/raphaelgruber/careerpulse/internal/models"
	"github.com/raphaelgruber/careerpulse/internal/pipeline"
	"github.com/raphaelgruber/careerpulse/internal/service"
	"github.com/raphaelgruber/careerpulse/internal/sse"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Error kinds returned in JSON error bodies.
const (
	KindInvalidRequest     = "InvalidRequest"
	KindInvalidSelection   = "InvalidSelection"
	KindNotFound           = "NotFound"
	KindPersistenceFailure = "PersistenceFailure"
)

// Pinger reports store liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps holds the server's collaborators.
type Deps struct {
	Emitter   *pipeline.Emitter
	Profiles  *service.ProfileService
	Metrics   *metrics.Collector
	Store     Pinger // optional
	Heartbeat time.Duration
	Logger    *slog.Logger
}

// Server routes HTTP requests to the stream emitter and profile service.
type Server struct {
	deps   Deps
	logger *slog.Logger
	mux    *http.ServeMux
}

// New creates a server and registers its routes.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{deps: deps, logger: logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /insights/stream/{topic}", s.handleStream)
	s.mux.HandleFunc("POST /profiles", s.handleCreateProfile)
	s.mux.HandleFunc("GET /profiles/{id}", s.handleGetProfile)
	s.mux.HandleFunc("PUT /profiles/{id}/insights", s.handleCommitInsights)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	return s
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return LoggingMiddleware(s.logger)(s.mux)
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failed request.
type ErrorDetail struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// CommitRequest is the body of PUT /profiles/{id}/insights.
type CommitRequest struct {
	Insights []models.InsightRecord `json:"insights"`
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	topic := strings.TrimSpace(r.PathValue("topic"))
	if topic == "" {
		writeError(w, http.StatusBadRequest, KindInvalidRequest, "topic is required", false)
		return
	}

	sw, err := sse.NewWriter(w, s.deps.Heartbeat, s.logger)
	if err != nil {
		s.logger.Error("open event stream", "error", err)
		return
	}
	defer sw.Close()

	out := s.deps.Emitter.Run(r.Context(), topic, sw)
	if out.Status == pipeline.StatusAborted {
		s.logger.Debug("stream ended by client", "run_id", out.RunID, "error", out.Err)
	}
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var input models.ProfileInput
	if err := decodeBody(w, r, &input); err != nil {
		writeError(w, http.StatusBadRequest, KindInvalidRequest, err.Error(), false)
		return
	}

	p, err := s.deps.Profiles.Create(r.Context(), input)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p.View())
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Profiles.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p.View())
}

func (s *Server) handleCommitInsights(w http.ResponseWriter, r *http.Request) {
	var req CommitRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, KindInvalidRequest, err.Error(), false)
		return
	}

	id := r.PathValue("id")
	p, err := s.deps.Profiles.CommitInsights(r.Context(), id, req.Insights)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.logger.Info("insights committed", "profile", id, "count", len(req.Insights))
	writeJSON(w, http.StatusOK, p.View())
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Metrics.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Store.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, KindPersistenceFailure, err.Error(), true)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// writeServiceError maps service and store errors onto HTTP responses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidSelection):
		writeError(w, http.StatusBadRequest, KindInvalidSelection, err.Error(), false)
	case errors.Is(err, service.ErrInvalidProfile):
		writeError(w, http.StatusBadRequest, KindInvalidRequest, err.Error(), false)
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, KindNotFound, err.Error(), false)
	default:
		s.logger.Error("persistence failure", "error", err)
		writeError(w, http.StatusInternalServerError, KindPersistenceFailure, "the record store rejected the write; try again", true)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string, retryable bool) {
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Kind: kind, Message: message, Retryable: retryable}})
}
