// Package api exposes the comparison pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/FranksOps/shopwise/internal/metrics"
	"github.com/FranksOps/shopwise/internal/model"
	"github.com/FranksOps/shopwise/internal/pipeline"
)

// CallerHeader carries the identity established by the upstream auth layer.
const CallerHeader = "X-User-ID"

// AnonymousCaller is used when no identity header is present.
const AnonymousCaller = "anonymous"

const maxBodyBytes = 64 << 10

// Runner executes one comparison run.
type Runner interface {
	Run(ctx context.Context, caller, query string) (*pipeline.Run, error)
}

// Server serves the comparison endpoints.
type Server struct {
	runner    Runner
	logger    *slog.Logger
	startedAt time.Time
}

// NewServer creates a Server.
func NewServer(runner Runner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		runner:    runner,
		logger:    logger,
		startedAt: time.Now().UTC(),
	}
}

// Handler returns the routes. withMetrics also mounts /metrics.
func (s *Server) Handler(withMetrics bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("POST /respone", s.handleSearch)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if withMetrics {
		mux.Handle("GET /metrics", metrics.Handler())
	}
	return mux
}

type searchRequest struct {
	Content string `json:"content"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}

	caller := strings.TrimSpace(r.Header.Get(CallerHeader))
	if caller == "" {
		caller = AnonymousCaller
	}

	run, err := s.runner.Run(r.Context(), caller, req.Content)
	switch {
	case errors.Is(err, model.ErrInputInvalid):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "content is required"})
		return
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		// client went away
		s.logger.Info("request cancelled", "caller", caller)
		return
	case err != nil:
		s.logger.Error("comparison failed", "caller", caller, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, run.Outcome)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"started_at": s.startedAt.Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
