// Package chi exposes the search engine over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tradekit/hscodex/internal/domain"
	logpkg "github.com/tradekit/hscodex/internal/logger"
	"github.com/tradekit/hscodex/internal/metrics"
)

// Searcher is the engine contract the HTTP layer depends on.
type Searcher interface {
	Search(ctx context.Context, q domain.Query, k int) ([]domain.SearchResult, error)
	Ready() bool
	Size() int
	DefaultK() int
	ProviderHealth(ctx context.Context) error
}

// Server is the HTTP API server.
type Server struct {
	engine Searcher
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(engine Searcher, logger *zap.Logger) *Server {
	return &Server{engine: engine, logger: logger}
}

// Router builds the chi router with the standard middleware stack.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(jsonRecoverer(s.logger))
	r.Use(wideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.Post("/search", s.handleSearch)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// searchRequest is the POST /search body. K is optional; the engine default
// applies when it is absent.
type searchRequest struct {
	Query string `json:"query"`
	K     *int   `json:"k,omitempty"`
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !s.engine.Ready() {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "engine is not initialized")
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "query is required")
		return
	}

	k := s.engine.DefaultK()
	if req.K != nil {
		k = *req.K
	}

	results, err := s.engine.Search(r.Context(), domain.TextQuery(req.Query), k)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if results == nil {
		results = []domain.SearchResult{}
	}

	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	status := "ok"

	if s.engine.Ready() {
		checks["engine"] = "ok"
	} else {
		checks["engine"] = "error"
		status = "error"
	}
	if err := s.engine.ProviderHealth(r.Context()); err != nil {
		checks["embedding"] = "error"
		if status == "ok" {
			status = "degraded"
		}
	} else {
		checks["embedding"] = "ok"
	}

	code := http.StatusOK
	if status == "error" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": checks,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.engine.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ready":   true,
		"records": s.engine.Size(),
	})
}

// handleDomainError maps domain errors to HTTP responses.
func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrCorpus):
		// A malformed query vector is the caller's fault.
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
	case errors.Is(err, domain.ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, "not_ready", err.Error())
	default:
		logpkg.FromContext(r.Context()).Error("search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
