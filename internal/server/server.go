// Package server exposes the search agent and the archive read path over
// HTTP, including the SSE progress stream.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/warisan-digital/arkib/internal/agent"
	"github.com/warisan-digital/arkib/internal/store"
)

// SearchAgent is the slice of the agent the server depends on.
type SearchAgent interface {
	Search(ctx context.Context, query, threadID string) (*agent.Response, error)
	Stream(ctx context.Context, query, threadID string) <-chan agent.Event
}

// Server handles HTTP requests for the archive search backend.
type Server struct {
	agent SearchAgent
	store store.Store
}

// New creates a Server over the agent and store.
func New(a SearchAgent, st store.Store) *Server {
	return &Server{agent: a, store: st}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/ai-search", s.handleSearch)
		r.Post("/ai-search/stream", s.handleSearchStream)
		r.Get("/archives", s.handleBrowse)
		r.Get("/archives/{id}", s.handleGetArchive)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// searchRequest is the body of both search endpoints.
type searchRequest struct {
	Query    string `json:"query"`
	ThreadID string `json:"thread_id,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSearchRequest(w, r)
	if !ok {
		return
	}

	resp, err := s.agent.Search(r.Context(), req.Query, req.ThreadID)
	if err != nil {
		zap.L().Error("search request failed",
			zap.String("query", req.Query),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "search failed"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.BrowseFilter{
		Field:   store.BrowseField(q.Get("filter_field")),
		Value:   q.Get("filter_value"),
		OrderBy: q.Get("order_by"),
	}
	if limit := q.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			filter.Limit = n
		}
	}
	if desc := q.Get("order_desc"); desc == "false" {
		f := false
		filter.OrderDesc = &f
	}

	archives, err := s.store.Browse(r.Context(), filter)
	if err != nil {
		zap.L().Error("browse request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "browse failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"archives": archives,
		"total":    len(archives),
	})
}

func (s *Server) handleGetArchive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	archive, err := s.store.GetArchive(r.Context(), id)
	if err != nil {
		zap.L().Error("get archive failed", zap.String("id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}
	if archive == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "archive not found"})
		return
	}
	writeJSON(w, http.StatusOK, archive)
}

func decodeSearchRequest(w http.ResponseWriter, r *http.Request) (searchRequest, bool) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return req, false
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}
