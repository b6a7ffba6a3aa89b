package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lazypower/memorylayer/internal/engine"
)

// Server is the memorylayer HTTP API server.
type Server struct {
	engine   *engine.Engine
	gatherer prometheus.Gatherer
	router   chi.Router
	version  string
	started  time.Time
}

// New creates a Server over eng. A nil gatherer disables /metrics.
func New(eng *engine.Engine, version string, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		engine:   eng,
		gatherer: gatherer,
		version:  version,
		started:  time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/sessions/init", s.handleSessionInit)
		r.Get("/sessions", s.handleListSessions)
		r.Post("/sessions/{sessionID}/goal", s.handleSessionGoal)
		r.Post("/sessions/{sessionID}/end", s.handleEndSession)

		r.Post("/context", s.handleAssemble)
		r.Get("/context/health", s.handleContextHealth)
		r.Get("/context/history", s.handleHealthHistory)
		r.Put("/context/limit", s.handleSetTokenLimit)

		r.Get("/chunks", s.handleListChunks)
		r.Post("/chunks", s.handleAddChunk)
		r.Delete("/chunks/{id}", s.handleRemoveChunk)

		r.Get("/critical", s.handleListCritical)
		r.Post("/critical", s.handleMarkCritical)
		r.Delete("/critical/{id}", s.handleRemoveCritical)

		r.Post("/compact", s.handleCompact)
		r.Post("/compact/auto", s.handleAutoCompact)

		r.Get("/working", s.handleGetWorking)
		r.Put("/working/active", s.handleSetActive)
		r.Delete("/working/active", s.handleClearActive)
		r.Post("/working/viewed", s.handleMarkViewed)

		r.Get("/decisions", s.handleRecentDecisions)
		r.Post("/decisions", s.handleAddDecision)
		r.Get("/archive", s.handleSearchArchive)
		r.Post("/archive", s.handleAddArchive)
		r.Post("/index", s.handleIndexFile)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.engine.DB.PingContext(r.Context()); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.version,
		"uptime":   time.Since(s.started).Seconds(),
		"db":       dbOK,
		"db_path":  s.engine.DB.Path,
		"embedder": s.engine.Embedder().Model(),
		"session":  s.engine.SessionID(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}
