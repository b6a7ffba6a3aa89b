package server

import (
	"net/http"
	"time"

	"github.com/lazypower/memorylayer/internal/store"
)

func (s *Server) handleRecentDecisions(w http.ResponseWriter, r *http.Request) {
	ds, err := s.engine.DB.GetRecentDecisions(r.Context(), queryInt(r, "limit", 10))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": ds})
}

func (s *Server) handleAddDecision(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Rationale   string `json:"rationale"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title required")
		return
	}
	d, err := s.engine.RecordDecision(r.Context(), store.Decision{
		Title:       req.Title,
		Description: req.Description,
		Rationale:   req.Rationale,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleSearchArchive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q parameter required")
		return
	}
	entries, err := s.engine.DB.SearchRelevant(r.Context(), q, queryInt(r, "limit", 3))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []store.ArchiveEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q, "entries": entries})
}

func (s *Server) handleAddArchive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Summary string `json:"summary"`
		Source  string `json:"source"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Summary == "" {
		writeError(w, http.StatusBadRequest, "summary required")
		return
	}
	e, err := s.engine.ArchiveSummary(r.Context(), req.Summary, req.Source)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleIndexFile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path         string    `json:"path"`
		Content      string    `json:"content"`
		Language     string    `json:"language"`
		LastModified time.Time `json:"last_modified"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path required")
		return
	}
	if req.LastModified.IsZero() {
		req.LastModified = time.Now()
	}
	if err := s.engine.IndexFile(r.Context(), req.Path, req.Content, req.Language, req.LastModified); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "indexed", "path": req.Path})
}
