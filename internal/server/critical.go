package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/memorylayer/internal/health"
)

func (s *Server) handleListCritical(w http.ResponseWriter, r *http.Request) {
	var typ health.ContextType
	if v := r.URL.Query().Get("type"); v != "" {
		t, err := health.ParseContextType(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		typ = t
	}
	items := s.engine.GetCriticalContext(typ)
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (s *Server) handleMarkCritical(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
		Type    string `json:"type"`
		Reason  string `json:"reason"`
		Source  string `json:"source"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content required")
		return
	}
	typ, err := health.ParseContextType(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item := s.engine.MarkCritical(r.Context(), req.Content, typ, req.Reason, req.Source)
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleRemoveCritical(w http.ResponseWriter, r *http.Request) {
	removed := s.engine.RemoveCritical(r.Context(), chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}
