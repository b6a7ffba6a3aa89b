package server

import "net/http"

func (s *Server) handleGetWorking(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"context":      s.engine.Working.GetContext(),
		"files_viewed": s.engine.Working.GetFilesViewed(),
	})
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path     string `json:"path"`
		Content  string `json:"content"`
		Language string `json:"language"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path required")
		return
	}
	s.engine.Working.SetActiveFile(req.Path, req.Content, req.Language)
	writeJSON(w, http.StatusOK, s.engine.Working.GetContext())
}

func (s *Server) handleClearActive(w http.ResponseWriter, r *http.Request) {
	s.engine.Working.ClearActiveFile()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarkViewed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path required")
		return
	}
	s.engine.Working.MarkViewed(req.Path)
	writeJSON(w, http.StatusOK, map[string]any{"files_viewed": s.engine.Working.GetFilesViewed()})
}
