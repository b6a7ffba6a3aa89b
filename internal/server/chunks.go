package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListChunks(w http.ResponseWriter, r *http.Request) {
	chunks := s.engine.Monitor.Chunks()
	writeJSON(w, http.StatusOK, map[string]any{
		"chunks":      chunks,
		"count":       len(chunks),
		"tokens_used": s.engine.Monitor.TokensUsed(),
	})
}

func (s *Server) handleAddChunk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
		Tokens  int    `json:"tokens"`
		Source  string `json:"source"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content required")
		return
	}
	writeJSON(w, http.StatusCreated, s.engine.AddChunk(r.Context(), req.Content, req.Tokens, req.Source))
}

func (s *Server) handleRemoveChunk(w http.ResponseWriter, r *http.Request) {
	removed := s.engine.RemoveChunk(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}
