package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/lazypower/memorylayer/internal/engine"
	"github.com/lazypower/memorylayer/internal/health"
)

func (s *Server) handleAssemble(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query       string `json:"query"`
		MaxTokens   int    `json:"max_tokens"`
		CurrentFile string `json:"current_file"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query required")
		return
	}
	if req.MaxTokens < 0 {
		writeError(w, http.StatusBadRequest, "max_tokens must not be negative")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	out, err := s.engine.Assemble(ctx, req.Query, engine.AssembleOptions{
		MaxTokens:   req.MaxTokens,
		CurrentFile: req.CurrentFile,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleContextHealth uses ?drift= when given, otherwise the engine's own
// drift score.
func (s *Server) handleContextHealth(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query().Get("drift")
	if v == "" {
		writeJSON(w, http.StatusOK, s.engine.GetHealth())
		return
	}
	drift, err := strconv.ParseFloat(v, 64)
	if err != nil || drift < 0 || drift > 1 {
		writeError(w, http.StatusBadRequest, "drift must be a number in [0,1]")
		return
	}
	writeJSON(w, http.StatusOK, s.engine.GetHealthWithDrift(drift))
}

func (s *Server) handleHealthHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	writeJSON(w, http.StatusOK, map[string]any{
		"history": s.engine.HealthHistory(r.Context(), limit),
	})
}

// handleSetTokenLimit changes the session-wide ceiling health is scored
// against. The per-query assembly budget is unaffected.
func (s *Server) handleSetTokenLimit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TokenLimit int `json:"token_limit"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.engine.Monitor.SetTokenLimit(req.TokenLimit); err != nil {
		if errors.Is(err, health.ErrInvalidTokenLimit) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.engine.GetHealth())
}
