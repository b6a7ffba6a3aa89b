package server

import (
	"errors"
	"net/http"

	"github.com/lazypower/memorylayer/internal/health"
)

func (s *Server) handleCompact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Strategy          string  `json:"strategy"`
		PreserveRecent    int     `json:"preserve_recent"`
		TargetUtilization float64 `json:"target_utilization"`
	}
	if !decode(w, r, &req) {
		return
	}

	res, err := s.engine.TriggerCompaction(r.Context(), health.CompactionOptions{
		Strategy:          health.Strategy(req.Strategy),
		PreserveRecent:    req.PreserveRecent,
		TargetUtilization: req.TargetUtilization,
	})
	if errors.Is(err, health.ErrUnknownStrategy) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAutoCompact(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.AutoCompact(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}
