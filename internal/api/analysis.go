package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"reviewq/pkg/analysis"
)

func (s *Server) handleAnalysisTrigger(w http.ResponseWriter, r *http.Request) {
	var p analysis.Params
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, 400, "bad_json", "invalid JSON: "+err.Error())
			return
		}
	}
	id, err := s.runner.Start(p)
	if err != nil {
		writeError(w, 500, "internal", err.Error())
		return
	}
	writeJSON(w, 202, map[string]string{"task_id": id})
}

func (s *Server) handleAnalysisStatus(w http.ResponseWriter, r *http.Request) {
	t, err := s.runner.Status(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, analysis.ErrTaskNotFound) {
			writeError(w, 404, "task_not_found", err.Error())
			return
		}
		writeError(w, 500, "internal", err.Error())
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) handlePatternList(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	patterns, err := s.patterns.List(r.Context(), limit)
	if err != nil {
		writeError(w, 500, "internal", err.Error())
		return
	}
	if patterns == nil {
		patterns = []analysis.Pattern{}
	}
	writeJSON(w, 200, patterns)
}
