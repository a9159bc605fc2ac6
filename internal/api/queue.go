package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"reviewq/pkg/queue"
)

// QueueSnapshot is the paginated queue view plus aggregate stats.
type QueueSnapshot struct {
	Items    []queue.Item `json:"items"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	Stats    queue.Stats  `json:"stats"`
}

func (s *Server) handleQueueList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rev := r.URL.Query().Get("reviewer")
	if rev == "" {
		rev = r.Header.Get("X-Reviewer")
	}
	f := queue.Filter{
		Status:   queue.Status(r.URL.Query().Get("status")),
		Reviewer: rev,
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "page_size", s.pageSize),
	}

	items, total, err := s.coord.List(ctx, f)
	if err != nil {
		writeQueueError(w, err)
		return
	}
	stats, err := s.coord.Stats(ctx)
	if err != nil {
		writeQueueError(w, err)
		return
	}
	if items == nil {
		items = []queue.Item{}
	}
	writeJSON(w, 200, QueueSnapshot{
		Items:    items,
		Total:    total,
		Page:     f.Page,
		PageSize: f.PageSize,
		Stats:    stats,
	})
}

func (s *Server) handleQueueCreate(w http.ResponseWriter, r *http.Request) {
	var it queue.Item
	if err := json.NewDecoder(r.Body).Decode(&it); err != nil {
		writeError(w, 400, "bad_json", "invalid JSON: "+err.Error())
		return
	}
	if it.ScenarioID == "" {
		writeError(w, 400, "missing_scenario", "scenario_id is required")
		return
	}
	created, err := s.coord.Create(r.Context(), &it)
	if err != nil {
		writeQueueError(w, err)
		return
	}
	writeJSON(w, 201, created)
}

func (s *Server) handleQueueGet(w http.ResponseWriter, r *http.Request) {
	it, err := s.coord.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeQueueError(w, err)
		return
	}
	writeJSON(w, 200, it)
}

func (s *Server) handleClaimNext(w http.ResponseWriter, r *http.Request) {
	rev, ok := reviewer(w, r)
	if !ok {
		return
	}
	it, err := s.coord.ClaimNext(r.Context(), rev)
	if errors.Is(err, queue.ErrEmptyQueue) {
		// nothing to claim is a valid outcome, not an error
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		writeQueueError(w, err)
		return
	}
	writeJSON(w, 200, it)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	rev, ok := reviewer(w, r)
	if !ok {
		return
	}
	it, err := s.coord.Claim(r.Context(), r.PathValue("id"), rev)
	if err != nil {
		writeQueueError(w, err)
		return
	}
	writeJSON(w, 200, it)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	rev, ok := reviewer(w, r)
	if !ok {
		return
	}
	it, err := s.coord.Release(r.Context(), r.PathValue("id"), rev)
	if err != nil {
		writeQueueError(w, err)
		return
	}
	writeJSON(w, 200, it)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	rev, ok := reviewer(w, r)
	if !ok {
		return
	}
	var req struct {
		Decision         queue.Decision `json:"decision"`
		Feedback         string         `json:"feedback"`
		TimeSpentSeconds int            `json:"time_spent_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "bad_json", "invalid JSON: "+err.Error())
		return
	}
	it, err := s.coord.Submit(r.Context(), r.PathValue("id"), rev, req.Decision, req.Feedback, req.TimeSpentSeconds)
	if err != nil {
		writeQueueError(w, err)
		return
	}
	writeJSON(w, 200, it)
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
