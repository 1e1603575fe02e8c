package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sctg/renderpool/internal/pool"
	"github.com/sctg/renderpool/internal/renderer"
)

// renderResponse is the JSON response for a successful POST /v1/render.
type renderResponse struct {
	ID         string `json:"id"`
	Output     string `json:"output"`
	DurationMS *int   `json:"duration_ms,omitempty"`
}

// renderErrorResponse carries the failure taxonomy for a failed render.
type renderErrorResponse struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// handleRenderSync submits a task and blocks on its settlement, returning the
// rendered output directly. The wait is bounded by the pool's per-strategy
// time boxes, so no additional deadline is applied here.
func (s *Server) handleRenderSync(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	t, problem := taskFromRequest(req)
	if problem != "" {
		s.writeError(w, http.StatusBadRequest, problem)
		return
	}

	done, err := s.pool.Submit(r.Context(), t)
	if err != nil {
		switch {
		case errors.Is(err, pool.ErrDuplicateID):
			s.writeError(w, http.StatusConflict, "task id already submitted")
		case errors.Is(err, pool.ErrClosed):
			s.writeError(w, http.StatusServiceUnavailable, "pool is shutting down")
		default:
			s.logger.Error("submit render", "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to submit task")
		}
		return
	}

	var res pool.Result
	select {
	case res = <-done:
	case <-r.Context().Done():
		// Client gone; the task still runs to settlement and stays pollable.
		return
	}

	// Duration lives on the registry entry written at settlement.
	var durationMS *int
	if settled, gerr := s.registry.GetTask(r.Context(), t.ID); gerr == nil {
		durationMS = settled.DurationMS
	}

	if res.Err != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, renderErrorResponse{
			ID:    t.ID,
			Kind:  errorKind(res.Err),
			Error: res.Err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, renderResponse{
		ID:         t.ID,
		Output:     res.Output,
		DurationMS: durationMS,
	})
}

// errorKind maps a render failure to its taxonomy name.
func errorKind(err error) string {
	switch {
	case errors.Is(err, renderer.ErrCompile):
		return "compile_error"
	case errors.Is(err, renderer.ErrTimeout):
		return "timeout_error"
	case errors.Is(err, renderer.ErrExhaustedStrategies):
		return "exhausted_strategies_error"
	default:
		return "internal_error"
	}
}
