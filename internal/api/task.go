package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sctg/renderpool/internal/model"
	"github.com/sctg/renderpool/internal/pool"
	"github.com/sctg/renderpool/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// createTaskRequest is the JSON body for POST /v1/tasks and POST /v1/render.
type createTaskRequest struct {
	ID     string `json:"id"`
	Format string `json:"format"`
	Input  string `json:"input"`
}

// listTasksResponse wraps the paginated list response.
type listTasksResponse struct {
	Tasks  []*model.Task `json:"tasks"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// taskFromRequest validates the request body and builds a pending task.
// A missing id is generated server-side; a missing format means auto-detect.
func taskFromRequest(req createTaskRequest) (*model.Task, string) {
	if req.Input == "" {
		return nil, "input is required"
	}

	format := req.Format
	switch format {
	case "":
		format = model.FormatAuto
	case model.FormatMermaid, model.FormatLatex, model.FormatAuto:
	default:
		return nil, "unknown format"
	}

	id := req.ID
	if id == "" {
		id = model.NewID()
	}

	return &model.Task{
		ID:        id,
		Status:    model.StatusPending,
		Format:    format,
		Input:     req.Input,
		CreatedAt: time.Now().UTC(),
	}, ""
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
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

	if _, err := s.pool.Submit(r.Context(), t); err != nil {
		switch {
		case errors.Is(err, pool.ErrDuplicateID):
			s.writeError(w, http.StatusConflict, "task id already submitted")
		case errors.Is(err, pool.ErrClosed):
			s.writeError(w, http.StatusServiceUnavailable, "pool is shutting down")
		default:
			s.logger.Error("submit task", "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to submit task")
		}
		return
	}

	s.writeJSON(w, http.StatusAccepted, t)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, err := s.registry.GetTask(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.logger.Error("get task", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}

	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	tasks, total, err := s.registry.ListTasks(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list tasks", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	if tasks == nil {
		tasks = []*model.Task{}
	}

	s.writeJSON(w, http.StatusOK, listTasksResponse{
		Tasks:  tasks,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
