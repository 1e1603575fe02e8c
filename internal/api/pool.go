package api

import "net/http"

// handleGetPool returns the pool status snapshot: configured size, queued
// tasks and busy slots. This is the surface a remote controller polls to
// decide whether to keep submitting.
func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.pool.Status())
}
