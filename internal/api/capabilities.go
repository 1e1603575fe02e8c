package api

import "net/http"

func (s *Server) handleListCapabilities(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.caps.List())
}
