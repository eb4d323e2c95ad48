package server

import (
	"encoding/json"
	"net/http"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"service": "screener-trader",
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleRunCycle triggers an evaluation cycle outside the weekly schedule.
// A cycle already reconciled for the current epoch is skipped by the job.
func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	if s.evaluationJob == nil {
		s.writeError(w, http.StatusServiceUnavailable, "evaluation job not configured")
		return
	}

	if err := s.sched.RunNow(s.evaluationJob); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
