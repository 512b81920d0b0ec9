package server

import (
	"encoding/json"
	"net/http"
)

// handleHealth handles health check requests. It pings every database so a
// wedged connection shows up here instead of in the next scoring run.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK
	databases := map[string]string{}

	for _, db := range s.managedDBs {
		if err := db.HealthCheck(r.Context()); err != nil {
			s.log.Error().Err(err).Str("database", db.Name()).Msg("Database health check failed")
			databases[db.Name()] = "unreachable"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		databases[db.Name()] = "ok"
	}

	if s.historyConn != nil {
		if err := s.historyConn.PingContext(r.Context()); err != nil {
			s.log.Error().Err(err).Msg("History database health check failed")
			databases["history"] = "unreachable"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		} else {
			databases["history"] = "ok"
		}
	}

	response := map[string]interface{}{
		"status":    status,
		"version":   "1.0.0",
		"service":   "octave",
		"databases": databases,
	}

	s.writeJSON(w, httpStatus, response)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
