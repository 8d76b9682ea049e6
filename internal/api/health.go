package api

import (
	"context"
	"net/http"
	"time"
)

// healthTimeout bounds the database ping in the health check.
const healthTimeout = 2 * time.Second

// handleHealth reports the server version, whether audit storage answers,
// and the dev bundler state when one is supervised.
// The backend is not probed; /api calls report their own failures.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
		"backend": s.proxy.Target().Host,
		"audit":   "disabled",
	}
	if s.bundler != nil {
		// Informational only; a broken watch build does not fail the check.
		body["bundler"] = s.bundler.Stats()
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warn("audit database unhealthy", "error", err)
			body["status"] = "degraded"
			body["audit"] = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
		body["audit"] = "ok"
	}

	writeJSON(w, http.StatusOK, body)
}
