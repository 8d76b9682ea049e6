package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/nerrad567/kapua-console/internal/audit"
	"github.com/nerrad567/kapua-console/internal/oauth"
	"github.com/nerrad567/kapua-console/internal/proxy"
)

// devicesPath is the backend collection whose deletes are audited.
const devicesPath = "/devices/"

// recordLogin audits a forwarded login attempt.
func (s *Server) recordLogin(a oauth.Attempt) {
	outcome := "failure"
	if a.Succeeded() {
		outcome = "success"
	}

	details := map[string]any{
		"status":     a.Status,
		"outcome":    outcome,
		"request_id": a.RequestID,
		"remote":     a.RemoteIP,
	}
	if !a.ExpiresAt.IsZero() {
		details["expires_at"] = a.ExpiresAt
	}

	entityID := a.Subject
	if entityID == "" {
		entityID = a.Username
	}
	s.recorder.Record(audit.ActionLogin, audit.EntitySession, entityID, a.Username, details)
}

// recordExchange audits device deletes relayed through the proxy.
func (s *Server) recordExchange(ex proxy.Exchange) {
	if ex.Method != http.MethodDelete {
		return
	}
	id, ok := strings.CutPrefix(ex.Path, devicesPath)
	if !ok || id == "" || strings.Contains(id, "/") {
		return
	}

	outcome := "failure"
	if ex.Status >= 200 && ex.Status < 300 {
		outcome = "success"
	}

	s.recorder.Record(audit.ActionDelete, audit.EntityDevice, id,
		oauth.BearerSubject(ex.Header.Get("Authorization")),
		map[string]any{
			"status":     ex.Status,
			"outcome":    outcome,
			"request_id": ex.RequestID,
		},
	)
}

// handleListAuditLogs returns paginated audit log entries with optional filters.
//
// Query parameters:
//   - action: filter by action type (login, delete)
//   - entity_type: filter by entity type (session, device)
//   - entity_id: filter by specific entity ID
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a number")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "offset must be a number")
			return
		}
		filter.Offset = n
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit logs", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
