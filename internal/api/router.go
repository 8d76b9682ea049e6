package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// consolePrefix is where the server's own endpoints live.
const consolePrefix = "/console/v1"

// fallbackMisses are the methods the app-shell fallback does not serve.
var fallbackMisses = []string{
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
}

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	// Login pass-through
	r.Post("/oauth/authenticate", s.login.ServeHTTP)

	// Device API pass-through, every method
	r.Handle("/api", s.proxy)
	r.Handle("/api/*", s.proxy)

	// Console endpoints
	r.Route(consolePrefix, func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		if s.auditRepo != nil {
			r.Get("/audit", s.handleListAuditLogs)
		}
	})

	// Static assets, then the app shell for any other GET
	r.Get("/*", s.web.ServeHTTP)
	r.Head("/*", s.web.ServeHTTP)

	// Other methods on unmatched paths are plain misses, not 405s.
	notFound := func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "not found")
	}
	for _, method := range fallbackMisses {
		r.MethodFunc(method, "/*", notFound)
	}

	return r
}
