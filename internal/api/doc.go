// Package api implements the console HTTP server.
//
// This package provides:
//   - POST /oauth/authenticate, forwarded to the identity provider
//   - ANY /api/*, forwarded to the device-management backend
//   - GET /console/v1/health and GET /console/v1/audit
//   - the single-page app with index fallback for every other GET
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - TLS support for production deployments
//
// # Architecture
//
// The server holds no device state. Browsers and consolectl talk to it; it
// relays to the backend and identity provider and returns their replies
// untouched. Errors the server raises itself (bad login body, unreachable
// upstream) use the JSON error envelope in errors.go.
//
// # Audit
//
// When an audit recorder is supplied, login attempts and device deletes that
// pass through the proxy are recorded asynchronously.
package api
