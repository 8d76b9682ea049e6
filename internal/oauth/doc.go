// Package oauth implements the console login endpoint.
//
// POST /oauth/authenticate is a pass-through adapter: the credential body
// (JSON or form encoded) is forwarded to the configured identity provider and
// the provider's status, content type and body are returned unchanged. The
// console never issues or verifies tokens itself. On success it reads the
// subject and expiry out of the returned JWT, without checking the
// signature, purely for logging and the audit trail.
package oauth
