package proxy

import "errors"

var (
	// ErrNoTarget is returned by New when no backend URL is configured.
	ErrNoTarget = errors.New("proxy: backend url is required")

	// ErrInvalidTarget is returned by New when the backend URL is not absolute http(s).
	ErrInvalidTarget = errors.New("proxy: backend url must be absolute http or https")
)
