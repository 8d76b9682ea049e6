package oauth

import "errors"

var (
	// ErrNoProvider is returned by NewHandler when no provider URL is configured.
	ErrNoProvider = errors.New("oauth: provider url is required")

	// ErrNoToken is returned by InspectReply when the reply carries no token field.
	ErrNoToken = errors.New("oauth: no token in reply")
)
