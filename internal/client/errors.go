package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidBaseURL is returned by New for a base URL that is not absolute http(s).
	ErrInvalidBaseURL = errors.New("client: base url must be absolute http or https")

	// ErrMissingID is returned when a device operation is given an empty ID.
	ErrMissingID = errors.New("client: device id is required")
)

// Error is a non-2xx reply from the console server or the backend behind it.
type Error struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// StatusCode extracts the HTTP status from err, or 0 if err is not an *Error.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
