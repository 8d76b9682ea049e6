package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nerrad567/kapua-console/internal/infrastructure/logging"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultMaxBodyBytes = 64 << 10

	// maxInspectBytes caps how much of the provider reply is kept for token
	// inspection. The relayed reply itself is never truncated.
	maxInspectBytes = 1 << 20

	formContentType = "application/x-www-form-urlencoded"
	jsonContentType = "application/json"
)

// Config describes the identity provider.
type Config struct {
	ProviderURL  string
	Timeout      time.Duration
	Headers      map[string]string
	MaxBodyBytes int64
}

// Attempt is reported once per forwarded login.
type Attempt struct {
	Username  string
	Status    int
	Subject   string
	ExpiresAt time.Time
	RequestID string
	RemoteIP  string
}

// Succeeded reports whether the provider accepted the credentials.
func (a Attempt) Succeeded() bool {
	return a.Status >= 200 && a.Status < 300
}

// ErrorWriter writes a console-originated error reply.
type ErrorWriter func(w http.ResponseWriter, status int, code, message string)

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithHTTPClient replaces the client used to reach the provider.
func WithHTTPClient(c *http.Client) Option {
	return func(h *Handler) {
		if c != nil {
			h.client = c
		}
	}
}

// WithErrorWriter sets how console-originated errors are rendered.
func WithErrorWriter(fn ErrorWriter) Option {
	return func(h *Handler) {
		if fn != nil {
			h.writeError = fn
		}
	}
}

// OnAttempt registers a callback invoked after every forwarded login.
func OnAttempt(fn func(Attempt)) Option {
	return func(h *Handler) { h.onAttempt = fn }
}

// Handler serves POST /oauth/authenticate.
type Handler struct {
	provider   string
	headers    map[string]string
	maxBody    int64
	client     *http.Client
	logger     *logging.Logger
	writeError ErrorWriter
	onAttempt  func(Attempt)
}

// NewHandler creates the login handler for cfg.
func NewHandler(cfg Config, opts ...Option) (*Handler, error) {
	if cfg.ProviderURL == "" {
		return nil, ErrNoProvider
	}
	if _, err := url.ParseRequestURI(cfg.ProviderURL); err != nil {
		return nil, fmt.Errorf("oauth: invalid provider url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	h := &Handler{
		provider:   cfg.ProviderURL,
		headers:    cfg.Headers,
		maxBody:    maxBody,
		client:     &http.Client{Timeout: timeout},
		logger:     logging.Default(),
		writeError: plainError,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.client = noRedirects(h.client)
	h.logger = h.logger.With("component", "oauth")

	return h, nil
}

// ServeHTTP forwards the credentials and relays the provider reply.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid_body", "failed to read request body")
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		h.writeError(w, http.StatusBadRequest, "missing_credentials", "credentials are required")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = jsonContentType
	}

	resp, err := h.forward(r.Context(), body, contentType, r.Header.Get("X-Request-ID"))
	if err != nil {
		h.logger.Error("identity provider unreachable",
			"request_id", r.Header.Get("X-Request-ID"),
			"error", err,
		)
		h.writeError(w, http.StatusBadGateway, "provider_unavailable", "identity provider unavailable")
		return
	}
	defer resp.Body.Close()

	copyEndToEnd(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	reply := &capped{limit: maxInspectBytes}
	if _, err := io.Copy(w, io.TeeReader(resp.Body, reply)); err != nil {
		// Status is already sent; the client sees a short body.
		h.logger.Warn("relaying provider reply", "request_id", r.Header.Get("X-Request-ID"), "error", err)
	}

	h.report(r, body, contentType, resp.StatusCode, reply.buf.Bytes())
}

// hopHeaders are connection-scoped and never relayed.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// copyEndToEnd copies the provider's response headers except hop-by-hop
// headers and Content-Length, which net/http recomputes for the relayed body.
func copyEndToEnd(dst, src http.Header) {
	skip := map[string]bool{"Content-Length": true}
	for _, name := range hopHeaders {
		skip[name] = true
	}
	for _, field := range src.Values("Connection") {
		for _, name := range strings.Split(field, ",") {
			if name = strings.TrimSpace(name); name != "" {
				skip[http.CanonicalHeaderKey(name)] = true
			}
		}
	}

	for name, values := range src {
		if skip[name] {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

// capped keeps the first limit bytes written to it and discards the rest.
type capped struct {
	buf   bytes.Buffer
	limit int
}

func (c *capped) Write(p []byte) (int, error) {
	if room := c.limit - c.buf.Len(); room > 0 {
		c.buf.Write(p[:min(room, len(p))])
	}
	return len(p), nil
}

// noRedirects returns a copy of c that hands provider redirects back to the
// browser instead of following them.
func noRedirects(c *http.Client) *http.Client {
	clone := *c
	clone.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &clone
}

// forward posts the credential body to the provider.
func (h *Handler) forward(ctx context.Context, body []byte, contentType, requestID string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.provider, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building provider request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", jsonContentType)
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	for name, value := range h.headers {
		req.Header.Set(name, value)
	}

	return h.client.Do(req)
}

// report logs the attempt and hands it to the callback.
func (h *Handler) report(r *http.Request, body []byte, contentType string, status int, reply []byte) {
	attempt := Attempt{
		Username:  usernameFrom(body, contentType),
		Status:    status,
		RequestID: r.Header.Get("X-Request-ID"),
		RemoteIP:  r.RemoteAddr,
	}

	if attempt.Succeeded() {
		info, err := InspectReply(reply)
		switch {
		case err == nil:
			attempt.Subject = info.Subject
			attempt.ExpiresAt = info.ExpiresAt
		case errors.Is(err, ErrNoToken):
		default:
			h.logger.Debug("provider token not inspectable", "error", err)
		}
		h.logger.Info("login accepted",
			"username", attempt.Username,
			"subject", attempt.Subject,
			"expires_at", attempt.ExpiresAt,
			"request_id", attempt.RequestID,
		)
	} else if status >= 300 && status < 400 {
		h.logger.Info("login redirected",
			"username", attempt.Username,
			"status", status,
			"request_id", attempt.RequestID,
		)
	} else {
		h.logger.Warn("login rejected",
			"username", attempt.Username,
			"status", status,
			"request_id", attempt.RequestID,
		)
	}

	if h.onAttempt != nil {
		h.onAttempt(attempt)
	}
}

// usernameFrom extracts the username field for logging. The password is
// never read.
func usernameFrom(body []byte, contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}

	switch mediaType {
	case formContentType:
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return ""
		}
		return values.Get("username")
	case jsonContentType:
		var creds struct {
			Username string `json:"username"`
		}
		if err := json.Unmarshal(body, &creds); err != nil {
			return ""
		}
		return creds.Username
	default:
		return ""
	}
}

func plainError(w http.ResponseWriter, status int, _, message string) {
	http.Error(w, message, status)
}
