package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/nerrad567/kapua-console/internal/infrastructure/logging"
)

// Default transport tuning.
const (
	defaultTimeout      = 30 * time.Second
	dialTimeout         = 10 * time.Second
	idleConnTimeout     = 90 * time.Second
	maxIdleConnsPerHost = 16
)

// Exchange describes one completed upstream round trip.
type Exchange struct {
	Method    string
	Path      string // path relative to the mount prefix, e.g. /devices/AQ
	Status    int
	RequestID string
	Duration  time.Duration

	// Header is the upstream request header.
	Header http.Header
}

// Options configures a Proxy.
type Options struct {
	// Target is the backend base URL, e.g. https://api.example.com/v1.
	Target string

	// StripPrefix is removed from incoming paths before joining onto Target.
	StripPrefix string

	// Headers are set on every upstream request (overwriting client values).
	Headers map[string]string

	// Timeout bounds the wait for upstream response headers. Bodies may stream longer.
	Timeout time.Duration

	// Transport overrides the upstream round tripper (tests).
	Transport http.RoundTripper

	// Observer, if set, is called after each upstream response arrives.
	Observer func(Exchange)

	// ErrorHandler writes the reply when the backend cannot be reached.
	// Defaults to a plain 502.
	ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

	Logger *logging.Logger
}

// Proxy relays requests to the backend. It is an http.Handler.
type Proxy struct {
	target   *url.URL
	prefix   string
	headers  map[string]string
	observer func(Exchange)
	logger   *logging.Logger
	rp       *httputil.ReverseProxy
}

// startKey carries the request start time through the reverse proxy.
type startKey struct{}

// New builds a Proxy for opts.
func New(opts Options) (*Proxy, error) {
	if opts.Target == "" {
		return nil, ErrNoTarget
	}
	target, err := url.Parse(opts.Target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return nil, ErrInvalidTarget
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := opts.Transport
	if transport == nil {
		transport = newTransport(timeout)
	}

	p := &Proxy{
		target:   target,
		prefix:   strings.TrimSuffix(opts.StripPrefix, "/"),
		headers:  opts.Headers,
		observer: opts.Observer,
		logger:   logger.With("component", "proxy"),
	}

	errorHandler := opts.ErrorHandler
	if errorHandler == nil {
		errorHandler = func(w http.ResponseWriter, _ *http.Request, _ error) {
			w.WriteHeader(http.StatusBadGateway)
		}
	}

	p.rp = &httputil.ReverseProxy{
		Rewrite:        p.rewrite,
		Transport:      transport,
		ModifyResponse: p.observe,
		FlushInterval:  -1,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			p.logger.Error("backend request failed",
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", r.Header.Get("X-Request-ID"),
				"error", err,
			)
			errorHandler(w, r, err)
		},
	}

	return p, nil
}

// Target returns the backend base URL.
func (p *Proxy) Target() *url.URL {
	u := *p.target
	return &u
}

// ServeHTTP implements http.Handler.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Streamed and upgraded responses outlive the server's WriteTimeout.
	// Backend stalls are bounded by the transport's ResponseHeaderTimeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		p.logger.Debug("clearing write deadline", "error", err)
	}
	p.rp.ServeHTTP(w, r.WithContext(withStart(r.Context(), time.Now())))
}

// rewrite maps the incoming request onto the backend.
func (p *Proxy) rewrite(pr *httputil.ProxyRequest) {
	pr.Out.URL.Path = p.relativePath(pr.In.URL.Path)
	if pr.In.URL.RawPath != "" {
		pr.Out.URL.RawPath = p.relativePath(pr.In.URL.RawPath)
	}

	pr.SetURL(p.target)
	pr.SetXForwarded()

	for name, value := range p.headers {
		pr.Out.Header.Set(name, value)
	}
	if id := pr.In.Header.Get("X-Request-ID"); id != "" {
		pr.Out.Header.Set("X-Request-ID", id)
	}
}

// relativePath strips the mount prefix, keeping a leading slash.
func (p *Proxy) relativePath(path string) string {
	rel := strings.TrimPrefix(path, p.prefix)
	if rel == "" || rel[0] != '/' {
		rel = "/" + rel
	}
	return rel
}

// observe reports the finished exchange. It never alters the response.
func (p *Proxy) observe(resp *http.Response) error {
	req := resp.Request
	if req == nil {
		return nil
	}

	ex := Exchange{
		Method:    req.Method,
		Path:      strings.TrimPrefix(req.URL.Path, strings.TrimSuffix(p.target.Path, "/")),
		Status:    resp.StatusCode,
		RequestID: req.Header.Get("X-Request-ID"),
		Header:    req.Header.Clone(),
	}
	if start, ok := startFrom(req.Context()); ok {
		ex.Duration = time.Since(start)
	}

	p.logger.Debug("backend responded",
		"method", ex.Method,
		"path", ex.Path,
		"status", ex.Status,
		"duration_ms", ex.Duration.Milliseconds(),
		"request_id", ex.RequestID,
	)

	if p.observer != nil {
		p.observer(ex)
	}
	return nil
}

func withStart(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, startKey{}, t)
}

func startFrom(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(startKey{}).(time.Time)
	return t, ok
}

func newTransport(timeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   maxIdleConnsPerHost,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: time.Second,
	}
}
