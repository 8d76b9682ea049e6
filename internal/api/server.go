package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/kapua-console/internal/audit"
	"github.com/nerrad567/kapua-console/internal/infrastructure/config"
	"github.com/nerrad567/kapua-console/internal/infrastructure/database"
	"github.com/nerrad567/kapua-console/internal/infrastructure/logging"
	"github.com/nerrad567/kapua-console/internal/oauth"
	"github.com/nerrad567/kapua-console/internal/process"
	"github.com/nerrad567/kapua-console/internal/proxy"
	"github.com/nerrad567/kapua-console/internal/web"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config *config.Config
	Logger *logging.Logger

	// Audit trail, all optional. Recorder is started and stopped with the server.
	AuditRepo audit.Repository
	Recorder  *audit.Recorder
	DB        *database.DB

	// Transport overrides the round tripper used for the backend and the
	// identity provider. Nil uses the defaults.
	Transport http.RoundTripper

	// Bundler reports the supervised watch command in the health check.
	// Nil when no watch command is configured.
	Bundler BundlerStatus

	Version string
}

// BundlerStatus is satisfied by *process.Supervisor.
type BundlerStatus interface {
	Stats() process.Stats
}

// Server is the HTTP server for the device console.
//
// It manages the HTTP listener, routes, middleware, the API proxy and the
// login adapter. The server is created with New() and started with Start().
type Server struct {
	cfg       *config.Config
	logger    *logging.Logger
	proxy     *proxy.Proxy
	login     *oauth.Handler
	web       http.Handler
	auditRepo audit.Repository
	recorder  *audit.Recorder
	db        *database.DB
	bundler   BundlerStatus
	version   string
	server    *http.Server
	listener  net.Listener
	cancel    context.CancelFunc // stops the audit recorder on Close()
	wg        sync.WaitGroup
}

// New creates a new server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger); audit deps are optional
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing or the upstream URLs are invalid
func New(deps Deps) (*Server, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	s := &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		web:       web.Handler(deps.Config.Web.Dir),
		auditRepo: deps.AuditRepo,
		recorder:  deps.Recorder,
		db:        deps.DB,
		bundler:   deps.Bundler,
		version:   deps.Version,
	}

	proxyOpts := proxy.Options{
		Target:       deps.Config.Backend.URL,
		StripPrefix:  "/api",
		Headers:      deps.Config.Backend.Headers,
		Timeout:      deps.Config.BackendTimeout(),
		Transport:    deps.Transport,
		ErrorHandler: writeBackendError,
		Logger:       deps.Logger,
	}
	if s.recorder != nil {
		proxyOpts.Observer = s.recordExchange
	}
	p, err := proxy.New(proxyOpts)
	if err != nil {
		return nil, fmt.Errorf("creating api proxy: %w", err)
	}
	s.proxy = p

	loginOpts := []oauth.Option{
		oauth.WithLogger(deps.Logger),
		oauth.WithErrorWriter(writeError),
	}
	if deps.Transport != nil {
		loginOpts = append(loginOpts, oauth.WithHTTPClient(&http.Client{
			Transport: deps.Transport,
			Timeout:   deps.Config.OAuthTimeout(),
			// Provider redirects go back to the browser unchanged.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}))
	}
	if s.recorder != nil {
		loginOpts = append(loginOpts, oauth.OnAttempt(s.recordLogin))
	}
	login, err := oauth.NewHandler(oauth.Config{
		ProviderURL:  deps.Config.OAuth.ProviderURL,
		Timeout:      deps.Config.OAuthTimeout(),
		Headers:      deps.Config.OAuth.Headers,
		MaxBodyBytes: deps.Config.OAuth.MaxBodyBytes,
	}, loginOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating login handler: %w", err)
	}
	s.login = login

	return s, nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It binds the listener synchronously so address errors surface here, starts
// the audit recorder, and serves in a background goroutine. The server can be
// stopped with Close().
//
// Parameters:
//   - ctx: Parent context for the audit recorder (not the listener lifetime)
//
// Returns:
//   - error: If the listener cannot be bound (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.recorder != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.recorder.Run(srvCtx)
		}()
	}

	s.server = &http.Server{
		Addr:              s.cfg.Address(),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		s.wg.Wait()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	tls := s.cfg.Server.TLS
	s.logger.Info("console server starting",
		"address", ln.Addr().String(),
		"tls", tls.Enabled,
		"backend", s.cfg.Backend.URL,
		"web_dir", s.cfg.Web.Dir,
	)

	go func() {
		var err error
		if tls.Enabled {
			err = s.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("console server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the server.
//
// It waits up to 10 seconds for in-flight requests to complete, then stops
// the audit recorder once it has written what is queued.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("console server shutting down")
	err := s.server.Shutdown(ctx)

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	if err != nil {
		return fmt.Errorf("shutting down console server: %w", err)
	}
	return nil
}

// HealthCheck verifies the server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("console health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("console server not started")
	}

	return nil
}
