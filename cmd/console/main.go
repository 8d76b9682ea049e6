// Kapua Console - device administration console server
//
// This is the main entry point for the console server. It serves the
// compiled single-page app, forwards /api/* to the device-management
// backend and /oauth/authenticate to the identity provider, and optionally
// keeps a local audit trail of logins and device deletes. In development it
// can also supervise the frontend bundler's watch command.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nerrad567/kapua-console/internal/api"
	"github.com/nerrad567/kapua-console/internal/audit"
	"github.com/nerrad567/kapua-console/internal/infrastructure/config"
	"github.com/nerrad567/kapua-console/internal/infrastructure/database"
	"github.com/nerrad567/kapua-console/internal/infrastructure/logging"
	"github.com/nerrad567/kapua-console/internal/process"
	"github.com/nerrad567/kapua-console/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// auditSource tags entries written by this process.
const auditSource = "console"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()

	// A missing .env is normal; variables may be set directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("starting kapua console",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", configPath,
	)

	deps := api.Deps{
		Config:  cfg,
		Logger:  log,
		Version: version,
	}

	if cfg.Audit.Enabled {
		db, err := openAuditDB(ctx, cfg.Audit.Database)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing audit database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing audit database", "error", closeErr)
			}
		}()
		log.Info("audit database ready", "path", db.Path())

		repo := audit.NewSQLiteRepository(db.DB)
		deps.DB = db
		deps.AuditRepo = repo
		deps.Recorder = audit.NewRecorder(repo, log, auditSource, 0)
	}

	if cfg.Web.Watch.Enabled() {
		bundler, err := startBundler(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			if stopErr := bundler.Stop(); stopErr != nil {
				log.Error("error stopping bundler", "error", stopErr)
			}
		}()
		deps.Bundler = bundler
	}

	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing server", "error", closeErr)
		}
	}()

	log.Info("kapua console ready", "address", server.Addr())

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

// openAuditDB opens the audit database and applies migrations.
func openAuditDB(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running audit migrations: %w", err)
	}
	return db, nil
}

// startBundler supervises the configured watch command, which rebuilds
// web.dir while the console serves it.
func startBundler(ctx context.Context, cfg *config.Config, log *logging.Logger) (*process.Supervisor, error) {
	watch := cfg.Web.Watch
	pcfg := process.DefaultConfig("bundler", watch.Command)
	pcfg.WorkDir = watch.WorkDir
	pcfg.Env = watch.Env
	pcfg.RestartDelay = cfg.WatchRestartDelay()
	pcfg.MaxRestartAttempts = watch.MaxRestarts
	pcfg.Ready = process.FileReady(filepath.Join(cfg.Web.Dir, "index.html"))

	sup, err := process.NewSupervisor(pcfg)
	if err != nil {
		return nil, fmt.Errorf("configuring bundler: %w", err)
	}
	sup.SetLogger(log.With("component", "bundler"))

	if err := sup.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting bundler: %w", err)
	}
	return sup, nil
}

// getConfigPath returns the configuration file path.
// Checks CONSOLE_CONFIG environment variable first, falls back to default.
func getConfigPath() string {
	if path := os.Getenv("CONSOLE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
