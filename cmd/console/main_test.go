package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("CONSOLE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want config load failure", err)
	}
}

// TestRun_InvalidBackend verifies validation errors stop startup.
func TestRun_InvalidBackend(t *testing.T) {
	t.Setenv("CONSOLE_CONFIG", writeConfig(t, `
backend:
  url: "ftp://backend"
`))

	if err := run(context.Background()); err == nil {
		t.Fatal("run() should fail with a non-http backend url")
	}
}

// TestRun_StartsAndStops verifies a clean start and shutdown with audit enabled.
func TestRun_StartsAndStops(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONSOLE_CONFIG", writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 38417
backend:
  url: "http://127.0.0.1:1/v1"
audit:
  enabled: true
  database:
    path: "`+filepath.Join(dir, "audit.db")+`"
logging:
  level: error
`))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "audit.db")); err != nil {
		t.Errorf("audit database not created: %v", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("CONSOLE_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("CONSOLE_CONFIG", "/etc/console.yaml")
	if got := getConfigPath(); got != "/etc/console.yaml" {
		t.Errorf("getConfigPath() = %q, want /etc/console.yaml", got)
	}
}

// TestRun_MissingBundler verifies a watch command that cannot start fails startup.
func TestRun_MissingBundler(t *testing.T) {
	t.Setenv("CONSOLE_CONFIG", writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 38418
web:
  watch:
    command: ["/nonexistent/bundler", "--watch"]
logging:
  level: error
`))

	err := run(context.Background())
	if err == nil {
		t.Fatal("run() should fail when the bundler cannot start")
	}
	if !strings.Contains(err.Error(), "starting bundler") {
		t.Errorf("run() error = %v, want bundler start failure", err)
	}
}

// TestRun_WithBundler verifies the watch command runs alongside the server.
func TestRun_WithBundler(t *testing.T) {
	t.Setenv("CONSOLE_CONFIG", writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 38419
web:
  dir: "`+t.TempDir()+`"
  watch:
    command: ["/bin/sleep", "60"]
logging:
  level: error
`))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}
}
