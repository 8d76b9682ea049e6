package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/viper"

	"github.com/nerrad567/kapua-console/internal/device"
)

// fakeConsole serves the console routes consolectl calls.
type fakeConsole struct {
	mu      sync.Mutex
	devices []device.Device
	deleted []string
	auth    []string
}

func (f *fakeConsole) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/oauth/authenticate":
		var creds struct{ Username, Password string }
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"type":"kapuaAuthenticationException"}`))
			return
		}
		_, _ = w.Write([]byte(`{"tokenId":"tok-123"}`))
	case r.Method == http.MethodGet && r.URL.Path == "/api/devices":
		_ = json.NewEncoder(w).Encode(device.NewListResult(f.devices))
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/devices/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/devices/")
		if id == "locked" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		f.deleted = append(f.deleted, id)
		kept := f.devices[:0]
		for _, d := range f.devices {
			if d.ID != id {
				kept = append(kept, d)
			}
		}
		f.devices = kept
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func newFakeConsole(t *testing.T) (*fakeConsole, string) {
	t.Helper()
	f := &fakeConsole{devices: []device.Device{
		{ID: "d1", ClientID: "rpi-lab-1", DisplayName: "Lab Pi"},
		{ID: "d2", ClientID: "gw-north", DisplayName: "North Gateway", ConnectionID: "c2"},
		{ID: "locked", ClientID: "gw-south"},
	}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv.URL
}

// execute runs consolectl with args and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(viper.New(), strings.NewReader(stdin), &out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLogin(t *testing.T) {
	_, url := newFakeConsole(t)

	out, err := execute(t, "", "--url", url, "login", "--username", "kapua-sys", "--password", "secret")
	if err != nil {
		t.Fatalf("login error = %v", err)
	}
	if strings.TrimSpace(out) != `{"tokenId":"tok-123"}` {
		t.Errorf("output = %q, want raw reply", out)
	}

	out, err = execute(t, "", "--url", url, "login", "--username", "kapua-sys", "--password", "secret", "--token-only")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "tok-123" {
		t.Errorf("token-only output = %q", out)
	}
}

func TestLogin_Rejected(t *testing.T) {
	_, url := newFakeConsole(t)

	if _, err := execute(t, "", "--url", url, "login", "--username", "u", "--password", "wrong"); err == nil {
		t.Error("login with bad password: expected error")
	}
}

func TestLogin_PasswordFromEnv(t *testing.T) {
	_, url := newFakeConsole(t)
	t.Setenv("CONSOLECTL_PASSWORD", "secret")
	t.Setenv("CONSOLECTL_URL", url)

	if _, err := execute(t, "", "login", "--username", "kapua-sys"); err != nil {
		t.Errorf("login with env password error = %v", err)
	}
}

func TestLogin_MissingCredentials(t *testing.T) {
	_, url := newFakeConsole(t)
	t.Setenv("CONSOLECTL_PASSWORD", "")

	if _, err := execute(t, "", "--url", url, "login", "--username", "u"); err == nil {
		t.Error("login without password: expected error")
	}
}

func TestDevicesList(t *testing.T) {
	f, url := newFakeConsole(t)

	out, err := execute(t, "", "--url", url, "--token", "tok-123", "devices", "list")
	if err != nil {
		t.Fatalf("devices list error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("output lines = %d, want header + 3:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[1], "gw-north") {
		t.Errorf("first row = %q, want connected device first", lines[1])
	}
	if f.auth[0] != "Bearer tok-123" {
		t.Errorf("Authorization = %q", f.auth[0])
	}
}

func TestDevicesList_FilterAndSort(t *testing.T) {
	_, url := newFakeConsole(t)

	out, err := execute(t, "", "--url", url, "devices", "list",
		"--filter", "connection=DISCONNECTED", "--sort", "clientId", "--desc")
	if err != nil {
		t.Fatalf("devices list error = %v", err)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("output lines = %d, want header + 2:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[1], "rpi-lab-1") || !strings.Contains(lines[2], "gw-south") {
		t.Errorf("rows = %q, want rpi-lab-1 then gw-south", lines[1:])
	}

	out, err = execute(t, "", "--url", url, "devices", "list", "--filter", "filter2=nothing")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "No records found" {
		t.Errorf("output = %q, want empty state", out)
	}
}

func TestDevicesList_BadFilter(t *testing.T) {
	_, url := newFakeConsole(t)

	for _, spec := range []string{"noequals", "firmware=1"} {
		if _, err := execute(t, "", "--url", url, "devices", "list", "--filter", spec); err == nil {
			t.Errorf("--filter %q: expected error", spec)
		}
	}
}

func TestDevicesDelete_Confirmed(t *testing.T) {
	f, url := newFakeConsole(t)

	out, err := execute(t, "y\n", "--url", url, "devices", "delete", "--id", "d1")
	if err != nil {
		t.Fatalf("devices delete error = %v", err)
	}
	if !strings.Contains(out, "Delete 1 device(s): d1? [y/N]") {
		t.Errorf("output = %q, want prompt", out)
	}
	if !strings.Contains(out, "deleted  d1") {
		t.Errorf("output = %q, want report", out)
	}
	if len(f.deleted) != 1 || f.deleted[0] != "d1" {
		t.Errorf("backend deleted = %v", f.deleted)
	}
}

func TestDevicesDelete_Declined(t *testing.T) {
	f, url := newFakeConsole(t)

	out, err := execute(t, "n\n", "--url", url, "devices", "delete", "--id", "d1")
	if err != nil {
		t.Fatalf("devices delete error = %v", err)
	}
	if !strings.Contains(out, "Cancelled.") {
		t.Errorf("output = %q, want cancellation", out)
	}
	if len(f.deleted) != 0 {
		t.Errorf("backend deleted = %v after decline", f.deleted)
	}
}

func TestDevicesDelete_PartialFailure(t *testing.T) {
	f, url := newFakeConsole(t)

	out, err := execute(t, "", "--url", url, "devices", "delete", "--id", "d1,locked", "--yes")
	if err == nil {
		t.Fatal("delete with a forbidden device: expected error")
	}
	if !strings.Contains(out, "deleted  d1") || !strings.Contains(out, "failed   locked") {
		t.Errorf("output = %q, want both outcomes", out)
	}
	if len(f.deleted) != 1 {
		t.Errorf("backend deleted = %v, want only d1", f.deleted)
	}
}

func TestDevicesDelete_UnknownID(t *testing.T) {
	f, url := newFakeConsole(t)

	if _, err := execute(t, "", "--url", url, "devices", "delete", "--id", "ghost", "--yes"); err == nil {
		t.Error("delete of an unknown id: expected error")
	}
	if len(f.deleted) != 0 {
		t.Errorf("backend deleted = %v", f.deleted)
	}
}

func TestDevicesDelete_RequiresID(t *testing.T) {
	_, url := newFakeConsole(t)

	if _, err := execute(t, "", "--url", url, "devices", "delete", "--yes"); err == nil {
		t.Error("delete without --id: expected error")
	}
}

func TestPromptConfirmer(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"\n", false},
		{"no\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		ok, err := newPromptConfirmer(strings.NewReader(tt.input), &out).Confirm(context.Background(), []string{"a", "b"})
		if err != nil {
			t.Fatalf("Confirm(%q) error = %v", tt.input, err)
		}
		if ok != tt.want {
			t.Errorf("Confirm(%q) = %v, want %v", tt.input, ok, tt.want)
		}
		if !strings.Contains(out.String(), "Delete 2 device(s): a, b?") {
			t.Errorf("prompt = %q", out.String())
		}
	}
}
