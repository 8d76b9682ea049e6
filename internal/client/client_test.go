package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nerrad567/kapua-console/internal/device"
)

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/", opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_InvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:3000", "ftp://console", "http://"} {
		if _, err := New(raw); !errors.Is(err, ErrInvalidBaseURL) {
			t.Errorf("New(%q) error = %v, want ErrInvalidBaseURL", raw, err)
		}
	}
}

func TestGetDevices(t *testing.T) {
	var auth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/devices" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		list := device.NewListResult([]device.Device{
			{ID: "AQ", ClientID: "rpi-1", ConnectionID: "conn-1"},
			{ID: "AR", ClientID: "rpi-2"},
		})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(list)
	}), WithToken("tok"))

	list, err := c.GetDevices(context.Background())
	if err != nil {
		t.Fatalf("GetDevices() error = %v", err)
	}
	if list.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", list.Len())
	}
	if !list.All()[0].Connected() || list.All()[1].Connected() {
		t.Error("connection status not decoded")
	}
	if auth != "Bearer tok" {
		t.Errorf("Authorization = %q, want %q", auth, "Bearer tok")
	}
}

func TestGetDevices_ErrorStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"unauthenticated"}`))
	}))

	_, err := c.GetDevices(context.Background())
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("GetDevices() error = %v, want *Error", err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", apiErr.Status)
	}
	if string(apiErr.Body) != `{"type":"unauthenticated"}` {
		t.Errorf("Body = %q", apiErr.Body)
	}
	if StatusCode(err) != http.StatusUnauthorized {
		t.Errorf("StatusCode() = %d, want 401", StatusCode(err))
	}
}

func TestGetDevices_BadBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))

	if _, err := c.GetDevices(context.Background()); err == nil {
		t.Error("GetDevices() expected decode error, got nil")
	}
}

func TestDeleteDevice(t *testing.T) {
	var method, path string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.EscapedPath()
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := c.DeleteDevice(context.Background(), "a/b"); err != nil {
		t.Fatalf("DeleteDevice() error = %v", err)
	}
	if method != http.MethodDelete {
		t.Errorf("method = %s, want DELETE", method)
	}
	if path != "/api/devices/a%2Fb" {
		t.Errorf("path = %q, want escaped id", path)
	}
}

func TestDeleteDevice_MissingID(t *testing.T) {
	c, err := New("http://localhost:3000")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.DeleteDevice(context.Background(), ""); !errors.Is(err, ErrMissingID) {
		t.Errorf("DeleteDevice(\"\") error = %v, want ErrMissingID", err)
	}
}

func TestDeleteDevice_NotFound(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())

	err := c.DeleteDevice(context.Background(), "AQ")
	if StatusCode(err) != http.StatusNotFound {
		t.Errorf("DeleteDevice() error = %v, want 404", err)
	}
}

func TestAuthenticate(t *testing.T) {
	var got Credentials
	var contentType string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/oauth/authenticate" {
			http.NotFound(w, r)
			return
		}
		contentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"tokenId":"tok-1","expiresOn":"2030-01-01T00:00:00Z"}`))
	}))

	reply, err := c.Authenticate(context.Background(), "kapua-sys", "secret")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if got.Username != "kapua-sys" || got.Password != "secret" {
		t.Errorf("credentials = %+v", got)
	}
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q", contentType)
	}
	if reply.Token() != "tok-1" {
		t.Errorf("Token() = %q, want tok-1", reply.Token())
	}
	if len(reply.Raw) == 0 {
		t.Error("Raw reply was not kept")
	}
}

func TestAuthenticate_Rejected(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	if _, err := c.Authenticate(context.Background(), "u", "bad"); StatusCode(err) != http.StatusUnauthorized {
		t.Errorf("Authenticate() error = %v, want 401", err)
	}
}

func TestWithTimeout(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}), WithTimeout(50*time.Millisecond))

	if _, err := c.GetDevices(context.Background()); err == nil {
		t.Error("GetDevices() expected timeout error, got nil")
	}
}

func TestLoginReply_Token(t *testing.T) {
	r := &LoginReply{AccessToken: "a", TokenID: "b"}
	if r.Token() != "a" {
		t.Errorf("Token() = %q, want access_token first", r.Token())
	}
}
