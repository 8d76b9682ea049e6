package proxy

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestProxy(t *testing.T, target string, mutate func(*Options)) *Proxy {
	t.Helper()
	opts := Options{
		Target:      target,
		StripPrefix: "/api",
	}
	if mutate != nil {
		mutate(&opts)
	}
	p, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestNew_InvalidTarget(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   error
	}{
		{"empty", "", ErrNoTarget},
		{"relative", "/v1", ErrInvalidTarget},
		{"wrong scheme", "ftp://backend/v1", ErrInvalidTarget},
		{"missing host", "http:///v1", ErrInvalidTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Options{Target: tt.target})
			if !errors.Is(err, tt.want) {
				t.Errorf("New(%q) error = %v, want %v", tt.target, err, tt.want)
			}
		})
	}
}

func TestProxy_RelaysVerbatim(t *testing.T) {
	var got *http.Request
	var gotBody string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(r.Context())
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Backend", "kapua")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"type":"deviceListResult","size":0}`))
	}))
	defer backend.Close()

	p := newTestProxy(t, backend.URL+"/v1", func(o *Options) {
		o.Headers = map[string]string{"X-Scope": "_"}
	})

	req := httptest.NewRequest(http.MethodPost, "/api/devices?limit=50&offset=10", strings.NewReader(`{"clientId":"c1"}`))
	req.Header.Set("Authorization", "Bearer abc")
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if body := rec.Body.String(); body != `{"type":"deviceListResult","size":0}` {
		t.Errorf("body = %q", body)
	}
	if rec.Header().Get("X-Backend") != "kapua" {
		t.Error("backend response header was not relayed")
	}

	if got == nil {
		t.Fatal("backend was not called")
	}
	if got.Method != http.MethodPost {
		t.Errorf("upstream method = %s, want POST", got.Method)
	}
	if got.URL.Path != "/v1/devices" {
		t.Errorf("upstream path = %q, want /v1/devices", got.URL.Path)
	}
	if got.URL.RawQuery != "limit=50&offset=10" {
		t.Errorf("upstream query = %q", got.URL.RawQuery)
	}
	if gotBody != `{"clientId":"c1"}` {
		t.Errorf("upstream body = %q", gotBody)
	}
	if got.Header.Get("Authorization") != "Bearer abc" {
		t.Error("Authorization header was not forwarded")
	}
	if got.Header.Get("X-Scope") != "_" {
		t.Error("configured header was not added")
	}
	if got.Header.Get("X-Request-ID") != "req-1" {
		t.Errorf("X-Request-ID = %q, want req-1", got.Header.Get("X-Request-ID"))
	}
	if got.Header.Get("X-Forwarded-For") == "" {
		t.Error("X-Forwarded-For was not set")
	}
}

func TestProxy_PrefixOnly(t *testing.T) {
	var path string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	p := newTestProxy(t, backend.URL+"/v1", nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api", nil))

	if path != "/v1/" {
		t.Errorf("upstream path = %q, want /v1/", path)
	}
}

func TestProxy_BackendUnreachable(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	target := backend.URL
	backend.Close()

	var handled error
	p := newTestProxy(t, target, func(o *Options) {
		o.ErrorHandler = func(w http.ResponseWriter, _ *http.Request, err error) {
			handled = err
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"status":"error","code":"backend_unavailable"}`))
		}
	})

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/devices", nil))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if handled == nil {
		t.Error("ErrorHandler was not called")
	}
	if !strings.Contains(rec.Body.String(), "backend_unavailable") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestProxy_DefaultErrorHandler(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	target := backend.URL
	backend.Close()

	p := newTestProxy(t, target, nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/devices", nil))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestProxy_Observer(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	var mu sync.Mutex
	var seen []Exchange
	p := newTestProxy(t, backend.URL+"/v1/", func(o *Options) {
		o.Observer = func(ex Exchange) {
			mu.Lock()
			seen = append(seen, ex)
			mu.Unlock()
		}
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/devices/AQ-1", nil)
	req.Header.Set("X-Request-ID", "req-del")
	p.ServeHTTP(httptest.NewRecorder(), req)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 {
		t.Fatalf("observer calls = %d, want 1", len(seen))
	}
	ex := seen[0]
	if ex.Method != http.MethodDelete || ex.Path != "/devices/AQ-1" || ex.Status != http.StatusNoContent {
		t.Errorf("exchange = %+v", ex)
	}
	if ex.RequestID != "req-del" {
		t.Errorf("RequestID = %q, want req-del", ex.RequestID)
	}
}

func TestProxy_WebSocketUpgrade(t *testing.T) {
	upgrader := websocket.Upgrader{}
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/stream" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, append([]byte("echo:"), msg...)); err != nil {
				return
			}
		}
	}))
	defer backend.Close()

	p := newTestProxy(t, backend.URL+"/v1", nil)
	front := httptest.NewServer(p)
	defer front.Close()

	wsURL := "ws" + strings.TrimPrefix(front.URL, "http") + "/api/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Errorf("handshake status = %d, want 101", resp.StatusCode)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if string(msg) != "echo:ping" {
		t.Errorf("message = %q, want echo:ping", msg)
	}
}

func TestProxy_Target(t *testing.T) {
	p := newTestProxy(t, "https://api.example.com/v1", nil)
	u := p.Target()
	u.Host = "mutated"
	if p.Target().Host != "api.example.com" {
		t.Error("Target() exposed internal URL")
	}
}

func TestProxy_StreamOutlivesWriteTimeout(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, event := range []string{"data: first\n\n", "data: second\n\n"} {
			_, _ = io.WriteString(w, event)
			w.(http.Flusher).Flush()
			time.Sleep(300 * time.Millisecond)
		}
	}))
	defer backend.Close()

	p := newTestProxy(t, backend.URL+"/v1", nil)
	front := httptest.NewUnstartedServer(p)
	front.Config.WriteTimeout = 100 * time.Millisecond
	front.Start()
	defer front.Close()

	resp, err := http.Get(front.URL + "/api/events")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading stream: %v (got %q)", err, body)
	}
	if string(body) != "data: first\n\ndata: second\n\n" {
		t.Errorf("stream = %q, want both events", body)
	}
}
