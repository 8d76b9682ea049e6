package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nerrad567/kapua-console/internal/device"
)

const (
	defaultTimeout = 30 * time.Second

	// maxErrorBody caps how much of a failed reply is kept on *Error.
	maxErrorBody = 64 << 10

	devicesPath = "/api/devices"
	loginPath   = "/oauth/authenticate"
)

// Option configures a Client.
type Option func(*Client)

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// Client is a console server API client. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
}

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginReply is the identity provider's reply as relayed by the console.
// Raw holds the untouched body.
type LoginReply struct {
	AccessToken string          `json:"access_token,omitempty"`
	TokenID     string          `json:"tokenId,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

// Token returns whichever token field the provider populated.
func (r *LoginReply) Token() string {
	if r.AccessToken != "" {
		return r.AccessToken
	}
	return r.TokenID
}

// New creates a client for the console server at baseURL (e.g. http://localhost:3000).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidBaseURL
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetDevices fetches the device collection.
func (c *Client) GetDevices(ctx context.Context) (*device.ListResult[device.Device], error) {
	resp, err := c.do(ctx, http.MethodGet, devicesPath, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var list device.ListResult[device.Device]
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding device list: %w", err)
	}
	return &list, nil
}

// DeleteDevice removes one device by ID.
func (c *Client) DeleteDevice(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}

	resp, err := c.do(ctx, http.MethodDelete, devicesPath+"/"+url.PathEscape(id), nil, "")
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// Authenticate logs in with username and password.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*LoginReply, error) {
	body, err := json.Marshal(Credentials{Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("encoding credentials: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, loginPath, bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading login reply: %w", err)
	}

	reply := &LoginReply{Raw: raw}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, reply); err != nil {
			return nil, fmt.Errorf("decoding login reply: %w", err)
		}
	}
	return reply, nil
}

// do sends one request and turns non-2xx replies into *Error.
// path must already be escaped. The caller owns the returned body.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &Error{Method: method, Path: path, Status: resp.StatusCode, Body: data}
	}

	return resp, nil
}
