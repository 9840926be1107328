package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/cellgate/cellgate/internal/proxy"
	"github.com/cellgate/cellgate/internal/session"
)

// ErrAuthExpired is returned when the dashboard server answers 401: the
// stored token no longer opens the gateway.
var ErrAuthExpired = errors.New("gateway session expired")

// ErrLoginRequired marks a fetch of a session-only resource attempted
// without a stored session. Unlike ErrAuthExpired no session was lost;
// nothing to clear, nothing to announce.
var ErrLoginRequired = errors.New("login required")

// Client calls the dashboard server's routes with the credentials from a
// session store attached.
type Client struct {
	baseURL string
	store   *session.Store
	httpc   *http.Client
	logger  *zap.Logger
}

// NewClient creates a client for the dashboard server at baseURL. A nil
// httpClient gets the default client.
func NewClient(baseURL string, store *session.Store, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
		httpc:   httpClient,
		logger:  logger,
	}
}

// do runs one request with the stored credentials attached. A missing
// session simply sends no credential headers; the server decides which
// routes need them.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// The server's CSRF check wants a same-host Origin on every write.
	req.Header.Set("Origin", c.baseURL)

	headers, err := c.store.Headers(ctx)
	if err != nil && !errors.Is(err, session.ErrNotAuthenticated) {
		return nil, fmt.Errorf("load session: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response for %s: %w", path, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrAuthExpired
	case resp.StatusCode >= 400:
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(payload, &body) == nil && body.Error != "" {
			return nil, errors.New(body.Error)
		}
		return nil, fmt.Errorf("%s answered status %d", path, resp.StatusCode)
	}
	return payload, nil
}

// Get fetches a route's JSON payload.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post sends a JSON body to a route.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body for %s: %w", path, err)
		}
		reader = bytes.NewReader(buf)
	}
	return c.do(ctx, http.MethodPost, path, reader)
}

// Login exchanges credentials for a gateway session and stores it. When
// remember is set the username is also saved for the next login prefill.
func (c *Client) Login(ctx context.Context, username, password, routerIP string, remember bool) (*proxy.LoginResponse, error) {
	payload, err := c.Post(ctx, "/api/router/login", map[string]string{
		"username": username,
		"password": password,
		"routerIp": routerIP,
	})
	if err != nil {
		if errors.Is(err, ErrAuthExpired) {
			return nil, errors.New("Invalid credentials")
		}
		return nil, err
	}

	var resp proxy.LoginResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	if !resp.Success {
		if resp.Error != "" {
			return nil, errors.New(resp.Error)
		}
		return nil, errors.New("Invalid credentials")
	}

	if err := c.store.SetCredentials(ctx, session.Credentials{
		Token:      resp.Token,
		GatewayIP:  resp.RouterIP,
		Username:   resp.Username,
		Expiration: resp.Expiration,
	}); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	if remember {
		if err := c.store.SetRememberedUsername(ctx, username); err != nil {
			return nil, fmt.Errorf("remember username: %w", err)
		}
	}
	return &resp, nil
}

// Logout drops the server-side acknowledgement and clears the stored
// session. The remembered username survives.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.Post(ctx, "/api/router/logout", nil); err != nil {
		// The session is local; a dead server must not keep us logged in.
		c.logger.Warn("logout request failed", zap.Error(err))
	}
	return c.store.ClearCredentials(ctx)
}

// Health probes the gateway through the server's health route.
func (c *Client) Health(ctx context.Context) (*proxy.HealthStatus, error) {
	payload, err := c.Get(ctx, "/api/router/health")
	if err != nil {
		return nil, err
	}
	var status proxy.HealthStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return &status, nil
}

// Reboot asks the gateway to restart. The device drops offline for
// several minutes; callers watch Health afterwards.
func (c *Client) Reboot(ctx context.Context) error {
	_, err := c.Post(ctx, "/api/router/reboot", nil)
	return err
}

// Store exposes the session store backing this client.
func (c *Client) Store() *session.Store {
	return c.store
}
