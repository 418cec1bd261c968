package uiautomator2

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/yuwei/yunduanban-runner/pkg/logger"
)

const requestTimeout = 30 * time.Second

// Client talks to the UIAutomator2 server over a forwarded unix socket or
// TCP port. It holds at most one session.
type Client struct {
	http    *http.Client
	baseURL string

	mu        sync.RWMutex
	sessionID string
}

// NewClient creates a client dialing a unix socket.
func NewClient(socketPath string) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}
	return &Client{
		http:    &http.Client{Transport: transport, Timeout: requestTimeout},
		baseURL: "http://localhost",
	}
}

// NewClientTCP creates a client for a forwarded local port.
func NewClientTCP(port int) *Client {
	return &Client{
		http:    &http.Client{Timeout: requestTimeout},
		baseURL: fmt.Sprintf("http://127.0.0.1:%d", port),
	}
}

// SessionID returns the current session ID, empty without a session.
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

func (c *Client) setSession(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

// ServerError is a W3C-style error returned by the server.
type ServerError struct {
	Status  int
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
}

// call sends in as JSON and decodes the response's value into out. Either
// may be nil.
func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	env, err := c.roundTrip(ctx, method, path, in)
	if err != nil {
		return err
	}
	if out == nil || len(env.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Value, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// session prefixes path with the active session, failing without one.
func (c *Client) session(path string) (string, error) {
	id := c.SessionID()
	if id == "" {
		return "", fmt.Errorf("no active session")
	}
	return "/session/" + id + path, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in interface{}) (*envelope, error) {
	start := time.Now()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Debug("uia2 %s %s [%v] %v", method, path, time.Since(start), err)
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	logger.Debug("uia2 %s %s [%v] %d", method, path, time.Since(start), resp.StatusCode)

	var env envelope
	decodeErr := json.Unmarshal(data, &env)

	if resp.StatusCode >= 400 {
		var ev serverErrorValue
		if decodeErr == nil && json.Unmarshal(env.Value, &ev) == nil && ev.Error != "" {
			return nil, &ServerError{Status: resp.StatusCode, Code: ev.Error, Message: ev.Message}
		}
		return nil, &ServerError{Status: resp.StatusCode, Message: string(data)}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}
	return &env, nil
}

// CreateSession starts a session. Older servers put the id at the top
// level, newer ones under value.
func (c *Client) CreateSession(ctx context.Context, caps Capabilities) error {
	env, err := c.roundTrip(ctx, http.MethodPost, "/session", sessionRequest{Capabilities: caps})
	if err != nil {
		return err
	}

	id := env.SessionID
	if id == "" {
		var nested struct {
			SessionID string `json:"sessionId"`
		}
		if json.Unmarshal(env.Value, &nested) == nil {
			id = nested.SessionID
		}
	}
	if id == "" {
		return fmt.Errorf("no session ID in response")
	}

	c.setSession(id)
	return nil
}

// DeleteSession ends the current session, if any.
func (c *Client) DeleteSession(ctx context.Context) error {
	path, err := c.session("")
	if err != nil {
		return nil
	}
	c.setSession("")
	return c.call(ctx, http.MethodDelete, path, nil, nil)
}

// Close ends the session.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.DeleteSession(ctx)
}

// UpdateSettings changes server settings such as waitForIdleTimeout.
func (c *Client) UpdateSettings(ctx context.Context, settings map[string]interface{}) error {
	path, err := c.session("/appium/settings")
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodPost, path, settingsRequest{Settings: settings}, nil)
}
