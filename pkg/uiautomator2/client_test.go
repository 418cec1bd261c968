package uiautomator2

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// recorded is what the fake server saw.
type recorded struct {
	method string
	path   string
	body   map[string]interface{}
}

// fakeServer answers every request with value and records it.
func fakeServer(t *testing.T, status int, value interface{}) (*Client, *[]recorded) {
	t.Helper()
	var seen []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path}
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
		seen = append(seen, rec)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"value": value})
	}))
	t.Cleanup(srv.Close)

	c := &Client{http: srv.Client(), baseURL: srv.URL, sessionID: "s1"}
	return c, &seen
}

func TestCreateSession(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
		want string
	}{
		{"top level", map[string]interface{}{"sessionId": "abc", "value": nil}, "abc"},
		{"nested", map[string]interface{}{"value": map[string]interface{}{"sessionId": "def"}}, "def"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != "POST" || r.URL.Path != "/session" {
					t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
				}
				_ = json.NewEncoder(w).Encode(tt.body)
			}))
			defer srv.Close()

			c := &Client{http: srv.Client(), baseURL: srv.URL}
			if err := c.CreateSession(context.Background(), Capabilities{PlatformName: "Android"}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.SessionID() != tt.want {
				t.Errorf("SessionID() = %q, want %q", c.SessionID(), tt.want)
			}
		})
	}
}

func TestCreateSessionMissingID(t *testing.T) {
	c, _ := fakeServer(t, http.StatusOK, map[string]interface{}{})
	c.sessionID = ""
	if err := c.CreateSession(context.Background(), Capabilities{}); err == nil {
		t.Fatal("expected error without a session id")
	}
}

func TestDeleteSession(t *testing.T) {
	c, seen := fakeServer(t, http.StatusOK, nil)

	if err := c.DeleteSession(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.SessionID() != "" {
		t.Error("session should be cleared")
	}
	if len(*seen) != 1 || (*seen)[0].method != "DELETE" || (*seen)[0].path != "/session/s1" {
		t.Errorf("unexpected requests %+v", *seen)
	}

	// Second delete is a no-op.
	if err := c.DeleteSession(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*seen) != 1 {
		t.Errorf("expected no further requests, got %d", len(*seen))
	}
}

func TestServerError(t *testing.T) {
	c, _ := fakeServer(t, http.StatusInternalServerError, map[string]interface{}{
		"error":   "unknown error",
		"message": "instrumentation died",
	})

	err := c.Back(context.Background())
	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if se.Status != 500 || se.Code != "unknown error" || se.Message != "instrumentation died" {
		t.Errorf("unexpected error %+v", se)
	}
}

func TestServerErrorPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()
	c := &Client{http: srv.Client(), baseURL: srv.URL, sessionID: "s1"}

	var se *ServerError
	if err := c.Back(context.Background()); !errors.As(err, &se) || se.Status != http.StatusBadGateway {
		t.Fatalf("expected 502 ServerError, got %v", err)
	}
}

func TestRequestHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()
	c := &Client{http: srv.Client(), baseURL: srv.URL, sessionID: "s1"}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Source(ctx); err == nil {
		t.Fatal("expected context error")
	}
}

func TestCommandsRequireSession(t *testing.T) {
	c, seen := fakeServer(t, http.StatusOK, nil)
	c.sessionID = ""

	if err := c.Click(context.Background(), 1, 2); err == nil {
		t.Error("Click should fail without a session")
	}
	if err := c.UpdateSettings(context.Background(), map[string]interface{}{"a": 1}); err == nil {
		t.Error("UpdateSettings should fail without a session")
	}
	if len(*seen) != 0 {
		t.Errorf("expected no requests, got %d", len(*seen))
	}
}
