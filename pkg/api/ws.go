package api

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/yuwei/yunduanban-runner/pkg/core"
	"github.com/yuwei/yunduanban-runner/pkg/logger"
)

const writeTimeout = 5 * time.Second

// Event is one websocket push: a state transition or a new log entry.
type Event struct {
	Type  string            `json:"type"` // "state" or "log"
	State *core.EngineState `json:"state,omitempty"`
	Log   *core.LogEntry    `json:"log,omitempty"`
}

// handleWebSocket streams the current state, then every state transition
// and log entry until the client goes away. Client messages are ignored.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		logger.Error("websocket accept: %v", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	ctx := conn.CloseRead(r.Context())

	states, unsubscribeStates := s.engine.Subscribe()
	defer unsubscribeStates()
	logs, unsubscribeLogs := s.sink.Subscribe()
	defer unsubscribeLogs()

	logger.Debug("websocket connected: %s", r.RemoteAddr)

	st := s.engine.State()
	if err := push(ctx, conn, Event{Type: "state", State: &st}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			if err := push(ctx, conn, Event{Type: "state", State: &st}); err != nil {
				logger.Debug("websocket write: %v", err)
				return
			}
		case e, ok := <-logs:
			if !ok {
				return
			}
			if err := push(ctx, conn, Event{Type: "log", Log: &e}); err != nil {
				logger.Debug("websocket write: %v", err)
				return
			}
		}
	}
}

func push(ctx context.Context, conn *websocket.Conn, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
