package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// wsConn abstracts the websocket connection so the notifier can be tested
// without a real server. *websocket.Conn satisfies this interface.
type wsConn interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

type dialFunc func(ctx context.Context, url string) (wsConn, error)

func dialWebSocket(ctx context.Context, url string) (wsConn, error) {
	conn, _, err := websocket.Dial(ctx, url, nil) //nolint:bodyclose // websocket.Dial closes the response body internally
	if err != nil {
		return nil, err
	}

	return conn, nil
}

// WebSocket sends each change as one JSON text frame. The connection is
// dialed lazily and dropped after a failed write; the next change dials
// again.
type WebSocket struct {
	url    string
	dial   dialFunc
	logger *slog.Logger

	mu   sync.Mutex
	conn wsConn
}

// NewWebSocket returns a notifier for a ws:// or wss:// endpoint.
func NewWebSocket(url string, logger *slog.Logger) *WebSocket {
	return &WebSocket{
		url:    url,
		dial:   dialWebSocket,
		logger: logger.With(slog.String("component", "notify"), slog.String("transport", "websocket")),
	}
}

// NoteChanged writes c to the socket, dialing first if needed.
func (w *WebSocket) NoteChanged(ctx context.Context, c Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding change: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		conn, err := w.dial(ctx, w.url)
		if err != nil {
			return fmt.Errorf("dialing notify websocket: %w", err)
		}

		w.logger.Debug("connected", slog.String("url", w.url))
		w.conn = conn
	}

	if err := w.conn.Write(ctx, websocket.MessageText, data); err != nil {
		w.conn.Close(websocket.StatusInternalError, "write failed")
		w.conn = nil

		return fmt.Errorf("writing change: %w", err)
	}

	return nil
}

// Close closes the current connection, if any.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return nil
	}

	err := w.conn.Close(websocket.StatusNormalClosure, "bye")
	w.conn = nil

	return err
}
