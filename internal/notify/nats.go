package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// subjectPrefix is followed by the change kind, e.g. notes.changed.created.
	subjectPrefix = "notes.changed."

	// flushTimeout bounds the flush when the caller's context has no
	// deadline. FlushWithContext refuses contexts without one.
	flushTimeout = 5 * time.Second
)

// natsConn is the subset of *nats.Conn the notifier uses.
type natsConn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATS publishes each change as a JSON message on notes.changed.<kind>.
type NATS struct {
	nc     natsConn
	logger *slog.Logger
}

// NewNATS connects to a NATS server. The client keeps retrying a failed
// initial connection in the background, so an unreachable server at
// startup is not an error.
func NewNATS(url string, logger *slog.Logger) (*NATS, error) {
	logger = logger.With(slog.String("component", "notify"), slog.String("transport", "nats"))

	nc, err := nats.Connect(url,
		nats.Name("notesync"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	return &NATS{nc: nc, logger: logger}, nil
}

// NoteChanged publishes c and waits for the server to acknowledge the
// flush or ctx to expire.
func (n *NATS) NoteChanged(ctx context.Context, c Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding change: %w", err)
	}

	subject := subjectPrefix + string(c.Kind)

	if err := n.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}

	if err := n.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flushing %s: %w", subject, err)
	}

	return nil
}

// Close closes the connection. Unflushed publishes are dropped.
func (n *NATS) Close() error {
	n.nc.Close()
	return nil
}
