// Package notify tells an external fan-out service that a note changed.
// Delivery to end users (push notifications, email) is the service's job;
// this package only emits the event.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
)

// Kind is the mutation that produced a change.
type Kind string

const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
	KindDeleted Kind = "deleted"
)

// Change describes one confirmed note mutation.
type Change struct {
	NoteID     string   `json:"noteId"`
	OwnerID    string   `json:"ownerId"`
	Kind       Kind     `json:"kind"`
	Title      string   `json:"title,omitempty"`
	Recipients []string `json:"recipients,omitempty"`
	At         int64    `json:"at"`
}

// Notifier receives change events after the remote store has accepted a
// write. Implementations must be safe for concurrent use.
type Notifier interface {
	NoteChanged(ctx context.Context, c Change) error
	Close() error
}

// Nop discards every change.
type Nop struct{}

func (Nop) NoteChanged(context.Context, Change) error { return nil }
func (Nop) Close() error                               { return nil }

// New picks an implementation from the URL scheme: ws/wss for a websocket
// endpoint, nats for a NATS server. An empty URL yields Nop.
func New(rawURL string, logger *slog.Logger) (Notifier, error) {
	if rawURL == "" {
		return Nop{}, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing notify url: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		return NewWebSocket(rawURL, logger), nil
	case "nats", "tls":
		return NewNATS(rawURL, logger)
	default:
		return nil, fmt.Errorf("unsupported notify url scheme %q", u.Scheme)
	}
}
