package e2e_test

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexjbarnes/notesync/internal/ledger"
	"github.com/alexjbarnes/notesync/internal/models"
	"github.com/alexjbarnes/notesync/internal/netmon"
	"github.com/alexjbarnes/notesync/internal/notify"
	"github.com/alexjbarnes/notesync/internal/remote"
	"github.com/alexjbarnes/notesync/internal/server"
	"github.com/alexjbarnes/notesync/internal/state"
	"github.com/alexjbarnes/notesync/internal/syncer"
	"github.com/alexjbarnes/notesync/internal/view"
)

const (
	testOwner = "owner-1"
	testToken = "e2e-token"
)

// harness is a reference note service on an httptest server.
type harness struct {
	URL    string
	Store  *server.NoteStore
	server *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := server.NewNoteStore()
	srv := httptest.NewServer(server.NewMux(server.MuxConfig{
		Store:  store,
		Token:  testToken,
		Logger: slog.New(slog.DiscardHandler),
	}))
	t.Cleanup(srv.Close)

	return &harness{URL: srv.URL, Store: store, server: srv}
}

// device is one client installation: its own state file, ledger, view,
// monitor, and engine talking to the harness over HTTP.
type device struct {
	Engine  *syncer.Engine
	View    *view.Store
	Ledger  *ledger.Ledger
	Monitor *netmon.Monitor
	State   *state.State
}

type deviceOpts struct {
	token    string
	notifier notify.Notifier
	state    *state.State
}

func (h *harness) newDevice(t *testing.T, opts deviceOpts) *device {
	t.Helper()

	if opts.token == "" {
		opts.token = testToken
	}

	st := opts.state
	if st == nil {
		var err error

		st, err = state.LoadAt(filepath.Join(t.TempDir(), "state.db"))
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
	}

	logger := slog.New(slog.DiscardHandler)
	client := remote.NewClient(h.URL, opts.token, h.server.Client())
	monitor := netmon.New(false, client, time.Hour, logger)
	notes := view.New()
	pending := ledger.New(st, testOwner, logger)

	engine := syncer.New(syncer.Config{
		OwnerID:       testOwner,
		DefaultMode:   models.ModeWork,
		RemoteTimeout: 5 * time.Second,
		Recipients:    []string{"family"},
	}, syncer.Deps{
		Remote:   client,
		Ledger:   pending,
		View:     notes,
		Monitor:  monitor,
		Notifier: opts.notifier,
		State:    st,
		Logger:   logger,
	})

	return &device{Engine: engine, View: notes, Ledger: pending, Monitor: monitor, State: st}
}

// goOnline probes the harness, which flips the monitor online.
func (d *device) goOnline(t *testing.T) {
	t.Helper()
	require.True(t, d.Monitor.Probe(context.Background()))
}

func (d *device) sync(t *testing.T) syncer.Report {
	t.Helper()
	return d.Engine.TriggerSync(context.Background())
}

func titles(notes []models.Note) []string {
	out := []string{}
	for _, n := range notes {
		out = append(out, n.Title)
	}

	return out
}
