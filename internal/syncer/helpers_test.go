package syncer

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	errs "github.com/alexjbarnes/notesync/internal/errors"
	"github.com/alexjbarnes/notesync/internal/ledger"
	"github.com/alexjbarnes/notesync/internal/logging"
	"github.com/alexjbarnes/notesync/internal/models"
	"github.com/alexjbarnes/notesync/internal/netmon"
	"github.com/alexjbarnes/notesync/internal/notify"
	"github.com/alexjbarnes/notesync/internal/remote"
	"github.com/alexjbarnes/notesync/internal/state"
	"github.com/alexjbarnes/notesync/internal/view"
)

const testOwner = "u1"

// fakeRemote is an in-memory RemoteStore. Setting an *Err field makes the
// matching call fail.
type fakeRemote struct {
	mu    sync.Mutex
	notes map[string]models.Note

	listErr   error
	createErr error
	updateErr error
	deleteErr error

	lists, creates, updates, deletes int

	// afterList runs once after the next listing is taken, standing in for
	// another client writing while a pass is in flight.
	afterList func(r *fakeRemote)
}

func newFakeRemote(notes ...models.Note) *fakeRemote {
	r := &fakeRemote{notes: make(map[string]models.Note)}
	for _, n := range notes {
		r.notes[n.ID] = n.Clone()
	}

	return r
}

func (r *fakeRemote) List(_ context.Context, ownerID string) ([]models.Note, error) {
	r.mu.Lock()
	hook := r.afterList
	r.afterList = nil

	defer func() {
		if hook != nil {
			hook(r)
		}
	}()
	defer r.mu.Unlock()

	r.lists++
	if r.listErr != nil {
		return nil, r.listErr
	}

	out := []models.Note{}

	for _, n := range r.notes {
		if n.OwnerID == ownerID {
			out = append(out, n.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (r *fakeRemote) Create(_ context.Context, n models.Note) (models.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.creates++
	if r.createErr != nil {
		return models.Note{}, r.createErr
	}

	r.notes[n.ID] = n.Clone()

	return n, nil
}

func (r *fakeRemote) Update(_ context.Context, n models.Note) (models.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.updates++
	if r.updateErr != nil {
		return models.Note{}, r.updateErr
	}

	existing, ok := r.notes[n.ID]
	if !ok {
		return models.Note{}, fmt.Errorf("update %s: %w", n.ID, errs.ErrNoteNotFound)
	}

	if n.UpdatedAt < existing.UpdatedAt {
		return models.Note{}, &remote.RejectionError{Endpoint: "/v1/notes/" + n.ID, Status: 409, Message: "stale version"}
	}

	r.notes[n.ID] = n.Clone()

	return n, nil
}

func (r *fakeRemote) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deletes++
	if r.deleteErr != nil {
		return r.deleteErr
	}

	if _, ok := r.notes[id]; !ok {
		return fmt.Errorf("delete %s: %w", id, errs.ErrNoteNotFound)
	}

	delete(r.notes, id)

	return nil
}

func (r *fakeRemote) get(id string) (models.Note, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notes[id]

	return n, ok
}

func (r *fakeRemote) put(n models.Note) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.notes[n.ID] = n.Clone()
}

func (r *fakeRemote) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.notes)
}

// transientErr and rejectErr mirror what the HTTP client produces.
func transientErr() error {
	return &remote.TransientError{Err: fmt.Errorf("connection refused")}
}

func rejectErr() error {
	return &remote.RejectionError{Endpoint: "/v1/notes", Status: 403, Message: "forbidden"}
}

type harness struct {
	engine  *Engine
	remote  RemoteStore
	ledger  *ledger.Ledger
	view    *view.Store
	monitor *netmon.Monitor
	state   *state.State
	nowMs   int64
}

func (h *harness) clock() time.Time { return time.UnixMilli(h.nowMs) }

// advance moves the fake clock forward.
func (h *harness) advance(ms int64) { h.nowMs += ms }

type harnessOpt func(*Config, *Deps)

func withNotifier(n notify.Notifier) harnessOpt {
	return func(_ *Config, d *Deps) { d.Notifier = n }
}

func withRecipients(r ...string) harnessOpt {
	return func(c *Config, _ *Deps) { c.Recipients = r }
}

// newHarness wires an engine against rs with a fresh bbolt database.
func newHarness(t *testing.T, rs RemoteStore, online bool, opts ...harnessOpt) *harness {
	t.Helper()

	st, err := state.LoadAt(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return newHarnessWithState(t, rs, online, st, opts...)
}

func newHarnessWithState(t *testing.T, rs RemoteStore, online bool, st *state.State, opts ...harnessOpt) *harness {
	t.Helper()

	logger := logging.Discard()

	h := &harness{
		remote:  rs,
		ledger:  ledger.New(st, testOwner, logger),
		view:    view.New(),
		monitor: netmon.New(online, nil, 0, logger),
		state:   st,
		nowMs:   1_000,
	}

	cfg := Config{OwnerID: testOwner, DefaultMode: models.ModeWork, RemoteTimeout: time.Second}
	deps := Deps{
		Remote:  rs,
		Ledger:  h.ledger,
		View:    h.view,
		Monitor: h.monitor,
		State:   st,
		Logger:  logger,
	}

	for _, o := range opts {
		o(&cfg, &deps)
	}

	h.engine = New(cfg, deps)
	h.engine.now = h.clock

	return h
}

func note(id, title string, updatedAt int64) models.Note {
	return models.Note{
		ID:        id,
		Title:     title,
		Content:   title + " body",
		Tags:      []string{},
		Mode:      models.ModeWork,
		CreatedAt: 1,
		UpdatedAt: updatedAt,
		OwnerID:   testOwner,
	}
}

func pendingIDs(l *ledger.Ledger) []string {
	ids := []string{}
	for _, e := range l.ListPending() {
		ids = append(ids, e.ID)
	}

	return ids
}

func viewIDs(v *view.Store) []string {
	ids := []string{}
	for _, n := range v.CurrentNotes() {
		ids = append(ids, n.ID)
	}

	return ids
}

// drainRequest reports whether a follow-up pass was requested.
func drainRequest(e *Engine) bool {
	select {
	case <-e.Requests():
		return true
	default:
		return false
	}
}
