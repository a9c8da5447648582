// Package syncer reconciles the local ledger with the remote note store.
// Engine owns the merge pass and the write path; Scheduler decides when
// passes run.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	errs "github.com/alexjbarnes/notesync/internal/errors"
	"github.com/alexjbarnes/notesync/internal/ledger"
	"github.com/alexjbarnes/notesync/internal/models"
	"github.com/alexjbarnes/notesync/internal/netmon"
	"github.com/alexjbarnes/notesync/internal/notify"
	"github.com/alexjbarnes/notesync/internal/state"
	"github.com/alexjbarnes/notesync/internal/view"
)

const (
	// DefaultRemoteTimeout bounds each remote call made by the engine.
	DefaultRemoteTimeout = 15 * time.Second

	// notifyTimeout bounds a single notifier call so a slow fan-out
	// service cannot stall the write path.
	notifyTimeout = 5 * time.Second
)

// RemoteStore is the authoritative note service. *remote.Client satisfies
// this interface.
type RemoteStore interface {
	List(ctx context.Context, ownerID string) ([]models.Note, error)
	Create(ctx context.Context, note models.Note) (models.Note, error)
	Update(ctx context.Context, note models.Note) (models.Note, error)
	Delete(ctx context.Context, id string) error
}

// Outcome is the result class of a reconciliation pass.
type Outcome int

const (
	// OutcomeSuccess means the remote listing was merged and published.
	OutcomeSuccess Outcome = iota

	// OutcomeFailed means the remote listing could not be fetched. The
	// view was republished from the ledger alone and nothing was cleared.
	OutcomeFailed

	// OutcomeSkipped means the device was offline. Nothing changed.
	OutcomeSkipped

	// OutcomeDropped means another pass was already running.
	OutcomeDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeDropped:
		return "dropped"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Report summarizes one pass.
type Report struct {
	Outcome   Outcome
	Err       error
	Notes     int
	Pushed    int
	PushFails int
	Cleared   []string
	Conflicts []Conflict
	Duration  time.Duration
}

// Config holds the engine's tunables.
type Config struct {
	OwnerID       string
	DefaultMode   models.Mode
	RemoteTimeout time.Duration

	// Recipients are passed to the notifier with every change.
	Recipients []string
}

// Deps are the collaborators the engine drives. State and Notifier are
// optional.
type Deps struct {
	Remote   RemoteStore
	Ledger   *ledger.Ledger
	View     *view.Store
	Monitor  *netmon.Monitor
	Notifier notify.Notifier
	State    *state.State
	Logger   *slog.Logger
}

// Engine merges the ledger with the remote store and applies local
// mutations. All methods are safe for concurrent use; passes never
// overlap.
type Engine struct {
	cfg      Config
	remote   RemoteStore
	ledger   *ledger.Ledger
	view     *view.Store
	monitor  *netmon.Monitor
	notifier notify.Notifier
	state    *state.State
	logger   *slog.Logger
	now      func() time.Time

	syncing  atomic.Bool
	requests chan struct{}

	mu       sync.Mutex
	lastSync time.Time
}

// New builds an engine and publishes the ledger's pending notes so the
// view is usable before the first pass.
func New(cfg Config, deps Deps) *Engine {
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = DefaultRemoteTimeout
	}

	if cfg.DefaultMode == "" {
		cfg.DefaultMode = models.ModeWork
	}

	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}

	e := &Engine{
		cfg:      cfg,
		remote:   deps.Remote,
		ledger:   deps.Ledger,
		view:     deps.View,
		monitor:  deps.Monitor,
		notifier: notifier,
		state:    deps.State,
		logger:   deps.Logger.With(slog.String("component", "syncer")),
		now:      time.Now,
		requests: make(chan struct{}, 1),
	}

	if e.state != nil {
		e.lastSync = e.state.LastSync()
	}

	e.view.Publish(ledgerOnly(e.ledger.ListPending()))

	return e
}

// IsOnline reports the monitor's current connectivity.
func (e *Engine) IsOnline() bool {
	return e.monitor.IsOnline()
}

// IsSyncing reports whether a pass is running.
func (e *Engine) IsSyncing() bool {
	return e.syncing.Load()
}

// LastSyncTime returns when the last successful pass finished, or the
// zero time.
func (e *Engine) LastSyncTime() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.lastSync
}

// Requests delivers a value whenever a successful push asks for a
// follow-up pass. Multiple requests made before the receiver catches up
// collapse into one.
func (e *Engine) Requests() <-chan struct{} {
	return e.requests
}

func (e *Engine) requestSync() {
	select {
	case e.requests <- struct{}{}:
	default:
	}
}

// DefaultMode returns the mode given to notes created without one. A mode
// persisted with SetDefaultMode takes precedence over configuration.
func (e *Engine) DefaultMode() models.Mode {
	if e.state != nil {
		if m, err := models.ParseMode(e.state.DefaultMode()); err == nil {
			return m
		}
	}

	return e.cfg.DefaultMode
}

// SetDefaultMode validates and persists the default mode.
func (e *Engine) SetDefaultMode(mode models.Mode) error {
	m, err := models.ParseMode(string(mode))
	if err != nil {
		return err
	}

	if e.state == nil {
		e.cfg.DefaultMode = m
		return nil
	}

	return e.state.SetDefaultMode(string(m))
}

// TriggerSync runs one reconciliation pass unless the device is offline
// or a pass is already running. It never retries; the next trigger is the
// retry.
func (e *Engine) TriggerSync(ctx context.Context) Report {
	if !e.monitor.IsOnline() {
		return Report{Outcome: OutcomeSkipped}
	}

	if !e.syncing.CompareAndSwap(false, true) {
		return Report{Outcome: OutcomeDropped}
	}
	defer e.syncing.Store(false)

	start := e.now()
	report := e.pass(ctx)
	report.Duration = e.now().Sub(start)

	return report
}

func (e *Engine) pass(ctx context.Context) Report {
	listCtx, cancel := context.WithTimeout(ctx, e.cfg.RemoteTimeout)
	remoteNotes, err := e.remote.List(listCtx, e.cfg.OwnerID)
	cancel()

	if err != nil {
		e.logger.Warn("fetching remote notes failed, showing local notes only",
			slog.String("error", err.Error()),
		)
		e.view.Publish(ledgerOnly(e.ledger.ListPending()))

		return Report{Outcome: OutcomeFailed, Err: err}
	}

	plan := Merge(remoteNotes, e.ledger.ListPending())
	e.view.Publish(plan.Notes)

	for _, c := range plan.Conflicts {
		e.logger.Info("conflict resolved",
			slog.String("id", c.ID),
			slog.String("winner", string(c.Winner)),
			slog.Int64("local_updated_at", c.LocalUpdatedAt),
			slog.Int64("remote_updated_at", c.RemoteUpdatedAt),
			slog.String("lost", c.Diff),
		)
	}

	report := Report{
		Outcome:   OutcomeSuccess,
		Notes:     len(plan.Notes),
		Conflicts: plan.Conflicts,
	}

	e.pushPlan(ctx, plan, &report)

	cleared, err := e.ledger.ClearConfirmedVersions(plan.Confirmed)
	if err != nil {
		// Entries stay pending and are re-judged next pass.
		e.logger.Warn("clearing confirmed notes failed", slog.String("error", err.Error()))
	}

	report.Cleared = cleared

	e.recordSync(e.now())

	e.logger.Info("sync complete",
		slog.Int("remote", len(remoteNotes)),
		slog.Int("notes", report.Notes),
		slog.Int("pushed", report.Pushed),
		slog.Int("push_failures", report.PushFails),
		slog.Int("cleared", len(report.Cleared)),
		slog.Int("conflicts", len(report.Conflicts)),
	)

	return report
}

// pushPlan sends local winners to the remote store. Successful updates and
// deletes join plan.Confirmed. Creates stay pending until a later listing
// includes them. A transient failure stops the remaining pushes; they are
// retried by the next pass.
func (e *Engine) pushPlan(ctx context.Context, plan Plan, report *Report) {
	type op struct {
		kind notify.Kind
		note models.Note
	}

	ops := make([]op, 0, len(plan.Creates)+len(plan.Updates)+len(plan.Deletes))
	for _, n := range plan.Creates {
		ops = append(ops, op{notify.KindCreated, n})
	}

	for _, n := range plan.Updates {
		ops = append(ops, op{notify.KindUpdated, n})
	}

	for _, n := range plan.Deletes {
		ops = append(ops, op{notify.KindDeleted, n})
	}

	for i, o := range ops {
		err := e.apply(ctx, o.kind, o.note)
		if err == nil {
			report.Pushed++

			if o.kind != notify.KindCreated {
				plan.Confirmed[o.note.ID] = o.note.UpdatedAt
			}

			e.notifyChange(ctx, o.kind, o.note)

			continue
		}

		report.PushFails++

		if errors.Is(err, errs.ErrRemoteRejection) {
			e.logger.Warn("remote rejected pending change, keeping it",
				slog.String("id", o.note.ID),
				slog.String("kind", string(o.kind)),
				slog.String("error", err.Error()),
			)

			continue
		}

		e.logger.Warn("push failed, deferring remaining changes",
			slog.String("id", o.note.ID),
			slog.Int("deferred", len(ops)-i-1),
			slog.String("error", err.Error()),
		)

		report.PushFails += len(ops) - i - 1

		return
	}
}

// apply performs one remote mutation under the remote timeout. An update
// of a note the remote store has never seen becomes a create, and
// deleting an already absent note succeeds.
func (e *Engine) apply(ctx context.Context, kind notify.Kind, n models.Note) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RemoteTimeout)
	defer cancel()

	switch kind {
	case notify.KindCreated:
		_, err := e.remote.Create(ctx, n)
		return err
	case notify.KindUpdated:
		_, err := e.remote.Update(ctx, n)
		if errors.Is(err, errs.ErrNoteNotFound) {
			_, err = e.remote.Create(ctx, n)
		}

		return err
	case notify.KindDeleted:
		err := e.remote.Delete(ctx, n.ID)
		if errors.Is(err, errs.ErrNoteNotFound) {
			return nil
		}

		return err
	default:
		return fmt.Errorf("unknown change kind %q", kind)
	}
}

func (e *Engine) notifyChange(ctx context.Context, kind notify.Kind, n models.Note) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	err := e.notifier.NoteChanged(ctx, notify.Change{
		NoteID:     n.ID,
		OwnerID:    n.OwnerID,
		Kind:       kind,
		Title:      n.Title,
		Recipients: e.cfg.Recipients,
		At:         n.UpdatedAt,
	})
	if err != nil {
		e.logger.Warn("notifying change failed",
			slog.String("id", n.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) recordSync(t time.Time) {
	e.mu.Lock()
	e.lastSync = t
	e.mu.Unlock()

	if e.state == nil {
		return
	}

	if err := e.state.SetLastSync(t); err != nil {
		e.logger.Warn("persisting last sync time failed", slog.String("error", err.Error()))
	}
}
