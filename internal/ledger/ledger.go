// Package ledger keeps the durable set of note versions that have not yet
// been confirmed by the remote store.
package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	errs "github.com/alexjbarnes/notesync/internal/errors"
	"github.com/alexjbarnes/notesync/internal/models"
	"github.com/alexjbarnes/notesync/internal/state"
)

// Entry is one pending note version. Deleted marks a tombstone: the note
// was removed locally and the removal has not reached the remote store.
type Entry struct {
	models.Note
	Deleted bool `json:"deleted,omitempty"`
}

// Ledger is the write-ahead buffer for one owner's unconfirmed edits.
// Every call is a single bbolt transaction, so a completed Append or
// ClearConfirmed survives a crash.
type Ledger struct {
	state   *state.State
	ownerID string
	logger  *slog.Logger
}

// New returns the ledger for ownerID backed by st.
func New(st *state.State, ownerID string, logger *slog.Logger) *Ledger {
	return &Ledger{
		state:   st,
		ownerID: ownerID,
		logger:  logger.With(slog.String("component", "ledger")),
	}
}

// Append records note as the pending version for its id, replacing any
// earlier pending version or tombstone.
func (l *Ledger) Append(note models.Note) error {
	return l.put(Entry{Note: note.Clone()})
}

// AppendDelete records a tombstone for note. The tombstone carries the
// deletion time in UpdatedAt so it competes with remote versions under
// the same last-writer-wins rule as edits.
func (l *Ledger) AppendDelete(note models.Note) error {
	return l.put(Entry{Note: note.Clone(), Deleted: true})
}

func (l *Ledger) put(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding pending note %s: %w", e.ID, err)
	}

	if err := l.state.PutPending(l.ownerID, e.ID, data); err != nil {
		return fmt.Errorf("writing pending note %s: %w", e.ID, err)
	}

	return nil
}

// Get returns the pending entry for id, if any. An unreadable entry is
// reported as absent.
func (l *Ledger) Get(id string) (Entry, bool) {
	data, err := l.state.GetPending(l.ownerID, id)
	if err != nil || data == nil {
		return Entry{}, false
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false
	}

	return e, true
}

// ListPending returns a snapshot of every pending entry, ordered by id.
// If the store cannot be read the ledger reports itself empty rather than
// failing the caller; undecodable entries are dropped and logged.
func (l *Ledger) ListPending() []Entry {
	raw, err := l.state.AllPending(l.ownerID)
	if err != nil {
		l.logger.Error("pending set unreadable, treating as empty",
			slog.String("error", fmt.Errorf("%w: %w", errs.ErrLocalStorageCorruption, err).Error()),
		)

		return nil
	}

	entries := make([]Entry, 0, len(raw))

	var broken []string

	for id, data := range raw {
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil || e.ID != id {
			broken = append(broken, id)
			continue
		}

		entries = append(entries, e)
	}

	if len(broken) > 0 {
		l.logger.Warn("dropping unreadable pending entries",
			slog.Int("count", len(broken)),
			slog.String("error", errs.ErrLocalStorageCorruption.Error()),
		)

		if err := l.state.DeletePending(l.ownerID, broken...); err != nil {
			l.logger.Warn("failed to drop unreadable entries", slog.String("error", err.Error()))
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	return entries
}

// ClearConfirmed removes the given ids unconditionally.
func (l *Ledger) ClearConfirmed(ids []string) error {
	if err := l.state.DeletePending(l.ownerID, ids...); err != nil {
		return fmt.Errorf("clearing confirmed notes: %w", err)
	}

	return nil
}

// ClearConfirmedVersions removes each id whose pending version is not
// newer than the confirmed UpdatedAt given for it. An edit appended after
// the confirmation was computed has a larger UpdatedAt and stays pending.
// Returns the ids removed.
func (l *Ledger) ClearConfirmedVersions(confirmed map[string]int64) ([]string, error) {
	if len(confirmed) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(confirmed))
	for id := range confirmed {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	removed, err := l.state.DeletePendingIf(l.ownerID, ids, func(id string, data []byte) bool {
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return true
		}

		return e.UpdatedAt <= confirmed[id]
	})
	if err != nil {
		return nil, fmt.Errorf("clearing confirmed notes: %w", err)
	}

	return removed, nil
}

// Len returns the number of pending entries.
func (l *Ledger) Len() int {
	return l.state.PendingCount(l.ownerID)
}
