// Package view holds the merged, sorted note collection that the UI reads.
// It is a projection of the ledger and the remote store and is never a
// source of truth.
package view

import (
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"github.com/alexjbarnes/notesync/internal/models"
)

// Store is the observable view. Readers always get a complete snapshot;
// every replacement is atomic with respect to CurrentNotes.
type Store struct {
	// pubMu serializes writers across the swap and the notification so
	// subscribers see snapshots in the order they were installed.
	pubMu sync.Mutex

	mu    sync.RWMutex
	notes []models.Note

	subMu  sync.Mutex
	nextID int
	subs   map[int]func([]models.Note)
}

// New returns an empty view.
func New() *Store {
	return &Store{subs: make(map[int]func([]models.Note))}
}

// CurrentNotes returns a copy of the current ordered collection.
func (s *Store) CurrentNotes() []models.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return cloneAll(s.notes)
}

// Get returns the note with the given id, if present.
func (s *Store) Get(id string) (models.Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.notes {
		if n.ID == id {
			return n.Clone(), true
		}
	}

	return models.Note{}, false
}

// Len returns the number of notes in the view.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.notes)
}

// Publish replaces the whole collection with notes, sorted newest first,
// and notifies subscribers.
func (s *Store) Publish(notes []models.Note) {
	next := cloneAll(notes)
	SortNewestFirst(next)

	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	s.notes = next
	s.mu.Unlock()

	s.notify(next)
}

// Upsert inserts or replaces a single note and notifies subscribers.
func (s *Store) Upsert(note models.Note) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()

	next := make([]models.Note, 0, len(s.notes)+1)
	next = append(next, note.Clone())

	for _, n := range s.notes {
		if n.ID != note.ID {
			next = append(next, n)
		}
	}

	SortNewestFirst(next)
	s.notes = next
	s.mu.Unlock()

	s.notify(next)
}

// Remove drops the note with id, reporting whether it was present.
// Subscribers are notified only when something changed.
func (s *Store) Remove(id string) bool {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()

	idx := slices.IndexFunc(s.notes, func(n models.Note) bool { return n.ID == id })
	if idx < 0 {
		s.mu.Unlock()
		return false
	}

	next := slices.Delete(slices.Clone(s.notes), idx, idx+1)
	s.notes = next
	s.mu.Unlock()

	s.notify(next)

	return true
}

// OnChange registers fn to receive a snapshot after every change. The
// returned func unsubscribes. fn runs synchronously on the publishing
// goroutine and must not call back into Publish, Upsert, or Remove.
func (s *Store) OnChange(fn func([]models.Note)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(notes []models.Note) {
	s.subMu.Lock()
	fns := make([]func([]models.Note), 0, len(s.subs))

	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(cloneAll(notes))
	}
}

// Filter returns the notes in mode whose title, content, or any tag
// contains query, ignoring case. An empty mode matches every mode and an
// empty query matches every note.
func (s *Store) Filter(mode models.Mode, query string) []models.Note {
	fold := cases.Fold()
	q := fold.String(strings.TrimSpace(query))

	var out []models.Note

	for _, n := range s.CurrentNotes() {
		if mode != "" && n.Mode != mode {
			continue
		}

		if q != "" && !matches(fold, n, q) {
			continue
		}

		out = append(out, n)
	}

	return out
}

func matches(fold cases.Caser, n models.Note, q string) bool {
	if strings.Contains(fold.String(n.Title), q) || strings.Contains(fold.String(n.Content), q) {
		return true
	}

	for _, t := range n.Tags {
		if strings.Contains(fold.String(t), q) {
			return true
		}
	}

	return false
}

// SortNewestFirst orders notes by UpdatedAt descending, breaking ties by
// id so the order is deterministic.
func SortNewestFirst(notes []models.Note) {
	slices.SortStableFunc(notes, func(a, b models.Note) int {
		switch {
		case a.UpdatedAt > b.UpdatedAt:
			return -1
		case a.UpdatedAt < b.UpdatedAt:
			return 1
		default:
			return strings.Compare(a.ID, b.ID)
		}
	})
}

func cloneAll(notes []models.Note) []models.Note {
	out := make([]models.Note, len(notes))
	for i, n := range notes {
		out[i] = n.Clone()
	}

	return out
}
