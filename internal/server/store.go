package server

import (
	"errors"
	"fmt"
	"sync"

	errs "github.com/alexjbarnes/notesync/internal/errors"
	"github.com/alexjbarnes/notesync/internal/models"
	"github.com/alexjbarnes/notesync/internal/view"
)

var (
	errInvalidNote = errors.New("invalid note")
	errConflict    = errors.New("note conflicts with stored version")
)

// NoteStore is an in-memory note table keyed by id. Notes are stored as
// sent: the server never restamps UpdatedAt, so client timestamps remain
// the only conflict signal.
type NoteStore struct {
	mu    sync.RWMutex
	notes map[string]models.Note
}

// NewNoteStore returns an empty store.
func NewNoteStore() *NoteStore {
	return &NoteStore{notes: make(map[string]models.Note)}
}

// List returns every note owned by ownerID, newest first.
func (s *NoteStore) List(ownerID string) []models.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Note, 0, len(s.notes))

	for _, n := range s.notes {
		if n.OwnerID == ownerID {
			out = append(out, n.Clone())
		}
	}

	view.SortNewestFirst(out)

	return out
}

// Get returns a single note.
func (s *NoteStore) Get(id string) (models.Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notes[id]

	return n.Clone(), ok
}

// Create inserts a new note. Creating an id that already exists with
// identical content succeeds so retried creates are idempotent.
func (s *NoteStore) Create(n models.Note) (models.Note, error) {
	if err := validate(n); err != nil {
		return models.Note{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.notes[n.ID]; ok {
		if existing.Equal(n) {
			return existing.Clone(), nil
		}

		return models.Note{}, fmt.Errorf("%w: %s", errConflict, n.ID)
	}

	s.notes[n.ID] = n.Clone()

	return n, nil
}

// Update replaces an existing note. Owner and creation time are immutable.
// A version older than the stored one is refused so a late push from one
// client cannot undo a newer edit from another.
func (s *NoteStore) Update(n models.Note) (models.Note, error) {
	if err := validate(n); err != nil {
		return models.Note{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.notes[n.ID]
	if !ok {
		return models.Note{}, fmt.Errorf("%w: %s", errs.ErrNoteNotFound, n.ID)
	}

	if existing.OwnerID != n.OwnerID {
		return models.Note{}, fmt.Errorf("%w: owner is immutable", errInvalidNote)
	}

	if n.UpdatedAt < existing.UpdatedAt {
		return models.Note{}, fmt.Errorf("%w: %s stored at %d, got %d",
			errConflict, n.ID, existing.UpdatedAt, n.UpdatedAt)
	}

	n.CreatedAt = existing.CreatedAt
	s.notes[n.ID] = n.Clone()

	return n, nil
}

// Delete removes a note.
func (s *NoteStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[id]; !ok {
		return fmt.Errorf("%w: %s", errs.ErrNoteNotFound, id)
	}

	delete(s.notes, id)

	return nil
}

// Len returns the number of stored notes across all owners.
func (s *NoteStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.notes)
}

func validate(n models.Note) error {
	switch {
	case n.ID == "":
		return fmt.Errorf("%w: missing id", errInvalidNote)
	case n.OwnerID == "":
		return fmt.Errorf("%w: missing ownerId", errInvalidNote)
	}

	if _, err := models.ParseMode(string(n.Mode)); err != nil {
		return fmt.Errorf("%w: %w", errInvalidNote, err)
	}

	return nil
}
