package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	errs "github.com/alexjbarnes/notesync/internal/errors"
	"github.com/alexjbarnes/notesync/internal/models"
	"github.com/alexjbarnes/notesync/internal/notify"
)

// CreateNote records a new note in the ledger and the view, then pushes it
// if online. The returned note is always the local version. A non-nil
// error with a valid note means the remote store rejected the write; the
// note stays pending.
func (e *Engine) CreateNote(ctx context.Context, f models.Fields) (models.Note, error) {
	n, err := models.NewNote(f, e.cfg.OwnerID, e.DefaultMode(), e.now())
	if err != nil {
		return models.Note{}, err
	}

	if err := e.ledger.Append(n); err != nil {
		return models.Note{}, fmt.Errorf("recording note: %w", err)
	}

	e.view.Upsert(n)

	return n, e.push(ctx, notify.KindCreated, n)
}

// UpdateNote replaces the editable fields of an existing note. ID,
// CreatedAt, and OwnerID are taken from the current version, as is the
// mode when edit leaves it blank. UpdatedAt is stamped so it is strictly
// newer than any version this client has seen.
func (e *Engine) UpdateNote(ctx context.Context, edit models.Note) (models.Note, error) {
	current, ok := e.current(edit.ID)
	if !ok {
		return models.Note{}, fmt.Errorf("%w: %s", errs.ErrNoteNotFound, edit.ID)
	}

	if strings.TrimSpace(edit.Title) == "" && strings.TrimSpace(edit.Content) == "" {
		return models.Note{}, errs.ErrEmptyNote
	}

	mode := edit.Mode
	if mode == "" {
		mode = current.Mode
	}

	mode, err := models.ParseMode(string(mode))
	if err != nil {
		return models.Note{}, err
	}

	n := current.Clone()
	n.Title = strings.TrimSpace(edit.Title)
	n.Content = edit.Content
	n.Tags = models.NormalizeTags(edit.Tags)
	n.Mode = mode
	n.AISummary = edit.AISummary
	n.UpdatedAt = e.stamp(current)

	if err := e.ledger.Append(n); err != nil {
		return models.Note{}, fmt.Errorf("recording note: %w", err)
	}

	e.view.Upsert(n)

	return n, e.push(ctx, notify.KindUpdated, n)
}

// DeleteNote removes a note from the view and records a tombstone that
// stays in the ledger until the remote store confirms the delete.
func (e *Engine) DeleteNote(ctx context.Context, id string) error {
	current, ok := e.current(id)
	if !ok {
		return fmt.Errorf("%w: %s", errs.ErrNoteNotFound, id)
	}

	tomb := current.Clone()
	tomb.UpdatedAt = e.stamp(current)

	if err := e.ledger.AppendDelete(tomb); err != nil {
		return fmt.Errorf("recording delete: %w", err)
	}

	e.view.Remove(id)

	return e.push(ctx, notify.KindDeleted, tomb)
}

// current returns the newest version of id this client holds, from the
// view or the ledger. A pending tombstone means the note is gone.
func (e *Engine) current(id string) (models.Note, bool) {
	n, inView := e.view.Get(id)

	if p, pending := e.ledger.Get(id); pending {
		if p.Deleted && p.UpdatedAt >= n.UpdatedAt {
			return models.Note{}, false
		}

		if !inView || p.UpdatedAt > n.UpdatedAt {
			return p.Note, !p.Deleted
		}
	}

	return n, inView
}

// stamp returns max(now, prev.UpdatedAt+1) so a new version always
// outranks the one it replaces, even with a clock that stepped back.
func (e *Engine) stamp(prev models.Note) int64 {
	ts := e.now().UnixMilli()
	if ts <= prev.UpdatedAt {
		ts = prev.UpdatedAt + 1
	}

	return ts
}

// push sends a write-path mutation when online. Transient failures are
// swallowed: the change is already pending and the next pass retries it.
// Only a rejection is returned. Success notifies and requests a pass.
func (e *Engine) push(ctx context.Context, kind notify.Kind, n models.Note) error {
	if !e.monitor.IsOnline() {
		return nil
	}

	err := e.apply(ctx, kind, n)
	if err == nil {
		e.notifyChange(ctx, kind, n)
		e.requestSync()

		return nil
	}

	if errors.Is(err, errs.ErrRemoteRejection) {
		e.logger.Warn("remote rejected change",
			slog.String("id", n.ID),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)

		return err
	}

	e.logger.Debug("push deferred to next sync",
		slog.String("id", n.ID),
		slog.String("kind", string(kind)),
		slog.String("error", err.Error()),
	)

	return nil
}
