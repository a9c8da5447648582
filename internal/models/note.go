// Package models defines types shared across internal packages.
package models

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	errs "github.com/alexjbarnes/notesync/internal/errors"
)

// Mode partitions notes into separately listed sets.
type Mode string

const (
	ModeWork     Mode = "work"
	ModePersonal Mode = "personal"
)

const (
	// untitledTitle replaces a blank title on create.
	untitledTitle = "Untitled Note"

	// summaryFallbackTopic is used in the default summary when the title
	// is blank.
	summaryFallbackTopic = "various topics"
)

// ParseMode validates a mode string. An empty string is not a mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeWork, ModePersonal:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", errs.ErrInvalidMode, s)
	}
}

// Note is a single user note. Timestamps are Unix epoch milliseconds and
// UpdatedAt is the only field consulted when two versions of the same ID
// meet.
type Note struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags"`
	Mode      Mode     `json:"mode"`
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt int64    `json:"updatedAt"`
	OwnerID   string   `json:"ownerId"`
	AISummary string   `json:"aiSummary,omitempty"`
}

// Fields are the user-editable parts of a note supplied on create.
type Fields struct {
	Title     string
	Content   string
	Tags      []string
	Mode      Mode
	AISummary string
}

// NewID returns a fresh note identifier.
func NewID() string {
	return uuid.NewString()
}

// NewNote builds a note from user input. At least one of title or content
// must be non-blank. A blank mode falls back to defaultMode.
func NewNote(f Fields, ownerID string, defaultMode Mode, now time.Time) (Note, error) {
	if strings.TrimSpace(f.Title) == "" && strings.TrimSpace(f.Content) == "" {
		return Note{}, errs.ErrEmptyNote
	}

	mode := f.Mode
	if mode == "" {
		mode = defaultMode
	}

	mode, err := ParseMode(string(mode))
	if err != nil {
		return Note{}, err
	}

	title := strings.TrimSpace(f.Title)
	topic := title

	if title == "" {
		title = untitledTitle
		topic = summaryFallbackTopic
	}

	summary := f.AISummary
	if summary == "" {
		summary = "Note about " + topic + "."
	}

	ts := now.UnixMilli()

	return Note{
		ID:        NewID(),
		Title:     title,
		Content:   f.Content,
		Tags:      NormalizeTags(f.Tags),
		Mode:      mode,
		CreatedAt: ts,
		UpdatedAt: ts,
		OwnerID:   ownerID,
		AISummary: summary,
	}, nil
}

// ParseTags splits a comma separated tag list as typed by a user.
func ParseTags(s string) []string {
	return NormalizeTags(strings.Split(s, ","))
}

// NormalizeTags trims, NFC-normalizes, and de-duplicates tags, keeping
// the first occurrence so display order follows insertion. Empty tags are
// dropped. Never returns nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))

	for _, t := range tags {
		t = norm.NFC.String(strings.TrimSpace(t))
		if t == "" {
			continue
		}

		if _, dup := seen[t]; dup {
			continue
		}

		seen[t] = struct{}{}
		out = append(out, t)
	}

	return out
}

// SameTags reports whether two tag lists hold the same set, ignoring order.
func SameTags(a, b []string) bool {
	a, b = NormalizeTags(a), NormalizeTags(b)
	if len(a) != len(b) {
		return false
	}

	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)

	return slices.Equal(a, b)
}

// Equal reports whether two notes are the same version: every field
// matches, with tags compared as a set.
func (n Note) Equal(o Note) bool {
	return n.ID == o.ID &&
		n.Title == o.Title &&
		n.Content == o.Content &&
		n.Mode == o.Mode &&
		n.CreatedAt == o.CreatedAt &&
		n.UpdatedAt == o.UpdatedAt &&
		n.OwnerID == o.OwnerID &&
		n.AISummary == o.AISummary &&
		SameTags(n.Tags, o.Tags)
}

// SameContent is Equal without the UpdatedAt comparison. Two versions
// with the same content but different stamps carry no conflict.
func (n Note) SameContent(o Note) bool {
	o.UpdatedAt = n.UpdatedAt
	return n.Equal(o)
}

// Clone returns a copy that shares no slices with n.
func (n Note) Clone() Note {
	n.Tags = slices.Clone(n.Tags)
	return n
}

// Updated returns the time of the last mutation.
func (n Note) Updated() time.Time {
	return time.UnixMilli(n.UpdatedAt)
}
