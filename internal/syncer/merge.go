package syncer

import (
	"fmt"
	"sort"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/alexjbarnes/notesync/internal/ledger"
	"github.com/alexjbarnes/notesync/internal/models"
	"github.com/alexjbarnes/notesync/internal/view"
)

// diffCleanupThreshold is the minimum number of diffs before running the
// semantic cleanup pass. Below this count cleanup would not change the
// summary.
const diffCleanupThreshold = 2

// Side names which copy of a note won a merge.
type Side string

const (
	SideLocal  Side = "local"
	SideRemote Side = "remote"
)

// Conflict records an id present on both sides with differing content.
// Diff summarizes the character-level edit from the losing version to the
// winner.
type Conflict struct {
	ID              string
	Winner          Side
	LocalUpdatedAt  int64
	RemoteUpdatedAt int64
	Diff            string
}

// Plan is the result of merging one remote listing with the pending set.
// It is pure data; the engine performs the I/O it describes.
type Plan struct {
	// Notes is the merged collection, newest first.
	Notes []models.Note

	// Creates are pending notes the remote store has never seen.
	Creates []models.Note

	// Updates are pending notes that won over a differing remote copy.
	Updates []models.Note

	// Deletes are tombstones that won over a remote copy still present.
	Deletes []models.Note

	// Confirmed maps ids that can leave the ledger now to the pending
	// UpdatedAt they were judged at.
	Confirmed map[string]int64

	Conflicts []Conflict
}

// Merge applies last-writer-wins per id. The map is seeded with every
// remote note; each pending entry then replaces the remote copy when its
// UpdatedAt is greater or equal, so ties go to the unconfirmed local
// edit. A winning tombstone removes the id.
func Merge(remote []models.Note, pending []ledger.Entry) Plan {
	merged := make(map[string]models.Note, len(remote)+len(pending))
	for _, n := range remote {
		merged[n.ID] = n.Clone()
	}

	plan := Plan{Confirmed: make(map[string]int64)}

	for _, p := range pending {
		r, onRemote := merged[p.ID]

		switch {
		case p.Deleted && !onRemote:
			// Never pushed, or already deleted remotely.
			plan.Confirmed[p.ID] = p.UpdatedAt

		case p.Deleted && p.UpdatedAt >= r.UpdatedAt:
			delete(merged, p.ID)
			plan.Deletes = append(plan.Deletes, p.Note.Clone())

		case p.Deleted:
			// Edited remotely after the local delete; the edit wins.
			plan.Confirmed[p.ID] = p.UpdatedAt

		case !onRemote:
			merged[p.ID] = p.Note.Clone()
			plan.Creates = append(plan.Creates, p.Note.Clone())

		case p.UpdatedAt >= r.UpdatedAt:
			merged[p.ID] = p.Note.Clone()

			if p.Note.Equal(r) {
				plan.Confirmed[p.ID] = p.UpdatedAt
				continue
			}

			plan.Updates = append(plan.Updates, p.Note.Clone())

			if !p.Note.SameContent(r) {
				plan.Conflicts = append(plan.Conflicts, newConflict(p.Note, r, SideLocal))
			}

		default:
			plan.Confirmed[p.ID] = p.UpdatedAt

			if !p.Note.SameContent(r) {
				plan.Conflicts = append(plan.Conflicts, newConflict(p.Note, r, SideRemote))
			}
		}
	}

	plan.Notes = make([]models.Note, 0, len(merged))
	for _, n := range merged {
		plan.Notes = append(plan.Notes, n)
	}

	view.SortNewestFirst(plan.Notes)
	sort.Slice(plan.Conflicts, func(i, j int) bool { return plan.Conflicts[i].ID < plan.Conflicts[j].ID })

	return plan
}

func newConflict(local, remote models.Note, winner Side) Conflict {
	won, lost := local, remote
	if winner == SideRemote {
		won, lost = remote, local
	}

	return Conflict{
		ID:              local.ID,
		Winner:          winner,
		LocalUpdatedAt:  local.UpdatedAt,
		RemoteUpdatedAt: remote.UpdatedAt,
		Diff:            diffSummary(noteText(lost), noteText(won)),
	}
}

func noteText(n models.Note) string {
	return n.Title + "\n\n" + n.Content
}

// diffSummary describes how to turn from into to as character counts,
// e.g. "+12 -3 chars". Identical text (a tag or mode only change) reports
// "metadata only".
func diffSummary(from, to string) string {
	dmp := diffmatchpatch.New()

	diffs := dmp.DiffMain(from, to, false)
	if len(diffs) > diffCleanupThreshold {
		diffs = dmp.DiffCleanupSemantic(diffs)
	}

	var added, removed int

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += len([]rune(d.Text))
		case diffmatchpatch.DiffDelete:
			removed += len([]rune(d.Text))
		}
	}

	if added == 0 && removed == 0 {
		return "metadata only"
	}

	return fmt.Sprintf("+%d -%d chars", added, removed)
}

// ledgerOnly projects the pending set into a view, dropping tombstones.
func ledgerOnly(pending []ledger.Entry) []models.Note {
	out := make([]models.Note, 0, len(pending))

	for _, p := range pending {
		if !p.Deleted {
			out = append(out, p.Note.Clone())
		}
	}

	view.SortNewestFirst(out)

	return out
}
