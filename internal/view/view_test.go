package view

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexjbarnes/notesync/internal/models"
)

func n(id string, updatedAt int64) models.Note {
	return models.Note{ID: id, Title: "note " + id, Mode: models.ModeWork, Tags: []string{}, UpdatedAt: updatedAt}
}

func idsOf(notes []models.Note) []string {
	out := make([]string, 0, len(notes))
	for _, x := range notes {
		out = append(out, x.ID)
	}
	return out
}

func TestPublish_SortsNewestFirst(t *testing.T) {
	s := New()
	s.Publish([]models.Note{n("a", 1), n("b", 3), n("c", 2)})

	assert.Equal(t, []string{"b", "c", "a"}, idsOf(s.CurrentNotes()))
}

func TestPublish_TiesBrokenByID(t *testing.T) {
	s := New()
	s.Publish([]models.Note{n("z", 5), n("a", 5)})

	assert.Equal(t, []string{"a", "z"}, idsOf(s.CurrentNotes()))
}

func TestPublish_ReplacesEverything(t *testing.T) {
	s := New()
	s.Publish([]models.Note{n("a", 1), n("b", 2)})
	s.Publish([]models.Note{n("c", 1)})

	assert.Equal(t, []string{"c"}, idsOf(s.CurrentNotes()))
}

func TestCurrentNotes_ReturnsCopy(t *testing.T) {
	s := New()
	note := n("a", 1)
	note.Tags = []string{"x"}
	s.Publish([]models.Note{note})

	got := s.CurrentNotes()
	got[0].Title = "mutated"
	got[0].Tags[0] = "mutated"

	again := s.CurrentNotes()
	assert.Equal(t, "note a", again[0].Title)
	assert.Equal(t, "x", again[0].Tags[0])
}

func TestUpsert_InsertAndReplace(t *testing.T) {
	s := New()
	s.Upsert(n("a", 1))
	s.Upsert(n("b", 2))

	updated := n("a", 3)
	updated.Title = "edited"
	s.Upsert(updated)

	notes := s.CurrentNotes()
	assert.Equal(t, []string{"a", "b"}, idsOf(notes))
	assert.Equal(t, "edited", notes[0].Title)
}

func TestRemove(t *testing.T) {
	s := New()
	s.Publish([]models.Note{n("a", 1), n("b", 2)})

	assert.True(t, s.Remove("a"))
	assert.False(t, s.Remove("a"))
	assert.Equal(t, []string{"b"}, idsOf(s.CurrentNotes()))
}

func TestGet(t *testing.T) {
	s := New()
	s.Publish([]models.Note{n("a", 1)})

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)

	_, ok = s.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestOnChange_FiresOnEveryPublish(t *testing.T) {
	s := New()

	var calls [][]string

	unsubscribe := s.OnChange(func(notes []models.Note) {
		calls = append(calls, idsOf(notes))
	})

	s.Publish([]models.Note{n("a", 1)})
	s.Upsert(n("b", 2))
	s.Remove("a")
	s.Remove("missing")

	require.Len(t, calls, 3)
	assert.Equal(t, []string{"a"}, calls[0])
	assert.Equal(t, []string{"b", "a"}, calls[1])
	assert.Equal(t, []string{"b"}, calls[2])

	unsubscribe()
	s.Publish(nil)
	assert.Len(t, calls, 3)
}

func TestPublish_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	s := New()
	first := []models.Note{n("a", 1), n("b", 2)}
	second := []models.Note{n("c", 1), n("d", 2), n("e", 3)}

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		for i := 0; i < 200; i++ {
			if i%2 == 0 {
				s.Publish(first)
			} else {
				s.Publish(second)
			}
		}
	}()

	for i := 0; i < 200; i++ {
		got := len(s.CurrentNotes())
		assert.Contains(t, []int{0, 2, 3}, got)
	}

	wg.Wait()
}

func TestOnChange_LastSnapshotMatchesConcurrentWriters(t *testing.T) {
	s := New()

	var (
		mu   sync.Mutex
		last []string
	)

	s.OnChange(func(notes []models.Note) {
		mu.Lock()
		last = idsOf(notes)
		mu.Unlock()
	})

	var wg sync.WaitGroup

	wg.Add(2)

	go func() {
		defer wg.Done()

		for i := 0; i < 200; i++ {
			s.Publish([]models.Note{n("a", int64(i)), n("b", int64(i))})
		}
	}()

	go func() {
		defer wg.Done()

		for i := 0; i < 200; i++ {
			s.Upsert(n("c", int64(i)))
			s.Remove("b")
		}
	}()

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, idsOf(s.CurrentNotes()), last)
}

func TestFilter(t *testing.T) {
	s := New()

	work := n("1", 3)
	work.Title = "Quarterly Plan"

	personal := n("2", 2)
	personal.Mode = models.ModePersonal
	personal.Content = "buy MILK"

	tagged := n("3", 1)
	tagged.Tags = []string{"Errands"}

	s.Publish([]models.Note{work, personal, tagged})

	assert.Equal(t, []string{"1", "3"}, idsOf(s.Filter(models.ModeWork, "")))
	assert.Equal(t, []string{"1"}, idsOf(s.Filter(models.ModeWork, "quarterly")))
	assert.Equal(t, []string{"2"}, idsOf(s.Filter(models.ModePersonal, "milk")))
	assert.Equal(t, []string{"3"}, idsOf(s.Filter("", "errand")))
	assert.Empty(t, s.Filter(models.ModePersonal, "plan"))
}

func TestSortNewestFirst(t *testing.T) {
	notes := []models.Note{n("b", 1), n("a", 1), n("c", 9)}
	SortNewestFirst(notes)
	assert.Equal(t, []string{"c", "a", "b"}, idsOf(notes))
}
