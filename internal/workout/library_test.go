package workout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibrary_ReplaceIsSnapshot(t *testing.T) {
	lib := NewLibrary()

	first := []Workout{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}}
	assert.True(t, lib.Replace(first))
	assert.Equal(t, 2, lib.Len())

	// Applying the same snapshot again is a no-op.
	assert.False(t, lib.Replace(first))

	// A new snapshot replaces rather than merges.
	assert.True(t, lib.Replace([]Workout{{ID: "c", Name: "C"}}))
	_, ok := lib.Get("a")
	assert.False(t, ok)
	c, ok := lib.Get("c")
	require.True(t, ok)
	assert.Equal(t, "C", c.Name)
}

func TestLibrary_DuplicateIDsLastWins(t *testing.T) {
	lib := NewLibrary()
	lib.Replace([]Workout{{ID: "a", Name: "old"}, {ID: "b"}, {ID: "a", Name: "new"}})

	assert.Equal(t, 2, lib.Len())
	a, ok := lib.Get("a")
	require.True(t, ok)
	assert.Equal(t, "new", a.Name)
	assert.Equal(t, "a", lib.All()[0].ID)
}

func TestLibrary_EmptySnapshotOnEmptyLibrary(t *testing.T) {
	lib := NewLibrary()
	assert.False(t, lib.Replace(nil))
	assert.False(t, lib.Replace([]Workout{}))
}

func TestLibrary_NotifiesOnChange(t *testing.T) {
	lib := NewLibrary()
	ch := make(chan []Workout, 4)
	defer lib.ListenToChanges(ch)()

	lib.Replace([]Workout{{ID: "a"}})
	lib.Replace([]Workout{{ID: "a"}})

	select {
	case got := <-ch:
		assert.Len(t, got, 1)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected change notification")
	}
	select {
	case <-ch:
		t.Fatal("unchanged snapshot must not notify")
	default:
	}
}

func TestLibrary_AllReturnsCopy(t *testing.T) {
	lib := NewLibrary()
	lib.Replace([]Workout{{ID: "a", Name: "A"}})

	all := lib.All()
	all[0].Name = "mutated"

	a, _ := lib.Get("a")
	assert.Equal(t, "A", a.Name)
}
