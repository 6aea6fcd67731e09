package workout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const libraryYAML = `
workouts:
  - name: Sprint ladder
    pool_length: 25
    exercises:
      - description: Easy warm up
        kind: warmup
        meters: 200
      - description: Sprints
        style: butterfly
        meters: 50
        repetitions: 6
        interval: "1:00"
      - description: Loosen
        kind: cooldown
        style: any
        meters: 100
  - id: fixed-id
    name: Long swim
    pool_length: 50
    exercises:
      - meters: 1500
`

func TestParseLibrary(t *testing.T) {
	workouts, err := ParseLibrary([]byte(libraryYAML))
	require.NoError(t, err)
	require.Len(t, workouts, 2)

	ladder := workouts[0]
	assert.NotEmpty(t, ladder.ID)
	require.Len(t, ladder.Exercises, 3)
	assert.Equal(t, KindWarmup, ladder.Exercises[0].Kind)
	assert.Equal(t, 1, ladder.Exercises[0].Repetitions)
	assert.Equal(t, StyleButterfly, ladder.Exercises[1].Style)
	require.NotNil(t, ladder.Exercises[1].Interval)
	assert.Equal(t, Interval{Minutes: 1}, *ladder.Exercises[1].Interval)
	assert.Equal(t, 2, ladder.Exercises[2].OrderIndex)

	assert.Equal(t, "fixed-id", workouts[1].ID)
}

func TestParseLibrary_StableIDs(t *testing.T) {
	first, err := ParseLibrary([]byte(libraryYAML))
	require.NoError(t, err)
	second, err := ParseLibrary([]byte(libraryYAML))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParseLibrary_Errors(t *testing.T) {
	_, err := ParseLibrary([]byte("workouts:\n  - name: x\n    pool_length: 25\n    exercises:\n      - style: doggy\n"))
	assert.Error(t, err)

	_, err = ParseLibrary([]byte("workouts:\n  - name: x\n    pool_length: 0\n    exercises:\n      - meters: 50\n"))
	assert.ErrorIs(t, err, ErrInvalidWorkout)

	_, err = ParseLibrary([]byte("workouts: ["))
	assert.Error(t, err)
}

func TestLoadLibraryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workouts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(libraryYAML), 0644))

	workouts, err := LoadLibraryFile(path)
	require.NoError(t, err)
	assert.Len(t, workouts, 2)

	_, err = LoadLibraryFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadLibraryFile_ShippedExample(t *testing.T) {
	workouts, err := LoadLibraryFile(filepath.Join("..", "..", "configs", "workouts.example.yaml"))
	require.NoError(t, err)
	require.Len(t, workouts, 2)
	for _, w := range workouts {
		assert.NoError(t, w.Validate(), w.Name)
	}
	assert.Equal(t, 8, workouts[0].Exercises[1].Repetitions)
}
