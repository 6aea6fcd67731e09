package workout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleWorkout() Workout {
	return Workout{
		ID:         "w-1",
		Name:       "Threshold",
		PoolLength: 25,
		Exercises: []Exercise{
			{ID: "e-2", Description: "Cool down", Kind: KindCooldown, Meters: 100, Repetitions: 1, OrderIndex: 2},
			{ID: "e-0", Description: "Warm up", Kind: KindWarmup, Meters: 200, Repetitions: 1, OrderIndex: 0},
			{ID: "e-1", Description: "Main set", Kind: KindMain, Style: StyleFreestyle, Meters: 100, Repetitions: 4,
				Interval: &Interval{Minutes: 1, Seconds: 30}, OrderIndex: 1},
		},
	}
}

func TestNumberOfLaps(t *testing.T) {
	assert.Equal(t, 4, NumberOfLaps(100, 25))
	assert.Equal(t, 2, NumberOfLaps(100, 50))
	assert.Equal(t, 2, NumberOfLaps(75, 33.3))
	assert.Equal(t, 1, NumberOfLaps(40, 25))
	assert.Equal(t, 0, NumberOfLaps(100, 0))
	assert.Equal(t, 0, NumberOfLaps(0, 25))
}

func TestInterval(t *testing.T) {
	iv := Interval{Minutes: 1, Seconds: 30}
	assert.Equal(t, 90*time.Second, iv.Duration())
	assert.Equal(t, "1:30", iv.String())

	parsed, err := ParseInterval("2:05")
	require.NoError(t, err)
	assert.Equal(t, Interval{Minutes: 2, Seconds: 5}, parsed)

	_, err = ParseInterval("-1:30")
	assert.ErrorIs(t, err, ErrInvalidExercise)
	_, err = ParseInterval("0:00")
	assert.ErrorIs(t, err, ErrInvalidExercise)
	_, err = ParseInterval("fast")
	assert.Error(t, err)
}

func TestInterval_SecondsPastAMinute(t *testing.T) {
	iv := Interval{Seconds: 90}
	require.NoError(t, iv.validate())
	assert.Equal(t, 90*time.Second, iv.Duration())

	parsed, err := ParseInterval("0:75")
	require.NoError(t, err)
	assert.Equal(t, 75*time.Second, parsed.Duration())

	w := sampleWorkout()
	w.Exercises[1].Interval = &Interval{Minutes: 1, Seconds: 90}
	require.NoError(t, w.Validate())
	assert.Equal(t, 150*time.Second, w.Exercises[1].Interval.Duration())
}

func TestWorkout_Validate(t *testing.T) {
	require.NoError(t, sampleWorkout().Validate())

	gap := sampleWorkout()
	gap.Exercises[0].OrderIndex = 5
	assert.ErrorIs(t, gap.Validate(), ErrInvalidWorkout)

	dup := sampleWorkout()
	dup.Exercises[0].OrderIndex = 0
	assert.ErrorIs(t, dup.Validate(), ErrInvalidWorkout)

	noReps := sampleWorkout()
	noReps.Exercises[1].Repetitions = 0
	assert.ErrorIs(t, noReps.Validate(), ErrInvalidExercise)

	noPool := sampleWorkout()
	noPool.PoolLength = 0
	assert.ErrorIs(t, noPool.Validate(), ErrInvalidWorkout)

	empty := Workout{ID: "x", PoolLength: 25}
	assert.ErrorIs(t, empty.Validate(), ErrInvalidWorkout)
}

func TestWorkout_SortedDoesNotMutate(t *testing.T) {
	w := sampleWorkout()
	sorted := w.Sorted()

	assert.Equal(t, []string{"e-0", "e-1", "e-2"}, []string{sorted.Exercises[0].ID, sorted.Exercises[1].ID, sorted.Exercises[2].ID})
	assert.Equal(t, "e-2", w.Exercises[0].ID)
}

func TestWorkout_TotalMeters(t *testing.T) {
	assert.Equal(t, 700, sampleWorkout().TotalMeters())
}

func TestKindAndStyleNames(t *testing.T) {
	for _, k := range []Kind{KindWarmup, KindMain, KindCooldown} {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	for s := StyleFreestyle; s <= StyleAny; s++ {
		parsed, err := ParseStyle(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	assert.Equal(t, "Style(9)", Style(9).String())
	_, err := ParseStyle("doggy")
	assert.Error(t, err)
}

func TestFromParameters(t *testing.T) {
	w := FromParameters("free-1", 50, StyleBackstroke, 1500)
	require.NoError(t, w.Validate())
	assert.Equal(t, 1500, w.TotalMeters())
	assert.Equal(t, StyleBackstroke, w.Exercises[0].Style)
	assert.Equal(t, 30, NumberOfLaps(w.Exercises[0].Meters, w.PoolLength))
}
