package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artishokq/SmartSwim-sub001/internal/clock"
	"github.com/artishokq/SmartSwim-sub001/internal/store"
	"github.com/artishokq/SmartSwim-sub001/internal/workout"
)

var t0 = time.Date(2024, 7, 1, 7, 30, 0, 0, time.UTC)

func intervalWorkout() workout.Workout {
	return workout.Workout{
		ID:         "w-interval",
		Name:       "2 x 100 on 1:30",
		PoolLength: 25,
		Exercises: []workout.Exercise{{
			ID:          "e-0",
			Description: "Main set",
			Kind:        workout.KindMain,
			Style:       workout.StyleFreestyle,
			Meters:      100,
			Repetitions: 2,
			Interval:    &workout.Interval{Minutes: 1, Seconds: 30},
			OrderIndex:  0,
		}},
	}
}

func threePartWorkout() workout.Workout {
	return workout.Workout{
		ID:         "w-three",
		Name:       "Three part",
		PoolLength: 50,
		Exercises: []workout.Exercise{
			{ID: "cool", Kind: workout.KindCooldown, Style: workout.StyleBackstroke, Meters: 100, Repetitions: 1, OrderIndex: 2},
			{ID: "warm", Kind: workout.KindWarmup, Style: workout.StyleFreestyle, Meters: 200, Repetitions: 1, OrderIndex: 0},
			{ID: "main", Kind: workout.KindMain, Style: workout.StyleBreaststroke, Meters: 50, Repetitions: 3, OrderIndex: 1},
		},
	}
}

func newTestMachine(t *testing.T, w workout.Workout, gw store.Gateway) (*Machine, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(t0)
	m := NewMachine(clk, MachineOptions{Gateway: gw})
	require.NoError(t, m.Load(w))
	return m, clk
}

// enterActive starts the session and runs through the countdown.
func enterActive(t *testing.T, m *Machine, clk *clock.Manual) {
	t.Helper()
	require.Equal(t, StatePreviewingExercise, m.State())
	require.True(t, m.ShowCountdown())
	clk.Advance(DefaultCountdown)
	require.True(t, m.StartCurrentExercise())
	require.Equal(t, StateExerciseActive, m.State())
}

func TestMachine_StrayTriggersAreIgnored(t *testing.T) {
	m, clk := newTestMachine(t, intervalWorkout(), nil)

	assert.Equal(t, OutcomeIgnored, m.CompleteCurrentExercise())
	assert.False(t, m.ShowCountdown())
	assert.False(t, m.StartCurrentExercise())
	assert.False(t, m.Stop())
	assert.Equal(t, StateNotStarted, m.State())

	require.True(t, m.StartSession())
	assert.False(t, m.StartSession())
	assert.Equal(t, OutcomeIgnored, m.CompleteCurrentExercise())

	require.True(t, m.ShowCountdown())
	assert.Equal(t, OutcomeIgnored, m.CompleteCurrentExercise(), "completion during countdown")
	assert.Equal(t, StateCountdown, m.State())

	clk.Advance(DefaultCountdown)
	require.True(t, m.StartCurrentExercise())
	assert.False(t, m.ShowCountdown())
	assert.Equal(t, StateExerciseActive, m.State())
}

func TestMachine_StartSessionNeedsWorkout(t *testing.T) {
	m := NewMachine(clock.NewManual(t0), MachineOptions{})
	assert.False(t, m.StartSession())
	assert.Equal(t, StateNotStarted, m.State())
}

func TestMachine_LoadRejectsInvalidWorkout(t *testing.T) {
	m := NewMachine(clock.NewManual(t0), MachineOptions{})
	err := m.Load(workout.Workout{ID: "x", PoolLength: 25})
	assert.ErrorIs(t, err, workout.ErrInvalidWorkout)
}

func TestMachine_LoadRefusedDuringSession(t *testing.T) {
	m, _ := newTestMachine(t, intervalWorkout(), nil)
	require.True(t, m.StartSession())
	assert.ErrorIs(t, m.Load(threePartWorkout()), ErrSessionInProgress)
}

func TestMachine_PreviewBuildsActiveExercise(t *testing.T) {
	m, _ := newTestMachine(t, intervalWorkout(), nil)
	require.True(t, m.StartSession())

	s := m.Snapshot()
	require.NotNil(t, s.Active)
	assert.Equal(t, 0, s.Active.Index)
	assert.Equal(t, 1, s.Active.Total)
	assert.Equal(t, 4, s.Active.Laps)
	assert.Equal(t, "1:30", s.Active.Interval)
	assert.Equal(t, 1, s.Cursor.Repetition)
	assert.Equal(t, 2, s.Cursor.Total)
}

func TestMachine_CountdownGatesExerciseStart(t *testing.T) {
	m, clk := newTestMachine(t, intervalWorkout(), nil)
	require.True(t, m.StartSession())
	require.True(t, m.ShowCountdown())

	clk.Advance(2 * time.Second)
	assert.Equal(t, time.Second, m.Snapshot().CountdownRemaining)
	assert.False(t, m.StartCurrentExercise())
	m.Tick()
	assert.Equal(t, StateCountdown, m.State())

	clk.Advance(time.Second)
	m.Tick()
	assert.Equal(t, StateExerciseActive, m.State())
	assert.Zero(t, m.Snapshot().CountdownRemaining)
}

func TestMachine_IntervalGating(t *testing.T) {
	m, clk := newTestMachine(t, intervalWorkout(), nil)
	require.True(t, m.StartSession())
	enterActive(t, m, clk)

	clk.Advance(89 * time.Second)
	m.Tick()
	s := m.Snapshot()
	assert.False(t, s.Cursor.CanComplete)
	assert.Equal(t, time.Second, s.Cursor.IntervalRemaining)
	assert.Equal(t, OutcomeIgnored, m.CompleteCurrentExercise())

	clk.Advance(time.Second)
	m.Tick()
	s = m.Snapshot()
	assert.True(t, s.Cursor.CanComplete)
	assert.True(t, s.Cursor.ShowNextRep)
	assert.Zero(t, s.Cursor.IntervalRemaining)

	assert.Equal(t, OutcomeRepetitionAdvanced, m.CompleteCurrentExercise())
	s = m.Snapshot()
	assert.Equal(t, StateExerciseActive, s.State)
	assert.Equal(t, 2, s.Cursor.Repetition)
	assert.True(t, s.Cursor.IsLast)
	assert.False(t, s.Cursor.CanComplete, "interval restarts with the repetition")

	clk.Advance(90 * time.Second)
	assert.Equal(t, OutcomeSessionCompleted, m.CompleteCurrentExercise())
	assert.Equal(t, StateCompleted, m.State())
}

func TestMachine_ActionAlwaysAvailableOnceIntervalElapsed(t *testing.T) {
	w := intervalWorkout()
	w.Exercises[0].Repetitions = 4
	m, clk := newTestMachine(t, w, nil)
	require.True(t, m.StartSession())
	enterActive(t, m, clk)

	for rep := 1; rep <= 4; rep++ {
		clk.Advance(90 * time.Second)
		m.Tick()
		s := m.Snapshot()
		require.True(t, s.Cursor.CanComplete, "rep %d", rep)
		require.NotEqual(t, OutcomeIgnored, m.CompleteCurrentExercise(), "rep %d stranded", rep)
	}
	assert.Equal(t, StateCompleted, m.State())
}

func TestMachine_ProgressesThroughExercisesInOrder(t *testing.T) {
	m, clk := newTestMachine(t, threePartWorkout(), nil)
	require.True(t, m.StartSession())

	var order []string
	for m.State() != StateCompleted {
		require.Equal(t, StatePreviewingExercise, m.State())
		order = append(order, m.Snapshot().Active.Exercise.ID)
		enterActive(t, m, clk)

		for {
			clk.Advance(45 * time.Second)
			outcome := m.CompleteCurrentExercise()
			require.NotEqual(t, OutcomeIgnored, outcome)
			if outcome != OutcomeRepetitionAdvanced {
				break
			}
		}
	}
	assert.Equal(t, []string{"warm", "main", "cool"}, order)

	summary, ok := m.Summary()
	require.True(t, ok)
	require.Len(t, summary.Exercises, 3)
	assert.Len(t, summary.Exercises[1].Laps, 3)
	assert.Equal(t, "main", summary.Exercises[1].ExerciseID)
	assert.Equal(t, 50.0, summary.PoolSize)
	assert.Equal(t, "w-three", summary.WorkoutID)
	assert.NotEmpty(t, summary.ID)
	assert.Equal(t, t0, summary.Date)
	// Three countdowns and five repetitions of 45 s.
	assert.Equal(t, 3*DefaultCountdown+5*45*time.Second, summary.TotalTime)
	assert.Greater(t, summary.TotalCalories, 0.0)
}

func TestMachine_HeartRateOutsideExerciseIsNotRetained(t *testing.T) {
	clk := clock.NewManual(t0)
	m := NewMachine(clk, MachineOptions{})
	for i := 0; i < 10000; i++ {
		m.IngestHeartRate(120, clk.Now())
	}
	assert.Equal(t, StateNotStarted, m.State())
	assert.Empty(t, m.agg.Readings())

	require.NoError(t, m.Load(intervalWorkout()))
	require.True(t, m.StartSession())
	m.IngestHeartRate(131, clk.Now())
	require.True(t, m.ShowCountdown())
	m.IngestHeartRate(133, clk.Now())
	assert.Empty(t, m.agg.Readings())

	clk.Advance(DefaultCountdown)
	require.True(t, m.StartCurrentExercise())
	assert.Equal(t, 133.0, m.Snapshot().Active.HeartRate)

	m.IngestHeartRate(140, clk.Now())
	assert.Len(t, m.agg.Readings(), 1)
}

func TestMachine_LapRecordsCarryTelemetry(t *testing.T) {
	w := intervalWorkout()
	w.Exercises[0].Interval = nil
	m, clk := newTestMachine(t, w, nil)
	require.True(t, m.StartSession())
	enterActive(t, m, clk)

	m.IngestHeartRate(140, clk.Now())
	m.IngestHeartRate(0, clk.Now())
	m.IngestHeartRate(150, clk.Now())
	assert.True(t, m.IngestStrokes(12))
	assert.True(t, m.IngestStrokes(8))
	assert.Equal(t, 20, m.Snapshot().Active.StrokeCount)
	assert.Equal(t, 150.0, m.Snapshot().Active.HeartRate)

	clk.Advance(80 * time.Second)
	require.Equal(t, OutcomeRepetitionAdvanced, m.CompleteCurrentExercise())

	assert.True(t, m.IngestStrokes(15))
	clk.Advance(85 * time.Second)
	require.Equal(t, OutcomeSessionCompleted, m.CompleteCurrentExercise())

	summary, ok := m.Summary()
	require.True(t, ok)
	ex := summary.Exercises[0]
	require.Len(t, ex.Laps, 2)

	assert.Equal(t, 1, ex.Laps[0].Number)
	assert.Equal(t, 100.0, ex.Laps[0].Distance)
	assert.Equal(t, 80*time.Second, ex.Laps[0].Duration)
	assert.Equal(t, 145.0, ex.Laps[0].HeartRate)
	assert.Equal(t, 20, ex.Laps[0].Strokes)

	assert.Equal(t, 2, ex.Laps[1].Number)
	assert.Equal(t, 85*time.Second, ex.Laps[1].Duration)
	assert.Equal(t, 150.0, ex.Laps[1].HeartRate, "no new readings falls back to the latest")
	assert.Equal(t, 15, ex.Laps[1].Strokes)

	assert.Len(t, ex.HeartRates, 3)
	assert.Equal(t, 35, ExerciseTotalStrokes(ex))
	assert.Equal(t, 145.0, ExerciseAverageHeartRate(ex))
	assert.Equal(t, t0.Add(DefaultCountdown), ex.StartedAt)
	assert.Equal(t, t0.Add(DefaultCountdown+165*time.Second), ex.EndedAt)
}

func TestMachine_StrokesOutsideActiveExerciseAreIgnored(t *testing.T) {
	m, _ := newTestMachine(t, intervalWorkout(), nil)
	assert.False(t, m.IngestStrokes(5))
	require.True(t, m.StartSession())
	assert.False(t, m.IngestStrokes(5))
}

func TestMachine_StopDiscardsSession(t *testing.T) {
	m, clk := newTestMachine(t, threePartWorkout(), nil)
	require.True(t, m.StartSession())
	enterActive(t, m, clk)
	clk.Advance(time.Minute)
	require.Equal(t, OutcomeNextExercise, m.CompleteCurrentExercise())

	assert.True(t, m.Stop())
	assert.Equal(t, StateNotStarted, m.State())
	assert.Nil(t, m.Snapshot().Active)
	_, ok := m.Summary()
	assert.False(t, ok)

	// The workout stays loaded.
	require.True(t, m.StartSession())
	assert.Equal(t, "warm", m.Snapshot().Active.Exercise.ID)
}

func TestMachine_StopIsRefusedOnceCompleted(t *testing.T) {
	w := intervalWorkout()
	w.Exercises[0].Interval = nil
	w.Exercises[0].Repetitions = 1
	m, clk := newTestMachine(t, w, nil)
	require.True(t, m.StartSession())
	enterActive(t, m, clk)
	require.Equal(t, OutcomeSessionCompleted, m.CompleteCurrentExercise())

	assert.False(t, m.Stop())
	assert.Equal(t, StateCompleted, m.State())

	// Loading again starts over.
	require.NoError(t, m.Load(w))
	assert.Equal(t, StateNotStarted, m.State())
}

func finishSingleRep(t *testing.T, gw store.Gateway) *Machine {
	t.Helper()
	w := intervalWorkout()
	w.Exercises[0].Interval = nil
	w.Exercises[0].Repetitions = 1
	m, clk := newTestMachine(t, w, gw)
	require.True(t, m.StartSession())
	enterActive(t, m, clk)
	clk.Advance(time.Minute)
	require.Equal(t, OutcomeSessionCompleted, m.CompleteCurrentExercise())
	return m
}

func TestMachine_CompleteSessionSaves(t *testing.T) {
	gw := newMemoryGateway()
	m := finishSingleRep(t, gw)

	var got Result
	require.True(t, m.CompleteSession(context.Background(), func(r Result) { got = r }))
	assert.True(t, got.DataSaved)
	assert.NoError(t, got.Err)
	assert.Equal(t, 1, gw.count())

	s := m.Snapshot()
	require.NotNil(t, s.Result)
	assert.True(t, s.Result.DataSaved)
	assert.Equal(t, got.SessionID, s.Result.SessionID)

	assert.False(t, m.CompleteSession(context.Background(), nil), "saved only once")
}

func TestMachine_CompleteSessionReportsFailure(t *testing.T) {
	gw := newMemoryGateway()
	gw.err = errDiskFull
	m := finishSingleRep(t, gw)

	var got Result
	require.True(t, m.CompleteSession(context.Background(), func(r Result) { got = r }))
	assert.False(t, got.DataSaved)
	assert.ErrorIs(t, got.Err, errDiskFull)
	assert.Equal(t, StateCompleted, m.State())
	assert.Equal(t, "completed (not saved)", m.Snapshot().StatusText())
}

func TestMachine_CompleteSessionWithoutGateway(t *testing.T) {
	m := finishSingleRep(t, nil)

	var got Result
	require.True(t, m.CompleteSession(context.Background(), func(r Result) { got = r }))
	assert.False(t, got.DataSaved)
	assert.ErrorIs(t, got.Err, ErrNoGateway)
}

func TestMachine_CompleteSessionBeforeCompletion(t *testing.T) {
	m, _ := newTestMachine(t, intervalWorkout(), newMemoryGateway())
	assert.False(t, m.CompleteSession(context.Background(), func(Result) { t.Fatal("must not be called") }))
}

func TestSnapshot_StatusText(t *testing.T) {
	m, clk := newTestMachine(t, threePartWorkout(), nil)
	assert.Equal(t, "notStarted", m.Snapshot().StatusText())

	require.True(t, m.StartSession())
	assert.Equal(t, "preview 1/3", m.Snapshot().StatusText())

	require.True(t, m.ShowCountdown())
	assert.Equal(t, "countdown 00:03", m.Snapshot().StatusText())

	clk.Advance(DefaultCountdown)
	m.Tick()
	assert.Equal(t, "exercise 1/3 rep 1/1", m.Snapshot().StatusText())
}
