// Package session drives one swim workout from preview through countdown and
// active repetitions to completion.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/artishokq/SmartSwim-sub001/internal/clock"
	"github.com/artishokq/SmartSwim-sub001/internal/reps"
	"github.com/artishokq/SmartSwim-sub001/internal/store"
	"github.com/artishokq/SmartSwim-sub001/internal/telemetry"
	"github.com/artishokq/SmartSwim-sub001/internal/workout"
)

const (
	DefaultCountdown    = 3 * time.Second
	DefaultBodyWeightKg = 70.0
)

var (
	ErrSessionInProgress = errors.New("a session is in progress")
	ErrNoGateway         = errors.New("no session store configured")
)

// MachineOptions configure a Machine. Zero values pick defaults.
type MachineOptions struct {
	Countdown    time.Duration
	BodyWeightKg float64
	Gateway      store.Gateway
}

// Machine is the session state machine. It is not safe for concurrent use;
// Runner owns one on a single goroutine. Triggers that do not apply to the
// current state are ignored and report false or OutcomeIgnored.
type Machine struct {
	clock clock.Clock
	opts  MachineOptions
	agg   *telemetry.Aggregator

	workout workout.Workout
	loaded  bool

	state     State
	sessionID string
	index     int
	cursor    reps.Cursor

	sessionStart   time.Time
	sessionEnd     time.Time
	countdownStart time.Time
	exerciseStart  time.Time
	repStart       time.Time

	records []store.ExerciseRecord
	result  *Result
}

func NewMachine(clk clock.Clock, opts MachineOptions) *Machine {
	if clk == nil {
		panic("Machine: clock cannot be nil")
	}
	if opts.Countdown <= 0 {
		opts.Countdown = DefaultCountdown
	}
	if opts.BodyWeightKg <= 0 {
		opts.BodyWeightKg = DefaultBodyWeightKg
	}
	return &Machine{clock: clk, opts: opts, agg: telemetry.NewAggregator()}
}

func (m *Machine) State() State {
	return m.state
}

// Workout returns the loaded workout with exercises in order.
func (m *Machine) Workout() (workout.Workout, bool) {
	return m.workout, m.loaded
}

// Load selects the workout for the next session. It is refused while a
// session is running; loading after completion starts over.
func (m *Machine) Load(w workout.Workout) error {
	if m.state != StateNotStarted && m.state != StateCompleted {
		return ErrSessionInProgress
	}
	if err := w.Validate(); err != nil {
		return err
	}
	m.reset()
	m.workout = w.Sorted()
	m.loaded = true
	return nil
}

// StartSession previews the first exercise.
func (m *Machine) StartSession() bool {
	if m.state != StateNotStarted || !m.loaded {
		return false
	}
	m.sessionID = uuid.NewString()
	m.sessionStart = m.clock.Now()
	m.records = nil
	m.result = nil
	m.preview(0)
	return true
}

// ShowCountdown confirms the previewed exercise and starts the countdown.
func (m *Machine) ShowCountdown() bool {
	if m.state != StatePreviewingExercise {
		return false
	}
	m.countdownStart = m.clock.Now()
	m.state = StateCountdown
	return true
}

// CountdownRemaining is zero outside the countdown.
func (m *Machine) CountdownRemaining() time.Duration {
	if m.state != StateCountdown {
		return 0
	}
	rem := m.opts.Countdown - m.clock.Now().Sub(m.countdownStart)
	if rem < 0 {
		return 0
	}
	return rem
}

// StartCurrentExercise begins the first repetition once the countdown has
// run out. Tick calls it automatically.
func (m *Machine) StartCurrentExercise() bool {
	if m.state != StateCountdown || m.CountdownRemaining() > 0 {
		return false
	}
	now := m.clock.Now()
	m.exerciseStart = now
	m.repStart = now
	m.agg.Reset()
	m.cursor = reps.Start(m.current())
	m.state = StateExerciseActive
	return true
}

// CompleteCurrentExercise is the single "done" action of an active exercise.
// It closes the running repetition as a lap and then advances to the next
// repetition, previews the next exercise, or completes the session. It does
// nothing while the interval gate is still closed.
func (m *Machine) CompleteCurrentExercise() Outcome {
	if m.state != StateExerciseActive {
		return OutcomeIgnored
	}
	now := m.clock.Now()
	ex := m.current()
	m.cursor = m.cursor.Evaluate(ex, now.Sub(m.repStart))
	if !m.cursor.CanComplete {
		return OutcomeIgnored
	}

	m.agg.CloseLap(float64(ex.Meters), now.Sub(m.repStart), now)

	if next, ok := m.cursor.Advance(ex); ok {
		m.cursor = next
		m.repStart = now
		return OutcomeRepetitionAdvanced
	}

	m.records = append(m.records, m.exerciseRecord(ex, now))
	m.agg.Reset()

	if m.index+1 < len(m.workout.Exercises) {
		m.preview(m.index + 1)
		return OutcomeNextExercise
	}
	m.sessionEnd = now
	m.state = StateCompleted
	return OutcomeSessionCompleted
}

// Tick starts the exercise when the countdown has run out and refreshes the
// interval gate of an active repetition.
func (m *Machine) Tick() {
	switch m.state {
	case StateCountdown:
		m.StartCurrentExercise()
	case StateExerciseActive:
		m.cursor = m.cursor.Evaluate(m.current(), m.clock.Now().Sub(m.repStart))
	}
}

// Stop abandons a running session and discards what was recorded. The loaded
// workout stays so the session can be started again.
func (m *Machine) Stop() bool {
	switch m.state {
	case StatePreviewingExercise, StateCountdown, StateExerciseActive:
		m.reset()
		return true
	}
	return false
}

// IngestHeartRate records a reading for the exercise segment in progress.
// Outside an active exercise the reading only refreshes the live value.
func (m *Machine) IngestHeartRate(bpm float64, at time.Time) {
	if m.state != StateExerciseActive {
		m.agg.ObserveHeartRate(bpm)
		return
	}
	m.agg.AddHeartRate(bpm, at)
}

// IngestStrokes counts strokes towards the open lap. Strokes outside an
// active exercise are ignored.
func (m *Machine) IngestStrokes(n int) bool {
	if m.state != StateExerciseActive || n <= 0 {
		return false
	}
	m.agg.AddStrokes(n)
	return true
}

func (m *Machine) Snapshot() Snapshot {
	now := m.clock.Now()
	s := Snapshot{
		State:              m.state,
		WorkoutID:          m.workout.ID,
		WorkoutName:        m.workout.Name,
		Cursor:             m.cursor,
		CountdownRemaining: m.CountdownRemaining(),
	}

	switch m.state {
	case StatePreviewingExercise, StateCountdown, StateExerciseActive:
		ex := m.current()
		live := m.agg.Live()
		active := &ActiveExerciseData{
			Index:          m.index,
			Total:          len(m.workout.Exercises),
			Exercise:       ex,
			Laps:           workout.NumberOfLaps(ex.Meters, m.workout.PoolLength),
			HeartRate:      live.HeartRate,
			StrokeCount:    live.StrokeCount,
			SessionElapsed: now.Sub(m.sessionStart),
		}
		if ex.Interval != nil {
			active.Interval = ex.Interval.String()
		}
		if m.state == StateExerciseActive {
			active.RepetitionElapsed = now.Sub(m.repStart)
			s.Cursor = m.cursor.Evaluate(ex, active.RepetitionElapsed)
		}
		s.Active = active
		s.TotalTime = active.SessionElapsed
	case StateCompleted:
		s.TotalTime = m.sessionEnd.Sub(m.sessionStart)
		if m.result != nil {
			r := *m.result
			s.Result = &r
		}
	}
	return s
}

// Summary builds the record of a completed session.
func (m *Machine) Summary() (store.CompletedWorkoutSession, bool) {
	if m.state != StateCompleted {
		return store.CompletedWorkoutSession{}, false
	}
	records := make([]store.ExerciseRecord, len(m.records))
	copy(records, m.records)
	return store.CompletedWorkoutSession{
		ID:            m.sessionID,
		Date:          m.sessionStart,
		TotalTime:     m.sessionEnd.Sub(m.sessionStart),
		TotalCalories: EstimateCalories(records, m.opts.BodyWeightKg),
		PoolSize:      m.workout.PoolLength,
		WorkoutID:     m.workout.ID,
		WorkoutName:   m.workout.Name,
		Exercises:     records,
	}, true
}

// CompleteSession saves the completed session through the configured gateway
// and passes the result to done. A failed save still leaves the session
// completed, with DataSaved false.
func (m *Machine) CompleteSession(ctx context.Context, done func(Result)) bool {
	summary, ok := m.Summary()
	if !ok || m.result != nil {
		return false
	}
	res := Persist(ctx, m.opts.Gateway, summary)
	m.SetResult(res)
	if done != nil {
		done(res)
	}
	return true
}

// SetResult records how the completed session was saved. Only the first
// result counts.
func (m *Machine) SetResult(r Result) bool {
	if m.state != StateCompleted || m.result != nil {
		return false
	}
	m.result = &r
	return true
}

func (m *Machine) current() workout.Exercise {
	return m.workout.Exercises[m.index]
}

func (m *Machine) preview(index int) {
	m.index = index
	m.cursor = reps.Start(m.current())
	m.state = StatePreviewingExercise
}

func (m *Machine) reset() {
	m.state = StateNotStarted
	m.sessionID = ""
	m.index = 0
	m.cursor = reps.Cursor{}
	m.sessionStart = time.Time{}
	m.sessionEnd = time.Time{}
	m.countdownStart = time.Time{}
	m.exerciseStart = time.Time{}
	m.repStart = time.Time{}
	m.records = nil
	m.result = nil
	m.agg.Reset()
}

func (m *Machine) exerciseRecord(ex workout.Exercise, now time.Time) store.ExerciseRecord {
	rec := store.ExerciseRecord{
		ExerciseID:  ex.ID,
		OrderIndex:  ex.OrderIndex,
		Description: ex.Description,
		Style:       int(ex.Style),
		Kind:        int(ex.Kind),
		Meters:      ex.Meters,
		Repetitions: ex.Repetitions,
		StartedAt:   m.exerciseStart,
		EndedAt:     now,
	}
	if ex.Interval != nil {
		rec.HasInterval = true
		rec.IntervalMinutes = ex.Interval.Minutes
		rec.IntervalSeconds = ex.Interval.Seconds
	}
	for _, lap := range m.agg.Laps() {
		rec.Laps = append(rec.Laps, store.LapRecord{
			Number:    lap.Number,
			Distance:  lap.Distance,
			Duration:  lap.Duration,
			HeartRate: lap.HeartRate,
			Strokes:   lap.Strokes,
			At:        lap.At,
		})
	}
	for _, r := range m.agg.Readings() {
		rec.HeartRates = append(rec.HeartRates, store.HeartRateReading{Value: r.Value, At: r.At})
	}
	return rec
}
