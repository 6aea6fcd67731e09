package watchui

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/artishokq/SmartSwim-sub001/internal/reps"
	"github.com/artishokq/SmartSwim-sub001/internal/session"
	"github.com/artishokq/SmartSwim-sub001/internal/workout"
)

func active(index, total int, cursor reps.Cursor) session.Snapshot {
	return session.Snapshot{
		State:       session.StateExerciseActive,
		WorkoutID:   "w-1",
		WorkoutName: "Threshold",
		Cursor:      cursor,
		Active: &session.ActiveExerciseData{
			Index:    index,
			Total:    total,
			Exercise: workout.Exercise{Meters: 100, Repetitions: cursor.Total, Style: workout.StyleFreestyle},
		},
	}
}

func TestPrimaryAction(t *testing.T) {
	tests := []struct {
		name string
		snap session.Snapshot
		want Action
	}{
		{"nothing loaded", session.Snapshot{State: session.StateNotStarted}, ActionNone},
		{"loaded", session.Snapshot{State: session.StateNotStarted, WorkoutID: "w-1"}, ActionStartSession},
		{"preview", session.Snapshot{State: session.StatePreviewingExercise, WorkoutID: "w-1"}, ActionShowCountdown},
		{"countdown", session.Snapshot{State: session.StateCountdown, WorkoutID: "w-1"}, ActionNone},
		{"interval running", active(0, 2, reps.Cursor{Repetition: 1, Total: 4, IntervalRemaining: 30 * time.Second}), ActionNone},
		{"interval elapsed", active(0, 2, reps.Cursor{Repetition: 1, Total: 4, CanComplete: true}), ActionComplete},
		{"completed", session.Snapshot{State: session.StateCompleted, WorkoutID: "w-1"}, ActionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PrimaryAction(tt.snap))
		})
	}
}

func TestActionLabel(t *testing.T) {
	assert.Equal(t, "Next repetition", ActionLabel(active(0, 2, reps.Cursor{Repetition: 1, Total: 4, CanComplete: true})))
	assert.Equal(t, "Next exercise", ActionLabel(active(0, 2, reps.Cursor{Repetition: 4, Total: 4, CanComplete: true, IsLast: true})))
	assert.Equal(t, "Finish session", ActionLabel(active(1, 2, reps.Cursor{Repetition: 4, Total: 4, CanComplete: true, IsLast: true})))
	assert.Equal(t, "Wait 00:30", ActionLabel(active(0, 2, reps.Cursor{Repetition: 1, Total: 4, IntervalRemaining: 30 * time.Second})))
	assert.Equal(t, "", ActionLabel(session.Snapshot{State: session.StateCountdown}))
}

func TestRenderSession(t *testing.T) {
	snap := active(0, 2, reps.Cursor{Repetition: 2, Total: 4, CanComplete: true, ShowNextRep: true})
	text := renderSession(snap)
	assert.Contains(t, text, "Threshold")
	assert.Contains(t, text, "Exercise 1 of 2")
	assert.Contains(t, text, "4x100m Freestyle")
	assert.Contains(t, text, "2/4")
	assert.Contains(t, text, "next repetition")

	failed := session.Snapshot{
		State:     session.StateCompleted,
		TotalTime: 75 * time.Second,
		Result:    &session.Result{Err: errors.New("disk full")},
	}
	text = renderSession(failed)
	assert.Contains(t, text, "01:15")
	assert.Contains(t, text, "disk full")
}

func TestRenderTelemetry(t *testing.T) {
	snap := active(0, 1, reps.Cursor{Repetition: 1, Total: 1})
	assert.Contains(t, renderTelemetry(snap), "--")

	snap.Active.HeartRate = 148
	snap.Active.StrokeCount = 32
	text := renderTelemetry(snap)
	assert.Contains(t, text, "148")
	assert.Contains(t, text, "32")

	assert.Contains(t, renderTelemetry(session.Snapshot{State: session.StateNotStarted}), "No exercise")
}
