package session

import (
	"fmt"
	"time"

	"github.com/artishokq/SmartSwim-sub001/internal/reps"
	"github.com/artishokq/SmartSwim-sub001/internal/workout"
)

// State is where the swimmer is in a session. Exactly one holds at a time.
type State int

const (
	StateNotStarted State = iota
	StatePreviewingExercise
	StateCountdown
	StateExerciseActive
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "notStarted"
	case StatePreviewingExercise:
		return "previewingExercise"
	case StateCountdown:
		return "countdown"
	case StateExerciseActive:
		return "exerciseActive"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Outcome says what CompleteCurrentExercise did.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeRepetitionAdvanced
	OutcomeNextExercise
	OutcomeSessionCompleted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeRepetitionAdvanced:
		return "repetitionAdvanced"
	case OutcomeNextExercise:
		return "nextExercise"
	case OutcomeSessionCompleted:
		return "sessionCompleted"
	default:
		return "unknown"
	}
}

// ActiveExerciseData describes the current exercise for display. It exists
// from the moment an exercise is previewed until the session moves past it.
type ActiveExerciseData struct {
	Index             int
	Total             int
	Exercise          workout.Exercise
	Laps              int
	HeartRate         float64
	StrokeCount       int
	SessionElapsed    time.Duration
	RepetitionElapsed time.Duration
	Interval          string
}

// Result reports how a completed session was persisted.
type Result struct {
	SessionID string
	DataSaved bool
	Err       error
}

// Snapshot is a copy of everything a view needs.
type Snapshot struct {
	State              State
	WorkoutID          string
	WorkoutName        string
	Active             *ActiveExerciseData
	Cursor             reps.Cursor
	CountdownRemaining time.Duration
	TotalTime          time.Duration
	Result             *Result
}

// StatusText is the short status line sent to the companion.
func (s Snapshot) StatusText() string {
	switch s.State {
	case StatePreviewingExercise:
		if s.Active != nil {
			return fmt.Sprintf("preview %d/%d", s.Active.Index+1, s.Active.Total)
		}
	case StateCountdown:
		return "countdown " + reps.FormatClock(s.CountdownRemaining)
	case StateExerciseActive:
		if s.Active != nil {
			return fmt.Sprintf("exercise %d/%d rep %s", s.Active.Index+1, s.Active.Total, s.Cursor.Label())
		}
	case StateCompleted:
		if s.Result != nil && !s.Result.DataSaved {
			return "completed (not saved)"
		}
	}
	return s.State.String()
}
