// Package watchui is the watch's terminal dashboard.
package watchui

import (
	"fmt"
	"strings"

	"github.com/artishokq/SmartSwim-sub001/internal/reps"
	"github.com/artishokq/SmartSwim-sub001/internal/session"
	"github.com/artishokq/SmartSwim-sub001/internal/workout"
)

// Action is what the single primary button does in the current state.
type Action int

const (
	ActionNone Action = iota
	ActionStartSession
	ActionShowCountdown
	ActionComplete
)

// PrimaryAction picks the primary button for s. During an exercise with an
// interval the button stays disabled until the interval has elapsed.
func PrimaryAction(s session.Snapshot) Action {
	switch s.State {
	case session.StateNotStarted:
		if s.WorkoutID != "" {
			return ActionStartSession
		}
	case session.StatePreviewingExercise:
		return ActionShowCountdown
	case session.StateExerciseActive:
		if s.Cursor.CanComplete {
			return ActionComplete
		}
	}
	return ActionNone
}

// ActionLabel is the button caption for PrimaryAction(s).
func ActionLabel(s session.Snapshot) string {
	switch PrimaryAction(s) {
	case ActionStartSession:
		return "Start session"
	case ActionShowCountdown:
		return "Ready"
	case ActionComplete:
		if !s.Cursor.IsLast {
			return "Next repetition"
		}
		if s.Active != nil && s.Active.Index+1 < s.Active.Total {
			return "Next exercise"
		}
		return "Finish session"
	}
	if s.State == session.StateExerciseActive && s.Cursor.IntervalRemaining > 0 {
		return "Wait " + reps.FormatClock(s.Cursor.IntervalRemaining)
	}
	return ""
}

func styleName(st workout.Style) string {
	return strings.ToUpper(st.String()[:1]) + st.String()[1:]
}

// renderSession formats the main panel.
func renderSession(s session.Snapshot) string {
	var b strings.Builder
	b.WriteString("\n")
	if s.WorkoutName != "" {
		fmt.Fprintf(&b, "  [yellow]%s[white]\n\n", s.WorkoutName)
	}

	switch s.State {
	case session.StateNotStarted:
		if s.WorkoutID == "" {
			b.WriteString("  Waiting for a workout from the companion.\n")
		} else {
			b.WriteString("  Ready to start.\n")
		}
	case session.StatePreviewingExercise:
		writeExercise(&b, s.Active)
	case session.StateCountdown:
		writeExercise(&b, s.Active)
		fmt.Fprintf(&b, "\n  [red]Starting in %s[white]\n", reps.FormatClock(s.CountdownRemaining))
	case session.StateExerciseActive:
		writeExercise(&b, s.Active)
		if s.Active != nil {
			fmt.Fprintf(&b, "\n  Repetition  [yellow]%s[white]\n", s.Cursor.Label())
			fmt.Fprintf(&b, "  Rep time    %s\n", reps.FormatClock(s.Active.RepetitionElapsed))
			fmt.Fprintf(&b, "  Session     %s\n", reps.FormatClock(s.Active.SessionElapsed))
		}
		if s.Cursor.ShowNextRep && !s.Cursor.IsLast {
			b.WriteString("\n  [green]Go: next repetition[white]\n")
		}
	case session.StateCompleted:
		fmt.Fprintf(&b, "  [green]Session complete[white] in %s\n", reps.FormatClock(s.TotalTime))
		switch {
		case s.Result == nil:
			b.WriteString("  Saving...\n")
		case s.Result.DataSaved:
			b.WriteString("  Saved.\n")
		default:
			fmt.Fprintf(&b, "  [red]Not saved:[white] %v\n", s.Result.Err)
		}
	}
	return b.String()
}

func writeExercise(b *strings.Builder, a *session.ActiveExerciseData) {
	if a == nil {
		return
	}
	ex := a.Exercise
	fmt.Fprintf(b, "  Exercise %d of %d  [gray](%s)[white]\n", a.Index+1, a.Total, ex.Kind)
	fmt.Fprintf(b, "  %dx%dm %s\n", ex.Repetitions, ex.Meters, styleName(ex.Style))
	if ex.Description != "" {
		fmt.Fprintf(b, "  [gray]%s[white]\n", ex.Description)
	}
	if a.Interval != "" {
		fmt.Fprintf(b, "  on %s\n", a.Interval)
	}
}

// renderTelemetry formats the heart-rate and stroke panel.
func renderTelemetry(s session.Snapshot) string {
	if s.Active == nil || s.State != session.StateExerciseActive {
		return "\n  [gray]No exercise running[white]"
	}
	hr := "--"
	if s.Active.HeartRate > 0 {
		hr = fmt.Sprintf("%.0f", s.Active.HeartRate)
	}
	return fmt.Sprintf("\n  [red]♥[white] Heart rate  [yellow]%s[white] bpm\n\n  Strokes     [yellow]%d[white]\n  Laps        [yellow]%d[white]\n",
		hr, s.Active.StrokeCount, s.Active.Laps)
}
