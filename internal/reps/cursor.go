// Package reps tracks progress through the repetitions of one exercise and
// decides which actions the swimmer may take.
package reps

import (
	"fmt"
	"time"

	"github.com/artishokq/SmartSwim-sub001/internal/workout"
)

// Cursor is the swimmer's position within an exercise. It is a value type;
// every method returns an updated copy.
type Cursor struct {
	Repetition        int // 1-based
	Total             int
	IntervalRemaining time.Duration
	CanComplete       bool
	ShowNextRep       bool
	IsLast            bool
}

// Start positions a cursor on the first repetition of ex.
func Start(ex workout.Exercise) Cursor {
	return Cursor{Repetition: 1}.Evaluate(ex, 0)
}

// Evaluate recomputes the gating flags for a repetition that has been running
// for elapsed. Without an interval the swimmer may complete at any time; with
// one, completion unlocks once the interval has fully elapsed.
func (c Cursor) Evaluate(ex workout.Exercise, elapsed time.Duration) Cursor {
	c.Total = ex.Repetitions
	if c.Total < 1 {
		c.Total = 1
	}
	c.IsLast = c.Repetition >= c.Total

	if ex.HasInterval() {
		interval := ex.IntervalDuration()
		c.IntervalRemaining = interval - elapsed
		if c.IntervalRemaining < 0 {
			c.IntervalRemaining = 0
		}
		c.CanComplete = elapsed >= interval
	} else {
		c.IntervalRemaining = 0
		c.CanComplete = true
	}

	c.ShowNextRep = c.Total > 1 && c.Repetition < c.Total && c.CanComplete
	return c
}

// Advance moves to the next repetition. It refuses while the interval gate is
// closed or when the current repetition is the last one.
func (c Cursor) Advance(ex workout.Exercise) (Cursor, bool) {
	if !c.ShowNextRep {
		return c, false
	}
	next := Cursor{Repetition: c.Repetition + 1}
	return next.Evaluate(ex, 0), true
}

// Label renders "rep/total".
func (c Cursor) Label() string {
	return fmt.Sprintf("%d/%d", c.Repetition, c.Total)
}

// FormatClock renders a duration as MM:SS, rounding partial seconds up so a
// countdown shows 00:01 until it truly reaches zero.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
