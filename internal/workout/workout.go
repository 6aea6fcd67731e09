package workout

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrInvalidWorkout  = errors.New("invalid workout")
	ErrInvalidExercise = errors.New("invalid exercise")
)

// Kind is the role of an exercise inside a workout. Wire values are 0, 1, 2.
type Kind int

const (
	KindWarmup Kind = iota
	KindMain
	KindCooldown
)

var kindNames = []string{"warmup", "main", "cooldown"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind accepts the names produced by Kind.String.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if strings.EqualFold(s, name) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown exercise kind %q", s)
}

// Style is the swimming stroke of an exercise. Wire values are 0..5.
type Style int

const (
	StyleFreestyle Style = iota
	StyleBreaststroke
	StyleBackstroke
	StyleButterfly
	StyleMedley
	StyleAny
)

var styleNames = []string{"freestyle", "breaststroke", "backstroke", "butterfly", "medley", "any"}

func (s Style) String() string {
	if s < 0 || int(s) >= len(styleNames) {
		return fmt.Sprintf("Style(%d)", int(s))
	}
	return styleNames[s]
}

// ParseStyle accepts the names produced by Style.String.
func ParseStyle(s string) (Style, error) {
	for i, name := range styleNames {
		if strings.EqualFold(s, name) {
			return Style(i), nil
		}
	}
	return 0, fmt.Errorf("unknown swimming style %q", s)
}

// Interval is the send-off time for each repetition of an exercise.
type Interval struct {
	Minutes int
	Seconds int
}

func (i Interval) Duration() time.Duration {
	return time.Duration(i.Minutes)*time.Minute + time.Duration(i.Seconds)*time.Second
}

// String renders the interval as m:ss.
func (i Interval) String() string {
	return fmt.Sprintf("%d:%02d", i.Minutes, i.Seconds)
}

// ParseInterval parses "m:ss". Seconds may exceed 59; "0:90" is a
// ninety second send-off.
func ParseInterval(s string) (Interval, error) {
	var iv Interval
	if _, err := fmt.Sscanf(s, "%d:%d", &iv.Minutes, &iv.Seconds); err != nil {
		return Interval{}, fmt.Errorf("interval %q is not m:ss: %w", s, err)
	}
	if err := iv.validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

func (i Interval) validate() error {
	if i.Minutes < 0 || i.Seconds < 0 {
		return fmt.Errorf("%w: interval %d:%02d out of range", ErrInvalidExercise, i.Minutes, i.Seconds)
	}
	if i.Minutes == 0 && i.Seconds == 0 {
		return fmt.Errorf("%w: interval must be longer than zero", ErrInvalidExercise)
	}
	return nil
}

// Exercise is one ordered step of a workout.
type Exercise struct {
	ID          string
	Description string
	Kind        Kind
	Style       Style
	Meters      int
	Repetitions int
	Interval    *Interval
	OrderIndex  int
}

// HasInterval reports whether repetitions are gated by a send-off interval.
func (e Exercise) HasInterval() bool {
	return e.Interval != nil
}

// IntervalDuration is zero when the exercise has no interval.
func (e Exercise) IntervalDuration() time.Duration {
	if e.Interval == nil {
		return 0
	}
	return e.Interval.Duration()
}

func (e Exercise) Validate() error {
	if e.Repetitions < 1 {
		return fmt.Errorf("%w: exercise %d needs at least one repetition", ErrInvalidExercise, e.OrderIndex)
	}
	if e.Meters < 0 {
		return fmt.Errorf("%w: exercise %d has negative meters", ErrInvalidExercise, e.OrderIndex)
	}
	if e.Interval != nil {
		if err := e.Interval.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Workout is an ordered list of exercises swum in a pool of PoolLength meters.
type Workout struct {
	ID         string
	Name       string
	PoolLength float64
	Exercises  []Exercise
}

// Validate checks the workout can be run: a positive pool length, at least one
// exercise, order indices 0..n-1 without gaps, and every exercise valid.
func (w Workout) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidWorkout)
	}
	if w.PoolLength <= 0 {
		return fmt.Errorf("%w: pool length must be positive", ErrInvalidWorkout)
	}
	if len(w.Exercises) == 0 {
		return fmt.Errorf("%w: %q has no exercises", ErrInvalidWorkout, w.Name)
	}
	seen := make([]bool, len(w.Exercises))
	for _, ex := range w.Exercises {
		if ex.OrderIndex < 0 || ex.OrderIndex >= len(w.Exercises) || seen[ex.OrderIndex] {
			return fmt.Errorf("%w: exercise order of %q is not contiguous", ErrInvalidWorkout, w.Name)
		}
		seen[ex.OrderIndex] = true
		if err := ex.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Sorted returns a copy with exercises ordered by OrderIndex.
func (w Workout) Sorted() Workout {
	out := w
	out.Exercises = make([]Exercise, len(w.Exercises))
	copy(out.Exercises, w.Exercises)
	sort.SliceStable(out.Exercises, func(i, j int) bool {
		return out.Exercises[i].OrderIndex < out.Exercises[j].OrderIndex
	})
	return out
}

// TotalMeters is the distance of every repetition of every exercise.
func (w Workout) TotalMeters() int {
	total := 0
	for _, ex := range w.Exercises {
		total += ex.Meters * ex.Repetitions
	}
	return total
}

// NumberOfLaps is how many pool lengths fit in meters, rounded down.
func NumberOfLaps(meters int, poolLength float64) int {
	if poolLength <= 0 || meters <= 0 {
		return 0
	}
	return int(float64(meters) / poolLength)
}

// FromParameters builds a single free-swim exercise from the swim parameters
// a companion pushes when it has no structured workout to send.
func FromParameters(id string, poolLength float64, style Style, totalMeters int) Workout {
	return Workout{
		ID:         id,
		Name:       fmt.Sprintf("%d m %s", totalMeters, style),
		PoolLength: poolLength,
		Exercises: []Exercise{{
			ID:          id + "-0",
			Description: "Free swim",
			Kind:        KindMain,
			Style:       style,
			Meters:      totalMeters,
			Repetitions: 1,
			OrderIndex:  0,
		}},
	}
}
