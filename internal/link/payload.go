package link

import (
	"encoding/json"
	"fmt"

	"github.com/artishokq/SmartSwim-sub001/internal/workout"
)

// Command is a remote control instruction from the companion.
type Command string

const (
	CommandStart Command = "start"
	CommandStop  Command = "stop"
)

func CommandMessage(cmd Command) Message {
	return NewMessage(KindCommand, map[string]any{"command": string(cmd)})
}

func ParseCommand(m Message) (Command, error) {
	s, ok := m.Text("command")
	if !ok {
		return "", fmt.Errorf("%w: command is not a string", ErrMalformed)
	}
	switch cmd := Command(s); cmd {
	case CommandStart, CommandStop:
		return cmd, nil
	default:
		return "", fmt.Errorf("%w: unknown command %q", ErrMalformed, s)
	}
}

func HeartRateMessage(bpm float64) Message {
	return NewMessage(KindHeartRate, map[string]any{"heartRate": bpm})
}

func ParseHeartRate(m Message) (float64, error) {
	bpm, ok := m.Float("heartRate")
	if !ok {
		return 0, fmt.Errorf("%w: heartRate is not a number", ErrMalformed)
	}
	return bpm, nil
}

func StrokeCountMessage(n int) Message {
	return NewMessage(KindStrokeCount, map[string]any{"strokeCount": n})
}

func ParseStrokeCount(m Message) (int, error) {
	n, ok := m.Int("strokeCount")
	if !ok {
		return 0, fmt.Errorf("%w: strokeCount is not an integer", ErrMalformed)
	}
	return n, nil
}

func WatchStatusMessage(status string) Message {
	return NewMessage(KindWatchStatus, map[string]any{"watchStatus": status})
}

func ParseWatchStatus(m Message) (string, error) {
	s, ok := m.Text("watchStatus")
	if !ok {
		return "", fmt.Errorf("%w: watchStatus is not a string", ErrMalformed)
	}
	return s, nil
}

// RequestMessage builds a payload-less request such as requestWorkouts.
func RequestMessage(kind Kind) Message {
	return NewMessage(kind, map[string]any{string(kind): true})
}

// Parameters are the free-swim settings the companion pushes to the watch.
type Parameters struct {
	PoolSize      float64
	SwimmingStyle int
	TotalMeters   int
}

// DefaultParameters are answered before anything has been pushed.
var DefaultParameters = Parameters{PoolSize: 25}

func (p Parameters) Fields() map[string]any {
	return map[string]any{
		"poolSize":      p.PoolSize,
		"swimmingStyle": p.SwimmingStyle,
		"totalMeters":   p.TotalMeters,
	}
}

func (p Parameters) Message() Message {
	return NewMessage(KindParameters, p.Fields())
}

func ParseParameters(m Message) (Parameters, error) {
	var p Parameters
	var ok bool
	if p.PoolSize, ok = m.Float("poolSize"); !ok || p.PoolSize <= 0 {
		return Parameters{}, fmt.Errorf("%w: poolSize must be a positive number", ErrMalformed)
	}
	if p.SwimmingStyle, ok = m.Int("swimmingStyle"); !ok {
		return Parameters{}, fmt.Errorf("%w: swimmingStyle must be an integer", ErrMalformed)
	}
	if p.TotalMeters, ok = m.Int("totalMeters"); !ok || p.TotalMeters < 0 {
		return Parameters{}, fmt.Errorf("%w: totalMeters must be a non-negative integer", ErrMalformed)
	}
	return p, nil
}

func ParametersReceivedFields(ok bool) map[string]any {
	return map[string]any{"parametersReceived": ok}
}

func PoolLengthFields(poolLength float64) map[string]any {
	return map[string]any{"poolLength": poolLength}
}

func ParsePoolLength(m Message) (float64, error) {
	v, ok := m.Float("poolLength")
	if !ok {
		return 0, fmt.Errorf("%w: poolLength is not a number", ErrMalformed)
	}
	return v, nil
}

type workoutWire struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	PoolSize  float64        `json:"poolSize"`
	Exercises []exerciseWire `json:"exercises"`
}

type exerciseWire struct {
	ID              string `json:"id"`
	Description     string `json:"description"`
	Style           int    `json:"style"`
	Type            int    `json:"type"`
	HasInterval     bool   `json:"hasInterval"`
	IntervalMinutes int    `json:"intervalMinutes"`
	IntervalSeconds int    `json:"intervalSeconds"`
	Meters          int    `json:"meters"`
	OrderIndex      int    `json:"orderIndex"`
	Repetitions     int    `json:"repetitions"`
}

// WorkoutsMessage carries the full workout list as one snapshot.
func WorkoutsMessage(workouts []workout.Workout) Message {
	wire := make([]workoutWire, 0, len(workouts))
	for _, w := range workouts {
		ww := workoutWire{
			ID:        w.ID,
			Name:      w.Name,
			PoolSize:  w.PoolLength,
			Exercises: make([]exerciseWire, 0, len(w.Exercises)),
		}
		for _, ex := range w.Exercises {
			ew := exerciseWire{
				ID:          ex.ID,
				Description: ex.Description,
				Style:       int(ex.Style),
				Type:        int(ex.Kind),
				Meters:      ex.Meters,
				OrderIndex:  ex.OrderIndex,
				Repetitions: ex.Repetitions,
			}
			if ex.Interval != nil {
				ew.HasInterval = true
				ew.IntervalMinutes = ex.Interval.Minutes
				ew.IntervalSeconds = ex.Interval.Seconds
			}
			ww.Exercises = append(ww.Exercises, ew)
		}
		wire = append(wire, ww)
	}
	return NewMessage(KindWorkoutsData, map[string]any{"workoutsData": wire})
}

// ParseWorkouts decodes a workoutsData payload. A workout that fails
// validation is left out of the result and reported in rejected; only an
// undecodable payload fails the whole snapshot.
func ParseWorkouts(m Message) (workouts []workout.Workout, rejected []error, err error) {
	raw, ok := m.Fields["workoutsData"]
	if !ok {
		return nil, nil, fmt.Errorf("%w: missing workoutsData", ErrMalformed)
	}
	// The payload is either typed (in-process) or generic JSON (from the wire);
	// a JSON round trip normalises both.
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var wire []workoutWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, nil, fmt.Errorf("%w: workoutsData: %v", ErrMalformed, err)
	}

	workouts = make([]workout.Workout, 0, len(wire))
	for _, ww := range wire {
		w := workout.Workout{
			ID:         ww.ID,
			Name:       ww.Name,
			PoolLength: ww.PoolSize,
			Exercises:  make([]workout.Exercise, 0, len(ww.Exercises)),
		}
		for _, ew := range ww.Exercises {
			ex := workout.Exercise{
				ID:          ew.ID,
				Description: ew.Description,
				Kind:        workout.Kind(ew.Type),
				Style:       workout.Style(ew.Style),
				Meters:      ew.Meters,
				Repetitions: ew.Repetitions,
				OrderIndex:  ew.OrderIndex,
			}
			if ew.HasInterval {
				ex.Interval = &workout.Interval{Minutes: ew.IntervalMinutes, Seconds: ew.IntervalSeconds}
			}
			w.Exercises = append(w.Exercises, ex)
		}
		if err := w.Validate(); err != nil {
			rejected = append(rejected, fmt.Errorf("workout %q: %w", w.ID, err))
			continue
		}
		workouts = append(workouts, w.Sorted())
	}
	return workouts, rejected, nil
}
