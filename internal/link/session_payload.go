package link

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/artishokq/SmartSwim-sub001/internal/store"
)

type sessionWire struct {
	ID            string               `json:"id"`
	Date          time.Time            `json:"date"`
	TotalTime     float64              `json:"totalTime"`
	TotalCalories float64              `json:"totalCalories"`
	PoolSize      float64              `json:"poolSize"`
	WorkoutID     string               `json:"workoutId"`
	WorkoutName   string               `json:"workoutName"`
	Exercises     []exerciseRecordWire `json:"exercises"`
}

type exerciseRecordWire struct {
	ID                string          `json:"id"`
	OrderIndex        int             `json:"orderIndex"`
	Description       string          `json:"description"`
	Style             int             `json:"style"`
	Type              int             `json:"type"`
	HasInterval       bool            `json:"hasInterval"`
	IntervalMinutes   int             `json:"intervalMinutes"`
	IntervalSeconds   int             `json:"intervalSeconds"`
	Meters            int             `json:"meters"`
	Repetitions       int             `json:"repetitions"`
	StartTime         time.Time       `json:"startTime"`
	EndTime           time.Time       `json:"endTime"`
	Laps              []lapWire       `json:"laps"`
	HeartRateReadings []heartRateWire `json:"heartRateReadings"`
}

type lapWire struct {
	LapNumber int       `json:"lapNumber"`
	Distance  float64   `json:"distance"`
	LapTime   float64   `json:"lapTime"`
	HeartRate float64   `json:"heartRate"`
	Strokes   int       `json:"strokes"`
	Timestamp time.Time `json:"timestamp"`
}

type heartRateWire struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionMessage carries a completed session from the watch to the companion.
// Durations travel as seconds.
func SessionMessage(s store.CompletedWorkoutSession) Message {
	w := sessionWire{
		ID:            s.ID,
		Date:          s.Date,
		TotalTime:     s.TotalTime.Seconds(),
		TotalCalories: s.TotalCalories,
		PoolSize:      s.PoolSize,
		WorkoutID:     s.WorkoutID,
		WorkoutName:   s.WorkoutName,
		Exercises:     make([]exerciseRecordWire, 0, len(s.Exercises)),
	}
	for _, ex := range s.Exercises {
		ew := exerciseRecordWire{
			ID:                ex.ExerciseID,
			OrderIndex:        ex.OrderIndex,
			Description:       ex.Description,
			Style:             ex.Style,
			Type:              ex.Kind,
			HasInterval:       ex.HasInterval,
			IntervalMinutes:   ex.IntervalMinutes,
			IntervalSeconds:   ex.IntervalSeconds,
			Meters:            ex.Meters,
			Repetitions:       ex.Repetitions,
			StartTime:         ex.StartedAt,
			EndTime:           ex.EndedAt,
			Laps:              make([]lapWire, 0, len(ex.Laps)),
			HeartRateReadings: make([]heartRateWire, 0, len(ex.HeartRates)),
		}
		for _, lap := range ex.Laps {
			ew.Laps = append(ew.Laps, lapWire{
				LapNumber: lap.Number,
				Distance:  lap.Distance,
				LapTime:   lap.Duration.Seconds(),
				HeartRate: lap.HeartRate,
				Strokes:   lap.Strokes,
				Timestamp: lap.At,
			})
		}
		for _, hr := range ex.HeartRates {
			ew.HeartRateReadings = append(ew.HeartRateReadings, heartRateWire{Value: hr.Value, Timestamp: hr.At})
		}
		w.Exercises = append(w.Exercises, ew)
	}
	return NewMessage(KindSessionData, map[string]any{"sessionData": w})
}

// ParseSession decodes a sessionData payload. The session must carry an ID so
// storing it twice stays idempotent.
func ParseSession(m Message) (store.CompletedWorkoutSession, error) {
	raw, ok := m.Fields["sessionData"]
	if !ok {
		return store.CompletedWorkoutSession{}, fmt.Errorf("%w: missing sessionData", ErrMalformed)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return store.CompletedWorkoutSession{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var w sessionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return store.CompletedWorkoutSession{}, fmt.Errorf("%w: sessionData: %v", ErrMalformed, err)
	}
	if w.ID == "" {
		return store.CompletedWorkoutSession{}, fmt.Errorf("%w: sessionData has no id", ErrMalformed)
	}

	s := store.CompletedWorkoutSession{
		ID:            w.ID,
		Date:          w.Date,
		TotalTime:     seconds(w.TotalTime),
		TotalCalories: w.TotalCalories,
		PoolSize:      w.PoolSize,
		WorkoutID:     w.WorkoutID,
		WorkoutName:   w.WorkoutName,
	}
	for _, ew := range w.Exercises {
		ex := store.ExerciseRecord{
			ExerciseID:      ew.ID,
			OrderIndex:      ew.OrderIndex,
			Description:     ew.Description,
			Style:           ew.Style,
			Kind:            ew.Type,
			HasInterval:     ew.HasInterval,
			IntervalMinutes: ew.IntervalMinutes,
			IntervalSeconds: ew.IntervalSeconds,
			Meters:          ew.Meters,
			Repetitions:     ew.Repetitions,
			StartedAt:       ew.StartTime,
			EndedAt:         ew.EndTime,
		}
		for _, lap := range ew.Laps {
			ex.Laps = append(ex.Laps, store.LapRecord{
				Number:    lap.LapNumber,
				Distance:  lap.Distance,
				Duration:  seconds(lap.LapTime),
				HeartRate: lap.HeartRate,
				Strokes:   lap.Strokes,
				At:        lap.Timestamp,
			})
		}
		for _, hr := range ew.HeartRateReadings {
			ex.HeartRates = append(ex.HeartRates, store.HeartRateReading{Value: hr.Value, At: hr.Timestamp})
		}
		s.Exercises = append(s.Exercises, ex)
	}
	return s, nil
}

func SessionReceivedFields(ok bool) map[string]any {
	return map[string]any{"sessionReceived": ok}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second)).Round(time.Millisecond)
}
