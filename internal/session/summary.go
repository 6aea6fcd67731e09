package session

import (
	"context"
	"fmt"

	"github.com/artishokq/SmartSwim-sub001/internal/store"
	"github.com/artishokq/SmartSwim-sub001/internal/telemetry"
	"github.com/artishokq/SmartSwim-sub001/internal/workout"
)

// Metabolic equivalents for moderate-effort lap swimming.
var metByStyle = map[workout.Style]float64{
	workout.StyleFreestyle:    8.3,
	workout.StyleBreaststroke: 10.3,
	workout.StyleBackstroke:   9.5,
	workout.StyleButterfly:    13.8,
	workout.StyleMedley:       10.0,
	workout.StyleAny:          7.0,
}

// EstimateCalories sums MET × body weight × hours over the exercises.
func EstimateCalories(records []store.ExerciseRecord, bodyWeightKg float64) float64 {
	total := 0.0
	for _, r := range records {
		met, ok := metByStyle[workout.Style(r.Style)]
		if !ok {
			met = metByStyle[workout.StyleAny]
		}
		if d := r.EndedAt.Sub(r.StartedAt); d > 0 {
			total += met * bodyWeightKg * d.Hours()
		}
	}
	return total
}

// ExerciseAverageHeartRate applies the aggregator's averaging rule to a
// stored exercise.
func ExerciseAverageHeartRate(r store.ExerciseRecord) float64 {
	readings := make([]telemetry.Sample, 0, len(r.HeartRates))
	for _, hr := range r.HeartRates {
		readings = append(readings, telemetry.Sample{Value: hr.Value, At: hr.At})
	}
	return telemetry.AverageHeartRate(readings, toLaps(r.Laps))
}

// ExerciseTotalStrokes sums the strokes of a stored exercise's laps.
func ExerciseTotalStrokes(r store.ExerciseRecord) int {
	return telemetry.TotalStrokes(toLaps(r.Laps))
}

func toLaps(records []store.LapRecord) []telemetry.Lap {
	laps := make([]telemetry.Lap, 0, len(records))
	for _, l := range records {
		laps = append(laps, telemetry.Lap{
			Number:    l.Number,
			Distance:  l.Distance,
			Duration:  l.Duration,
			HeartRate: l.HeartRate,
			Strokes:   l.Strokes,
			At:        l.At,
		})
	}
	return laps
}

// Persist hands s to gateway. Any failure is reported in the Result rather
// than returned, so the caller's session still ends as completed.
func Persist(ctx context.Context, gateway store.Gateway, s store.CompletedWorkoutSession) Result {
	if gateway == nil {
		return Result{SessionID: s.ID, Err: ErrNoGateway}
	}
	id, err := gateway.CreateWorkoutSession(ctx, s)
	if err != nil {
		return Result{SessionID: s.ID, Err: fmt.Errorf("saving session %s: %w", s.ID, err)}
	}
	return Result{SessionID: id, DataSaved: true}
}
