// Package telemetry accumulates heart-rate and stroke samples for the exercise
// segment in progress and turns them into lap records and summaries.
package telemetry

import (
	"time"
)

// Sample is one heart-rate reading.
type Sample struct {
	Value float64
	At    time.Time
}

// Lap is a closed segment of swimming within an exercise.
type Lap struct {
	Number    int
	Distance  float64
	Duration  time.Duration
	HeartRate float64
	Strokes   int
	At        time.Time
}

// Live is what a display shows right now.
type Live struct {
	HeartRate   float64
	StrokeCount int
}

// Aggregator is owned by a single goroutine and is not safe for concurrent use.
type Aggregator struct {
	readings []Sample
	laps     []Lap

	lapReadingStart int
	lapStrokes      int
	latestHR        float64
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// AddHeartRate records a reading. Non-positive readings are kept in the raw
// series but ignored by averages.
func (a *Aggregator) AddHeartRate(bpm float64, at time.Time) {
	a.readings = append(a.readings, Sample{Value: bpm, At: at})
	if bpm > 0 {
		a.latestHR = bpm
	}
}

// ObserveHeartRate updates the live reading without adding it to the series.
func (a *Aggregator) ObserveHeartRate(bpm float64) {
	if bpm > 0 {
		a.latestHR = bpm
	}
}

// AddStrokes adds a stroke-count increment to the current lap.
func (a *Aggregator) AddStrokes(n int) {
	if n <= 0 {
		return
	}
	a.lapStrokes += n
}

// CloseLap seals the current lap. Its heart rate is the mean of positive
// readings since the previous lap, or the latest known reading if none arrived.
func (a *Aggregator) CloseLap(distance float64, duration time.Duration, at time.Time) Lap {
	lapReadings := a.readings[a.lapReadingStart:]
	hr := positiveMean(lapReadings)
	if hr == 0 {
		hr = a.latestHR
	}

	lap := Lap{
		Number:    len(a.laps) + 1,
		Distance:  distance,
		Duration:  duration,
		HeartRate: hr,
		Strokes:   a.lapStrokes,
		At:        at,
	}
	a.laps = append(a.laps, lap)
	a.lapReadingStart = len(a.readings)
	a.lapStrokes = 0
	return lap
}

// AverageHeartRate for the segment so far.
func (a *Aggregator) AverageHeartRate() float64 {
	return AverageHeartRate(a.readings, a.laps)
}

// TotalStrokes across closed laps.
func (a *Aggregator) TotalStrokes() int {
	return TotalStrokes(a.laps)
}

// Live returns the latest reading and the strokes counted in the open lap.
func (a *Aggregator) Live() Live {
	return Live{HeartRate: a.latestHR, StrokeCount: a.lapStrokes}
}

func (a *Aggregator) Laps() []Lap {
	out := make([]Lap, len(a.laps))
	copy(out, a.laps)
	return out
}

func (a *Aggregator) Readings() []Sample {
	out := make([]Sample, len(a.readings))
	copy(out, a.readings)
	return out
}

// Reset starts a new segment. The latest heart rate survives so the display
// does not blank between exercises.
func (a *Aggregator) Reset() {
	a.readings = nil
	a.laps = nil
	a.lapReadingStart = 0
	a.lapStrokes = 0
}

// AverageHeartRate is the mean of positive readings if there are any,
// otherwise the mean of positive per-lap heart rates, otherwise zero.
func AverageHeartRate(readings []Sample, laps []Lap) float64 {
	if avg := positiveMean(readings); avg > 0 {
		return avg
	}
	sum, n := 0.0, 0
	for _, lap := range laps {
		if lap.HeartRate > 0 {
			sum += lap.HeartRate
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// TotalStrokes sums per-lap stroke counts.
func TotalStrokes(laps []Lap) int {
	total := 0
	for _, lap := range laps {
		total += lap.Strokes
	}
	return total
}

func positiveMean(readings []Sample) float64 {
	sum, n := 0.0, 0
	for _, r := range readings {
		if r.Value > 0 {
			sum += r.Value
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
