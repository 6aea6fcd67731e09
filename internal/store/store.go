// Package store persists completed swim sessions.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found")

// HeartRateReading is one sample of the raw series kept per exercise.
type HeartRateReading struct {
	Value float64
	At    time.Time
}

// LapRecord is one closed lap of an exercise.
type LapRecord struct {
	Number    int
	Distance  float64
	Duration  time.Duration
	HeartRate float64
	Strokes   int
	At        time.Time
}

// ExerciseRecord describes how one exercise of the workout was actually swum.
type ExerciseRecord struct {
	ExerciseID      string
	OrderIndex      int
	Description     string
	Style           int
	Kind            int
	HasInterval     bool
	IntervalMinutes int
	IntervalSeconds int
	Meters          int
	Repetitions     int
	StartedAt       time.Time
	EndedAt         time.Time
	Laps            []LapRecord
	HeartRates      []HeartRateReading
}

// CompletedWorkoutSession is the durable result of a finished session.
type CompletedWorkoutSession struct {
	ID            string
	Date          time.Time
	TotalTime     time.Duration
	TotalCalories float64
	PoolSize      float64
	WorkoutID     string
	WorkoutName   string
	Exercises     []ExerciseRecord
}

// Stats aggregates every stored session.
type Stats struct {
	Count         int
	TotalTime     time.Duration
	TotalCalories float64
}

// Gateway is the durable store behind completed sessions.
type Gateway interface {
	// CreateWorkoutSession stores s and returns its ID. An empty s.ID gets a
	// fresh one; an ID that already exists is returned without duplicating.
	CreateWorkoutSession(ctx context.Context, s CompletedWorkoutSession) (string, error)
	FetchSession(ctx context.Context, id string) (*CompletedWorkoutSession, error)
	// FetchAllSessions returns sessions newest first.
	FetchAllSessions(ctx context.Context) ([]CompletedWorkoutSession, error)
	DeleteSession(ctx context.Context, id string) error
	StatsAcrossSessions(ctx context.Context) (Stats, error)
}
