package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 4, 12, 7, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *SQLite {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleSession(id string, date time.Time, total time.Duration, calories float64) CompletedWorkoutSession {
	return CompletedWorkoutSession{
		ID:            id,
		Date:          date,
		TotalTime:     total,
		TotalCalories: calories,
		PoolSize:      25,
		WorkoutID:     "w-1",
		WorkoutName:   "Threshold",
		Exercises: []ExerciseRecord{
			{
				ExerciseID:      "e-0",
				OrderIndex:      0,
				Description:     "Main set",
				Style:           0,
				Kind:            1,
				HasInterval:     true,
				IntervalMinutes: 1,
				IntervalSeconds: 30,
				Meters:          100,
				Repetitions:     2,
				StartedAt:       date,
				EndedAt:         date.Add(3 * time.Minute),
				Laps: []LapRecord{
					{Number: 1, Distance: 100, Duration: 85 * time.Second, HeartRate: 142, Strokes: 64, At: date.Add(85 * time.Second)},
					{Number: 2, Distance: 100, Duration: 88 * time.Second, HeartRate: 151, Strokes: 66, At: date.Add(3 * time.Minute)},
				},
				HeartRates: []HeartRateReading{
					{Value: 140, At: date.Add(10 * time.Second)},
					{Value: 150, At: date.Add(100 * time.Second)},
				},
			},
		},
	}
}

func TestSQLite_CreateAndFetch(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	in := sampleSession("s-1", day, 3*time.Minute, 45.5)
	id, err := db.CreateWorkoutSession(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "s-1", id)

	got, err := db.FetchSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, in, *got)
}

func TestSQLite_CreateGeneratesID(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	id, err := db.CreateWorkoutSession(ctx, sampleSession("", day, time.Minute, 10))
	require.NoError(t, err)
	assert.Len(t, id, 36)

	_, err = db.FetchSession(ctx, id)
	assert.NoError(t, err)
}

func TestSQLite_CreateIsIdempotentByID(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	s := sampleSession("s-1", day, time.Minute, 10)
	_, err := db.CreateWorkoutSession(ctx, s)
	require.NoError(t, err)
	id, err := db.CreateWorkoutSession(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, "s-1", id)

	stats, err := db.StatsAcrossSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)

	got, err := db.FetchSession(ctx, "s-1")
	require.NoError(t, err)
	assert.Len(t, got.Exercises[0].Laps, 2)
}

func TestSQLite_FetchAllNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for i, id := range []string{"old", "new", "mid"} {
		offsets := []time.Duration{0, 48 * time.Hour, 24 * time.Hour}
		_, err := db.CreateWorkoutSession(ctx, sampleSession(id, day.Add(offsets[i]), time.Minute, 1))
		require.NoError(t, err)
	}

	all, err := db.FetchAllSessions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Len(t, all[1].Exercises, 1)
}

func TestSQLite_DeleteSession(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.CreateWorkoutSession(ctx, sampleSession("s-1", day, time.Minute, 1))
	require.NoError(t, err)

	require.NoError(t, db.DeleteSession(ctx, "s-1"))

	_, err = db.FetchSession(ctx, "s-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.DeleteSession(ctx, "s-1"), ErrNotFound)

	// Re-creating with the same ID after deletion stores fresh children only.
	_, err = db.CreateWorkoutSession(ctx, sampleSession("s-1", day, time.Minute, 1))
	require.NoError(t, err)
	got, err := db.FetchSession(ctx, "s-1")
	require.NoError(t, err)
	assert.Len(t, got.Exercises[0].Laps, 2)
}

func TestSQLite_Stats(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	empty, err := db.StatsAcrossSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, empty)

	_, err = db.CreateWorkoutSession(ctx, sampleSession("a", day, 30*time.Minute, 250))
	require.NoError(t, err)
	_, err = db.CreateWorkoutSession(ctx, sampleSession("b", day.Add(time.Hour), 45*time.Minute, 400.5))
	require.NoError(t, err)

	stats, err := db.StatsAcrossSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 75*time.Minute, stats.TotalTime)
	assert.InDelta(t, 650.5, stats.TotalCalories, 1e-9)
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "sessions.db")

	db, err := OpenSQLite(path)
	require.NoError(t, err)
	_, err = db.CreateWorkoutSession(ctx, sampleSession("s-1", day, time.Minute, 1))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.FetchSession(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "Threshold", got.WorkoutName)
}
