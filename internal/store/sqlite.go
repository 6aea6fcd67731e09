package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	date_ns        INTEGER NOT NULL,
	total_time_ns  INTEGER NOT NULL,
	total_calories REAL NOT NULL,
	pool_size      REAL NOT NULL,
	workout_id     TEXT NOT NULL,
	workout_name   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_date ON sessions (date_ns);

CREATE TABLE IF NOT EXISTS exercises (
	session_id       TEXT NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
	position         INTEGER NOT NULL,
	exercise_id      TEXT NOT NULL,
	order_index      INTEGER NOT NULL,
	description      TEXT NOT NULL,
	style            INTEGER NOT NULL,
	kind             INTEGER NOT NULL,
	has_interval     INTEGER NOT NULL,
	interval_minutes INTEGER NOT NULL,
	interval_seconds INTEGER NOT NULL,
	meters           INTEGER NOT NULL,
	repetitions      INTEGER NOT NULL,
	started_ns       INTEGER NOT NULL,
	ended_ns         INTEGER NOT NULL,
	PRIMARY KEY (session_id, position)
);

CREATE TABLE IF NOT EXISTS laps (
	session_id  TEXT NOT NULL,
	position    INTEGER NOT NULL,
	number      INTEGER NOT NULL,
	distance    REAL NOT NULL,
	duration_ns INTEGER NOT NULL,
	heart_rate  REAL NOT NULL,
	strokes     INTEGER NOT NULL,
	at_ns       INTEGER NOT NULL,
	PRIMARY KEY (session_id, position, number)
);

CREATE TABLE IF NOT EXISTS heart_rates (
	session_id TEXT NOT NULL,
	position   INTEGER NOT NULL,
	seq        INTEGER NOT NULL,
	value      REAL NOT NULL,
	at_ns      INTEGER NOT NULL,
	PRIMARY KEY (session_id, position, seq)
);
`

// SQLite is a Gateway backed by a single SQLite file.
type SQLite struct {
	db *sql.DB
}

var _ Gateway = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening session db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating session tables: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) CreateWorkoutSession(ctx context.Context, session CompletedWorkoutSession) (string, error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning session insert: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (id, date_ns, total_time_ns, total_calories, pool_size, workout_id, workout_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.Date.UnixNano(), int64(session.TotalTime), session.TotalCalories,
		session.PoolSize, session.WorkoutID, session.WorkoutName,
	)
	if err != nil {
		return "", fmt.Errorf("inserting session: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("inserting session: %w", err)
	}
	if inserted == 0 {
		return session.ID, nil
	}

	for pos, ex := range session.Exercises {
		if err := insertExercise(ctx, tx, session.ID, pos, ex); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing session: %w", err)
	}
	return session.ID, nil
}

func insertExercise(ctx context.Context, tx *sql.Tx, sessionID string, pos int, ex ExerciseRecord) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO exercises (session_id, position, exercise_id, order_index, description, style, kind,
		 has_interval, interval_minutes, interval_seconds, meters, repetitions, started_ns, ended_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, pos, ex.ExerciseID, ex.OrderIndex, ex.Description, ex.Style, ex.Kind,
		ex.HasInterval, ex.IntervalMinutes, ex.IntervalSeconds, ex.Meters, ex.Repetitions,
		ex.StartedAt.UnixNano(), ex.EndedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("inserting exercise %d: %w", pos, err)
	}

	for _, lap := range ex.Laps {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO laps (session_id, position, number, distance, duration_ns, heart_rate, strokes, at_ns)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sessionID, pos, lap.Number, lap.Distance, int64(lap.Duration), lap.HeartRate, lap.Strokes, lap.At.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("inserting lap %d of exercise %d: %w", lap.Number, pos, err)
		}
	}

	for seq, hr := range ex.HeartRates {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO heart_rates (session_id, position, seq, value, at_ns) VALUES (?, ?, ?, ?, ?)`,
			sessionID, pos, seq, hr.Value, hr.At.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("inserting heart rate of exercise %d: %w", pos, err)
		}
	}
	return nil
}

func (s *SQLite) FetchSession(ctx context.Context, id string) (*CompletedWorkoutSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, date_ns, total_time_ns, total_calories, pool_size, workout_id, workout_name
		 FROM sessions WHERE id = ?`, id)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching session %s: %w", id, err)
	}

	if err := s.loadExercises(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SQLite) FetchAllSessions(ctx context.Context) ([]CompletedWorkoutSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, date_ns, total_time_ns, total_calories, pool_size, workout_id, workout_name
		 FROM sessions ORDER BY date_ns DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	var sessions []CompletedWorkoutSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	rows.Close()

	for i := range sessions {
		if err := s.loadExercises(ctx, &sessions[i]); err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

func (s *SQLite) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}

	for _, table := range []string{"exercises", "laps", "heart_rates"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("deleting %s of session %s: %w", table, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}

func (s *SQLite) StatsAcrossSessions(ctx context.Context) (Stats, error) {
	var stats Stats
	var totalNS int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_time_ns), 0), COALESCE(SUM(total_calories), 0) FROM sessions`,
	).Scan(&stats.Count, &totalNS, &stats.TotalCalories)
	if err != nil {
		return Stats{}, fmt.Errorf("computing stats: %w", err)
	}
	stats.TotalTime = time.Duration(totalNS)
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*CompletedWorkoutSession, error) {
	var s CompletedWorkoutSession
	var dateNS, totalNS int64
	if err := row.Scan(&s.ID, &dateNS, &totalNS, &s.TotalCalories, &s.PoolSize, &s.WorkoutID, &s.WorkoutName); err != nil {
		return nil, err
	}
	s.Date = fromNanos(dateNS)
	s.TotalTime = time.Duration(totalNS)
	return &s, nil
}

func (s *SQLite) loadExercises(ctx context.Context, session *CompletedWorkoutSession) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT exercise_id, order_index, description, style, kind, has_interval, interval_minutes,
		 interval_seconds, meters, repetitions, started_ns, ended_ns
		 FROM exercises WHERE session_id = ? ORDER BY position`, session.ID)
	if err != nil {
		return fmt.Errorf("loading exercises of %s: %w", session.ID, err)
	}

	var exercises []ExerciseRecord
	for rows.Next() {
		var ex ExerciseRecord
		var startedNS, endedNS int64
		if err := rows.Scan(&ex.ExerciseID, &ex.OrderIndex, &ex.Description, &ex.Style, &ex.Kind,
			&ex.HasInterval, &ex.IntervalMinutes, &ex.IntervalSeconds, &ex.Meters, &ex.Repetitions,
			&startedNS, &endedNS); err != nil {
			rows.Close()
			return fmt.Errorf("scanning exercise of %s: %w", session.ID, err)
		}
		ex.StartedAt = fromNanos(startedNS)
		ex.EndedAt = fromNanos(endedNS)
		exercises = append(exercises, ex)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("loading exercises of %s: %w", session.ID, err)
	}
	rows.Close()

	for pos := range exercises {
		laps, err := s.loadLaps(ctx, session.ID, pos)
		if err != nil {
			return err
		}
		exercises[pos].Laps = laps

		hrs, err := s.loadHeartRates(ctx, session.ID, pos)
		if err != nil {
			return err
		}
		exercises[pos].HeartRates = hrs
	}

	session.Exercises = exercises
	return nil
}

func (s *SQLite) loadLaps(ctx context.Context, sessionID string, pos int) ([]LapRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT number, distance, duration_ns, heart_rate, strokes, at_ns
		 FROM laps WHERE session_id = ? AND position = ? ORDER BY number`, sessionID, pos)
	if err != nil {
		return nil, fmt.Errorf("loading laps of %s: %w", sessionID, err)
	}
	defer rows.Close()

	var laps []LapRecord
	for rows.Next() {
		var lap LapRecord
		var durationNS, atNS int64
		if err := rows.Scan(&lap.Number, &lap.Distance, &durationNS, &lap.HeartRate, &lap.Strokes, &atNS); err != nil {
			return nil, fmt.Errorf("scanning lap of %s: %w", sessionID, err)
		}
		lap.Duration = time.Duration(durationNS)
		lap.At = fromNanos(atNS)
		laps = append(laps, lap)
	}
	return laps, rows.Err()
}

func (s *SQLite) loadHeartRates(ctx context.Context, sessionID string, pos int) ([]HeartRateReading, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT value, at_ns FROM heart_rates WHERE session_id = ? AND position = ? ORDER BY seq`, sessionID, pos)
	if err != nil {
		return nil, fmt.Errorf("loading heart rates of %s: %w", sessionID, err)
	}
	defer rows.Close()

	var readings []HeartRateReading
	for rows.Next() {
		var r HeartRateReading
		var atNS int64
		if err := rows.Scan(&r.Value, &atNS); err != nil {
			return nil, fmt.Errorf("scanning heart rate of %s: %w", sessionID, err)
		}
		r.At = fromNanos(atNS)
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

func fromNanos(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
