package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/artishokq/SmartSwim-sub001/internal/reps"
	"github.com/artishokq/SmartSwim-sub001/internal/session"
	"github.com/artishokq/SmartSwim-sub001/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions [id]",
	Short: "List stored sessions or show one",
	Long: `Without arguments, list the completed sessions in the session database,
newest first, followed by totals. With a session ID, print its exercises and laps.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := store.OpenSQLite(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	if len(args) == 1 {
		s, err := db.FetchSession(ctx, args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no session with ID %s", args[0])
		}
		if err != nil {
			return err
		}
		printSession(*s)
		return nil
	}

	sessions, err := db.FetchAllSessions(ctx)
	if err != nil {
		return err
	}
	stats, err := db.StatsAcrossSessions(ctx)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen, color.Bold)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tWORKOUT\tTIME\tKCAL\tEXERCISES\tID")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0f\t%d\t%s\n",
			s.Date.Local().Format("2006-01-02 15:04"),
			s.WorkoutName,
			reps.FormatClock(s.TotalTime),
			s.TotalCalories,
			len(s.Exercises),
			s.ID,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Println()
	green.Printf("%d sessions, %s in the water, %.0f kcal\n", stats.Count, reps.FormatClock(stats.TotalTime), stats.TotalCalories)
	return nil
}

func printSession(s store.CompletedWorkoutSession) {
	cyan := color.New(color.FgCyan, color.Bold)
	yellow := color.New(color.FgYellow)

	cyan.Printf("%s  %s\n", s.WorkoutName, s.Date.Local().Format("2006-01-02 15:04"))
	fmt.Printf("Time %s, %.0f kcal, %gm pool\n\n", reps.FormatClock(s.TotalTime), s.TotalCalories, s.PoolSize)

	for _, ex := range s.Exercises {
		yellow.Printf("%d. %dx%dm %s\n", ex.OrderIndex+1, ex.Repetitions, ex.Meters, ex.Description)
		fmt.Printf("   avg HR %.0f, %d strokes\n", session.ExerciseAverageHeartRate(ex), session.ExerciseTotalStrokes(ex))
		for _, lap := range ex.Laps {
			fmt.Printf("   lap %d  %s  %.0f bpm  %d strokes\n", lap.Number, reps.FormatClock(lap.Duration), lap.HeartRate, lap.Strokes)
		}
	}
}
