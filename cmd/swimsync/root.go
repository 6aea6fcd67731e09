package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artishokq/SmartSwim-sub001/internal/config"
	"github.com/artishokq/SmartSwim-sub001/internal/link"
)

var (
	version    = "dev"
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "swimsync",
	Short: "swimsync - interval swim sessions on a watch, synced with a companion",
	Long: `swimsync runs a structured pool workout on a watch and keeps it in sync
with a handheld companion that owns the workout library, remote-controls the
watch and stores completed sessions.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-file", "", "Rotating log file")
	flags.String("db", "", "Session database path")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func retryPolicy(cfg config.LinkConfig) link.RetryPolicy {
	return link.RetryPolicy{
		MaxAttempts: cfg.RetryMaxAttempts,
		Backoff:     cfg.RetryBackoff,
		AckTimeout:  cfg.ReplyTimeout,
	}
}
