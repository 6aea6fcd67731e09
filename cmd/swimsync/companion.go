package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artishokq/SmartSwim-sub001/internal/companionapi"
	"github.com/artishokq/SmartSwim-sub001/internal/link"
	"github.com/artishokq/SmartSwim-sub001/internal/logging"
	"github.com/artishokq/SmartSwim-sub001/internal/metrics"
	"github.com/artishokq/SmartSwim-sub001/internal/peer"
	"github.com/artishokq/SmartSwim-sub001/internal/store"
	"github.com/artishokq/SmartSwim-sub001/internal/workout"
)

var companionCmd = &cobra.Command{
	Use:   "companion",
	Short: "Run the handheld companion",
	Long: `Run the companion: serve the link the watch dials, push the workout
library and swim parameters, collect telemetry and store completed sessions.
Send SIGHUP to reload the workout library file.`,
	RunE: runCompanion,
}

func init() {
	flags := companionCmd.Flags()
	flags.String("listen", "0.0.0.0", "Listen address")
	flags.Int("port", 8765, "Listen port")
	flags.String("workouts", "", "Workout library YAML file")
	rootCmd.AddCommand(companionCmd)
}

func runCompanion(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting swimsync companion")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.OpenSQLite(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close session store")
		}
	}()
	sessions, err := store.NewCachedGateway(db, cfg.Storage.CacheSize)
	if err != nil {
		return fmt.Errorf("failed to create session cache: %w", err)
	}
	logger.Info().Str("path", cfg.Storage.Path).Msg("Session store opened")

	library := workout.NewLibrary()
	reloadLibrary(library, cfg.Workouts.LibraryPath, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	transport := link.NewWSTransport(logger, cfg.Link.WriteTimeout)
	deviceLink := link.New(transport, logger, link.Options{
		Retry:   retryPolicy(cfg.Link),
		Metrics: metrics.NewLink(registry),
	})
	deviceLink.Start()

	companion := peer.NewCompanion(deviceLink, library, sessions, logger, peer.CompanionOptions{
		ReplyTimeout: cfg.Link.ReplyTimeout,
	})
	companion.Start()

	api := companionapi.New(sessions, library, companion, logger, companionapi.Mounts{
		Link:    transport,
		Metrics: metrics.Handler(registry),
	})
	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.HTTP.ListenAddress, strconv.Itoa(cfg.HTTP.Port)),
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.HTTP.Advertise {
		advert, err := link.Advertise(cfg.Link.ServiceName, cfg.HTTP.Port)
		if err != nil {
			logger.Warn().Err(err).Msg("mDNS advertisement unavailable, watch needs --peer")
		} else {
			defer advert.Shutdown()
			logger.Info().Str("service", cfg.Link.ServiceName).Msg("Advertising on the local network")
		}
	}

	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)
	defer signal.Stop(hangup)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("Companion listening")
		serveErr <- server.ListenAndServe()
	}()

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-hangup:
			reloadLibrary(library, cfg.Workouts.LibraryPath, logger)
		case err := <-serveErr:
			if !errors.Is(err, http.ErrServerClosed) {
				runErr = fmt.Errorf("http server: %w", err)
			}
			break loop
		}
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}
	companion.Stop()
	deviceLink.Stop()
	if err := transport.Close(); err != nil {
		logger.Debug().Err(err).Msg("closing link transport")
	}
	return runErr
}

// reloadLibrary replaces the library with the file's contents. A missing file
// leaves an empty library; a broken one keeps the current list.
func reloadLibrary(library *workout.Library, path string, logger zerolog.Logger) {
	workouts, err := workout.LoadLibraryFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn().Str("path", path).Msg("No workout library file, starting empty")
		return
	}
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("Failed to load workout library")
		return
	}
	changed := library.Replace(workouts)
	logger.Info().
		Str("path", path).
		Int("workouts", len(workouts)).
		Bool("changed", changed).
		Msg("Workout library loaded")
}
