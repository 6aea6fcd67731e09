package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rivo/tview"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"tinygo.org/x/bluetooth"

	"github.com/artishokq/SmartSwim-sub001/internal/clock"
	"github.com/artishokq/SmartSwim-sub001/internal/config"
	"github.com/artishokq/SmartSwim-sub001/internal/go_func_utils"
	"github.com/artishokq/SmartSwim-sub001/internal/link"
	"github.com/artishokq/SmartSwim-sub001/internal/logging"
	"github.com/artishokq/SmartSwim-sub001/internal/peer"
	"github.com/artishokq/SmartSwim-sub001/internal/sensor"
	"github.com/artishokq/SmartSwim-sub001/internal/session"
	"github.com/artishokq/SmartSwim-sub001/internal/store"
	"github.com/artishokq/SmartSwim-sub001/internal/watchui"
	"github.com/artishokq/SmartSwim-sub001/internal/workout"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the watch",
	Long: `Run the watch: dial the companion, run swim sessions on a terminal
dashboard, read a heart-rate strap and save completed sessions locally before
forwarding them.`,
	RunE: runWatch,
}

func init() {
	flags := watchCmd.Flags()
	flags.String("peer", "", "Companion link URL, e.g. ws://phone.local:8765/link")
	flags.Bool("discover", true, "Find the companion with mDNS when --peer is not set")
	flags.String("sensor", "simulated", "Heart rate source: ble, simulated or none")
	flags.String("sensor-addr", "", "Bluetooth address of the heart rate strap")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	app := tview.NewApplication()
	logPanel := watchui.NewLogPanel()
	logger, closer, err := logging.New(cfg.Logging, logPanel)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting swimsync watch")

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

	params := peer.NewParameterCache(cfg.Parameters.CachePath, logger)
	library := workout.NewLibrary()

	transport := link.NewWSTransport(logger, cfg.Link.WriteTimeout)
	deviceLink := link.New(transport, logger, link.Options{Retry: retryPolicy(cfg.Link)})
	controller := peer.NewController(deviceLink, library, params, logger)

	machine := session.NewMachine(clock.Real{}, session.MachineOptions{
		Countdown:    cfg.Session.Countdown,
		BodyWeightKg: cfg.Session.BodyWeightKg,
		Gateway:      db,
	})
	runner := session.NewRunner(machine, logger, session.RunnerOptions{
		CountdownTick:  cfg.Session.CountdownTick,
		RepetitionTick: cfg.Session.RepetitionTick,
		Gateway:        db,
		Emitter:        controller,
	})

	deviceLink.Start()
	controller.Start()
	runner.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	go_func_utils.SafeGo(logger, func() {
		defer wg.Done()
		transport.DialLoop(ctx, companionResolver(cfg.Link, logger), cfg.Link.ReconnectInterval)
	})

	wg.Add(1)
	go_func_utils.SafeGo(logger, func() {
		defer wg.Done()
		followCompanion(ctx, controller, library, runner, logger)
	})

	source, err := newHeartRateSource(cfg.Sensor, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Heart rate source disabled")
	}
	if source != nil {
		wg.Add(1)
		go_func_utils.SafeGo(logger, func() {
			defer wg.Done()
			err := source.Run(ctx, func(bpm float64, at time.Time) {
				runner.IngestHeartRate(bpm, at)
			})
			if err != nil {
				logger.Error().Err(err).Msg("Heart rate source stopped")
			}
		})
	}

	dashboard := watchui.NewDashboard(app, runner, logPanel, logger, stop)
	wg.Add(1)
	go_func_utils.SafeGo(logger, func() {
		defer wg.Done()
		<-ctx.Done()
		dashboard.Stop()
	})

	runErr := dashboard.Run()
	stop()

	logger.Info().Msg("Shutting down")
	runner.Shutdown()
	controller.Stop()
	deviceLink.Stop()
	if err := transport.Close(); err != nil {
		logger.Debug().Err(err).Msg("closing link transport")
	}
	wg.Wait()
	return runErr
}

// followCompanion applies remote commands and keeps the newest workout loaded
// while no session is running, so the swimmer can start from the watch.
func followCompanion(ctx context.Context, controller *peer.Controller, library *workout.Library, runner *session.Runner, logger zerolog.Logger) {
	commands := make(chan link.Command, 4)
	unregisterCommands := controller.ListenToCommands(commands)
	defer unregisterCommands()

	changes := make(chan []workout.Workout, 1)
	unregisterChanges := library.ListenToChanges(changes)
	defer unregisterChanges()

	load := func() error {
		return runner.Load(controller.WorkoutForStart(""))
	}
	if err := load(); err != nil {
		logger.Debug().Err(err).Msg("no workout preloaded")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			if runner.Snapshot().State != session.StateNotStarted {
				continue
			}
			if err := load(); err != nil && !errors.Is(err, session.ErrSessionInProgress) {
				logger.Warn().Err(err).Msg("workout not loaded")
			}
		case cmd := <-commands:
			switch cmd {
			case link.CommandStart:
				if err := load(); err != nil {
					logger.Warn().Err(err).Msg("remote start ignored")
					continue
				}
				if runner.StartSession() {
					logger.Info().Msg("session started by companion")
				}
			case link.CommandStop:
				if runner.StopSession() {
					logger.Info().Msg("session stopped by companion")
				}
			}
		}
	}
}

// companionResolver returns the configured peer URL, or looks the companion up
// with mDNS on every attempt.
func companionResolver(cfg config.LinkConfig, logger zerolog.Logger) func(ctx context.Context) (string, error) {
	if cfg.PeerURL != "" {
		return func(context.Context) (string, error) { return cfg.PeerURL, nil }
	}
	if !cfg.Discover {
		logger.Warn().Msg("No peer URL and discovery disabled, the watch stays offline")
		return func(context.Context) (string, error) { return "", link.ErrUnreachable }
	}
	return func(ctx context.Context) (string, error) {
		return link.Discover(ctx, cfg.ServiceName, cfg.DiscoverTimeout)
	}
}

func newHeartRateSource(cfg config.SensorConfig, logger zerolog.Logger) (sensor.Source, error) {
	switch cfg.Source {
	case "", "none":
		return nil, nil
	case "simulated":
		return sensor.NewSimulated(135, 15, time.Second, uint64(time.Now().UnixNano())), nil
	case "ble":
		return sensor.NewBLEHeartRate(bluetooth.DefaultAdapter, cfg.Address, 30*time.Second, logger), nil
	default:
		return nil, fmt.Errorf("unknown heart rate source %q", cfg.Source)
	}
}
