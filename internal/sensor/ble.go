package sensor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"tinygo.org/x/bluetooth"
)

// BLEHeartRate reads a Bluetooth heart-rate strap through the Heart Rate
// Service. With an empty Address the first strap found is used.
type BLEHeartRate struct {
	adapter     *bluetooth.Adapter
	address     string
	scanTimeout time.Duration
	logger      zerolog.Logger
}

var _ Source = (*BLEHeartRate)(nil)

func NewBLEHeartRate(adapter *bluetooth.Adapter, address string, scanTimeout time.Duration, logger zerolog.Logger) *BLEHeartRate {
	if adapter == nil {
		panic("BLEHeartRate: adapter cannot be nil")
	}
	if scanTimeout <= 0 {
		scanTimeout = 30 * time.Second
	}
	return &BLEHeartRate{
		adapter:     adapter,
		address:     strings.ToUpper(address),
		scanTimeout: scanTimeout,
		logger:      logger.With().Str("component", "BLEHeartRate").Logger(),
	}
}

// Run connects to a strap, streams its readings to emit and disconnects when
// ctx ends.
func (b *BLEHeartRate) Run(ctx context.Context, emit func(bpm float64, at time.Time)) error {
	if err := b.adapter.Enable(); err != nil {
		return fmt.Errorf("enabling bluetooth adapter: %w", err)
	}

	found, err := b.scan(ctx)
	if err != nil {
		return err
	}
	b.logger.Info().Str("address", found.Address.String()).Str("name", found.LocalName()).Msg("connecting to heart rate strap")

	device, err := b.adapter.Connect(found.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", found.Address.String(), err)
	}
	defer func() {
		if err := device.Disconnect(); err != nil {
			b.logger.Warn().Err(err).Msg("disconnect failed")
		}
	}()

	services, err := device.DiscoverServices([]bluetooth.UUID{bluetooth.ServiceUUIDHeartRate})
	if err != nil || len(services) == 0 {
		return fmt.Errorf("discovering heart rate service: %w", errOrMissing(err, "service"))
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{bluetooth.CharacteristicUUIDHeartRateMeasurement})
	if err != nil || len(chars) == 0 {
		return fmt.Errorf("discovering heart rate measurement: %w", errOrMissing(err, "characteristic"))
	}

	err = chars[0].EnableNotifications(func(buf []byte) {
		m, err := ParseHeartRateMeasurement(buf)
		if err != nil {
			b.logger.Debug().Err(err).Msg("dropping heart rate notification")
			return
		}
		if m.ContactSupported && !m.ContactDetected {
			return
		}
		emit(m.BPM, time.Now())
	})
	if err != nil {
		return fmt.Errorf("enabling notifications: %w", err)
	}
	b.logger.Info().Msg("heart rate notifications enabled")

	<-ctx.Done()
	return nil
}

func (b *BLEHeartRate) scan(ctx context.Context) (bluetooth.ScanResult, error) {
	scanCtx, cancel := context.WithTimeout(ctx, b.scanTimeout)
	defer cancel()

	results := make(chan bluetooth.ScanResult, 1)
	scanErr := make(chan error, 1)
	go func() {
		scanErr <- b.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !b.matches(result) {
				return
			}
			select {
			case results <- result:
				adapter.StopScan()
			default:
			}
		})
	}()

	select {
	case result := <-results:
		<-scanErr
		return result, nil
	case err := <-scanErr:
		if err == nil {
			err = errors.New("scan ended")
		}
		return bluetooth.ScanResult{}, fmt.Errorf("scanning for heart rate strap: %w", err)
	case <-scanCtx.Done():
		if err := b.adapter.StopScan(); err != nil {
			b.logger.Debug().Err(err).Msg("stop scan failed")
		}
		<-scanErr
		return bluetooth.ScanResult{}, fmt.Errorf("no heart rate strap found: %w", scanCtx.Err())
	}
}

func (b *BLEHeartRate) matches(result bluetooth.ScanResult) bool {
	if b.address != "" {
		return strings.ToUpper(result.Address.String()) == b.address
	}
	for _, uuid := range result.ServiceUUIDs() {
		if uuid == bluetooth.ServiceUUIDHeartRate {
			return true
		}
	}
	return false
}

func errOrMissing(err error, what string) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("%s not present", what)
}
