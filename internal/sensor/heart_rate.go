// Package sensor provides heart-rate sources for the watch.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrTooShort = errors.New("heart rate measurement too short")

// Source streams heart-rate readings until ctx ends.
type Source interface {
	Run(ctx context.Context, emit func(bpm float64, at time.Time)) error
}

// Measurement is one decoded Heart Rate Measurement (0x2A37) notification.
// See: https://www.bluetooth.com/specifications/specs/heart-rate-service-1-0/
type Measurement struct {
	BPM              float64
	ContactSupported bool
	ContactDetected  bool
	HasEnergy        bool
	EnergyKJ         int
	RRIntervals      []time.Duration
}

// ParseHeartRateMeasurement decodes the characteristic value. Fields are
// laid out after the flags byte in a fixed order: heart rate, energy
// expended, then any number of RR intervals.
func ParseHeartRateMeasurement(buf []byte) (Measurement, error) {
	if len(buf) < 2 {
		return Measurement{}, fmt.Errorf("%w: %d bytes", ErrTooShort, len(buf))
	}

	flags := buf[0]
	// Bit 0: 0 = UINT8, 1 = UINT16
	isUint16 := flags&0x01 != 0
	// Bit 2: contact supported, bit 1: contact detected
	contactSupported := flags&0x04 != 0
	hasEnergy := flags&0x08 != 0
	hasRR := flags&0x10 != 0

	m := Measurement{
		ContactSupported: contactSupported,
		ContactDetected:  contactSupported && flags&0x02 != 0,
		HasEnergy:        hasEnergy,
	}

	var offset int
	if isUint16 {
		if len(buf) < 3 {
			return Measurement{}, fmt.Errorf("%w: UINT16 heart rate in %d bytes", ErrTooShort, len(buf))
		}
		m.BPM = float64(uint16(buf[1]) | uint16(buf[2])<<8)
		offset = 3
	} else {
		m.BPM = float64(buf[1])
		offset = 2
	}

	if hasEnergy {
		if offset+2 > len(buf) {
			return Measurement{}, fmt.Errorf("%w: energy expended at offset %d", ErrTooShort, offset)
		}
		m.EnergyKJ = int(uint16(buf[offset]) | uint16(buf[offset+1])<<8)
		offset += 2
	}

	if hasRR {
		// RR intervals are in units of 1/1024 s.
		for ; offset+2 <= len(buf); offset += 2 {
			raw := uint16(buf[offset]) | uint16(buf[offset+1])<<8
			m.RRIntervals = append(m.RRIntervals, time.Duration(raw)*time.Second/1024)
		}
	}
	return m, nil
}
