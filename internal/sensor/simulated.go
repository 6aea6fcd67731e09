package sensor

import (
	"context"
	"math/rand/v2"
	"time"
)

// Simulated produces a plausible drifting heart rate for runs without a
// strap.
type Simulated struct {
	Base     float64
	Spread   float64
	Interval time.Duration
	rng      *rand.Rand
}

var _ Source = (*Simulated)(nil)

func NewSimulated(base, spread float64, interval time.Duration, seed uint64) *Simulated {
	if interval <= 0 {
		interval = time.Second
	}
	return &Simulated{
		Base:     base,
		Spread:   spread,
		Interval: interval,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *Simulated) Run(ctx context.Context, emit func(bpm float64, at time.Time)) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	current := s.Base
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			current = s.next(current)
			emit(current, now)
		}
	}
}

// next takes a small random step and stays within Base ± Spread.
func (s *Simulated) next(current float64) float64 {
	step := (s.rng.Float64()*2 - 1) * 3
	v := current + step
	if v > s.Base+s.Spread {
		v = s.Base + s.Spread
	}
	if v < s.Base-s.Spread {
		v = s.Base - s.Spread
	}
	return float64(int(v + 0.5))
}
