package source

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"cloudpico-station/internal/weather/types"
)

// Ranges of the simulated readings: base + jitter/10 with jitter drawn
// uniformly from [-Jitter, Jitter].
const (
	TemperatureBase   = 25.0
	TemperatureJitter = 50
	HumidityBase      = 60.0
	HumidityJitter    = 100
	PressureBase      = 25.0
	PressureJitter    = 100
)

// Random simulates a weather station. Temperature falls in [20, 30],
// humidity in [50, 70] and pressure in [15, 35].
type Random struct {
	mu       sync.Mutex
	rng      *rand.Rand
	extended bool
	now      func() time.Time
}

type RandomOption func(*Random)

// WithRand replaces the process-seeded generator, for reproducible runs.
func WithRand(rng *rand.Rand) RandomOption {
	return func(r *Random) { r.rng = rng }
}

// WithExtended also fills the top and bottom probe readings.
func WithExtended(enabled bool) RandomOption {
	return func(r *Random) { r.extended = enabled }
}

func WithClock(now func() time.Time) RandomOption {
	return func(r *Random) { r.now = now }
}

func NewRandom(opts ...RandomOption) *Random {
	r := &Random{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.rng == nil {
		seed := uint64(time.Now().UnixNano())
		r.rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return r
}

func (r *Random) Next(ctx context.Context) (types.Measurement, error) {
	if err := ctx.Err(); err != nil {
		return types.Measurement{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m := types.Measurement{
		Time:        r.now().UTC(),
		Temperature: r.around(TemperatureBase, TemperatureJitter),
		Humidity:    r.around(HumidityBase, HumidityJitter),
		Pressure:    r.around(PressureBase, PressureJitter),
	}
	if r.extended {
		// Top reads at or above the core probe, bottom at or below.
		top := m.Temperature + float64(r.rng.IntN(11))/10.0
		bottom := m.Temperature - float64(r.rng.IntN(11))/10.0
		m.TempTop = &top
		m.TempBottom = &bottom
	}
	return m, nil
}

func (r *Random) around(base float64, jitter int) float64 {
	n := r.rng.IntN(2*jitter+1) - jitter
	return base + float64(n)/10.0
}
