package display

import (
	"fmt"
	"io"
	"sync"

	"cloudpico-station/internal/weather/types"
)

// BaselinePressure is the reference the first reading is compared against.
const BaselinePressure = 29.92

// Trend is the forecast derived from the last two pressure readings.
type Trend string

const (
	Improving   Trend = "improving"
	Unchanged   Trend = "unchanged"
	CoolingRain Trend = "cooling/rain"
)

// Message is the human readable forecast line.
func (t Trend) Message() string {
	switch t {
	case Improving:
		return "Improving weather on the way!"
	case Unchanged:
		return "More of the same."
	case CoolingRain:
		return "Watch out for cooler, rainy weather."
	default:
		return string(t)
	}
}

// Forecast compares each pressure reading with the one before it.
type Forecast struct {
	cfg      config
	mu       sync.RWMutex
	current  float64
	previous float64
	count    int
}

func NewForecast(opts ...Option) *Forecast {
	return &Forecast{cfg: newConfig(opts), current: BaselinePressure}
}

func (f *Forecast) Update(m types.Measurement) {
	f.mu.Lock()
	f.previous = f.current
	f.current = m.Pressure
	f.count++
	f.mu.Unlock()

	f.cfg.render("forecast", f)
}

// Trend classifies the latest change in pressure. It returns ErrNoReadings
// before the first update.
func (f *Forecast) Trend() (Trend, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.count == 0 {
		return "", ErrNoReadings
	}
	return classify(f.previous, f.current), nil
}

// Pressures returns the previous and current pressure.
func (f *Forecast) Pressures() (previous, current float64) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.previous, f.current
}

func (f *Forecast) Display(w io.Writer) error {
	trend, err := f.Trend()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "Forecast\n%s\n\n", trend.Message())
	return err
}

func classify(previous, current float64) Trend {
	switch {
	case current > previous:
		return Improving
	case current == previous:
		return Unchanged
	default:
		return CoolingRain
	}
}
