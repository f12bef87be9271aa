package display

import (
	"fmt"
	"io"
	"sync"

	"cloudpico-station/internal/weather/types"
)

// CurrentConditions keeps the most recent measurement verbatim.
type CurrentConditions struct {
	cfg  config
	mu   sync.RWMutex
	last types.Measurement
	seen bool
}

func NewCurrentConditions(opts ...Option) *CurrentConditions {
	return &CurrentConditions{cfg: newConfig(opts)}
}

func (c *CurrentConditions) Update(m types.Measurement) {
	c.mu.Lock()
	c.last = m
	c.seen = true
	c.mu.Unlock()

	c.cfg.render("current_conditions", c)
}

// Conditions returns the last measurement and whether one was received.
func (c *CurrentConditions) Conditions() (types.Measurement, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last, c.seen
}

func (c *CurrentConditions) Display(w io.Writer) error {
	m, ok := c.Conditions()
	if !ok {
		return ErrNoReadings
	}

	_, err := fmt.Fprintf(w, "Current conditions\nTemperature: %.1f°C\nHumidity: %.1f%%\nPressure: %.1f\n",
		m.Temperature, m.Humidity, m.Pressure)
	if err != nil {
		return err
	}
	if m.Extended() {
		if _, err := fmt.Fprintf(w, "Top: %.1f°C\nBottom: %.1f°C\n", *m.TempTop, *m.TempBottom); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(w)
	return err
}
