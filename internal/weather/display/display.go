// Package display holds the station's display observers: current
// conditions, running temperature statistics and the pressure forecast.
//
// Every display implements observer.Observer[types.Measurement]. Wrap one in
// a Pull to drive it from a pull subject instead.
package display

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"cloudpico-station/internal/observer"
	"cloudpico-station/internal/weather/types"
)

// ErrNoReadings is returned when a display is asked for derived state before
// it has received any measurement.
var ErrNoReadings = errors.New("display: no readings yet")

type config struct {
	out    io.Writer
	logger *slog.Logger
}

// Option configures a display.
type Option func(*config)

// WithOutput makes the display write its text block to w after every update.
func WithOutput(w io.Writer) Option {
	return func(c *config) { c.out = w }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

func newConfig(opts []Option) config {
	c := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

type displayer interface {
	Display(w io.Writer) error
}

// render writes d to the configured output, if any.
func (c config) render(name string, d displayer) {
	if c.out == nil {
		return
	}
	if err := d.Display(c.out); err != nil {
		c.logger.Warn("display render failed", "display", name, "error", err)
	}
}

// Pull adapts a push display to a pull subject. The source is fixed at
// construction; it is a relation only and never re-pointed.
type Pull struct {
	display observer.Observer[types.Measurement]
	source  observer.Source[types.Measurement]
}

func NewPull(display observer.Observer[types.Measurement], source observer.Source[types.Measurement]) *Pull {
	return &Pull{display: display, source: source}
}

// Update fetches the latest measurement from the source and hands it to the
// wrapped display.
func (p *Pull) Update() error {
	m, err := p.source.Latest()
	if err != nil {
		return fmt.Errorf("pull measurement: %w", err)
	}
	p.display.Update(m)
	return nil
}

// Display exposes the wrapped display.
func (p *Pull) Display() observer.Observer[types.Measurement] {
	return p.display
}
