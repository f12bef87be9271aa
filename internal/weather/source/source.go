// Package source produces Measurements for the station.
package source

import (
	"context"
	"errors"

	"cloudpico-station/internal/weather/types"
)

// ErrExhausted is returned by Static once every measurement has been handed out.
var ErrExhausted = errors.New("source: no more readings")

// Source produces a fresh measurement on every call.
type Source interface {
	Next(ctx context.Context) (types.Measurement, error)
}

// Static replays a fixed list of measurements in order.
type Static struct {
	readings []types.Measurement
	pos      int
}

func NewStatic(readings ...types.Measurement) *Static {
	return &Static{readings: readings}
}

func (s *Static) Next(ctx context.Context) (types.Measurement, error) {
	if err := ctx.Err(); err != nil {
		return types.Measurement{}, err
	}
	if s.pos >= len(s.readings) {
		return types.Measurement{}, ErrExhausted
	}
	m := s.readings[s.pos]
	s.pos++
	return m, nil
}
