// Package weather ties a reading source to the observer subjects that fan
// measurements out to the displays.
package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloudpico-station/internal/observer"
	"cloudpico-station/internal/weather/source"
	"cloudpico-station/internal/weather/types"
)

// Station owns the current measurement and both observer registries. Push
// observers receive the measurement directly; pullers get an empty
// notification and read it back through SensorData.
type Station struct {
	id     string
	source source.Source
	push   *observer.Subject[types.Measurement]
	pull   *observer.PullSubject[types.Measurement]
	logger *slog.Logger
}

func NewStation(id string, src source.Source, logger *slog.Logger) *Station {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("station_id", id)
	validate := observer.WithValidator(types.Measurement.Validate)
	return &Station{
		id:     id,
		source: src,
		push:   observer.NewSubject(observer.WithLogger[types.Measurement](logger), validate),
		pull:   observer.NewPullSubject(observer.WithLogger[types.Measurement](logger), validate),
		logger: logger,
	}
}

func (s *Station) ID() string {
	return s.id
}

func (s *Station) RegisterObserver(o observer.Observer[types.Measurement]) error {
	return s.push.Register(o)
}

func (s *Station) RemoveObserver(o observer.Observer[types.Measurement]) {
	s.push.Remove(o)
}

func (s *Station) RegisterPuller(p observer.Puller) error {
	return s.pull.Register(p)
}

func (s *Station) RemovePuller(p observer.Puller) {
	s.pull.Remove(p)
}

// Observers returns the number of registered push and pull observers.
func (s *Station) Observers() int {
	return s.push.Len() + s.pull.Len()
}

// Latest implements observer.Source; pull observers hold the station through it.
// The push subject stores before any observer is notified, so it is the
// station's record of the current measurement.
func (s *Station) Latest() (types.Measurement, error) {
	return s.push.Latest()
}

// SensorData returns the current measurement, or observer.ErrUnseeded before
// the first reading.
func (s *Station) SensorData() (types.Measurement, error) {
	return s.Latest()
}

// Record stores m and notifies push observers, then pullers.
func (s *Station) Record(m types.Measurement) error {
	if err := s.push.Record(m); err != nil {
		return err
	}
	if err := s.pull.Record(m); err != nil {
		return fmt.Errorf("notify pullers: %w", err)
	}
	s.logger.Debug("measurement recorded",
		"temperature", m.Temperature,
		"humidity", m.Humidity,
		"pressure", m.Pressure,
	)
	return nil
}

// ReadMeasurements pulls a fresh measurement from the source and records it.
func (s *Station) ReadMeasurements(ctx context.Context) error {
	if s.source == nil {
		return errors.New("station has no reading source")
	}
	m, err := s.source.Next(ctx)
	if err != nil {
		return fmt.Errorf("read measurements: %w", err)
	}
	return s.Record(m)
}

// Notify re-delivers the current measurement to every observer.
func (s *Station) Notify() error {
	if err := s.push.Notify(); err != nil {
		return err
	}
	return s.pull.Notify()
}
