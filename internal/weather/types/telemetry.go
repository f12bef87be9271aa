package types

import (
	"fmt"
	"time"
)

// Telemetry is the JSON message exchanged with the MQTT broker.
type Telemetry struct {
	StationID   string    `json:"station_id"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature *float64  `json:"temperature_c,omitempty"`
	Humidity    *float64  `json:"humidity_pct,omitempty"`
	Pressure    *float64  `json:"pressure_hpa,omitempty"`
	TempTop     *float64  `json:"temp_top_c,omitempty"`
	TempBottom  *float64  `json:"temp_bottom_c,omitempty"`
	Sequence    *int      `json:"sequence,omitempty"`
}

// FromMeasurement builds the telemetry message for m.
func FromMeasurement(stationID string, m Measurement, sequence int) Telemetry {
	temperature, humidity, pressure := m.Temperature, m.Humidity, m.Pressure
	ts := m.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return Telemetry{
		StationID:   stationID,
		Timestamp:   ts,
		Temperature: &temperature,
		Humidity:    &humidity,
		Pressure:    &pressure,
		TempTop:     m.TempTop,
		TempBottom:  m.TempBottom,
		Sequence:    &sequence,
	}
}

// Validate checks the fields a station needs to turn t into a Measurement.
func (t Telemetry) Validate() error {
	if t.StationID == "" {
		return fmt.Errorf("station_id is required")
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	if t.Temperature == nil || t.Humidity == nil || t.Pressure == nil {
		return fmt.Errorf("temperature_c, humidity_pct and pressure_hpa are required")
	}
	if *t.Humidity < 0 || *t.Humidity > 100 {
		return fmt.Errorf("humidity_pct out of range: %f (must be 0-100)", *t.Humidity)
	}
	if *t.Pressure <= 0 {
		return fmt.Errorf("pressure_hpa must be positive: %f", *t.Pressure)
	}
	return nil
}

// Measurement converts a validated message.
func (t Telemetry) Measurement() (Measurement, error) {
	if err := t.Validate(); err != nil {
		return Measurement{}, err
	}
	m := Measurement{
		Time:        t.Timestamp,
		Temperature: *t.Temperature,
		Humidity:    *t.Humidity,
		Pressure:    *t.Pressure,
		TempTop:     t.TempTop,
		TempBottom:  t.TempBottom,
	}
	return m, m.Validate()
}
