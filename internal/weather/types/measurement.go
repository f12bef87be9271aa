package types

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrNonFinite is returned for NaN or infinite readings.
var ErrNonFinite = errors.New("non-finite reading")

// Measurement is one sensor reading. It is treated as an immutable value:
// the station replaces it wholesale, never field by field.
type Measurement struct {
	Time        time.Time
	Temperature float64 // °C
	Humidity    float64 // %RH
	Pressure    float64

	// Extended probe readings, present only on stations that carry them.
	TempTop    *float64
	TempBottom *float64
}

// Validate rejects non-finite values so they never reach the observers.
func (m Measurement) Validate() error {
	fields := []struct {
		name string
		v    *float64
	}{
		{"temperature", &m.Temperature},
		{"humidity", &m.Humidity},
		{"pressure", &m.Pressure},
		{"temp_top", m.TempTop},
		{"temp_bottom", m.TempBottom},
	}
	for _, f := range fields {
		if f.v == nil {
			continue
		}
		if math.IsNaN(*f.v) || math.IsInf(*f.v, 0) {
			return fmt.Errorf("%s: %w", f.name, ErrNonFinite)
		}
	}
	return nil
}

// Extended reports whether both extended probe readings are present.
func (m Measurement) Extended() bool {
	return m.TempTop != nil && m.TempBottom != nil
}
