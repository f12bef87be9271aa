package display

import (
	"fmt"
	"io"
	"sync"

	"cloudpico-station/internal/weather/types"
)

// Stats is a snapshot of the running temperature statistics.
type Stats struct {
	Count   int     `json:"count"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`
}

// Statistics tracks count, sum, min and max of the temperatures it has been
// given. Bounds start from the first reading. Each instance accumulates
// independently.
type Statistics struct {
	cfg   config
	mu    sync.RWMutex
	count int
	sum   float64
	min   float64
	max   float64
}

func NewStatistics(opts ...Option) *Statistics {
	return &Statistics{cfg: newConfig(opts)}
}

func (s *Statistics) Update(m types.Measurement) {
	t := m.Temperature

	s.mu.Lock()
	if s.count == 0 {
		s.min, s.max = t, t
	} else {
		if t > s.max {
			s.max = t
		}
		if t < s.min {
			s.min = t
		}
	}
	s.count++
	s.sum += t
	s.mu.Unlock()

	s.cfg.render("statistics", s)
}

// Summary returns the current statistics, or ErrNoReadings when nothing has
// been received.
func (s *Statistics) Summary() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.count == 0 {
		return Stats{}, ErrNoReadings
	}
	return Stats{
		Count:   s.count,
		Min:     s.min,
		Max:     s.max,
		Average: s.sum / float64(s.count),
	}, nil
}

func (s *Statistics) Display(w io.Writer) error {
	st, err := s.Summary()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "Weather statistics\nAverage temperature: %.1f°C\nMinimum temperature: %.1f°C\nMaximum temperature: %.1f°C\n\n",
		st.Average, st.Min, st.Max)
	return err
}
