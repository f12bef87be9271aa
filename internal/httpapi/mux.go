package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"cloudpico-station/internal/weather/archive"
	"cloudpico-station/internal/weather/display"
	"cloudpico-station/internal/weather/types"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type stationReader interface {
	ID() string
	SensorData() (types.Measurement, error)
	Observers() int
}

type conditionsReader interface {
	Conditions() (types.Measurement, bool)
}

type statisticsReader interface {
	Summary() (display.Stats, error)
}

type forecastReader interface {
	Trend() (display.Trend, error)
	Pressures() (previous, current float64)
}

// Deps are the views the mux reads from. DB, Archive and Logger are optional.
type Deps struct {
	Station    stationReader
	Conditions conditionsReader
	Statistics statisticsReader
	Forecast   forecastReader
	DB         pinger
	Archive    archive.Repository
	Logger     *slog.Logger
}

func NewMux(deps Deps) *http.ServeMux {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	mux := http.NewServeMux()
	registerHealthcheck(mux, deps.Station, deps.DB, deps.Logger)
	registerWeather(mux, deps)
	return mux
}
