package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"cloudpico-station/internal/observer"
	"cloudpico-station/internal/weather/display"
	"cloudpico-station/internal/weather/types"
)

const (
	defaultReadingsLimit = 20
	maxReadingsLimit     = 500
)

type reading struct {
	Time        string   `json:"time"`
	Temperature float64  `json:"temperature_c"`
	Humidity    float64  `json:"humidity_pct"`
	Pressure    float64  `json:"pressure"`
	TempTop     *float64 `json:"temp_top_c,omitempty"`
	TempBottom  *float64 `json:"temp_bottom_c,omitempty"`
}

func toReading(m types.Measurement) reading {
	return reading{
		Time:        m.Time.UTC().Format(time.RFC3339),
		Temperature: m.Temperature,
		Humidity:    m.Humidity,
		Pressure:    m.Pressure,
		TempTop:     m.TempTop,
		TempBottom:  m.TempBottom,
	}
}

type weatherHandlers struct {
	deps Deps
}

func registerWeather(mux *http.ServeMux, deps Deps) {
	h := &weatherHandlers{deps: deps}
	mux.HandleFunc("GET /api/station", h.handleStation)
	if deps.Conditions != nil {
		mux.HandleFunc("GET /api/conditions", h.handleConditions)
	}
	if deps.Statistics != nil {
		mux.HandleFunc("GET /api/statistics", h.handleStatistics)
	}
	if deps.Forecast != nil {
		mux.HandleFunc("GET /api/forecast", h.handleForecast)
	}
	if deps.Archive != nil {
		mux.HandleFunc("GET /api/readings", h.handleReadings)
	}
}

func (h *weatherHandlers) handleStation(w http.ResponseWriter, r *http.Request) {
	m, err := h.deps.Station.SensorData()
	if errors.Is(err, observer.ErrUnseeded) {
		writeError(w, http.StatusServiceUnavailable, "no measurement recorded yet")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"station_id": h.deps.Station.ID(),
		"latest":     toReading(m),
	})
}

func (h *weatherHandlers) handleConditions(w http.ResponseWriter, r *http.Request) {
	m, ok := h.deps.Conditions.Conditions()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no conditions yet")
		return
	}
	writeJSON(w, http.StatusOK, toReading(m))
}

func (h *weatherHandlers) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.Statistics.Summary()
	if errors.Is(err, display.ErrNoReadings) {
		writeError(w, http.StatusServiceUnavailable, "no readings yet")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *weatherHandlers) handleForecast(w http.ResponseWriter, r *http.Request) {
	trend, err := h.deps.Forecast.Trend()
	if errors.Is(err, display.ErrNoReadings) {
		writeError(w, http.StatusServiceUnavailable, "no readings yet")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	previous, current := h.deps.Forecast.Pressures()
	writeJSON(w, http.StatusOK, map[string]any{
		"trend":             trend,
		"message":           trend.Message(),
		"previous_pressure": previous,
		"current_pressure":  current,
	})
}

func (h *weatherHandlers) handleReadings(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stationID := h.deps.Station.ID()
	items, err := h.deps.Archive.LatestReadings(r.Context(), stationID, limit)
	if err != nil {
		h.deps.Logger.Error("readings: query failed", "station_id", stationID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load readings")
		return
	}
	out := make([]reading, 0, len(items))
	for _, m := range items {
		out = append(out, toReading(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"station_id": stationID,
		"limit":      limit,
		"items":      out,
	})
}

func parseLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return defaultReadingsLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("invalid 'limit' (expected integer)")
	}
	if n <= 0 {
		return 0, errors.New("'limit' must be > 0")
	}
	if n > maxReadingsLimit {
		return 0, errors.New("'limit' must be <= 500")
	}
	return n, nil
}
