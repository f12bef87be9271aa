package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"cloudpico-station/internal/observer"
)

type healthchecker struct {
	station stationReader
	db      pinger
	logger  *slog.Logger
}

func (h *healthchecker) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			h.logger.Error("failed to check database connectivity", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to check database connectivity")
			return
		}
	}

	_, err := h.station.SensorData()
	seeded := !errors.Is(err, observer.ErrUnseeded)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"station_id": h.station.ID(),
		"seeded":     seeded,
		"observers":  h.station.Observers(),
	})
}

func registerHealthcheck(mux *http.ServeMux, station stationReader, db pinger, logger *slog.Logger) {
	h := &healthchecker{station: station, db: db, logger: logger}
	mux.HandleFunc("GET /healthz", h.handleHealthz)
}
