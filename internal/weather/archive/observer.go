package archive

import (
	"context"
	"log/slog"
	"time"

	"cloudpico-station/internal/weather/types"
)

const insertTimeout = 5 * time.Second

// Observer writes every measurement it is notified of to the repository.
// Insert failures are logged and the measurement is left out of the archive.
type Observer struct {
	repo      Repository
	stationID string
	logger    *slog.Logger
}

func NewObserver(repo Repository, stationID string, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{repo: repo, stationID: stationID, logger: logger}
}

func (o *Observer) Update(m types.Measurement) {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	if err := o.repo.InsertReading(ctx, o.stationID, m); err != nil {
		o.logger.Error("failed to archive reading", "station_id", o.stationID, "error", err)
		return
	}
	o.logger.Debug("reading archived", "station_id", o.stationID, "ts", m.Time)
}
