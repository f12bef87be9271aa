package mqtt

import (
	"encoding/json"
	"log/slog"

	"cloudpico-station/internal/weather/types"
)

// Recorder is the station side of an incoming telemetry message.
type Recorder interface {
	Record(m types.Measurement) error
}

// TelemetryHandler turns broker messages into station records. Messages for
// other stations are ignored unless stationID is empty.
type TelemetryHandler struct {
	recorder  Recorder
	stationID string
	logger    *slog.Logger
}

func NewTelemetryHandler(recorder Recorder, stationID string, logger *slog.Logger) *TelemetryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TelemetryHandler{recorder: recorder, stationID: stationID, logger: logger}
}

// HandleMessage is a MessageHandler.
func (h *TelemetryHandler) HandleMessage(topic string, payload []byte) {
	h.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))

	if err := validateTelemetryJSON(payload); err != nil {
		h.logger.Warn("telemetry message rejected by schema",
			"topic", topic,
			"error", err,
			"payload", string(payload),
		)
		return
	}

	var telemetry types.Telemetry
	if err := json.Unmarshal(payload, &telemetry); err != nil {
		h.logger.Warn("failed to parse telemetry message",
			"topic", topic,
			"error", err,
			"payload", string(payload),
		)
		return
	}

	if h.stationID != "" && telemetry.StationID != h.stationID {
		h.logger.Debug("ignoring telemetry for other station", "topic", topic, "station_id", telemetry.StationID)
		return
	}

	m, err := telemetry.Measurement()
	if err != nil {
		h.logger.Warn("invalid telemetry message",
			"topic", topic,
			"station_id", telemetry.StationID,
			"error", err,
		)
		return
	}

	if err := h.recorder.Record(m); err != nil {
		h.logger.Error("record telemetry failed",
			"topic", topic,
			"station_id", telemetry.StationID,
			"error", err,
		)
		return
	}
	h.logger.Debug("processed telemetry message",
		"station_id", telemetry.StationID,
		"timestamp", telemetry.Timestamp,
	)
}
