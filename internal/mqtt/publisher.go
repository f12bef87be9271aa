package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"cloudpico-station/internal/weather/types"
)

// TelemetryTopic is the topic a station publishes its readings on.
func TelemetryTopic(stationID string) string {
	return fmt.Sprintf("stations/%s/telemetry", stationID)
}

type publisher interface {
	Publish(topic string, retained bool, payload []byte) error
}

// Publisher is a station observer that forwards every measurement to the
// broker as a Telemetry message with an increasing sequence number.
type Publisher struct {
	client    publisher
	stationID string
	logger    *slog.Logger

	mu       sync.Mutex
	sequence int
}

func NewPublisher(client publisher, stationID string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{client: client, stationID: stationID, logger: logger}
}

func (p *Publisher) Update(m types.Measurement) {
	p.mu.Lock()
	p.sequence++
	seq := p.sequence
	p.mu.Unlock()

	topic := TelemetryTopic(p.stationID)
	data, err := json.Marshal(types.FromMeasurement(p.stationID, m, seq))
	if err != nil {
		p.logger.Error("marshal telemetry", "error", err)
		return
	}
	if err := p.client.Publish(topic, false, data); err != nil {
		p.logger.Warn("failed to publish telemetry", "topic", topic, "sequence", seq, "error", err)
		return
	}
	p.logger.Debug("published telemetry", "topic", topic, "sequence", seq)
}
