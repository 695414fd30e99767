package telemetry

import (
	"errors"
	"log"

	"github.com/smartfarm-iot/telemetry-node/internal/model"
	"github.com/smartfarm-iot/telemetry-node/internal/obs"
	"github.com/smartfarm-iot/telemetry-node/internal/sensor"
)

// Conn is the slice of the connectivity manager the publisher needs.
type Conn interface {
	State() model.ConnState
	Identity() model.DeviceIdentity
	PublishQoS0(topic string, payload []byte) error
}

// Publisher pushes one cycle's record to the node's telemetry topic.
// At-most-once: a refused or failed publish is dropped on the spot, the
// next cycle supersedes it. Nothing is queued, nothing is retried.
type Publisher struct {
	conn    Conn
	topic   string
	metrics *obs.Metrics
}

func NewPublisher(conn Conn, topic string, metrics *obs.Metrics) *Publisher {
	return &Publisher{conn: conn, topic: topic, metrics: metrics}
}

// Publish builds the snapshot's wire record, tags it with the captured
// device identity and sends it QoS 0. False when the node is off-session,
// the cycle has no publishable reading, or the send fails.
func (p *Publisher) Publish(snap sensor.Snapshot) bool {
	if p.conn.State() != model.StateSessionUp {
		p.metrics.PublishSkips.WithLabelValues(obs.SkipNoSession).Inc()
		log.Printf("telemetry: skip publish, state %s", p.conn.State())
		return false
	}

	payload, err := snap.Payload(p.conn.Identity())
	if errors.Is(err, sensor.ErrNoReading) {
		p.metrics.PublishSkips.WithLabelValues(obs.SkipNoReading).Inc()
		log.Printf("telemetry: skip publish, no reading this cycle")
		return false
	}
	if err != nil {
		p.metrics.PublishSkips.WithLabelValues(obs.SkipPublishError).Inc()
		log.Printf("telemetry: record build failed: %v", err)
		return false
	}

	if err := p.conn.PublishQoS0(p.topic, payload); err != nil {
		p.metrics.PublishSkips.WithLabelValues(obs.SkipPublishError).Inc()
		log.Printf("telemetry: publish failed: %v", err)
		return false
	}
	p.metrics.Publishes.Inc()
	return true
}
