package telemetry

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/smartfarm-iot/telemetry-node/internal/model"
	"github.com/smartfarm-iot/telemetry-node/internal/obs"
	"github.com/smartfarm-iot/telemetry-node/internal/sensor"
)

type stubConn struct {
	state    model.ConnState
	identity model.DeviceIdentity
	sent     [][]byte
	topics   []string
	pubErr   error
}

func (c *stubConn) State() model.ConnState         { return c.state }
func (c *stubConn) Identity() model.DeviceIdentity { return c.identity }

func (c *stubConn) PublishQoS0(topic string, payload []byte) error {
	if c.pubErr != nil {
		return c.pubErr
	}
	c.topics = append(c.topics, topic)
	c.sent = append(c.sent, payload)
	return nil
}

type stubEcho struct{ us int }

func (s stubEcho) EchoMicros() (int, error) { return s.us, nil }

type stubADC struct{ n int }

func (s stubADC) ReadRaw() (int, error) { return s.n, nil }

func TestPublishRefusedOffSession(t *testing.T) {
	for _, st := range []model.ConnState{model.StateDisconnected, model.StateAssociating, model.StateLinkUp} {
		conn := &stubConn{state: st, identity: "dev"}
		metrics := obs.NewMetrics(prometheus.NewRegistry())
		p := NewPublisher(conn, "smartfarm/field-stats", metrics)

		snap := sensor.NewFieldSampler(stubADC{n: 2048}, stubADC{n: 2500}).Sample()
		if p.Publish(snap) {
			t.Fatalf("publish succeeded in state %s", st)
		}
		if len(conn.sent) != 0 {
			t.Fatalf("message sent in state %s", st)
		}
		if got := testutil.ToFloat64(metrics.PublishSkips.WithLabelValues(obs.SkipNoSession)); got != 1 {
			t.Fatalf("skip counter = %f in state %s", got, st)
		}
	}
}

func TestPublishSendsOneTaggedRecord(t *testing.T) {
	conn := &stubConn{state: model.StateSessionUp, identity: "a4:cf:12:9b:33:01"}
	metrics := obs.NewMetrics(prometheus.NewRegistry())
	p := NewPublisher(conn, "smartfarm/field-stats", metrics)

	snap := sensor.NewFieldSampler(stubADC{n: 2048}, stubADC{n: 2500}).Sample()
	if !p.Publish(snap) {
		t.Fatal("publish refused with a live session")
	}
	if len(conn.sent) != 1 {
		t.Fatalf("sent %d messages, want exactly 1", len(conn.sent))
	}
	if conn.topics[0] != "smartfarm/field-stats" {
		t.Fatalf("topic = %q", conn.topics[0])
	}

	var rec model.FieldStats
	if err := json.Unmarshal(conn.sent[0], &rec); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if rec.DeviceID != "a4:cf:12:9b:33:01" {
		t.Fatalf("device_id = %q, record not tagged with the captured identity", rec.DeviceID)
	}
	if got := testutil.ToFloat64(metrics.Publishes); got != 1 {
		t.Fatalf("publish counter = %f", got)
	}
}

func TestPublishSkipsNoReadingCycle(t *testing.T) {
	conn := &stubConn{state: model.StateSessionUp, identity: "dev"}
	metrics := obs.NewMetrics(prometheus.NewRegistry())
	p := NewPublisher(conn, "smartfarm/water-level", metrics)

	snap := sensor.NewWaterSampler(stubEcho{us: 0}).Sample()
	if p.Publish(snap) {
		t.Fatal("no-reading cycle published")
	}
	if len(conn.sent) != 0 {
		t.Fatal("message sent for a no-reading cycle")
	}
	if got := testutil.ToFloat64(metrics.PublishSkips.WithLabelValues(obs.SkipNoReading)); got != 1 {
		t.Fatalf("skip counter = %f", got)
	}
}

func TestPublishFailureDropsCycle(t *testing.T) {
	conn := &stubConn{state: model.StateSessionUp, identity: "dev", pubErr: errors.New("conn reset")}
	metrics := obs.NewMetrics(prometheus.NewRegistry())
	p := NewPublisher(conn, "smartfarm/water-level", metrics)

	snap := sensor.NewWaterSampler(stubEcho{us: 700}).Sample()
	if p.Publish(snap) {
		t.Fatal("failed send reported as success")
	}
	if got := testutil.ToFloat64(metrics.PublishSkips.WithLabelValues(obs.SkipPublishError)); got != 1 {
		t.Fatalf("skip counter = %f", got)
	}
}
