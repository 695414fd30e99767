package obs

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/smartfarm-iot/telemetry-node/internal/model"
)

// Metrics is the node's instrumentation. Collectors register on a
// caller-owned registry so tests can build as many instances as they like.
type Metrics struct {
	ConnState         prometheus.Gauge
	AssociationRounds prometheus.Counter
	AssociationFails  prometheus.Counter
	SessionOpens      prometheus.Counter
	SessionFails      prometheus.Counter
	SessionDrops      *prometheus.CounterVec
	Publishes         prometheus.Counter
	PublishSkips      *prometheus.CounterVec
	Commands          *prometheus.CounterVec
	ReadNoEcho        prometheus.Counter
	LastTemperature   prometheus.Gauge
	LastSoilPercent   prometheus.Gauge
	LastDistanceCm    prometheus.Gauge
}

// Publish-skip and session-drop reasons, command results.
const (
	SkipNoSession    = "no_session"
	SkipNoReading    = "no_reading"
	SkipPublishError = "publish_error"

	DropLinkLost  = "link_lost"
	DropKeepAlive = "keepalive"

	CmdHandled       = "handled"
	CmdDuplicate     = "duplicate"
	CmdBadPayload    = "bad_payload"
	CmdUnknownAction = "unknown_action"
	CmdQueueFull     = "queue_full"
)

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "node_conn_state",
			Help: "Connectivity state: 0 disconnected, 1 associating, 2 link up, 3 session up.",
		}),
		AssociationRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "node_association_rounds_total",
			Help: "Association attempt budgets started.",
		}),
		AssociationFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "node_association_failures_total",
			Help: "Association budgets exhausted with the link still down.",
		}),
		SessionOpens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "node_session_opens_total",
			Help: "Broker sessions established.",
		}),
		SessionFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "node_session_failures_total",
			Help: "Broker session requests that failed.",
		}),
		SessionDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "node_session_drops_total",
			Help: "Broker sessions dropped, by reason.",
		}, []string{"reason"}),
		Publishes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "node_publish_total",
			Help: "Telemetry records published.",
		}),
		PublishSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "node_publish_skipped_total",
			Help: "Publish attempts skipped or failed, by reason.",
		}, []string{"reason"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "node_commands_total",
			Help: "Inbound commands, by handling result.",
		}, []string{"result"}),
		ReadNoEcho: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "node_read_no_echo_total",
			Help: "Sampling cycles whose ultrasonic ping got no echo.",
		}),
		LastTemperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "node_last_temperature_celsius",
			Help: "Temperature from the most recent sampling cycle.",
		}),
		LastSoilPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "node_last_soil_percent",
			Help: "Soil moisture percent from the most recent sampling cycle.",
		}),
		LastDistanceCm: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "node_last_distance_cm",
			Help: "Water surface distance from the most recent sampling cycle.",
		}),
	}

	reg.MustRegister(
		m.ConnState,
		m.AssociationRounds,
		m.AssociationFails,
		m.SessionOpens,
		m.SessionFails,
		m.SessionDrops,
		m.Publishes,
		m.PublishSkips,
		m.Commands,
		m.ReadNoEcho,
		m.LastTemperature,
		m.LastSoilPercent,
		m.LastDistanceCm,
	)
	return m
}

func (m *Metrics) SetConnState(s model.ConnState) {
	m.ConnState.Set(float64(s))
}
