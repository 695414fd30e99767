// Package node owns all process-wide mutable state and drives the single
// cooperative loop: connectivity first, then the timer-gated sampling,
// display and publish sequence. One goroutine runs everything; the only
// concurrent visitors are the MQTT client (which just enqueues) and the
// health endpoint (which only reads).
package node

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/smartfarm-iot/telemetry-node/internal/display"
	"github.com/smartfarm-iot/telemetry-node/internal/model"
	"github.com/smartfarm-iot/telemetry-node/internal/obs"
	"github.com/smartfarm-iot/telemetry-node/internal/sensor"
	"github.com/smartfarm-iot/telemetry-node/internal/telemetry"
	"github.com/smartfarm-iot/telemetry-node/pkg/monoclock"
)

// Conn is the connectivity surface the loop drives. *conn.Manager is the
// real one.
type Conn interface {
	Tick(ctx context.Context)
	State() model.ConnState
	Identity() model.DeviceIdentity
	PublishQoS0(topic string, payload []byte) error
	SetCommandHandler(h func(model.Command))
	Close()
}

type Node struct {
	cfg     *Config
	conn    Conn
	sampler sensor.Sampler
	pub     *telemetry.Publisher
	disp    display.Sink
	clock   monoclock.Clock
	metrics *obs.Metrics

	lastSample  uint32
	forceSample bool

	// read by the health endpoint's goroutine
	lastPublishNano atomic.Int64
}

func New(cfg *Config, cn Conn, sampler sensor.Sampler, disp display.Sink, clock monoclock.Clock, metrics *obs.Metrics) *Node {
	n := &Node{
		cfg:     cfg,
		conn:    cn,
		sampler: sampler,
		pub:     telemetry.NewPublisher(cn, cfg.TelemetryTopic(), metrics),
		disp:    disp,
		clock:   clock,
		metrics: metrics,
	}
	// pre-age the timer so the first cycle fires immediately at boot
	n.lastSample = clock.NowMillis() - cfg.PeriodMs
	cn.SetCommandHandler(n.onCommand)
	return n
}

func (n *Node) onCommand(cmd model.Command) {
	if cmd.Action == model.ActionSample {
		n.forceSample = true
	}
}

// Step runs one scheduler iteration: the connectivity tick always, the
// sampling sequence only when the period elapsed or a sample command is
// pending. Display and publish consume the same snapshot.
func (n *Node) Step(ctx context.Context) {
	n.conn.Tick(ctx)

	now := n.clock.NowMillis()
	if !n.forceSample && monoclock.Elapsed(now, n.lastSample) < n.cfg.PeriodMs {
		return
	}
	n.forceSample = false
	n.lastSample = now

	snap := n.sampler.Sample()
	n.observe(snap)

	line1, line2 := snap.Lines()
	n.disp.Show(line1, line2)

	if n.pub.Publish(snap) {
		n.lastPublishNano.Store(time.Now().UnixNano())
	}
}

func (n *Node) observe(snap sensor.Snapshot) {
	switch s := snap.(type) {
	case sensor.FieldSnapshot:
		n.metrics.LastTemperature.Set(s.Temp.Value)
		n.metrics.LastSoilPercent.Set(s.Soil.Value)
	case sensor.WaterSnapshot:
		if s.Level.OK {
			n.metrics.LastDistanceCm.Set(s.Level.Value)
		} else {
			n.metrics.ReadNoEcho.Inc()
		}
	}
}

// Run drives Step on the poll cadence until ctx is cancelled. The node has
// no terminal failure state; only shutdown ends the loop.
func (n *Node) Run(ctx context.Context) {
	log.Printf("node: %s loop started, sample period %d ms", n.cfg.Kind, n.cfg.PeriodMs)
	ticker := time.NewTicker(time.Duration(n.cfg.PollMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			n.conn.Close()
			log.Printf("node: loop stopped")
			return
		case <-ticker.C:
			n.Step(ctx)
		}
	}
}

// HealthStats feeds the health endpoint: ok when publishing on a live
// session, degraded when connectivity is partial or publishes are stale,
// down otherwise.
func (n *Node) HealthStats() obs.Stats {
	state := n.conn.State()
	st := obs.Stats{
		State:             state.String(),
		DeviceID:          n.conn.Identity().String(),
		LastPublishAgeSec: -1,
	}
	if last := n.lastPublishNano.Load(); last > 0 {
		st.LastPublishAgeSec = time.Since(time.Unix(0, last)).Seconds()
	}

	fresh := st.LastPublishAgeSec >= 0 &&
		st.LastPublishAgeSec < 3*float64(n.cfg.PeriodMs)/1000
	switch {
	case state == model.StateSessionUp && fresh:
		st.Status = "ok"
	case state >= model.StateLinkUp:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}
	return st
}
