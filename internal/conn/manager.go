// Package conn owns the node's connectivity: link association below, broker
// session on top. One Tick per scheduler iteration advances the state
// machine; every failure path loops back here, nothing is terminal.
package conn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/smartfarm-iot/telemetry-node/internal/hal"
	"github.com/smartfarm-iot/telemetry-node/internal/model"
	"github.com/smartfarm-iot/telemetry-node/internal/obs"
	"github.com/smartfarm-iot/telemetry-node/pkg/broker"
	"github.com/smartfarm-iot/telemetry-node/pkg/dedup"
	"github.com/smartfarm-iot/telemetry-node/pkg/monoclock"
)

// Recovery protocol timing. Association blocks through its whole budget;
// session requests are spaced without blocking.
const (
	AssocAttempts       = 20
	DefaultAssocSpacing = 500 * time.Millisecond
	SessionSpacingMs    = 2000

	inboxCap = 16
)

// ErrNotConnected is returned for a publish with no live session.
var ErrNotConnected = errors.New("no broker session")

type Config struct {
	// Broker endpoint; ClientID is overwritten with a fresh random one on
	// every session attempt, stale broker state must not bind to a reused id.
	Broker       broker.Config
	ClientPrefix string
	// CommandTopic is subscribed at session establishment. A "{device}"
	// placeholder expands to the captured identity, which exists by then.
	CommandTopic string

	DedupTTL time.Duration
	// AssocSpacing shrinks in tests; the deployed spacing is 500 ms.
	AssocSpacing time.Duration
}

func (c *Config) applyDefaults() {
	if c.ClientPrefix == "" {
		c.ClientPrefix = "node"
	}
	if c.AssocSpacing <= 0 {
		c.AssocSpacing = DefaultAssocSpacing
	}
}

type inbound struct {
	topic   string
	payload []byte
}

// Manager drives DISCONNECTED → ASSOCIATING → LINK_UP → SESSION_UP. All
// transitions happen on the scheduler goroutine; State and Identity are
// safe to read from the health endpoint's goroutine.
type Manager struct {
	cfg     Config
	link    hal.Link
	dialer  broker.IDialer
	clock   monoclock.Clock
	metrics *obs.Metrics

	state    atomic.Int32
	identity atomic.Value // model.DeviceIdentity

	session        broker.ISession
	sessionGated   bool
	lastSessionTry uint32

	inbox     chan inbound
	filter    *dedup.Filter
	onCommand func(model.Command)
}

func NewManager(cfg Config, link hal.Link, dialer broker.IDialer, clock monoclock.Clock, metrics *obs.Metrics) *Manager {
	cfg.applyDefaults()
	m := &Manager{
		cfg:     cfg,
		link:    link,
		dialer:  dialer,
		clock:   clock,
		metrics: metrics,
		inbox:   make(chan inbound, inboxCap),
		filter:  dedup.New(cfg.DedupTTL, 1024),
	}
	m.identity.Store(model.DeviceIdentity(""))
	m.setState(model.StateDisconnected)
	return m
}

func (m *Manager) State() model.ConnState {
	return model.ConnState(m.state.Load())
}

// Identity is the hardware address captured at the first association.
// Empty until then.
func (m *Manager) Identity() model.DeviceIdentity {
	id, _ := m.identity.Load().(model.DeviceIdentity)
	return id
}

// SetCommandHandler registers the callback for accepted inbound commands.
// It runs on the scheduler goroutine, inside Tick.
func (m *Manager) SetCommandHandler(h func(model.Command)) {
	m.onCommand = h
}

// Tick advances the state machine one step. ctx only aborts the blocking
// association wait on process shutdown; the node itself never cancels.
func (m *Manager) Tick(ctx context.Context) {
	switch m.State() {
	case model.StateDisconnected:
		m.associate(ctx)

	case model.StateLinkUp:
		if !m.link.Associated() {
			log.Printf("conn: link lost, restarting association")
			m.setState(model.StateDisconnected)
			return
		}
		m.requestSession()

	case model.StateSessionUp:
		if !m.link.Associated() {
			m.dropSession(obs.DropLinkLost)
			m.setState(model.StateDisconnected)
			return
		}
		if !m.session.Alive() {
			m.dropSession(obs.DropKeepAlive)
			m.setState(model.StateLinkUp)
			return
		}
		m.dispatchInbound()
	}
}

// associate runs one bounded probe budget: AssocAttempts probes spaced
// cfg.AssocSpacing apart. Exhausting it leaves the node DISCONNECTED with a
// fresh budget on the next Tick.
func (m *Manager) associate(ctx context.Context) {
	m.setState(model.StateAssociating)
	m.metrics.AssociationRounds.Inc()

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.cfg.AssocSpacing), AssocAttempts-1),
		ctx,
	)
	err := backoff.Retry(m.link.TryAssociate, bo)
	if err != nil {
		m.metrics.AssociationFails.Inc()
		log.Printf("conn: association failed after %d probes: %v", AssocAttempts, err)
		m.setState(model.StateDisconnected)
		return
	}

	if m.Identity().Empty() {
		addr, err := m.link.HardwareAddr()
		if err != nil {
			// without an identity nothing may be published; treat the
			// round as failed and re-probe
			log.Printf("conn: link up but hardware address unreadable: %v", err)
			m.setState(model.StateDisconnected)
			return
		}
		m.identity.Store(model.DeviceIdentity(addr))
		log.Printf("conn: link associated, device identity %s", addr)
	} else {
		log.Printf("conn: link associated")
	}
	m.sessionGated = false
	m.setState(model.StateLinkUp)
}

// requestSession dials the broker once. The first attempt after coming up
// is immediate; after a failure the next one waits out the 2 s gate, polled
// without blocking the loop.
func (m *Manager) requestSession() {
	now := m.clock.NowMillis()
	if m.sessionGated && monoclock.Elapsed(now, m.lastSessionTry) < SessionSpacingMs {
		return
	}
	m.lastSessionTry = now
	m.sessionGated = true

	bcfg := m.cfg.Broker
	bcfg.ClientID = fmt.Sprintf("%s-%s", m.cfg.ClientPrefix, uuid.New().String()[:8])

	s, err := m.dialer.Dial(bcfg)
	if err != nil {
		m.metrics.SessionFails.Inc()
		log.Printf("conn: session request failed: %v", err)
		return
	}
	cmdTopic := strings.ReplaceAll(m.cfg.CommandTopic, "{device}", m.Identity().String())
	if err := s.Subscribe(cmdTopic, 1, m.enqueue); err != nil {
		m.metrics.SessionFails.Inc()
		log.Printf("conn: command subscribe failed: %v", err)
		s.Close()
		return
	}

	m.session = s
	m.sessionGated = false
	m.metrics.SessionOpens.Inc()
	m.setState(model.StateSessionUp)
}

func (m *Manager) dropSession(reason string) {
	if m.session != nil {
		m.session.Close()
		m.session = nil
	}
	m.metrics.SessionDrops.WithLabelValues(reason).Inc()
	log.Printf("conn: session dropped: %s", reason)
	m.sessionGated = false
}

// PublishQoS0 sends one payload on the live session, at most once.
func (m *Manager) PublishQoS0(topic string, payload []byte) error {
	if m.State() != model.StateSessionUp || m.session == nil {
		return ErrNotConnected
	}
	return m.session.Publish(topic, 0, payload)
}

// Close releases the session on shutdown.
func (m *Manager) Close() {
	if m.session != nil {
		m.session.Close()
		m.session = nil
	}
	m.setState(model.StateDisconnected)
}

// enqueue runs on the MQTT client's goroutine: it only hands the message
// over to the scheduler goroutine, which dispatches inside Tick.
func (m *Manager) enqueue(topic string, payload []byte) {
	msg := inbound{topic: topic, payload: append([]byte(nil), payload...)}
	select {
	case m.inbox <- msg:
	default:
		m.metrics.Commands.WithLabelValues(obs.CmdQueueFull).Inc()
		log.Printf("conn: inbound queue full, dropping message from %s", topic)
	}
}

func (m *Manager) dispatchInbound() {
	for {
		select {
		case msg := <-m.inbox:
			m.handleCommand(msg)
		default:
			return
		}
	}
}

func (m *Manager) handleCommand(msg inbound) {
	var cmd model.Command
	if err := json.Unmarshal(msg.payload, &cmd); err != nil {
		m.metrics.Commands.WithLabelValues(obs.CmdBadPayload).Inc()
		log.Printf("conn: bad command payload on %s: %v", msg.topic, err)
		return
	}

	key := cmd.RequestID
	if key == "" {
		key = dedup.PayloadKey(msg.payload)
	}
	if m.filter.Seen(key) {
		m.metrics.Commands.WithLabelValues(obs.CmdDuplicate).Inc()
		return
	}

	switch cmd.Action {
	case model.ActionSample:
		m.metrics.Commands.WithLabelValues(obs.CmdHandled).Inc()
		log.Printf("conn: command %q accepted", cmd.Action)
		if m.onCommand != nil {
			m.onCommand(cmd)
		}
	default:
		m.metrics.Commands.WithLabelValues(obs.CmdUnknownAction).Inc()
		log.Printf("conn: unknown command action %q", cmd.Action)
	}
}

func (m *Manager) setState(s model.ConnState) {
	m.state.Store(int32(s))
	m.metrics.SetConnState(s)
}
