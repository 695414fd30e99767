package conn

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/smartfarm-iot/telemetry-node/internal/model"
	"github.com/smartfarm-iot/telemetry-node/internal/obs"
	"github.com/smartfarm-iot/telemetry-node/pkg/broker"
)

// ---- fakes ----

type fakeLink struct {
	probes    int
	succeedAt int // cumulative probe count that brings the link up; 0 = never
	up        bool
	addr      string
	addrErr   error
}

func (l *fakeLink) TryAssociate() error {
	if l.up {
		return nil
	}
	l.probes++
	if l.succeedAt > 0 && l.probes >= l.succeedAt {
		l.up = true
		return nil
	}
	return errors.New("no access point")
}

func (l *fakeLink) Associated() bool { return l.up }

func (l *fakeLink) HardwareAddr() (string, error) {
	if l.addrErr != nil {
		return "", l.addrErr
	}
	return l.addr, nil
}

type pubRecord struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeSession struct {
	alive     bool
	closed    bool
	published []pubRecord
	subs      map[string]func(topic string, payload []byte)
	subErr    error
	pubErr    error
}

func (s *fakeSession) Alive() bool { return s.alive }

func (s *fakeSession) Publish(topic string, qos byte, payload []byte) error {
	if s.pubErr != nil {
		return s.pubErr
	}
	s.published = append(s.published, pubRecord{topic, qos, payload})
	return nil
}

func (s *fakeSession) Subscribe(topic string, qos byte, handler func(string, []byte)) error {
	if s.subErr != nil {
		return s.subErr
	}
	s.subs[topic] = handler
	return nil
}

func (s *fakeSession) Close() {
	s.closed = true
	s.alive = false
}

type fakeDialer struct {
	failFirst int // fail this many dials before succeeding
	dials     int
	clientIDs []string
	sessions  []*fakeSession
}

func (d *fakeDialer) Dial(cfg broker.Config) (broker.ISession, error) {
	d.dials++
	d.clientIDs = append(d.clientIDs, cfg.ClientID)
	if d.dials <= d.failFirst {
		return nil, errors.New("broker refused")
	}
	s := &fakeSession{alive: true, subs: map[string]func(string, []byte){}}
	d.sessions = append(d.sessions, s)
	return s, nil
}

func (d *fakeDialer) last() *fakeSession { return d.sessions[len(d.sessions)-1] }

type fakeClock struct {
	ms uint32
}

func (c *fakeClock) NowMillis() uint32 { return c.ms }
func (c *fakeClock) Advance(d uint32)  { c.ms += d }

const testCmdTopic = "smartfarm/cmd/test"

func newTestManager(link *fakeLink, dialer *fakeDialer) (*Manager, *fakeClock, *obs.Metrics) {
	clock := &fakeClock{}
	metrics := obs.NewMetrics(prometheus.NewRegistry())
	m := NewManager(Config{
		Broker:       broker.Config{Host: "broker.test", Port: 1883},
		ClientPrefix: "node",
		CommandTopic: testCmdTopic,
		AssocSpacing: time.Millisecond,
	}, link, dialer, clock, metrics)
	return m, clock, metrics
}

// ---- association ----

func TestAssociationBudgetExhausted(t *testing.T) {
	link := &fakeLink{}
	m, _, metrics := newTestManager(link, &fakeDialer{})

	m.Tick(context.Background())

	if got := m.State(); got != model.StateDisconnected {
		t.Fatalf("state = %s, want DISCONNECTED", got)
	}
	if link.probes != AssocAttempts {
		t.Fatalf("probes = %d, want exactly %d", link.probes, AssocAttempts)
	}
	if got := testutil.ToFloat64(metrics.AssociationFails); got != 1 {
		t.Fatalf("failure counter = %f", got)
	}

	// next tick starts a fresh budget, no permanent failure state
	m.Tick(context.Background())
	if link.probes != 2*AssocAttempts {
		t.Fatalf("probes = %d, want %d after second budget", link.probes, 2*AssocAttempts)
	}
}

func TestAssociationSucceedsInLaterBudget(t *testing.T) {
	link := &fakeLink{succeedAt: AssocAttempts + 5, addr: "a4:cf:12:9b:33:01"}
	m, _, _ := newTestManager(link, &fakeDialer{})

	m.Tick(context.Background())
	if m.State() != model.StateDisconnected {
		t.Fatalf("state after failed budget = %s", m.State())
	}

	m.Tick(context.Background())
	if m.State() != model.StateLinkUp {
		t.Fatalf("state = %s, want LINK_UP", m.State())
	}
	if got := m.Identity(); got != "a4:cf:12:9b:33:01" {
		t.Fatalf("identity = %q", got)
	}
}

func TestIdentityCapturedOnlyOnce(t *testing.T) {
	link := &fakeLink{succeedAt: 1, addr: "a4:cf:12:9b:33:01"}
	m, _, _ := newTestManager(link, &fakeDialer{})

	m.Tick(context.Background())
	if m.Identity() != "a4:cf:12:9b:33:01" {
		t.Fatalf("identity = %q", m.Identity())
	}

	// drop the link, change the reported address, reassociate
	link.up = false
	link.probes = 0
	link.succeedAt = 1
	link.addr = "ff:ff:ff:ff:ff:ff"

	m.Tick(context.Background()) // LINK_UP sees the drop
	if m.State() != model.StateDisconnected {
		t.Fatalf("state = %s after link loss", m.State())
	}
	m.Tick(context.Background()) // reassociates
	if m.State() != model.StateLinkUp {
		t.Fatalf("state = %s", m.State())
	}
	if m.Identity() != "a4:cf:12:9b:33:01" {
		t.Fatalf("identity rewritten to %q on reassociation", m.Identity())
	}
}

func TestUnreadableAddressFailsTheRound(t *testing.T) {
	link := &fakeLink{succeedAt: 1, addrErr: errors.New("ioctl failed")}
	m, _, _ := newTestManager(link, &fakeDialer{})

	m.Tick(context.Background())
	if m.State() != model.StateDisconnected {
		t.Fatalf("state = %s, want DISCONNECTED when identity is unreadable", m.State())
	}
	if !m.Identity().Empty() {
		t.Fatalf("identity = %q, want empty", m.Identity())
	}
}

// ---- broker session ----

func upToLinkUp(t *testing.T, m *Manager) {
	t.Helper()
	m.Tick(context.Background())
	if m.State() != model.StateLinkUp {
		t.Fatalf("state = %s, want LINK_UP", m.State())
	}
}

func upToSessionUp(t *testing.T, m *Manager) {
	t.Helper()
	upToLinkUp(t, m)
	m.Tick(context.Background())
	if m.State() != model.StateSessionUp {
		t.Fatalf("state = %s, want SESSION_UP", m.State())
	}
}

func TestSessionEstablishAndSubscribe(t *testing.T) {
	link := &fakeLink{succeedAt: 1, addr: "aa:bb:cc:dd:ee:01"}
	dialer := &fakeDialer{}
	m, _, metrics := newTestManager(link, dialer)

	upToSessionUp(t, m)

	if dialer.dials != 1 {
		t.Fatalf("dials = %d", dialer.dials)
	}
	if _, ok := dialer.last().subs[testCmdTopic]; !ok {
		t.Fatal("command topic not subscribed at session establishment")
	}
	if got := testutil.ToFloat64(metrics.SessionOpens); got != 1 {
		t.Fatalf("session opens = %f", got)
	}
}

func TestSessionRetryWaitsTwoSeconds(t *testing.T) {
	link := &fakeLink{succeedAt: 1, addr: "aa:bb:cc:dd:ee:02"}
	dialer := &fakeDialer{failFirst: 100}
	m, clock, _ := newTestManager(link, dialer)

	upToLinkUp(t, m)

	m.Tick(context.Background()) // first request is immediate
	if dialer.dials != 1 {
		t.Fatalf("dials = %d, want 1", dialer.dials)
	}
	if m.State() != model.StateLinkUp {
		t.Fatalf("state = %s after failed request", m.State())
	}

	m.Tick(context.Background()) // still inside the 2 s gate
	clock.Advance(SessionSpacingMs - 1)
	m.Tick(context.Background())
	if dialer.dials != 1 {
		t.Fatalf("dials = %d, gate not honored", dialer.dials)
	}

	clock.Advance(1)
	m.Tick(context.Background())
	if dialer.dials != 2 {
		t.Fatalf("dials = %d, want 2 after the gate elapsed", dialer.dials)
	}
}

func TestSessionClientIDsAreRandomized(t *testing.T) {
	link := &fakeLink{succeedAt: 1, addr: "aa:bb:cc:dd:ee:03"}
	dialer := &fakeDialer{failFirst: 3}
	m, clock, _ := newTestManager(link, dialer)

	upToLinkUp(t, m)
	for dialer.dials < 4 {
		m.Tick(context.Background())
		clock.Advance(SessionSpacingMs)
	}

	seen := map[string]bool{}
	for _, id := range dialer.clientIDs {
		if !strings.HasPrefix(id, "node-") {
			t.Fatalf("client id %q lacks prefix", id)
		}
		if len(id) != len("node-")+8 {
			t.Fatalf("client id %q has unexpected shape", id)
		}
		if seen[id] {
			t.Fatalf("client id %q reused across attempts", id)
		}
		seen[id] = true
	}
}

func TestKeepAliveLossDropsToLinkUp(t *testing.T) {
	link := &fakeLink{succeedAt: 1, addr: "aa:bb:cc:dd:ee:04"}
	dialer := &fakeDialer{}
	m, _, metrics := newTestManager(link, dialer)

	upToSessionUp(t, m)
	first := dialer.last()
	first.alive = false

	m.Tick(context.Background())
	if m.State() != model.StateLinkUp {
		t.Fatalf("state = %s, want LINK_UP after keep-alive loss", m.State())
	}
	if !first.closed {
		t.Fatal("dead session not closed")
	}
	if got := testutil.ToFloat64(metrics.SessionDrops.WithLabelValues(obs.DropKeepAlive)); got != 1 {
		t.Fatalf("drop counter = %f", got)
	}

	// redial without waiting: the gate applies to failures, not drops
	m.Tick(context.Background())
	if m.State() != model.StateSessionUp || dialer.dials != 2 {
		t.Fatalf("state = %s, dials = %d", m.State(), dialer.dials)
	}
}

func TestLinkLossTearsDownSession(t *testing.T) {
	link := &fakeLink{succeedAt: 1, addr: "aa:bb:cc:dd:ee:05"}
	dialer := &fakeDialer{}
	m, _, metrics := newTestManager(link, dialer)

	upToSessionUp(t, m)
	link.up = false

	m.Tick(context.Background())
	if m.State() != model.StateDisconnected {
		t.Fatalf("state = %s, want DISCONNECTED after link loss", m.State())
	}
	if !dialer.last().closed {
		t.Fatal("session left open after link loss")
	}
	if got := testutil.ToFloat64(metrics.SessionDrops.WithLabelValues(obs.DropLinkLost)); got != 1 {
		t.Fatalf("drop counter = %f", got)
	}
}

// ---- publishing ----

func TestPublishRequiresSession(t *testing.T) {
	link := &fakeLink{succeedAt: 1, addr: "aa:bb:cc:dd:ee:06"}
	dialer := &fakeDialer{}
	m, _, _ := newTestManager(link, dialer)

	if err := m.PublishQoS0("t", []byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}

	upToSessionUp(t, m)
	if err := m.PublishQoS0("smartfarm/field-stats", []byte(`{"device_id":"d"}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	pubs := dialer.last().published
	if len(pubs) != 1 || pubs[0].qos != 0 || pubs[0].topic != "smartfarm/field-stats" {
		t.Fatalf("published = %+v", pubs)
	}
}

// ---- inbound commands ----

func deliver(t *testing.T, s *fakeSession, payload string) {
	t.Helper()
	h, ok := s.subs[testCmdTopic]
	if !ok {
		t.Fatal("no command subscription")
	}
	h(testCmdTopic, []byte(payload))
}

func TestCommandDispatchAndDedup(t *testing.T) {
	link := &fakeLink{succeedAt: 1, addr: "aa:bb:cc:dd:ee:07"}
	dialer := &fakeDialer{}
	m, _, metrics := newTestManager(link, dialer)

	var got []model.Command
	m.SetCommandHandler(func(c model.Command) { got = append(got, c) })

	upToSessionUp(t, m)
	s := dialer.last()

	cmd, _ := json.Marshal(model.Command{RequestID: "req-1", Action: model.ActionSample})
	deliver(t, s, string(cmd))
	deliver(t, s, string(cmd)) // broker redelivery

	m.Tick(context.Background())

	if len(got) != 1 {
		t.Fatalf("dispatched %d commands, want 1", len(got))
	}
	if got[0].RequestID != "req-1" || got[0].Action != model.ActionSample {
		t.Fatalf("command = %+v", got[0])
	}
	if d := testutil.ToFloat64(metrics.Commands.WithLabelValues(obs.CmdDuplicate)); d != 1 {
		t.Fatalf("duplicate counter = %f", d)
	}
}

func TestCommandTopicDevicePlaceholder(t *testing.T) {
	link := &fakeLink{succeedAt: 1, addr: "aa:bb:cc:dd:ee:09"}
	dialer := &fakeDialer{}
	clock := &fakeClock{}
	m := NewManager(Config{
		Broker:       broker.Config{Host: "broker.test", Port: 1883},
		CommandTopic: "smartfarm/cmd/{device}",
		AssocSpacing: time.Millisecond,
	}, link, dialer, clock, obs.NewMetrics(prometheus.NewRegistry()))

	m.Tick(context.Background())
	m.Tick(context.Background())
	if m.State() != model.StateSessionUp {
		t.Fatalf("state = %s", m.State())
	}
	if _, ok := dialer.last().subs["smartfarm/cmd/aa:bb:cc:dd:ee:09"]; !ok {
		t.Fatalf("subscriptions = %v, placeholder not expanded", dialer.last().subs)
	}
}

func TestCommandRejectsGarbage(t *testing.T) {
	link := &fakeLink{succeedAt: 1, addr: "aa:bb:cc:dd:ee:08"}
	dialer := &fakeDialer{}
	m, _, metrics := newTestManager(link, dialer)

	dispatched := 0
	m.SetCommandHandler(func(model.Command) { dispatched++ })

	upToSessionUp(t, m)
	s := dialer.last()

	deliver(t, s, `{not json`)
	deliver(t, s, `{"request_id":"r2","action":"reboot"}`)
	m.Tick(context.Background())

	if dispatched != 0 {
		t.Fatalf("dispatched = %d, want 0", dispatched)
	}
	if got := testutil.ToFloat64(metrics.Commands.WithLabelValues(obs.CmdBadPayload)); got != 1 {
		t.Fatalf("bad payload counter = %f", got)
	}
	if got := testutil.ToFloat64(metrics.Commands.WithLabelValues(obs.CmdUnknownAction)); got != 1 {
		t.Fatalf("unknown action counter = %f", got)
	}
}
