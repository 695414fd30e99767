// Package nodetap is a bench utility: it watches node topics on a broker,
// decodes the wire records and prints one line per message, flagging
// payloads the backend would reject. It can also inject a sample command
// to make a node publish out of cadence.
package nodetap

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/smartfarm-iot/telemetry-node/internal/model"
	"github.com/smartfarm-iot/telemetry-node/pkg/broker"
)

type Config struct {
	FieldStatsTopic string
	WaterLevelTopic string
	// CommandTopic is watched too when non-empty (the node-side template
	// must be expanded to a concrete device here).
	CommandTopic string
}

type Tap struct {
	session broker.ISession
	cfg     Config

	mu  sync.Mutex
	out io.Writer
}

func New(session broker.ISession, cfg Config, out io.Writer) *Tap {
	return &Tap{session: session, cfg: cfg, out: out}
}

// Start subscribes the tap's topics; lines print as messages arrive.
func (t *Tap) Start() error {
	topics := []string{t.cfg.FieldStatsTopic, t.cfg.WaterLevelTopic}
	if t.cfg.CommandTopic != "" {
		topics = append(topics, t.cfg.CommandTopic)
	}
	for _, topic := range topics {
		if topic == "" {
			continue
		}
		if err := t.session.Subscribe(topic, 0, t.handle); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tap) handle(topic string, payload []byte) {
	line := Render(t.cfg, topic, payload)
	t.mu.Lock()
	fmt.Fprintln(t.out, line)
	t.mu.Unlock()
}

// Render decodes one message into its tap line.
func Render(cfg Config, topic string, payload []byte) string {
	switch topic {
	case cfg.FieldStatsTopic:
		var rec model.FieldStats
		if err := json.Unmarshal(payload, &rec); err != nil || rec.DeviceID == "" {
			return malformed(topic, payload)
		}
		return fmt.Sprintf("%s  %s  temp=%.1fC/%s soil=%d%%/%s raw=%d",
			topic, rec.DeviceID, rec.Temperature, rec.TemperatureStatus,
			rec.SoilMoisture, rec.SoilStatus, rec.SoilRaw)

	case cfg.WaterLevelTopic:
		var rec model.WaterLevel
		if err := json.Unmarshal(payload, &rec); err != nil || rec.DeviceID == "" {
			return malformed(topic, payload)
		}
		return fmt.Sprintf("%s  %s  level=%dcm/%s dist=%.1fcm",
			topic, rec.DeviceID, rec.WaterLevel, rec.Status, rec.DistanceCm)

	default:
		var cmd model.Command
		if err := json.Unmarshal(payload, &cmd); err != nil || cmd.Action == "" {
			return malformed(topic, payload)
		}
		return fmt.Sprintf("%s  command %s request=%s", topic, cmd.Action, cmd.RequestID)
	}
}

func malformed(topic string, payload []byte) string {
	return fmt.Sprintf("%s  MALFORMED %q", topic, payload)
}

// SendSample publishes one sample command on topic at QoS 1, with a fresh
// request id so node-side dedup never eats it.
func SendSample(session broker.ISession, topic string) error {
	b, err := json.Marshal(model.Command{
		RequestID: uuid.New().String(),
		Action:    model.ActionSample,
	})
	if err != nil {
		return err
	}
	return session.Publish(topic, 1, b)
}
