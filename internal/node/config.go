package node

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/smartfarm-iot/telemetry-node/internal/model"
)

type Config struct {
	Kind     string         `yaml:"kind"`
	PeriodMs uint32         `yaml:"period_ms"`
	PollMs   uint32         `yaml:"poll_ms"`
	Iface    string         `yaml:"iface"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Topics   TopicsConfig   `yaml:"topics"`
	Hardware HardwareConfig `yaml:"hardware"`
	Sim      SimConfig      `yaml:"sim"`
	Display  DisplayConfig  `yaml:"display"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type MQTTConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	ClientPrefix string `yaml:"client_prefix"`
}

type TopicsConfig struct {
	FieldStats string `yaml:"field_stats"`
	WaterLevel string `yaml:"water_level"`
	Command    string `yaml:"command"`
}

// HardwareConfig points the sysfs drivers at their attributes. Unused when
// the node runs simulated hardware.
type HardwareConfig struct {
	ThermistorRawPath string `yaml:"thermistor_raw_path"`
	SoilRawPath       string `yaml:"soil_raw_path"`
	EchoMicrosPath    string `yaml:"echo_us_path"`
}

type SimConfig struct {
	Enabled bool  `yaml:"enabled"`
	Seed    int64 `yaml:"seed"`
	// LinkUpAfter: probes before the sim link associates.
	LinkUpAfter int     `yaml:"link_up_after"`
	Addr        string  `yaml:"addr"`
	NoEchoProb  float64 `yaml:"no_echo_prob"`
}

type DisplayConfig struct {
	Width int `yaml:"width"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads the YAML file, applies defaults and the MQTT_* environment
// overrides, and validates.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ---- ENV ----

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func (c *Config) applyEnv() {
	c.MQTT.Host = env("MQTT_HOST", c.MQTT.Host)
	c.MQTT.Port = envInt("MQTT_PORT", c.MQTT.Port)
	c.MQTT.Username = env("MQTT_USERNAME", c.MQTT.Username)
	c.MQTT.Password = env("MQTT_PASSWORD", c.MQTT.Password)
}

func (c *Config) applyDefaults() {
	if c.PeriodMs == 0 {
		c.PeriodMs = 5000
	}
	if c.PollMs == 0 {
		c.PollMs = 100
	}
	if c.MQTT.Port == 0 {
		c.MQTT.Port = 1883
	}
	if c.MQTT.ClientPrefix == "" {
		c.MQTT.ClientPrefix = "node"
	}
	if c.Topics.FieldStats == "" {
		c.Topics.FieldStats = "smartfarm/field-stats"
	}
	if c.Topics.WaterLevel == "" {
		c.Topics.WaterLevel = "smartfarm/water-level"
	}
	if c.Topics.Command == "" {
		c.Topics.Command = "smartfarm/cmd/{device}"
	}
	if c.Display.Width == 0 {
		c.Display.Width = 16
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Sim.Enabled {
		if c.Sim.Seed == 0 {
			c.Sim.Seed = time.Now().UnixNano()
		}
		if c.Sim.LinkUpAfter == 0 {
			c.Sim.LinkUpAfter = 1
		}
		if c.Sim.Addr == "" {
			c.Sim.Addr = "02:00:00:aa:bb:01"
		}
	}
}

func (c *Config) validate() error {
	kind, err := model.ParseNodeKind(c.Kind)
	if err != nil {
		return err
	}
	if c.MQTT.Host == "" {
		return fmt.Errorf("mqtt.host is required")
	}
	if c.MQTT.Port <= 0 || c.MQTT.Port > 65535 {
		return fmt.Errorf("mqtt.port %d out of range", c.MQTT.Port)
	}
	if c.Sim.Enabled {
		return nil
	}
	if c.Iface == "" {
		return fmt.Errorf("iface is required without sim hardware")
	}
	switch kind {
	case model.KindFieldStats:
		if c.Hardware.ThermistorRawPath == "" || c.Hardware.SoilRawPath == "" {
			return fmt.Errorf("hardware.thermistor_raw_path and hardware.soil_raw_path are required for %s", kind)
		}
	case model.KindWaterLevel:
		if c.Hardware.EchoMicrosPath == "" {
			return fmt.Errorf("hardware.echo_us_path is required for %s", kind)
		}
	}
	return nil
}

// NodeKind is the validated kind. Call after Load.
func (c *Config) NodeKind() model.NodeKind {
	kind, _ := model.ParseNodeKind(c.Kind)
	return kind
}

// TelemetryTopic is the outbound topic for this node's kind.
func (c *Config) TelemetryTopic() string {
	if c.NodeKind() == model.KindWaterLevel {
		return c.Topics.WaterLevel
	}
	return c.Topics.FieldStats
}
