package broker

import (
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Config carries the broker endpoint and session parameters.
type Config struct {
	Host           string
	Port           int
	Username       string
	Password       string
	ClientID       string
	ConnectTimeout time.Duration
	KeepAlive      time.Duration
}

const (
	defaultConnectTimeout = 5 * time.Second
	defaultKeepAlive      = 30 * time.Second
)

// Addr formats the broker URL for the MQTT client.
func (c Config) Addr() string {
	return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port)
}

// ISession is the surface a live broker session exposes to the node.
type ISession interface {
	// Alive reports whether the session still holds its keep-alive.
	Alive() bool
	Publish(topic string, qos byte, payload []byte) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	Close()
}

// IDialer opens one session per call. Swapped for a fake in tests.
type IDialer interface {
	Dial(cfg Config) (ISession, error)
}

// PahoDialer dials a real MQTT broker. One attempt per call and
// auto-reconnect off: session recovery belongs to the connectivity state
// machine, so a failed or dropped session must come straight back to it.
type PahoDialer struct{}

func (PahoDialer) Dial(cfg Config) (ISession, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = defaultKeepAlive
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Addr())
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetKeepAlive(cfg.KeepAlive)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("broker %s: %w", cfg.Addr(), token.Error())
	}
	log.Printf("broker: session open at %s as %s", cfg.Addr(), cfg.ClientID)
	return &session{client: client}, nil
}

type session struct {
	client mqtt.Client
}

func (s *session) Alive() bool {
	return s.client.IsConnectionOpen()
}

func (s *session) Publish(topic string, qos byte, payload []byte) error {
	token := s.client.Publish(topic, qos, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("publish %s: %w", topic, token.Error())
	}
	return nil
}

func (s *session) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	token := s.client.Subscribe(topic, qos, func(_ mqtt.Client, m mqtt.Message) {
		handler(m.Topic(), m.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	return nil
}

func (s *session) Close() {
	s.client.Disconnect(250)
}
