package broker

import "testing"

func TestConfigAddr(t *testing.T) {
	cfg := Config{Host: "broker.lan", Port: 1883}
	if got := cfg.Addr(); got != "tcp://broker.lan:1883" {
		t.Fatalf("Addr() = %q", got)
	}
}
