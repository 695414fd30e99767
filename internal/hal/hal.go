// Package hal abstracts the node's hardware: ADC channels, the ultrasonic
// echo pulser and the network link. Real deployments use the sysfs-backed
// drivers; bench runs use the sim drivers against a live broker.
package hal

// ADC reads one analog channel as a raw converter count.
type ADC interface {
	ReadRaw() (int, error)
}

// EchoPulser fires one ultrasonic ping and reports the echo round-trip in
// microseconds. A zero duration with nil error means the hardware timed out
// waiting for the echo (no reflecting surface in range).
type EchoPulser interface {
	EchoMicros() (int, error)
}

// Link is the radio/network link below the broker session.
type Link interface {
	// TryAssociate performs one association probe. nil means the link is up.
	TryAssociate() error
	// Associated reports current link liveness without probing.
	Associated() bool
	// HardwareAddr returns the link's hardware address. Only meaningful
	// once associated.
	HardwareAddr() (string, error)
}
