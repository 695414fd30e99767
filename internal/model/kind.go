package model

import "fmt"

// NodeKind selects which sensor suite a node runs. The two kinds share the
// whole architecture; only readers, wire record and display layout differ.
type NodeKind string

const (
	// KindFieldStats is the in-field node: thermistor + capacitive soil probe.
	KindFieldStats NodeKind = "field-stats"
	// KindWaterLevel is the tank node: ultrasonic ranger over the water surface.
	KindWaterLevel NodeKind = "water-level"
)

// ParseNodeKind validates a configured kind string.
func ParseNodeKind(s string) (NodeKind, error) {
	switch NodeKind(s) {
	case KindFieldStats, KindWaterLevel:
		return NodeKind(s), nil
	default:
		return "", fmt.Errorf("unknown node kind %q (want %q or %q)", s, KindFieldStats, KindWaterLevel)
	}
}
