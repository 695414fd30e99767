package model

// Status is the classification band a measurement falls in. The variant set
// depends on the sensor kind (soil: WET/OK/DRY, temperature: LOW/OK/HIGH,
// water level: CRITICAL_LOW/LOW/OPTIMAL/HIGH) but the wire encoding is the
// same uppercase token for all of them.
type Status string

const (
	StatusWet         Status = "WET"
	StatusOK          Status = "OK"
	StatusDry         Status = "DRY"
	StatusLow         Status = "LOW"
	StatusHigh        Status = "HIGH"
	StatusCriticalLow Status = "CRITICAL_LOW"
	StatusOptimal     Status = "OPTIMAL"
)

// Measurement is one sensor sample: the raw transducer count and the physical
// value derived from it. OK is false when the hardware produced no usable
// reading this cycle (ultrasonic echo timeout); raw/value are zero then.
type Measurement struct {
	Raw   int     `json:"raw"`
	Value float64 `json:"value"`
	OK    bool    `json:"ok"`
}
