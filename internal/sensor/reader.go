package sensor

import (
	"log"

	"github.com/smartfarm-iot/telemetry-node/internal/hal"
	"github.com/smartfarm-iot/telemetry-node/internal/model"
)

// Readers never return errors: a failed hardware read surfaces as an
// implausible value instead (full-scale count, zero echo), so one bad cycle
// flows through display and publish like any other and the next cycle
// supersedes it.

// ThermistorReader samples the air-temperature channel.
type ThermistorReader struct {
	ADC hal.ADC
}

func (r ThermistorReader) Read() model.Measurement {
	raw, err := r.ADC.ReadRaw()
	if err != nil {
		log.Printf("sensor: thermistor read failed, reporting saturation: %v", err)
		raw = FullScale
	}
	return model.Measurement{Raw: raw, Value: ThermistorCelsius(raw), OK: true}
}

// SoilReader samples the soil-moisture channel. Value is the mapped percent.
type SoilReader struct {
	ADC hal.ADC
}

func (r SoilReader) Read() model.Measurement {
	raw, err := r.ADC.ReadRaw()
	if err != nil {
		log.Printf("sensor: soil read failed, reporting saturation: %v", err)
		raw = FullScale
	}
	return model.Measurement{Raw: raw, Value: float64(SoilPercent(raw)), OK: true}
}

// UltrasonicReader samples the tank ranger. A zero or negative echo duration
// is a hardware timeout, not a near-zero distance: the measurement comes
// back with OK false and must not be published.
type UltrasonicReader struct {
	Pulser hal.EchoPulser
}

func (r UltrasonicReader) Read() model.Measurement {
	us, err := r.Pulser.EchoMicros()
	if err != nil {
		log.Printf("sensor: echo read failed: %v", err)
		us = 0
	}
	if us <= 0 {
		return model.Measurement{OK: false}
	}
	return model.Measurement{Raw: us, Value: EchoDistanceCm(us), OK: true}
}
