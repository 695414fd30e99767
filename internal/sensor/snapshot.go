package sensor

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/smartfarm-iot/telemetry-node/internal/hal"
	"github.com/smartfarm-iot/telemetry-node/internal/model"
)

// ErrNoReading marks a cycle whose hardware produced nothing publishable
// (ultrasonic echo timeout). The display still shows the condition; the
// publisher skips the cycle.
var ErrNoReading = errors.New("no reading this cycle")

// Snapshot carries one sampling cycle's readings to the display and the
// publisher. The same snapshot feeds both: nothing re-samples between the
// display update and the publish attempt.
type Snapshot interface {
	// Lines renders the two display lines (line 2 may be empty).
	Lines() (string, string)
	// Payload builds the wire record tagged with the node's identity.
	Payload(device model.DeviceIdentity) ([]byte, error)
}

// Sampler takes one snapshot per cycle.
type Sampler interface {
	Sample() Snapshot
}

// ---- field-stats kind ----

// FieldSampler reads the thermistor and the soil probe in one cycle.
type FieldSampler struct {
	Thermistor ThermistorReader
	Soil       SoilReader
}

func NewFieldSampler(thermistor, soil hal.ADC) FieldSampler {
	return FieldSampler{
		Thermistor: ThermistorReader{ADC: thermistor},
		Soil:       SoilReader{ADC: soil},
	}
}

func (s FieldSampler) Sample() Snapshot {
	temp := s.Thermistor.Read()
	soil := s.Soil.Read()
	return FieldSnapshot{
		Temp:       temp,
		TempStatus: ClassifyTemperature(temp.Value),
		Soil:       soil,
		SoilStatus: ClassifySoil(soil.Raw),
	}
}

// FieldSnapshot is one field-node cycle: temperature plus soil moisture.
type FieldSnapshot struct {
	Temp       model.Measurement
	TempStatus model.Status
	Soil       model.Measurement // Raw is the probe count, Value the percent
	SoilStatus model.Status
}

func (s FieldSnapshot) Lines() (string, string) {
	line1 := fmt.Sprintf("T:%.1fC %s", s.Temp.Value, dispStatus(s.TempStatus))
	line2 := fmt.Sprintf("Soil:%d%% %s", int(s.Soil.Value), dispStatus(s.SoilStatus))
	return line1, line2
}

func (s FieldSnapshot) Payload(device model.DeviceIdentity) ([]byte, error) {
	return json.Marshal(model.FieldStats{
		DeviceID:          device.String(),
		Temperature:       s.Temp.Value,
		TemperatureStatus: string(s.TempStatus),
		SoilRaw:           s.Soil.Raw,
		SoilMoisture:      int(s.Soil.Value),
		SoilStatus:        string(s.SoilStatus),
	})
}

// ---- water-level kind ----

// WaterSampler reads the ultrasonic ranger.
type WaterSampler struct {
	Ranger UltrasonicReader
}

func NewWaterSampler(pulser hal.EchoPulser) WaterSampler {
	return WaterSampler{Ranger: UltrasonicReader{Pulser: pulser}}
}

func (s WaterSampler) Sample() Snapshot {
	level := s.Ranger.Read()
	snap := WaterSnapshot{Level: level}
	if level.OK {
		snap.Status = ClassifyWaterLevel(level.Value)
	}
	return snap
}

// WaterSnapshot is one tank-node cycle. Status is unset when the echo timed
// out this cycle.
type WaterSnapshot struct {
	Level  model.Measurement
	Status model.Status
}

func (s WaterSnapshot) Lines() (string, string) {
	if !s.Level.OK {
		return "L: --- NO ECHO", ""
	}
	return fmt.Sprintf("L:%.1fcm %s", s.Level.Value, dispStatus(s.Status)), ""
}

func (s WaterSnapshot) Payload(device model.DeviceIdentity) ([]byte, error) {
	if !s.Level.OK {
		return nil, ErrNoReading
	}
	return json.Marshal(model.WaterLevel{
		DeviceID:   device.String(),
		WaterLevel: int(s.Level.Value),
		DistanceCm: s.Level.Value,
		Status:     string(s.Status),
	})
}

// dispStatus shortens the long labels so a reading and its band fit a
// 16-character line.
func dispStatus(st model.Status) string {
	switch st {
	case model.StatusCriticalLow:
		return "CRIT"
	case model.StatusOptimal:
		return "OPT"
	default:
		return string(st)
	}
}
