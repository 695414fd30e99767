package sensor

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/smartfarm-iot/telemetry-node/internal/model"
)

func TestFieldSnapshotPayload(t *testing.T) {
	s := NewFieldSampler(fakeADC{n: 2048}, fakeADC{n: 2500})
	snap := s.Sample()

	b, err := snap.Payload(model.DeviceIdentity("a4:cf:12:9b:33:01"))
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	var rec model.FieldStats
	if err := json.Unmarshal(b, &rec); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if rec.DeviceID != "a4:cf:12:9b:33:01" {
		t.Errorf("device_id = %q", rec.DeviceID)
	}
	if rec.Temperature < 24.8 || rec.Temperature > 25.2 {
		t.Errorf("temperature = %v, want ≈25", rec.Temperature)
	}
	if rec.TemperatureStatus != "OK" {
		t.Errorf("temperature_status = %q", rec.TemperatureStatus)
	}
	if rec.SoilRaw != 2500 || rec.SoilMoisture != 50 || rec.SoilStatus != "OK" {
		t.Errorf("soil fields = %d/%d/%s, want 2500/50/OK", rec.SoilRaw, rec.SoilMoisture, rec.SoilStatus)
	}

	// wire names must stay stable for the backend
	var keys map[string]any
	if err := json.Unmarshal(b, &keys); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"device_id", "temperature", "temperature_status", "soil_raw", "soil_moisture", "soil_status"} {
		if _, ok := keys[k]; !ok {
			t.Errorf("payload missing key %q", k)
		}
	}
}

func TestFieldSnapshotLines(t *testing.T) {
	s := NewFieldSampler(fakeADC{n: 2048}, fakeADC{n: 2500})
	l1, l2 := s.Sample().Lines()
	if l1 != "T:25.0C OK" {
		t.Errorf("line1 = %q", l1)
	}
	if l2 != "Soil:50% OK" {
		t.Errorf("line2 = %q", l2)
	}
}

func TestWaterSnapshotPayload(t *testing.T) {
	s := NewWaterSampler(fakeEcho{us: 700}) // 11.9 cm → OPTIMAL
	snap := s.Sample()

	b, err := snap.Payload(model.DeviceIdentity("02:00:00:aa:bb:01"))
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	var rec model.WaterLevel
	if err := json.Unmarshal(b, &rec); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if rec.DeviceID != "02:00:00:aa:bb:01" {
		t.Errorf("device_id = %q", rec.DeviceID)
	}
	if rec.WaterLevel != 11 {
		t.Errorf("water_level = %d, want 11", rec.WaterLevel)
	}
	if rec.DistanceCm != 0.017*700 {
		t.Errorf("distance_cm = %v", rec.DistanceCm)
	}
	if rec.Status != "OPTIMAL" {
		t.Errorf("status = %q", rec.Status)
	}
}

func TestWaterSnapshotNoEcho(t *testing.T) {
	snap := NewWaterSampler(fakeEcho{us: 0}).Sample()

	if _, err := snap.Payload(model.DeviceIdentity("x")); !errors.Is(err, ErrNoReading) {
		t.Fatalf("Payload err = %v, want ErrNoReading", err)
	}
	l1, l2 := snap.Lines()
	if l1 != "L: --- NO ECHO" || l2 != "" {
		t.Errorf("lines = %q / %q", l1, l2)
	}
}

func TestWaterSnapshotShortLabels(t *testing.T) {
	snap := NewWaterSampler(fakeEcho{us: 200}).Sample() // 3.4 cm → CRITICAL_LOW
	l1, _ := snap.Lines()
	if l1 != "L:3.4cm CRIT" {
		t.Errorf("line1 = %q", l1)
	}
}
