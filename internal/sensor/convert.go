package sensor

import "math"

// ====== Conversion constants ======
const (
	// FullScale is the top count of the 12-bit converter.
	FullScale = 4095

	// Beta / RefTempK: thermistor divider curve, referenced at 25 °C.
	Beta         = 3950.0
	RefTempK     = 298.15
	KelvinOffset = 273.15

	// Probe span of the capacitive soil sensor. Dry soil reads the larger
	// count on this probe type.
	SoilDryRaw = 3500
	SoilWetRaw = 1500

	// CmPerMicrosecond is half the speed of sound in air: the echo duration
	// covers the round trip.
	CmPerMicrosecond = 0.017
)

// ThermistorCelsius converts a raw divider count into degrees Celsius via
// the Beta equation. The count is clamped into [1, FullScale−1] first: the
// formula has a division by zero at full scale and a log domain error at
// zero, and a saturated converter must read as an implausible temperature,
// not as NaN.
func ThermistorCelsius(raw int) float64 {
	if raw < 1 {
		raw = 1
	}
	if raw >= FullScale {
		raw = FullScale - 1
	}
	x := float64(FullScale)/float64(raw) - 1
	tK := 1 / (math.Log(1/x)/Beta + 1/RefTempK)
	return tK - KelvinOffset
}

// SoilPercent remaps a probe count from [SoilWetRaw, SoilDryRaw] onto
// [100, 0] percent, clamped.
func SoilPercent(raw int) int {
	pct := (SoilDryRaw - raw) * 100 / (SoilDryRaw - SoilWetRaw)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

// EchoDistanceCm converts an echo round trip into centimetres.
func EchoDistanceCm(us int) float64 {
	return CmPerMicrosecond * float64(us)
}
