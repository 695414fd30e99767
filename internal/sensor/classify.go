package sensor

import "github.com/smartfarm-iot/telemetry-node/internal/model"

// ====== Status bands ======
// Lower bound inclusive, upper bound exclusive, open-ended at the extremes.
const (
	TempLowC  = 20.0
	TempHighC = 30.0

	LevelCriticalCm = 5.0
	LevelLowCm      = 10.0
	LevelHighCm     = 15.0
)

// ClassifyTemperature bands an air temperature in °C.
func ClassifyTemperature(c float64) model.Status {
	switch {
	case c < TempLowC:
		return model.StatusLow
	case c > TempHighC:
		return model.StatusHigh
	default:
		return model.StatusOK
	}
}

// ClassifySoil bands a soil probe count. The probe span endpoints belong to
// the outer bands: a count at SoilWetRaw already reads WET, at SoilDryRaw
// already DRY.
func ClassifySoil(raw int) model.Status {
	switch {
	case raw <= SoilWetRaw:
		return model.StatusWet
	case raw >= SoilDryRaw:
		return model.StatusDry
	default:
		return model.StatusOK
	}
}

// ClassifyWaterLevel bands a tank level in centimetres.
func ClassifyWaterLevel(cm float64) model.Status {
	switch {
	case cm < LevelCriticalCm:
		return model.StatusCriticalLow
	case cm < LevelLowCm:
		return model.StatusLow
	case cm < LevelHighCm:
		return model.StatusOptimal
	default:
		return model.StatusHigh
	}
}
