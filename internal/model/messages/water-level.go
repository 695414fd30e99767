package messages

// WaterLevel is the telemetry record a tank node publishes each cycle.
// water_level is the whole-centimetre value the backend ingests,
// distance_cm the measured float it was truncated from.
type WaterLevel struct {
	DeviceID   string  `json:"device_id"`
	WaterLevel int     `json:"water_level"`
	DistanceCm float64 `json:"distance_cm"`
	Status     string  `json:"status"`
}
