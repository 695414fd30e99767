package messages

// FieldStats is the telemetry record a field node publishes each cycle.
// Field names follow the backend's ingestion schema; soil_moisture is the
// remapped percent, soil_raw the untouched ADC count it came from. The
// backend stamps the record on receipt, so there is no timestamp here.
type FieldStats struct {
	DeviceID          string  `json:"device_id"`
	Temperature       float64 `json:"temperature"`
	TemperatureStatus string  `json:"temperature_status"`
	SoilRaw           int     `json:"soil_raw"`
	SoilMoisture      int     `json:"soil_moisture"`
	SoilStatus        string  `json:"soil_status"`
}
