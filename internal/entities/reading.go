// Package entities contains the core domain objects for the telemetry bot
package entities

import (
	"time"
)

// LocationReading represents a single GPS observation reported by the device
type LocationReading struct {
	ID         int64
	Latitude   float64   // Decimal degrees, north positive
	Longitude  float64   // Decimal degrees, east positive
	RecordedAt time.Time // When the reading was recorded
}

// SensorReading represents a single environment observation. Devices may
// report only one of the two fields, so both are optional.
type SensorReading struct {
	ID          int64
	Temperature *float64 // °C
	Humidity    *float64 // Relative humidity, percent
	RecordedAt  time.Time
}
