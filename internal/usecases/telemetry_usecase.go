// Package usecases contains the application's business logic
package usecases

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/bagashp/esp32-telemetry-bot/internal/entities"
	"github.com/bagashp/esp32-telemetry-bot/internal/registry"
	"github.com/bagashp/esp32-telemetry-bot/internal/repository"
)

// historyLimit bounds the /riwayat reply, newest first
const historyLimit = 5

// Device control strings. The device firmware expects these exact bare
// strings on the alarm topic, not JSON.
const (
	controlAlarmOff = "false"
	controlPowerOn  = "hidupkan"
	controlPowerOff = "matikan"
)

// ErrNoData signals an empty store to the caller, which turns it into a
// user-visible notice instead of an error reply
var ErrNoData = errors.New("no readings recorded yet")

// Publisher sends control messages toward the device
type Publisher interface {
	Publish(topic, payload string) error
}

// TelemetryUseCase handles business logic around readings, recipients and
// device control
type TelemetryUseCase struct {
	repo              repository.ReadingRepository
	registry          *registry.RecipientRegistry
	publisher         Publisher
	alarmTopic        string
	requireActivation bool
}

// NewTelemetryUseCase creates a new telemetry use case
func NewTelemetryUseCase(repo repository.ReadingRepository, reg *registry.RecipientRegistry, publisher Publisher, alarmTopic string, requireActivation bool) *TelemetryUseCase {
	return &TelemetryUseCase{
		repo:              repo,
		registry:          reg,
		publisher:         publisher,
		alarmTopic:        alarmTopic,
		requireActivation: requireActivation,
	}
}

// Activate subscribes a chat to push notifications
func (uc *TelemetryUseCase) Activate(chatID int64) {
	uc.registry.Activate(chatID)
	log.Printf("Chat %d activated (%d active)", chatID, uc.registry.Len())
}

// Deactivate unsubscribes a chat from push notifications
func (uc *TelemetryUseCase) Deactivate(chatID int64) {
	uc.registry.Deactivate(chatID)
	log.Printf("Chat %d deactivated (%d active)", chatID, uc.registry.Len())
}

// CanPull reports whether a chat may run pull commands. Gating on prior
// activation is a deployment choice, controlled by configuration.
func (uc *TelemetryUseCase) CanPull(chatID int64) bool {
	if !uc.requireActivation {
		return true
	}
	return uc.registry.Contains(chatID)
}

// LatestLocation returns the newest GPS reading, or ErrNoData when the store
// is empty
func (uc *TelemetryUseCase) LatestLocation() (*entities.LocationReading, error) {
	reading, err := uc.repo.LatestLocation()
	if err != nil {
		return nil, fmt.Errorf("failed to load latest location: %v", err)
	}
	if reading == nil {
		return nil, ErrNoData
	}
	return reading, nil
}

// LocationHistory returns the most recent GPS readings, newest first, or
// ErrNoData when the store is empty
func (uc *TelemetryUseCase) LocationHistory() ([]entities.LocationReading, error) {
	readings, err := uc.repo.RecentLocations(historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load location history: %v", err)
	}
	if len(readings) == 0 {
		return nil, ErrNoData
	}
	return readings, nil
}

// LatestSensor returns the newest sensor reading, or ErrNoData when the
// store is empty
func (uc *TelemetryUseCase) LatestSensor() (*entities.SensorReading, error) {
	reading, err := uc.repo.LatestSensor()
	if err != nil {
		return nil, fmt.Errorf("failed to load latest sensor reading: %v", err)
	}
	if reading == nil {
		return nil, ErrNoData
	}
	return reading, nil
}

// SilenceAlarm tells the device to stop the alarm
func (uc *TelemetryUseCase) SilenceAlarm() error {
	return uc.publisher.Publish(uc.alarmTopic, controlAlarmOff)
}

// PowerOn tells the device to power its controlled appliance on
func (uc *TelemetryUseCase) PowerOn() error {
	return uc.publisher.Publish(uc.alarmTopic, controlPowerOn)
}

// PowerOff tells the device to power its controlled appliance off
func (uc *TelemetryUseCase) PowerOff() error {
	return uc.publisher.Publish(uc.alarmTopic, controlPowerOff)
}

// FormatLocation formats a single GPS reading for display
func (uc *TelemetryUseCase) FormatLocation(reading *entities.LocationReading) string {
	return fmt.Sprintf("📍 Lokasi terakhir: %v, %v\n🕒 %s",
		reading.Latitude, reading.Longitude,
		reading.RecordedAt.Format("2006-01-02 15:04:05"))
}

// FormatHistory formats the location history as a numbered list
func (uc *TelemetryUseCase) FormatHistory(readings []entities.LocationReading) string {
	var result strings.Builder
	result.WriteString("📍 Riwayat Lokasi:\n\n")
	for i, reading := range readings {
		result.WriteString(fmt.Sprintf("%d. Lat: %v, Long: %v\n   🕒 %s\n",
			i+1, reading.Latitude, reading.Longitude,
			reading.RecordedAt.Format("2006-01-02 15:04:05")))
	}
	return result.String()
}

// FormatSensor formats a sensor reading, skipping fields the device omitted
func (uc *TelemetryUseCase) FormatSensor(reading *entities.SensorReading) string {
	var result strings.Builder
	result.WriteString("Data sensor terakhir:\n")
	if reading.Temperature != nil {
		result.WriteString(fmt.Sprintf("🌡️ Suhu: %v °C\n", *reading.Temperature))
	}
	if reading.Humidity != nil {
		result.WriteString(fmt.Sprintf("💧 Kelembaban: %v%%\n", *reading.Humidity))
	}
	result.WriteString(fmt.Sprintf("🕒 %s", reading.RecordedAt.Format("2006-01-02 15:04:05")))
	return result.String()
}

// BuildDailySummary assembles the scheduled summary push: the latest sensor
// reading plus the latest location when available. Returns ErrNoData when the
// store holds nothing at all.
func (uc *TelemetryUseCase) BuildDailySummary() (string, *entities.LocationReading, error) {
	sensor, err := uc.repo.LatestSensor()
	if err != nil {
		return "", nil, fmt.Errorf("failed to load sensor reading for summary: %v", err)
	}
	loc, err := uc.repo.LatestLocation()
	if err != nil {
		return "", nil, fmt.Errorf("failed to load location for summary: %v", err)
	}
	if sensor == nil && loc == nil {
		return "", nil, ErrNoData
	}

	var result strings.Builder
	result.WriteString("☀️ Ringkasan harian perangkat\n\n")
	if sensor != nil {
		result.WriteString(uc.FormatSensor(sensor))
	}
	if loc != nil {
		if sensor != nil {
			result.WriteString("\n\n")
		}
		result.WriteString(uc.FormatLocation(loc))
	}
	return result.String(), loc, nil
}
