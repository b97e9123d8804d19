package config

import (
	"testing"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("MQTT_HOST", "broker.example.com")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.MQTT.Port != 8883 {
		t.Errorf("Expected default port 8883, got %d", cfg.MQTT.Port)
	}
	if !cfg.MQTT.TLS {
		t.Error("Expected TLS enabled by default")
	}
	if cfg.Topics.GPS != "esp32/gps" {
		t.Errorf("Expected default GPS topic, got %s", cfg.Topics.GPS)
	}
	if cfg.Topics.Notify != "esp32/notifikasi" {
		t.Errorf("Expected default notification topic, got %s", cfg.Topics.Notify)
	}
	if !cfg.RequireActivation {
		t.Error("Expected activation gating enabled by default")
	}
}

func TestLoadMissingToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("MQTT_HOST", "broker.example.com")

	if _, err := Load(); err == nil {
		t.Fatal("Expected error for missing TELEGRAM_BOT_TOKEN")
	}
}

func TestLoadMissingBrokerHost(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("MQTT_HOST", "")

	if _, err := Load(); err == nil {
		t.Fatal("Expected error for missing MQTT_HOST")
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("MQTT_PORT", "1883")
	t.Setenv("MQTT_TLS", "false")
	t.Setenv("MQTT_TOPIC_GPS", "tracker/gps")
	t.Setenv("REQUIRE_ACTIVATION", "false")
	t.Setenv("SUMMARY_SCHEDULE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.MQTT.Port != 1883 {
		t.Errorf("Expected port 1883, got %d", cfg.MQTT.Port)
	}
	if cfg.MQTT.TLS {
		t.Error("Expected TLS disabled")
	}
	if cfg.Topics.GPS != "tracker/gps" {
		t.Errorf("Expected overridden GPS topic, got %s", cfg.Topics.GPS)
	}
	if cfg.RequireActivation {
		t.Error("Expected activation gating disabled")
	}
	if cfg.SummarySchedule != "" {
		t.Errorf("Expected empty schedule to disable the summary, got %q", cfg.SummarySchedule)
	}
}

func TestLoadInvalidPortFallsBack(t *testing.T) {
	setRequired(t)
	t.Setenv("MQTT_PORT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MQTT.Port != 8883 {
		t.Errorf("Expected fallback port 8883, got %d", cfg.MQTT.Port)
	}
}
