// Package config loads the process configuration from the environment
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// MQTTConfig holds the broker connection settings
type MQTTConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	TLS         bool
	TLSInsecure bool
	ClientID    string
}

// TopicConfig holds the transport topic names, overridable per deployment
type TopicConfig struct {
	GPS    string
	Sensor string
	Alarm  string
	Notify string
}

// Config is the full process configuration
type Config struct {
	TelegramToken     string
	DBPath            string
	MQTT              MQTTConfig
	Topics            TopicConfig
	RequireActivation bool
	SummarySchedule   string
	OpenAIKey         string
}

// Load reads configuration from a .env file (if present) and the process
// environment. Missing required values are reported before any connection
// is attempted.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env file")
	}

	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DBPath:        getEnv("DB_PATH", ""),
		MQTT: MQTTConfig{
			Host:        os.Getenv("MQTT_HOST"),
			Port:        getEnvInt("MQTT_PORT", 8883),
			Username:    os.Getenv("MQTT_USERNAME"),
			Password:    os.Getenv("MQTT_PASSWORD"),
			TLS:         getEnvBool("MQTT_TLS", true),
			TLSInsecure: getEnvBool("MQTT_TLS_INSECURE", false),
			ClientID:    getEnv("MQTT_CLIENT_ID", "esp32-telemetry-bot"),
		},
		Topics: TopicConfig{
			GPS:    getEnv("MQTT_TOPIC_GPS", "esp32/gps"),
			Sensor: getEnv("MQTT_TOPIC_SENSOR", "esp32/sensor"),
			Alarm:  getEnv("MQTT_TOPIC_ALARM", "esp32/alarm"),
			Notify: getEnv("MQTT_TOPIC_NOTIFY", "esp32/notifikasi"),
		},
		RequireActivation: getEnvBool("REQUIRE_ACTIVATION", true),
		SummarySchedule:   "0 7 * * *",
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
	}
	// An explicitly empty schedule disables the daily summary
	if v, ok := os.LookupEnv("SUMMARY_SCHEDULE"); ok {
		cfg.SummarySchedule = v
	}

	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}
	if cfg.MQTT.Host == "" {
		return nil, fmt.Errorf("MQTT_HOST environment variable is not set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %t", key, v, fallback)
		return fallback
	}
	return b
}
