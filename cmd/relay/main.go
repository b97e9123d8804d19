package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/bagashp/esp32-telemetry-bot/internal/api"
	"github.com/bagashp/esp32-telemetry-bot/internal/config"
	"github.com/bagashp/esp32-telemetry-bot/internal/integration"
	"github.com/bagashp/esp32-telemetry-bot/internal/integration/openai"
	"github.com/bagashp/esp32-telemetry-bot/internal/notifier"
	"github.com/bagashp/esp32-telemetry-bot/internal/registry"
	"github.com/bagashp/esp32-telemetry-bot/internal/repository"
	"github.com/bagashp/esp32-telemetry-bot/internal/router"
	"github.com/bagashp/esp32-telemetry-bot/internal/usecases"
)

func main() {
	// Configure logging
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Starting ESP32 Telemetry Bot...")

	// Load configuration, failing before any connection is attempted
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize repository
	repo, err := repository.NewSQLiteReadingRepository(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize repository: %v", err)
	}

	// Recipient registry starts empty on every boot; chats re-activate
	// with /start
	reg := registry.NewRecipientRegistry()

	// MQTT client is built now but connected only after the topic routes
	// are registered
	mqttClient := integration.NewMQTTClient(cfg.MQTT)

	useCase := usecases.NewTelemetryUseCase(repo, reg, mqttClient, cfg.Topics.Alarm, cfg.RequireActivation)

	// Optional free-text interpretation agent
	var aiService openai.OpenAIService
	if cfg.OpenAIKey != "" {
		aiService, err = openai.NewOpenAIService(cfg.OpenAIKey)
		if err != nil {
			log.Printf("Warning: OpenAI service unavailable, free-text replies disabled: %v", err)
			aiService = nil
		}
	}

	// Initialize Telegram bot
	telegramBot, err := api.NewTelegramBot(cfg.TelegramToken, useCase, aiService)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram bot: %v", err)
	}

	notif := notifier.NewNotifier(telegramBot)
	rtr := router.New(repo, reg, notif, cfg.Topics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, topic := range rtr.Topics() {
		mqttClient.Route(topic, func(topic string, payload []byte) {
			rtr.OnMessage(ctx, topic, payload)
		})
	}

	if err := mqttClient.Connect(); err != nil {
		log.Fatalf("Failed to connect to MQTT broker: %v", err)
	}

	// Scheduled daily summary push
	var scheduler *cron.Cron
	if cfg.SummarySchedule != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.SummarySchedule, func() {
			text, loc, err := useCase.BuildDailySummary()
			if err != nil {
				if errors.Is(err, usecases.ErrNoData) {
					log.Println("Skipping daily summary: no readings yet")
				} else {
					log.Printf("Failed to build daily summary: %v", err)
				}
				return
			}
			notif.Notify(ctx, reg.Snapshot(), text, loc)
		})
		if err != nil {
			log.Fatalf("Failed to set up summary schedule %q: %v", cfg.SummarySchedule, err)
		}
		scheduler.Start()
		log.Printf("Daily summary scheduled: %s", cfg.SummarySchedule)
	}

	// Run the bot until a termination signal arrives
	err = telegramBot.Start(ctx)
	stop()

	log.Println("Shutting down, waiting for in-flight messages...")
	if scheduler != nil {
		scheduler.Stop()
	}
	rtr.Wait()
	mqttClient.Disconnect()
	if closeErr := repo.Close(); closeErr != nil {
		log.Printf("Error closing repository: %v", closeErr)
	}

	if err != nil {
		log.Fatalf("Telegram bot stopped: %v", err)
	}
	log.Println("Shutdown complete")
}
