// Package api provides handlers for external APIs and interfaces
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bagashp/esp32-telemetry-bot/internal/integration/openai"
	"github.com/bagashp/esp32-telemetry-bot/internal/usecases"
)

// ErrConflict means another bot instance is already long-polling with the
// same token. Fatal: a supervisor should not keep two instances flapping.
var ErrConflict = errors.New("another bot instance is already running")

const helpText = "Perintah yang tersedia:\n" +
	"/start - Aktifkan notifikasi\n" +
	"/stop - Hentikan notifikasi\n" +
	"/lokasi - Lokasi terakhir perangkat\n" +
	"/riwayat - 5 lokasi terakhir\n" +
	"/sensor - Data sensor terakhir\n" +
	"/alarm_mati - Matikan alarm\n" +
	"/hidupkan_alat - Hidupkan alat\n" +
	"/matikan_alat - Matikan alat\n" +
	"/help - Tampilkan pesan ini"

// TelegramBot handles interactions with the Telegram API
type TelegramBot struct {
	bot       *tgbotapi.BotAPI
	useCase   *usecases.TelemetryUseCase
	aiService openai.OpenAIService
}

// NewTelegramBot creates a new Telegram bot handler. aiService may be nil;
// free-text messages then get the help text instead of an interpreted reply.
func NewTelegramBot(botToken string, useCase *usecases.TelemetryUseCase, aiService openai.OpenAIService) (*TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %v", err)
	}

	return &TelegramBot{
		bot:       bot,
		useCase:   useCase,
		aiService: aiService,
	}, nil
}

// Send delivers one prepared message. Satisfies the notifier's Sender.
func (t *TelegramBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return t.bot.Send(c)
}

// Start polls for and handles Telegram updates until ctx is cancelled.
// Polling is done with explicit GetUpdates calls so a 409 conflict from a
// duplicate instance surfaces as ErrConflict instead of being retried
// forever inside the library.
func (t *TelegramBot) Start(ctx context.Context) error {
	log.Printf("Authorized on Telegram account %s", t.bot.Self.UserName)
	log.Println("Bot is now listening for messages...")

	offset := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30

		updates, err := t.bot.GetUpdates(u)
		if err != nil {
			var tgErr *tgbotapi.Error
			if errors.As(err, &tgErr) && tgErr.Code == 409 {
				return ErrConflict
			}
			log.Printf("Error fetching updates: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			if update.Message == nil {
				continue
			}

			log.Printf("Received message from %s (ID: %d): %s",
				update.Message.From.UserName,
				update.Message.From.ID,
				update.Message.Text)

			t.handleMessage(ctx, update)
		}
	}
}

// handleMessage processes a Telegram message update
func (t *TelegramBot) handleMessage(ctx context.Context, update tgbotapi.Update) {
	msg := tgbotapi.NewMessage(update.Message.Chat.ID, "")

	switch {
	case update.Message.IsCommand():
		t.handleCommand(ctx, update.Message, &msg)
	default:
		t.handleNonCommand(ctx, update.Message, &msg)
	}

	if msg.Text == "" {
		return
	}
	if _, err := t.bot.Send(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

// handleCommand processes commands like /start, /lokasi, etc.
func (t *TelegramBot) handleCommand(ctx context.Context, message *tgbotapi.Message, msg *tgbotapi.MessageConfig) {
	chatID := message.Chat.ID

	switch message.Command() {
	case "start":
		log.Printf("Handling /start command for chat %d", chatID)
		t.useCase.Activate(chatID)
		msg.Text = "👋 Selamat datang! Silakan pilih menu:"
		msg.ReplyMarkup = tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/lokasi"),
				tgbotapi.NewKeyboardButton("/riwayat"),
			),
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/sensor"),
				tgbotapi.NewKeyboardButton("/stop"),
			),
		)

	case "stop":
		log.Printf("Handling /stop command for chat %d", chatID)
		t.useCase.Deactivate(chatID)
		msg.Text = "🛑 Kamu telah menghentikan bot."
		msg.ReplyMarkup = tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/start"),
			),
		)

	case "lokasi":
		t.handleLocationCommand(chatID, msg)

	case "riwayat":
		t.handleHistoryCommand(chatID, msg)

	case "sensor":
		t.handleSensorCommand(chatID, msg)

	case "alarm_mati":
		log.Printf("Handling /alarm_mati command for chat %d", chatID)
		if err := t.useCase.SilenceAlarm(); err != nil {
			msg.Text = "Gagal mematikan alarm. Silakan coba lagi."
			log.Printf("Error silencing alarm: %v", err)
			return
		}
		msg.Text = "🔕 Alarm dimatikan."

	case "hidupkan_alat":
		log.Printf("Handling /hidupkan_alat command for chat %d", chatID)
		if err := t.useCase.PowerOn(); err != nil {
			msg.Text = "Gagal mengirim perintah. Silakan coba lagi."
			log.Printf("Error powering on device: %v", err)
			return
		}
		msg.Text = "⚡ Alat dihidupkan."

	case "matikan_alat":
		log.Printf("Handling /matikan_alat command for chat %d", chatID)
		if err := t.useCase.PowerOff(); err != nil {
			msg.Text = "Gagal mengirim perintah. Silakan coba lagi."
			log.Printf("Error powering off device: %v", err)
			return
		}
		msg.Text = "🔌 Alat dimatikan."

	case "help":
		log.Printf("Handling /help command for chat %d", chatID)
		msg.Text = helpText

	default:
		log.Printf("Received unknown command /%s from chat %d", message.Command(), chatID)
		msg.Text = "Perintah tidak dikenal. Gunakan /help untuk melihat daftar perintah."
	}
}

// handleLocationCommand processes the /lokasi command
func (t *TelegramBot) handleLocationCommand(chatID int64, msg *tgbotapi.MessageConfig) {
	log.Printf("Handling /lokasi command for chat %d", chatID)
	if !t.useCase.CanPull(chatID) {
		log.Printf("Chat %d is not activated, ignoring /lokasi", chatID)
		return
	}

	reading, err := t.useCase.LatestLocation()
	if err != nil {
		if errors.Is(err, usecases.ErrNoData) {
			msg.Text = "⚠️ Tidak ada data lokasi."
			return
		}
		msg.Text = "Gagal mengambil data lokasi. Silakan coba lagi."
		log.Printf("Error fetching latest location: %v", err)
		return
	}

	msg.Text = t.useCase.FormatLocation(reading)
	if _, err := t.bot.Send(tgbotapi.NewLocation(chatID, reading.Latitude, reading.Longitude)); err != nil {
		log.Printf("Error sending location to chat %d: %v", chatID, err)
	}
}

// handleHistoryCommand processes the /riwayat command
func (t *TelegramBot) handleHistoryCommand(chatID int64, msg *tgbotapi.MessageConfig) {
	log.Printf("Handling /riwayat command for chat %d", chatID)
	if !t.useCase.CanPull(chatID) {
		log.Printf("Chat %d is not activated, ignoring /riwayat", chatID)
		return
	}

	readings, err := t.useCase.LocationHistory()
	if err != nil {
		if errors.Is(err, usecases.ErrNoData) {
			msg.Text = "⚠️ Tidak ada riwayat."
			return
		}
		msg.Text = "Gagal mengambil riwayat. Silakan coba lagi."
		log.Printf("Error fetching location history: %v", err)
		return
	}

	msg.Text = t.useCase.FormatHistory(readings)
}

// handleSensorCommand processes the /sensor command
func (t *TelegramBot) handleSensorCommand(chatID int64, msg *tgbotapi.MessageConfig) {
	log.Printf("Handling /sensor command for chat %d", chatID)
	if !t.useCase.CanPull(chatID) {
		log.Printf("Chat %d is not activated, ignoring /sensor", chatID)
		return
	}

	reading, err := t.useCase.LatestSensor()
	if err != nil {
		if errors.Is(err, usecases.ErrNoData) {
			msg.Text = "⚠️ Tidak ada data sensor."
			return
		}
		msg.Text = "Gagal mengambil data sensor. Silakan coba lagi."
		log.Printf("Error fetching latest sensor reading: %v", err)
		return
	}

	msg.Text = t.useCase.FormatSensor(reading)
}

// handleNonCommand processes regular messages
func (t *TelegramBot) handleNonCommand(ctx context.Context, message *tgbotapi.Message, msg *tgbotapi.MessageConfig) {
	log.Printf("Received non-command message from chat %d: %s", message.Chat.ID, message.Text)

	if t.aiService == nil {
		msg.Text = "Aku tidak mengerti. Gunakan /help untuk melihat daftar perintah."
		return
	}

	resp, err := t.aiService.InterpretUserQuery(ctx, message.Text)
	if err != nil {
		log.Printf("Error interpreting user query: %v", err)
		msg.Text = "Maaf, aku sedang kesulitan memahami pesanmu. Gunakan /help untuk melihat daftar perintah."
		return
	}

	log.Printf("Agent response: Command='%s', Message='%s'", resp.CommandName, resp.UserMessage)

	switch resp.CommandName {
	case openai.CommandLatestLocation:
		t.handleLocationCommand(message.Chat.ID, msg)
	case openai.CommandHistory:
		t.handleHistoryCommand(message.Chat.ID, msg)
	case openai.CommandSensor:
		t.handleSensorCommand(message.Chat.ID, msg)
	default:
		if resp.UserMessage != "" {
			msg.Text = resp.UserMessage
			return
		}
		msg.Text = "Aku tidak mengerti. Gunakan /help untuk melihat daftar perintah."
	}
}
