// Package notifier fans out push notifications to subscribed chats
package notifier

import (
	"context"
	"log"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/semaphore"

	"github.com/bagashp/esp32-telemetry-bot/internal/entities"
)

// maxConcurrentSends bounds in-flight Telegram API calls across all
// notification events
const maxConcurrentSends = 8

// Sender abstracts the Telegram send call so tests can substitute a fake
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier delivers a message to every recipient independently. One failed
// delivery never aborts the rest of the batch.
type Notifier struct {
	sender Sender
	sem    *semaphore.Weighted
}

// NewNotifier creates a notifier on top of the given sender
func NewNotifier(sender Sender) *Notifier {
	return &Notifier{
		sender: sender,
		sem:    semaphore.NewWeighted(maxConcurrentSends),
	}
}

// Notify sends text (and, when present, a location attachment) to each
// recipient. Delivery failures are logged per recipient and swallowed.
// Notify returns once every delivery attempt has finished.
func (n *Notifier) Notify(ctx context.Context, recipients []int64, text string, loc *entities.LocationReading) {
	if len(recipients) == 0 {
		return
	}
	log.Printf("Notifying %d recipient(s): %s", len(recipients), text)

	var wg sync.WaitGroup
	for _, chatID := range recipients {
		if err := n.sem.Acquire(ctx, 1); err != nil {
			log.Printf("Notification fan-out interrupted: %v", err)
			break
		}
		wg.Add(1)
		go func(chatID int64) {
			defer wg.Done()
			defer n.sem.Release(1)
			n.deliver(chatID, text, loc)
		}(chatID)
	}
	wg.Wait()
}

// deliver sends to one chat, isolating its failure from the batch
func (n *Notifier) deliver(chatID int64, text string, loc *entities.LocationReading) {
	if _, err := n.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("Error delivering notification to chat %d: %v", chatID, err)
		return
	}
	if loc != nil {
		if _, err := n.sender.Send(tgbotapi.NewLocation(chatID, loc.Latitude, loc.Longitude)); err != nil {
			log.Printf("Error delivering location to chat %d: %v", chatID, err)
		}
	}
}
