// Package bot provides the Telegram implementation of the message sender
package bot

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender delivers one message to one Telegram chat. It implements
// services.MessageSender: a single bounded-time attempt, no internal retry —
// escalation belongs to the delivery router.
type Sender struct{}

// NewSender creates a new Telegram sender
func NewSender() *Sender {
	return &Sender{}
}

// Send delivers text to the chat identified by channelAddress (a chat id in
// decimal form). Any transport error, including a timeout, is returned so
// the caller can fall back to the next sender.
func (s *Sender) Send(channelAddress, text string) error {
	if bot == nil {
		return fmt.Errorf("telegram bot not initialized")
	}
	chatID, err := strconv.ParseInt(channelAddress, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid channel address %q: %w", channelAddress, err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d failed: %w", chatID, err)
	}
	return nil
}
