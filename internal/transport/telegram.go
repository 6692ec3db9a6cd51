package transport

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramTransport delivers reminders as Telegram messages. The recipient
// is the chat id as a decimal string.
type TelegramTransport struct {
	bot *tgbotapi.BotAPI
}

// NewTelegram creates a Telegram transport with the given bot token.
func NewTelegram(token string) (*TelegramTransport, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramTransport{bot: bot}, nil
}

// Deliver sends one message to the recipient chat.
func (t *TelegramTransport) Deliver(ctx context.Context, recipient, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", recipient, err)
	}

	msg := tgbotapi.NewMessage(chatID, FormatTelegramMessage(subject, body))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

// FormatTelegramMessage joins subject and body into one message text.
func FormatTelegramMessage(subject, body string) string {
	if body == "" {
		return subject
	}
	return subject + "\n\n" + body
}
