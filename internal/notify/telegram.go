package notify

import (
	"context"
	"fmt"

	"github.com/adirsaban8-oss/ADIRS/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramAlerter posts owner alerts to a single chat.
type TelegramAlerter struct {
	bot    domain.TelegramSender
	chatID int64
	logger *zerolog.Logger
}

// NewTelegramBot connects to the Bot API. An empty token disables alerts.
func NewTelegramBot(token string) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, ErrDisabled
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: telegram bot: %w", err)
	}
	return bot, nil
}

func NewTelegramAlerter(bot domain.TelegramSender, chatID int64, logger *zerolog.Logger) *TelegramAlerter {
	return &TelegramAlerter{bot: bot, chatID: chatID, logger: logger}
}

func (t *TelegramAlerter) Alert(ctx context.Context, text string) error {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return ErrDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("notify: telegram send: %w", err)
	}
	return nil
}
