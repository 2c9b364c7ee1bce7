package notifier

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/semmidev/kibotos/internal/config"
)

// Telegram sends job summaries to a chat. Chunks themselves never go
// through here; this is notification only.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegram(cfg *config.TelegramConfig) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	var chatID int64
	if _, err := fmt.Sscanf(cfg.ChatID, "%d", &chatID); err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", cfg.ChatID, err)
	}

	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) Notify(message string) error {
	msg := tgbotapi.NewMessage(t.chatID, message)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}
