// Package telegram is a notify.Sink that posts fishing status updates
// through a Telegram bot, grounded on the teacher's
// internal/remote/telegram.NewBot retry-on-construct pattern, with the
// backoff loop itself factored out to notify.WithConstructRetry so it's
// shared construction-time behavior rather than a reimplementation.
package telegram

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bailanluo/autofish/internal/fishing"
	"github.com/bailanluo/autofish/internal/notify"
)

// Sink posts a short line to a Telegram chat for every Status it is handed.
type Sink struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

// New authenticates a Telegram bot with token, retrying on the transient
// network failures api.telegram.org occasionally returns during startup.
func New(token string, chatID int64, logger *slog.Logger) (*Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var api *tgbotapi.BotAPI
	err := notify.WithConstructRetry(notify.DefaultRetryConfig(), logger, "telegram", func() error {
		bot, err := tgbotapi.NewBotAPI(token)
		if err != nil {
			return err
		}
		api = bot
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Sink{bot: api, chatID: chatID, logger: logger}, nil
}

// Notify implements notify.Sink.
func (s *Sink) Notify(status fishing.Status) {
	text := fmt.Sprintf("phase=%s round=%d", status.Phase, status.RoundCount)
	if status.LastError != "" {
		text += fmt.Sprintf(" last_error=%q", status.LastError)
	}
	msg := tgbotapi.NewMessage(s.chatID, text)
	if _, err := s.bot.Send(msg); err != nil {
		s.logger.Error("telegram: send failed", slog.Any("error", err))
	}
}
