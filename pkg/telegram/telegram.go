package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"

	"irrigation-control/internal/logging"
	"irrigation-control/internal/models"
	"irrigation-control/internal/utils"
)

// Notifier sends alarm messages to a fixed set of operator chats via
// the go-telegram/bot library. Implements engine.Notifier.
type Notifier struct {
	bot     *bot.Bot
	chatIDs []int64
	logger  *logging.Logger
}

// NewNotifier builds the bot client once. With no token or no chats,
// or when the client cannot be built, the notifier stays disabled and
// Notify becomes a no-op.
func NewNotifier(token string, chatIDs []int64, logger *logging.Logger) *Notifier {
	n := &Notifier{chatIDs: chatIDs, logger: logger}
	if token == "" || len(chatIDs) == 0 {
		return n
	}
	b, err := bot.New(token)
	if err != nil {
		logger.Errorf("Failed to initialize Telegram bot, notifications disabled: %v", err)
		return n
	}
	n.bot = b
	return n
}

// Notify delivers one alarm to every configured chat. Best-effort: the
// engine logs a failure and moves on.
func (n *Notifier) Notify(ctx context.Context, alarm models.Alarm, actuatorName string) error {
	if n.bot == nil {
		return nil
	}

	name := actuatorName
	if name == "" {
		name = alarm.ActuatorID
	}
	text := fmt.Sprintf(
		"*%s alarm*\nValve: %s\n%s\n_%s_",
		alarm.Severity, name, alarm.Message, alarm.Timestamp.Format(time.RFC3339),
	)

	return utils.Retry(n.logger, 3, time.Second, func() error {
		for _, chatID := range n.chatIDs {
			_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
				ChatID:    chatID,
				Text:      text,
				ParseMode: "Markdown",
			})
			if err != nil {
				return fmt.Errorf("failed to send to chat %d: %w", chatID, err)
			}
		}
		return nil
	})
}
