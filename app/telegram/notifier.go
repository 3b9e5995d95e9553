package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier implements service.Notifier over the Telegram sendMessage API.
// It is deliberately independent of Bot so fulfillment can be wired before
// the polling front end exists.
type Notifier struct {
	api *tgbotapi.BotAPI
}

func NewNotifier(api *tgbotapi.BotAPI) *Notifier {
	return &Notifier{api: api}
}

func (n *Notifier) NotifyCustomer(_ context.Context, telegramID int64, message string) error {
	_, err := n.api.Send(tgbotapi.NewMessage(telegramID, message))
	return err
}
