package notifier

import (
	"context"
	"errors"
	"net"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"deadline-tracker/internal/model"
)

const channelTelegram = "telegram"

type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier mirrors reminders to users who linked a Telegram chat.
type TelegramNotifier struct {
	api      telegramSender
	renderer *Renderer
	log      *zap.Logger
}

// NewTelegramNotifier sends through an authorized bot API client shared with the chat bot.
func NewTelegramNotifier(api *tgbotapi.BotAPI, renderer *Renderer, log *zap.Logger) *TelegramNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &TelegramNotifier{api: api, renderer: renderer, log: log}
}

func (n *TelegramNotifier) Name() string { return channelTelegram }

func (n *TelegramNotifier) Reachable(user model.User) bool {
	return user.TelegramChatID != nil && *user.TelegramChatID != 0
}

func (n *TelegramNotifier) SendDeadlineBatch(ctx context.Context, user model.User, tasks []model.Task, leadDays int) error {
	return n.send(ctx, user, n.renderer.ChatDeadline(tasks, leadDays))
}

func (n *TelegramNotifier) SendDigest(ctx context.Context, user model.User, today, upcoming []model.Task) error {
	return n.send(ctx, user, n.renderer.ChatDigest(today, upcoming))
}

func (n *TelegramNotifier) send(ctx context.Context, user model.User, text string) error {
	if !n.Reachable(user) {
		return &DeliveryError{Category: CategoryRecipient, Channel: channelTelegram, Err: ErrUnreachable}
	}
	if err := ctx.Err(); err != nil {
		return &DeliveryError{Category: CategoryConnection, Channel: channelTelegram, Err: err}
	}

	msg := tgbotapi.NewMessage(*user.TelegramChatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := n.api.Send(msg); err != nil {
		return &DeliveryError{Category: classifyTelegram(err), Channel: channelTelegram, Err: err}
	}
	n.log.Debug("telegram message sent", zap.Uint("user_id", user.ID))
	return nil
}

func classifyTelegram(err error) Category {
	code := 0
	var apiErr *tgbotapi.Error
	var apiVal tgbotapi.Error
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiVal):
		code = apiVal.Code
	}
	if code != 0 {
		switch code {
		case 401:
			return CategoryAuth
		case 400, 403:
			return CategoryRecipient
		}
		return CategoryOther
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return CategoryConnection
	}
	return CategoryOther
}
