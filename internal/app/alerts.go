package app

import (
	"context"

	domainTelegram "prayer_attendance/internal/domain/telegram"

	"github.com/sirupsen/logrus"
)

// Alerter reports conditions an operator has to fix by hand, such as a stream
// without a sub-admin. Alerts are best-effort.
type Alerter interface {
	Alert(ctx context.Context, text string)
}

// TelegramAlerter posts alerts to an operator chat.
type TelegramAlerter struct {
	client domainTelegram.Client
	chatID int64
	logger *logrus.Entry
}

func NewTelegramAlerter(client domainTelegram.Client, chatID int64, logger *logrus.Entry) *TelegramAlerter {
	return &TelegramAlerter{client: client, chatID: chatID, logger: logger}
}

func (a *TelegramAlerter) Alert(_ context.Context, text string) {
	if err := a.client.SendMessage(a.chatID, text, nil); err != nil {
		a.logger.WithError(err).WithField("alert", text).Error("Failed to deliver operator alert")
		return
	}
	a.logger.WithField("alert", text).Info("Operator alert delivered")
}

// LogAlerter is used when no operator chat is configured.
type LogAlerter struct {
	logger *logrus.Entry
}

func NewLogAlerter(logger *logrus.Entry) *LogAlerter {
	return &LogAlerter{logger: logger}
}

func (a *LogAlerter) Alert(_ context.Context, text string) {
	a.logger.WithField("alert", text).Error("Operator attention required")
}
