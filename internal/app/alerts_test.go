package app

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"gopkg.in/telebot.v3"
)

type stubTelegram struct {
	chatID int64
	text   string
	err    error
}

func (s *stubTelegram) SendMessage(chatID int64, text string, _ *telebot.SendOptions) error {
	s.chatID, s.text = chatID, text
	return s.err
}

func TestTelegramAlerter(t *testing.T) {
	client := &stubTelegram{}
	logger, hook := test.NewNullLogger()

	NewTelegramAlerter(client, -100, logrus.NewEntry(logger)).Alert(context.Background(), "no sub-admin for FEMALE")

	assert.Equal(t, int64(-100), client.chatID)
	assert.Equal(t, "no sub-admin for FEMALE", client.text)
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
}

func TestTelegramAlerter_DeliveryFailureIsLogged(t *testing.T) {
	logger, hook := test.NewNullLogger()

	NewTelegramAlerter(&stubTelegram{err: errors.New("forbidden")}, 1, logrus.NewEntry(logger)).
		Alert(context.Background(), "chunk failed")

	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "chunk failed", hook.LastEntry().Data["alert"])
}

func TestLogAlerter(t *testing.T) {
	logger, hook := test.NewNullLogger()

	NewLogAlerter(logrus.NewEntry(logger)).Alert(context.Background(), "check sub-admins")

	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "check sub-admins", hook.LastEntry().Data["alert"])
}
