package telegram

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

type recordingSender struct {
	to   telebot.Recipient
	what interface{}
	opts []interface{}
	err  error
}

func (s *recordingSender) Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	s.to, s.what, s.opts = to, what, opts
	return &telebot.Message{}, s.err
}

func TestSendMessage(t *testing.T) {
	sender := &recordingSender{}
	adapter := NewTelebotAdapter(sender)

	require.NoError(t, adapter.SendMessage(-100123, "No sub-admin", nil))

	assert.Equal(t, "-100123", sender.to.Recipient())
	assert.Equal(t, "No sub-admin", sender.what)
	require.Len(t, sender.opts, 1)
	assert.True(t, sender.opts[0].(*telebot.SendOptions).DisableWebPagePreview)
}

func TestSendMessage_PropagatesError(t *testing.T) {
	adapter := NewTelebotAdapter(&recordingSender{err: errors.New("forbidden")})

	assert.Error(t, adapter.SendMessage(1, "x", nil))
}
