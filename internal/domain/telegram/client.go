package telegram

import "gopkg.in/telebot.v3"

// Client sends operator alerts to a Telegram chat.
// It keeps the alerting code independent of the bot library setup.
type Client interface {
	SendMessage(chatID int64, text string, options *telebot.SendOptions) error
}
