package sms

import "context"

// Message is a rendered, gateway-ready SMS.
type Message struct {
	SenderID   string
	TemplateID string
	Text       string
}

// Client defines an interface for the outbound SMS gateway.
// Phones are canonical (+country) numbers; adapters convert them as the gateway needs.
type Client interface {
	Send(ctx context.Context, msg Message, phone string) error
	SendBulk(ctx context.Context, msg Message, phones []string) error
}
