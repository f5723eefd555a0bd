package notify

import "context"

// Attachment is a file carried alongside a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is an outbound notification.
type Message struct {
	To          []string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Notifier dispatches messages. Implementations must not block on delivery.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Nop discards every message.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Message) error { return nil }
