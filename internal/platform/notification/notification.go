// Package notification delivers booking mail and WhatsApp messages from
// named templates and keeps a bounded delivery log operators can inspect
// and retry.
package notification

import (
	"context"
	"errors"
	"time"
)

// Channel is the transport a notification goes out on.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// Status tracks a delivery attempt.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

var (
	// ErrNotConfigured is returned by senders whose transport has no settings.
	ErrNotConfigured = errors.New("notification channel not configured")
	ErrNotFound      = errors.New("notification not found")
	ErrNotRetryable  = errors.New("only failed notifications can be retried")
)

// Notification is one outbound message and the outcome of its last attempt.
type Notification struct {
	ID           string            `json:"id"`
	Channel      Channel           `json:"channel"`
	Recipient    string            `json:"recipient"`
	Subject      string            `json:"subject,omitempty"`
	Body         string            `json:"body"`
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Status       Status            `json:"status"`
	Attempts     int               `json:"attempts"`
	CreatedAt    time.Time         `json:"created_at"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// EmailSender sends an HTML email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// WhatsAppSender sends a WhatsApp text message.
type WhatsAppSender interface {
	SendWhatsApp(ctx context.Context, to, body string) error
}

// Disabled stands in for unconfigured channels. Every send fails with
// ErrNotConfigured and is logged as failed.
type Disabled struct{}

func (Disabled) SendEmail(context.Context, string, string, string) error { return ErrNotConfigured }
func (Disabled) SendWhatsApp(context.Context, string, string) error      { return ErrNotConfigured }
