// Package notify delivers user-facing emails: OTP codes, welcome mails and
// streak reminders.
//
// Producers call a Publisher. Direct sends inline through a Sender. AMQP
// puts the message on a durable RabbitMQ queue and a Worker on the other
// side delivers it, skipping message IDs it has already sent.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Kind tags a message for logs and de-duplication.
type Kind string

const (
	KindOTP      Kind = "otp"
	KindWelcome  Kind = "welcome"
	KindReminder Kind = "reminder"
)

// Message is one email. ID is unique per logical message so a redelivered
// queue item is not mailed twice.
type Message struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage stamps a fresh ID and creation time.
func NewMessage(kind Kind, to, subject, body string) Message {
	return Message{
		ID:        uuid.NewString(),
		Kind:      kind,
		To:        to,
		Subject:   subject,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
}

// Sender delivers a message to its recipient.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Publisher hands a message off for delivery.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Direct is a Publisher that sends synchronously.
type Direct struct {
	sender Sender
	logger *slog.Logger
}

func NewDirect(sender Sender, logger *slog.Logger) *Direct {
	return &Direct{sender: sender, logger: logger}
}

func (d *Direct) Publish(ctx context.Context, msg Message) error {
	if err := d.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: sending %s to %s: %w", msg.Kind, msg.To, err)
	}
	d.logger.Debug("notification sent",
		slog.String("id", msg.ID),
		slog.String("kind", string(msg.Kind)),
	)
	return nil
}

// LogSender writes messages to the log instead of mailing them. It is used
// when SMTP is not configured, so OTP codes are still visible in development.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email (not sent, SMTP disabled)",
		slog.String("id", msg.ID),
		slog.String("kind", string(msg.Kind)),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body),
	)
	return nil
}
