package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Email is a rendered message ready for delivery.
type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers rendered emails.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

type SendGridMailer struct {
	client   *sendgrid.Client
	fromName string
	fromAddr string
}

func NewSendGridMailer(apiKey, fromAddr, fromName string) *SendGridMailer {
	return &SendGridMailer{
		client:   sendgrid.NewSendClient(apiKey),
		fromName: fromName,
		fromAddr: fromAddr,
	}
}

func (m *SendGridMailer) Send(ctx context.Context, email Email) error {
	message := mail.NewSingleEmail(
		mail.NewEmail(m.fromName, m.fromAddr),
		email.Subject,
		mail.NewEmail("", email.To),
		email.Text,
		email.HTML,
	)

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogMailer writes emails to the log instead of sending them. Used when no
// provider key is configured.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, email Email) error {
	slog.InfoContext(ctx, "email not sent, no mail provider configured",
		"to", email.To,
		"subject", email.Subject,
		"body", email.Text)
	return nil
}
