package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridMailer sends plain text email with a minimal HTML alternative.
type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGridMailer(apiKey, fromEmail, fromName string) *SendGridMailer {
	return &SendGridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromEmail),
	}
}

func (m *SendGridMailer) Send(ctx context.Context, toEmail, toName, subject, body string) error {
	if strings.TrimSpace(toEmail) == "" {
		return ErrNoRecipient
	}
	msg := mail.NewSingleEmail(m.from, subject, mail.NewEmail(toName, toEmail), body, plainToHTML(body))

	resp, err := m.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func plainToHTML(body string) string {
	return "<p>" + strings.ReplaceAll(html.EscapeString(body), "\n", "<br>") + "</p>"
}

// NoopMailer logs instead of sending. Used in dev when SendGrid is not
// configured.
type NoopMailer struct {
	Logger *slog.Logger
}

func (n NoopMailer) Send(_ context.Context, toEmail, _, subject, body string) error {
	if n.Logger != nil {
		n.Logger.Info("email skipped (no provider configured)", "to", toEmail, "subject", subject, "body", body)
	}
	return nil
}
