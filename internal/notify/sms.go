package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

var ErrNoRecipient = errors.New("no recipient")

type SMSSender interface {
	Send(ctx context.Context, to, body string) error
	ProviderID() string
}

type TwilioSender struct {
	client *twilio.RestClient
	from   string
	logger *slog.Logger
}

func NewTwilioSender(accountSID, authToken, from string, logger *slog.Logger) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username:   accountSID,
		Password:   authToken,
		AccountSid: accountSID,
	})
	return &TwilioSender{client: client, from: from, logger: logger}
}

func (s *TwilioSender) ProviderID() string { return "twilio" }

// Send delivers body to an E.164 number. The Twilio client has no context
// support; ctx is only checked before the call.
func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !strings.HasPrefix(to, "+") {
		s.logger.Warn("sms recipient not in E.164 format", "to", to)
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}
	if resp != nil && resp.Sid != nil {
		s.logger.Debug("sms sent", "sid", *resp.Sid)
	}
	return nil
}

type NoopSMS struct {
	Logger *slog.Logger
}

func (n NoopSMS) ProviderID() string { return "sms-noop" }

func (n NoopSMS) Send(_ context.Context, to, body string) error {
	if n.Logger != nil {
		n.Logger.Info("sms skipped (no provider configured)", "to", to, "chars", len(body))
	}
	return nil
}
