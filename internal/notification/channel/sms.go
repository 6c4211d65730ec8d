package channel

import (
	"context"
	"fmt"
	"strings"

	"freelancer_ops_backend/platform/phone"
)

// SMSSender is implemented by TwilioSender.
type SMSSender interface {
	SMSConfigured() bool
	SendSMS(ctx context.Context, to, body string) error
}

// SMSProvider delivers text messages.
type SMSProvider struct {
	sender SMSSender
}

// NewSMSProvider creates the SMS provider. sender may be nil.
func NewSMSProvider(sender SMSSender) *SMSProvider {
	return &SMSProvider{sender: sender}
}

func (p *SMSProvider) Channel() Channel { return SMS }

// HealthCheck verifies the gateway credentials and sender number are set.
func (p *SMSProvider) HealthCheck() bool {
	return p != nil && p.sender != nil && p.sender.SMSConfigured()
}

func (p *SMSProvider) Send(ctx context.Context, msg Message, target Target) Result {
	to, err := resolvePhone(target)
	if err != nil {
		return failed(err)
	}
	if !p.HealthCheck() {
		return failed(fmt.Errorf("%w: SMS gateway credentials are not set", ErrNotConfigured))
	}
	if err := p.sender.SendSMS(ctx, to, textBody(msg)); err != nil {
		return failed(err)
	}
	return ok()
}

func resolvePhone(target Target) (string, error) {
	if strings.TrimSpace(target.PhoneNumber) == "" {
		return "", missing("no phone number configured")
	}
	normalized, err := phone.NormalizeE164(target.PhoneNumber, target.CountryCode)
	if err != nil {
		return "", missing("invalid phone number: %v", err)
	}
	return normalized, nil
}

// textBody flattens a message for plain text channels.
func textBody(msg Message) string {
	var b strings.Builder
	b.WriteString(msg.Title)
	if msg.Body != "" {
		b.WriteString("\n")
		b.WriteString(msg.Body)
	}
	if msg.URL != "" {
		b.WriteString("\n")
		b.WriteString(msg.URL)
	}
	return b.String()
}
