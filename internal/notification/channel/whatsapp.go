package channel

import (
	"context"
	"fmt"
)

// GatewaySender is a direct WhatsApp gateway such as GOWA.
type GatewaySender interface {
	Configured() bool
	SendMessage(ctx context.Context, e164, message string) error
}

// WhatsAppSender is implemented by TwilioSender.
type WhatsAppSender interface {
	WhatsAppConfigured() bool
	SendWhatsApp(ctx context.Context, to, body string) error
}

// WhatsAppProvider prefers the self-hosted gateway when one is configured
// and falls back to Twilio's WhatsApp channel.
type WhatsAppProvider struct {
	gateway GatewaySender
	twilio  WhatsAppSender
}

// NewWhatsAppProvider creates the WhatsApp provider. Either sender may be nil.
func NewWhatsAppProvider(gateway GatewaySender, twilio WhatsAppSender) *WhatsAppProvider {
	return &WhatsAppProvider{gateway: gateway, twilio: twilio}
}

func (p *WhatsAppProvider) Channel() Channel { return WhatsApp }

func (p *WhatsAppProvider) useGateway() bool {
	return p.gateway != nil && p.gateway.Configured()
}

// HealthCheck verifies the selected gateway has its credentials.
func (p *WhatsAppProvider) HealthCheck() bool {
	if p == nil {
		return false
	}
	if p.useGateway() {
		return true
	}
	return p.twilio != nil && p.twilio.WhatsAppConfigured()
}

func (p *WhatsAppProvider) Send(ctx context.Context, msg Message, target Target) Result {
	to, err := resolvePhone(target)
	if err != nil {
		return failed(err)
	}
	if !p.HealthCheck() {
		return failed(fmt.Errorf("%w: WhatsApp gateway credentials are not set", ErrNotConfigured))
	}

	if p.useGateway() {
		err = p.gateway.SendMessage(ctx, to, textBody(msg))
	} else {
		err = p.twilio.SendWhatsApp(ctx, to, textBody(msg))
	}
	if err != nil {
		return failed(err)
	}
	return ok()
}
