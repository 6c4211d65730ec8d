package channel

import (
	"context"
	"fmt"
	"time"

	"freelancer_ops_backend/platform/config"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// MessageCreator is the subset of the Twilio REST API used here.
type MessageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender sends SMS and WhatsApp messages through Twilio.
type TwilioSender struct {
	api          MessageCreator
	smsFrom      string
	whatsAppFrom string
}

const defaultTwilioTimeout = 10 * time.Second

// NewTwilioSender builds a sender from config. Returns nil when the account
// credentials are missing.
//
// The Twilio API takes no context, so the dispatcher's channel timeout only
// abandons the call. The HTTP timeout is capped to that same budget so an
// abandoned request cannot still deliver long after it was logged as failed.
func NewTwilioSender(cfg config.TwilioConfig, channelTimeout time.Duration) *TwilioSender {
	if cfg.GetTwilioAccountSID() == "" || cfg.GetTwilioAuthToken() == "" {
		return nil
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.GetTwilioAccountSID(),
		Password: cfg.GetTwilioAuthToken(),
	})
	client.SetTimeout(twilioTimeout(channelTimeout))
	return NewTwilioSenderWithAPI(client.Api, cfg.GetTwilioSMSFrom(), cfg.GetTwilioWhatsAppFrom())
}

func twilioTimeout(channelTimeout time.Duration) time.Duration {
	if channelTimeout <= 0 || channelTimeout > defaultTwilioTimeout {
		return defaultTwilioTimeout
	}
	return channelTimeout
}

// NewTwilioSenderWithAPI wires a sender around an existing API client.
func NewTwilioSenderWithAPI(api MessageCreator, smsFrom, whatsAppFrom string) *TwilioSender {
	return &TwilioSender{api: api, smsFrom: smsFrom, whatsAppFrom: whatsAppFrom}
}

// SMSConfigured reports whether SMS can be sent.
func (s *TwilioSender) SMSConfigured() bool {
	return s != nil && s.api != nil && s.smsFrom != ""
}

// WhatsAppConfigured reports whether WhatsApp can be sent.
func (s *TwilioSender) WhatsAppConfigured() bool {
	return s != nil && s.api != nil && s.whatsAppFrom != ""
}

// SendSMS sends body to an E.164 number.
func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) error {
	if !s.SMSConfigured() {
		return fmt.Errorf("%w: twilio sms sender is not set", ErrNotConfigured)
	}
	return s.create(ctx, to, s.smsFrom, body)
}

// SendWhatsApp sends body to an E.164 number over the WhatsApp channel.
func (s *TwilioSender) SendWhatsApp(ctx context.Context, to, body string) error {
	if !s.WhatsAppConfigured() {
		return fmt.Errorf("%w: twilio whatsapp sender is not set", ErrNotConfigured)
	}
	return s.create(ctx, whatsAppAddress(to), whatsAppAddress(s.whatsAppFrom), body)
}

func (s *TwilioSender) create(ctx context.Context, to, from, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(body)

	return runWithContext(ctx, func() error {
		if _, err := s.api.CreateMessage(params); err != nil {
			return fmt.Errorf("twilio: %w", err)
		}
		return nil
	})
}

func whatsAppAddress(number string) string {
	const prefix = "whatsapp:"
	if len(number) >= len(prefix) && number[:len(prefix)] == prefix {
		return number
	}
	return prefix + number
}
