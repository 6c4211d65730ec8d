package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"freelancer_ops_backend/platform/config"

	webpush "github.com/SherClockHolmes/webpush-go"
)

const pushTTLSeconds = 24 * 60 * 60

// DesktopProvider sends VAPID signed Web Push messages.
type DesktopProvider struct {
	publicKey  string
	privateKey string
	subject    string
	client     webpush.HTTPClient
}

// NewDesktopProvider creates the Web Push provider. A nil client uses the
// library default.
func NewDesktopProvider(cfg config.WebPushConfig, client webpush.HTTPClient) *DesktopProvider {
	return &DesktopProvider{
		publicKey:  cfg.GetVAPIDPublicKey(),
		privateKey: cfg.GetVAPIDPrivateKey(),
		subject:    cfg.GetVAPIDSubject(),
		client:     client,
	}
}

func (p *DesktopProvider) Channel() Channel { return Desktop }

// HealthCheck verifies the VAPID key pair and subject are configured.
func (p *DesktopProvider) HealthCheck() bool {
	return p != nil && p.publicKey != "" && p.privateKey != "" && p.subject != ""
}

// PublicKey is handed to browsers when they subscribe.
func (p *DesktopProvider) PublicKey() string {
	if p == nil {
		return ""
	}
	return p.publicKey
}

type pushPayload struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	URL      string `json:"url,omitempty"`
	Event    string `json:"event"`
	Category string `json:"category,omitempty"`
}

func (p *DesktopProvider) Send(ctx context.Context, msg Message, target Target) Result {
	sub := target.PushSubscription
	if sub == nil || strings.TrimSpace(sub.Endpoint) == "" {
		return failed(missing("no push subscription registered"))
	}
	if sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		return failed(missing("push subscription has no encryption keys"))
	}
	if target.PushSubscriptionStale {
		return failed(ErrSubscriptionStale)
	}
	if !p.HealthCheck() {
		return failed(fmt.Errorf("%w: VAPID keys are not set", ErrNotConfigured))
	}

	payload, err := json.Marshal(pushPayload{
		Title:    msg.Title,
		Body:     msg.Body,
		URL:      msg.URL,
		Event:    msg.EventName,
		Category: msg.Category,
	})
	if err != nil {
		return failed(fmt.Errorf("encode push payload: %w", err))
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      p.client,
		Subscriber:      p.subject,
		VAPIDPublicKey:  p.publicKey,
		VAPIDPrivateKey: p.privateKey,
		TTL:             pushTTLSeconds,
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return failed(fmt.Errorf("web push request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return failed(fmt.Errorf("%w (push service returned %d)", ErrSubscriptionStale, resp.StatusCode))
	case resp.StatusCode >= http.StatusBadRequest:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return failed(fmt.Errorf("push service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	return ok()
}
