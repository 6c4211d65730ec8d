// Package channel contains the notification channel providers: desktop Web
// Push, SMS, WhatsApp and the in-app inbox.
package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Channel identifies a delivery mechanism. The values are stored in the
// notification log.
type Channel string

const (
	Desktop  Channel = "DESKTOP"
	SMS      Channel = "SMS"
	WhatsApp Channel = "WHATSAPP"
	InApp    Channel = "IN_APP"
)

// All lists the channels in diagnostic order.
var All = []Channel{Desktop, SMS, WhatsApp, InApp}

// Label returns the human readable channel name.
func (c Channel) Label() string {
	switch c {
	case Desktop:
		return "Desktop"
	case SMS:
		return "SMS"
	case WhatsApp:
		return "WhatsApp"
	case InApp:
		return "In-app"
	default:
		return string(c)
	}
}

var (
	// ErrNotConfigured means the provider lacks credentials or keys.
	ErrNotConfigured = errors.New("channel is not configured")
	// ErrMissingTarget means the channel is enabled without the data it needs.
	ErrMissingTarget = errors.New("missing delivery target")
	// ErrSubscriptionStale means the push service reported the subscription gone.
	ErrSubscriptionStale = errors.New("push subscription is no longer valid")
)

// Message is the rendered notification.
type Message struct {
	EventName string
	Title     string
	Body      string
	URL       string
	Category  string
	// ResourceID points at the job the message is about, when known.
	ResourceID *uuid.UUID
}

// PushSubscription is a browser Web Push subscription.
type PushSubscription struct {
	Endpoint string   `json:"endpoint"`
	Keys     PushKeys `json:"keys"`
}

// PushKeys are the subscription's encryption keys.
type PushKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Target carries the per-user data a provider needs.
type Target struct {
	TenantID              uuid.UUID
	UserID                uuid.UUID
	PushSubscription      *PushSubscription
	PushSubscriptionStale bool
	PhoneNumber           string
	CountryCode           string
}

// Result is the outcome of one send.
type Result struct {
	Success bool
	Error   string
	// Stale is set when the push subscription must be re-registered.
	Stale bool
}

// Provider delivers a message over one channel.
type Provider interface {
	Channel() Channel
	Send(ctx context.Context, msg Message, target Target) Result
	// HealthCheck reports whether credentials are configured. It does not
	// contact the remote service.
	HealthCheck() bool
}

func ok() Result { return Result{Success: true} }

func failed(err error) Result {
	return Result{Success: false, Error: err.Error(), Stale: errors.Is(err, ErrSubscriptionStale)}
}

func missing(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMissingTarget, fmt.Sprintf(format, args...))
}

// runWithContext runs fn and gives up when ctx ends first. Used for client
// libraries that do not accept a context. fn keeps running after ctx ends,
// so callers bound it with their own client timeout.
func runWithContext(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("send aborted: %w", ctx.Err())
	}
}
