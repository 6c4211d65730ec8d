// Package events provides event bus infrastructure for decoupled,
// event-driven communication between modules.
// This is part of the platform layer and contains no business logic.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is the base interface all domain events must implement.
type Event interface {
	// EventName returns a unique "category:verb" identifier for the event type.
	EventName() string
	// Tenant returns the workspace the event belongs to.
	Tenant() uuid.UUID
	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
	TenantID  uuid.UUID `json:"tenantId"`
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// Tenant returns the tenant the event is scoped to.
func (e BaseEvent) Tenant() uuid.UUID {
	return e.TenantID
}

// NewBaseEvent creates a new base event for tenantID with the current timestamp.
func NewBaseEvent(tenantID uuid.UUID) BaseEvent {
	return BaseEvent{Timestamp: time.Now(), TenantID: tenantID}
}

// Raw is the untyped fallback for events whose payload is defined by an
// external provider and has no Go type of its own.
type Raw struct {
	BaseEvent
	Name string         `json:"-"`
	Data map[string]any `json:"data"`
}

// EventName implements Event.
func (e Raw) EventName() string { return e.Name }

// Handler processes events.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc is an adapter to allow ordinary functions to be used as handlers.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls the underlying function.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Matcher decides whether a subscriber wants an event, by name.
type Matcher func(eventName string) bool

// Any matches every event.
func Any(string) bool { return true }

// Named matches the listed event names only.
func Named(names ...string) Matcher {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return func(eventName string) bool {
		_, ok := set[eventName]
		return ok
	}
}

// Bus is the interface for publishing and subscribing to domain events.
type Bus interface {
	// Publish delivers event synchronously to every matching subscriber.
	// Events nobody listens to are dropped.
	Publish(ctx context.Context, event Event)

	// Subscribe registers a handler that sees matching events of every tenant.
	Subscribe(match Matcher, handler Handler) (unsubscribe func())

	// SubscribeTenant registers a handler that only sees events of tenantID.
	SubscribeTenant(tenantID uuid.UUID, match Matcher, handler Handler) (unsubscribe func())
}
