package events

import (
	"context"
	"fmt"
	"sync"

	"freelancer_ops_backend/platform/logger"
	"freelancer_ops_backend/platform/metrics"

	"github.com/google/uuid"
)

type subscriber struct {
	id      uint64
	tenant  uuid.UUID
	scoped  bool
	match   Matcher
	handler Handler
}

func (s *subscriber) wants(event Event) bool {
	if s.scoped && s.tenant != event.Tenant() {
		return false
	}
	return s.match(event.EventName())
}

func (s *subscriber) name() string {
	return fmt.Sprintf("%T#%d", s.handler, s.id)
}

// InMemoryBus is the single in-process bus of a server instance.
type InMemoryBus struct {
	mu          sync.RWMutex
	nextID      uint64
	subscribers map[uint64]*subscriber
	log         *logger.Logger
}

// NewInMemoryBus creates an empty bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	if log == nil {
		log = logger.Nop()
	}
	return &InMemoryBus{
		subscribers: make(map[uint64]*subscriber),
		log:         log,
	}
}

// Subscribe implements Bus.
func (b *InMemoryBus) Subscribe(match Matcher, handler Handler) func() {
	return b.add(&subscriber{match: match, handler: handler})
}

// SubscribeTenant implements Bus.
func (b *InMemoryBus) SubscribeTenant(tenantID uuid.UUID, match Matcher, handler Handler) func() {
	return b.add(&subscriber{tenant: tenantID, scoped: true, match: match, handler: handler})
}

func (b *InMemoryBus) add(sub *subscriber) func() {
	if sub.match == nil {
		sub.match = Any
	}

	b.mu.Lock()
	b.nextID++
	sub.id = b.nextID
	b.subscribers[sub.id] = sub
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, sub.id)
			b.mu.Unlock()
		})
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *InMemoryBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

type dispatchKey struct{}

// dispatch tracks one top-level Publish. Publishes made by handlers while it
// runs are queued on it and delivered after the current fan-out.
type dispatch struct {
	bus   *InMemoryBus
	mu    sync.Mutex
	queue []Event
	done  bool
}

func (d *dispatch) enqueue(event Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done {
		return false
	}
	d.queue = append(d.queue, event)
	return true
}

func (d *dispatch) next() (Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		d.done = true
		return nil, false
	}
	event := d.queue[0]
	d.queue = d.queue[1:]
	return event, true
}

// Publish implements Bus.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	if event == nil {
		return
	}

	if d, ok := ctx.Value(dispatchKey{}).(*dispatch); ok && d.bus == b {
		if d.enqueue(event) {
			return
		}
	}

	d := &dispatch{bus: b}
	dctx := context.WithValue(ctx, dispatchKey{}, d)

	b.fanOut(dctx, event)
	for {
		queued, ok := d.next()
		if !ok {
			return
		}
		b.fanOut(dctx, queued)
	}
}

func (b *InMemoryBus) fanOut(ctx context.Context, event Event) {
	name := event.EventName()

	b.mu.RLock()
	targets := make([]*subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		if sub.wants(event) {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	metrics.EventsPublished.WithLabelValues(name).Inc()
	if len(targets) == 0 {
		metrics.EventsDropped.WithLabelValues(name).Inc()
		return
	}

	for _, sub := range targets {
		if err := b.call(ctx, sub, event); err != nil {
			metrics.SubscriberFailures.WithLabelValues(name).Inc()
			b.log.WithContext(ctx).SubscriberFailed(name, sub.name(), err)
		}
	}
}

func (b *InMemoryBus) call(ctx context.Context, sub *subscriber, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return sub.handler.Handle(ctx, event)
}
