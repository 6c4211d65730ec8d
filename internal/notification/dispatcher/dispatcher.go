// Package dispatcher turns notifiable bus events into channel deliveries.
//
// Each event moves through RECEIVED, then FILTERED_OUT or ATTEMPTED, and each
// attempted channel ends as SENT or FAILED. Channel failures are recorded in
// the notification log and never propagate to the bus or to other channels.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"freelancer_ops_backend/internal/events"
	"freelancer_ops_backend/internal/notification/channel"
	"freelancer_ops_backend/internal/notification/notiflog"
	"freelancer_ops_backend/internal/notification/preference"
	"freelancer_ops_backend/internal/notification/templates"
	"freelancer_ops_backend/platform/logger"
	"freelancer_ops_backend/platform/metrics"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWorkers        = 16
	defaultChannelTimeout = 5 * time.Second
	queuePerWorker        = 64
)

// Notifiable lists the events that may reach external channels.
var Notifiable = []string{
	events.NameJobCaptured,
	events.NameAnalysisComplete,
	events.NameProposalGenerated,
	events.NameProposalSent,
	events.NameJourneyWon,
	events.NamePaymentReceived,
}

type State string

const (
	StateReceived    State = "RECEIVED"
	StateFilteredOut State = "FILTERED_OUT"
	StateAttempted   State = "ATTEMPTED"
	StateSent        State = "SENT"
	StateFailed      State = "FAILED"
)

// Filter reasons, also used as metric labels.
const (
	ReasonNoPreference   = "no_preference"
	ReasonDisabled       = "disabled"
	ReasonBelowThreshold = "below_threshold"
	ReasonNoRecipients   = "no_recipients"
	ReasonQueueFull      = "queue_full"
)

// ChannelResult is the final state of one channel attempt.
type ChannelResult struct {
	Channel channel.Channel
	State   State
	Error   string
}

// Delivery is the outcome of one event for one user.
type Delivery struct {
	UserID   uuid.UUID
	State    State
	Reason   string
	Channels []ChannelResult
}

// PreferenceSource is implemented by preference.Service.
type PreferenceSource interface {
	Find(ctx context.Context, tenantID, userID uuid.UUID) (preference.Preference, bool, error)
	ListForTenant(ctx context.Context, tenantID uuid.UUID) ([]preference.Preference, error)
	MarkPushSubscriptionStale(ctx context.Context, tenantID, userID uuid.UUID, endpoint string) error
}

// LogWriter is implemented by notiflog.Repository.
type LogWriter interface {
	Create(ctx context.Context, e notiflog.Entry) (notiflog.Entry, error)
}

// Renderer is implemented by templates.Catalog.
type Renderer interface {
	Render(event events.Event) (channel.Message, error)
	RenderNamed(name string, data map[string]any) (channel.Message, error)
}

type Options struct {
	Workers        int
	ChannelTimeout time.Duration
}

type job struct {
	ctx   context.Context
	event events.Event
}

type Dispatcher struct {
	prefs      PreferenceSource
	logs       LogWriter
	render     Renderer
	providers  map[channel.Channel]channel.Provider
	timeout    time.Duration
	notifiable events.Matcher
	log        *logger.Logger

	queue   chan job
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	started sync.Once
	workers int
}

func New(prefs PreferenceSource, logs LogWriter, render Renderer, providers []channel.Provider, opts Options, log *logger.Logger) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.ChannelTimeout <= 0 {
		opts.ChannelTimeout = defaultChannelTimeout
	}
	byChannel := make(map[channel.Channel]channel.Provider, len(providers))
	for _, p := range providers {
		byChannel[p.Channel()] = p
	}
	return &Dispatcher{
		prefs:      prefs,
		logs:       logs,
		render:     render,
		providers:  byChannel,
		timeout:    opts.ChannelTimeout,
		notifiable: events.Named(Notifiable...),
		log:        log,
		queue:      make(chan job, opts.Workers*queuePerWorker),
		workers:    opts.Workers,
	}
}

// Provider returns the provider registered for ch.
func (d *Dispatcher) Provider(ch channel.Channel) (channel.Provider, bool) {
	p, ok := d.providers[ch]
	return p, ok
}

// Matcher selects the events the dispatcher subscribes to.
func (d *Dispatcher) Matcher() events.Matcher {
	return d.notifiable
}

// Handle is the bus subscriber. It queues the event for the worker pool and
// returns at once so slow gateways never hold up the bus.
func (d *Dispatcher) Handle(ctx context.Context, event events.Event) error {
	if !d.notifiable(event.EventName()) {
		return nil
	}
	d.started.Do(d.start)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil
	}

	select {
	case d.queue <- job{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		metrics.NotificationsFiltered.WithLabelValues(ReasonQueueFull).Inc()
		d.log.Warn("notification queue full, event dropped",
			"event", event.EventName(),
			"tenant_id", event.Tenant().String(),
		)
	}
	return nil
}

func (d *Dispatcher) start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for j := range d.queue {
				d.Dispatch(j.ctx, j.event)
			}
		}()
	}
}

// Close stops accepting events and waits for queued work to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

// Dispatch processes one event synchronously and reports what happened per
// recipient. Non-notifiable events yield nil.
func (d *Dispatcher) Dispatch(ctx context.Context, event events.Event) []Delivery {
	if !d.notifiable(event.EventName()) {
		return nil
	}
	tenantID := event.Tenant()

	recipients, deliveries := d.recipients(ctx, event)
	if len(recipients) == 0 {
		return deliveries
	}

	msg, err := d.render.Render(event)
	if err != nil {
		d.log.Warn("notification render failed", "event", event.EventName(), "error", err)
		msg = channel.Message{EventName: event.EventName(), Title: event.EventName(), Category: "info"}
	}

	score, scored := matchScore(event)
	for _, pref := range recipients {
		if !pref.IsEnabled {
			deliveries = append(deliveries, d.filtered(pref.UserID, ReasonDisabled))
			continue
		}
		if scored && !pref.AcceptsMatch(score) {
			deliveries = append(deliveries, d.filtered(pref.UserID, ReasonBelowThreshold))
			continue
		}
		deliveries = append(deliveries, Delivery{
			UserID:   pref.UserID,
			State:    StateAttempted,
			Channels: d.deliver(ctx, tenantID, pref, msg),
		})
	}
	return deliveries
}

// SendTest delivers the test message to every enabled channel of the user,
// ignoring the allow-list, the master switch and the match threshold.
func (d *Dispatcher) SendTest(ctx context.Context, tenantID, userID uuid.UUID) ([]ChannelResult, error) {
	pref, found, err := d.prefs.Find(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		pref = preference.Defaults(tenantID, userID)
	}
	msg, err := d.render.RenderNamed(templates.NameTest, nil)
	if err != nil {
		return nil, fmt.Errorf("render test notification: %w", err)
	}
	return d.deliver(ctx, tenantID, pref, msg), nil
}

func (d *Dispatcher) recipients(ctx context.Context, event events.Event) ([]preference.Preference, []Delivery) {
	tenantID := event.Tenant()

	if targeted, ok := event.(events.Targeted); ok {
		if userID, ok := targeted.TargetUser(); ok {
			pref, found, err := d.prefs.Find(ctx, tenantID, userID)
			if err != nil {
				d.log.Error("load notification preferences failed", "event", event.EventName(), "user_id", userID.String(), "error", err)
				return nil, []Delivery{d.filtered(userID, ReasonNoPreference)}
			}
			if !found {
				return nil, []Delivery{d.filtered(userID, ReasonNoPreference)}
			}
			return []preference.Preference{pref}, nil
		}
	}

	prefs, err := d.prefs.ListForTenant(ctx, tenantID)
	if err != nil {
		d.log.Error("list notification preferences failed", "event", event.EventName(), "tenant_id", tenantID.String(), "error", err)
		return nil, nil
	}
	if len(prefs) == 0 {
		metrics.NotificationsFiltered.WithLabelValues(ReasonNoRecipients).Inc()
	}
	return prefs, nil
}

func (d *Dispatcher) filtered(userID uuid.UUID, reason string) Delivery {
	metrics.NotificationsFiltered.WithLabelValues(reason).Inc()
	return Delivery{UserID: userID, State: StateFilteredOut, Reason: reason}
}

// deliver sends msg to every enabled channel concurrently and returns once
// all of them finished or timed out.
func (d *Dispatcher) deliver(ctx context.Context, tenantID uuid.UUID, pref preference.Preference, msg channel.Message) []ChannelResult {
	enabled := pref.EnabledChannels()
	results := make([]ChannelResult, len(enabled))

	var g errgroup.Group
	for i, ch := range enabled {
		g.Go(func() error {
			results[i] = d.attempt(ctx, tenantID, pref, ch, msg)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (d *Dispatcher) attempt(ctx context.Context, tenantID uuid.UUID, pref preference.Preference, ch channel.Channel, msg channel.Message) ChannelResult {
	start := time.Now()
	res := d.send(ctx, pref, ch, msg)
	metrics.DeliveryDuration.WithLabelValues(string(ch)).Observe(time.Since(start).Seconds())

	if res.Stale && pref.PushSubscription != nil {
		if err := d.prefs.MarkPushSubscriptionStale(ctx, tenantID, pref.UserID, pref.PushSubscription.Endpoint); err != nil {
			d.log.Error("flag stale push subscription failed", "user_id", pref.UserID.String(), "error", err)
		}
	}

	userID := pref.UserID
	entry := notiflog.NewEntry(tenantID, &userID, ch, msg.EventName, msg.Title, res)
	if _, err := d.logs.Create(ctx, entry); err != nil {
		d.log.Error("write notification log failed", "channel", string(ch), "user_id", userID.String(), "error", err)
	}

	metrics.NotificationDeliveries.WithLabelValues(string(ch), string(entry.Status)).Inc()
	d.log.WithTenant(tenantID.String()).Delivery(string(ch), msg.EventName, userID.String(), res.Success, res.Error)

	out := ChannelResult{Channel: ch, State: StateSent}
	if !res.Success {
		out.State = StateFailed
		if entry.ErrorMessage != nil {
			out.Error = *entry.ErrorMessage
		}
	}
	return out
}

// send runs one provider call under its own timeout. A panicking provider
// counts as a failed attempt.
func (d *Dispatcher) send(ctx context.Context, pref preference.Preference, ch channel.Channel, msg channel.Message) (res channel.Result) {
	provider, ok := d.providers[ch]
	if !ok {
		return channel.Result{Error: fmt.Sprintf("%s: no provider registered", channel.ErrNotConfigured)}
	}

	defer func() {
		if r := recover(); r != nil {
			res = channel.Result{Error: fmt.Sprintf("provider panicked: %v", r)}
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return provider.Send(sendCtx, msg, pref.Target(ch))
}

func matchScore(event events.Event) (int, bool) {
	if scored, ok := event.(events.Scored); ok {
		return scored.MatchScore()
	}
	return 0, false
}
