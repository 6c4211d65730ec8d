package dispatcher

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"freelancer_ops_backend/internal/events"
	"freelancer_ops_backend/internal/notification/channel"
	"freelancer_ops_backend/internal/notification/notiflog"
	"freelancer_ops_backend/internal/notification/preference"
	"freelancer_ops_backend/internal/notification/templates"
	"freelancer_ops_backend/platform/config"
	"freelancer_ops_backend/platform/logger"

	"github.com/google/uuid"
)

type fakePrefs struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]preference.Preference
	stale []string
}

func newFakePrefs(prefs ...preference.Preference) *fakePrefs {
	f := &fakePrefs{rows: map[uuid.UUID]preference.Preference{}}
	for _, p := range prefs {
		f.rows[p.UserID] = p
	}
	return f
}

func (f *fakePrefs) Find(_ context.Context, tenantID, userID uuid.UUID) (preference.Preference, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[userID]
	if !ok || p.TenantID != tenantID {
		return preference.Preference{}, false, nil
	}
	return p, true, nil
}

func (f *fakePrefs) ListForTenant(_ context.Context, tenantID uuid.UUID) ([]preference.Preference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []preference.Preference
	for _, p := range f.rows {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePrefs) MarkPushSubscriptionStale(_ context.Context, _, _ uuid.UUID, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stale = append(f.stale, endpoint)
	return nil
}

type fakeLogs struct {
	mu      sync.Mutex
	entries []notiflog.Entry
}

func (f *fakeLogs) Create(_ context.Context, e notiflog.Entry) (notiflog.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return e, nil
}

func (f *fakeLogs) byChannel(ch channel.Channel) []notiflog.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notiflog.Entry
	for _, e := range f.entries {
		if e.Channel == ch {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeLogs) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fakeProvider struct {
	ch       channel.Channel
	mu       sync.Mutex
	calls    int
	result   channel.Result
	block    bool
	panicMsg string
}

func okProvider(ch channel.Channel) *fakeProvider {
	return &fakeProvider{ch: ch, result: channel.Result{Success: true}}
}

func (f *fakeProvider) Channel() channel.Channel { return f.ch }

func (f *fakeProvider) HealthCheck() bool { return true }

func (f *fakeProvider) Send(ctx context.Context, _ channel.Message, _ channel.Target) channel.Result {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.block {
		<-ctx.Done()
		return channel.Result{Error: "gateway timeout: " + ctx.Err().Error()}
	}
	return f.result
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	tenantID uuid.UUID
	userID   uuid.UUID
	prefs    *fakePrefs
	logs     *fakeLogs
	desktop  channel.Provider
	sms      *fakeProvider
	whatsapp *fakeProvider
	inapp    *fakeProvider
}

func newFixture(t *testing.T, mutate func(p *preference.Preference)) *fixture {
	t.Helper()
	f := &fixture{
		tenantID: uuid.New(),
		userID:   uuid.New(),
		logs:     &fakeLogs{},
		desktop:  okProvider(channel.Desktop),
		sms:      okProvider(channel.SMS),
		whatsapp: okProvider(channel.WhatsApp),
		inapp:    okProvider(channel.InApp),
	}
	pref := preference.Defaults(f.tenantID, f.userID)
	if mutate != nil {
		mutate(&pref)
	}
	f.prefs = newFakePrefs(pref)
	return f
}

func (f *fixture) dispatcher(t *testing.T, timeout time.Duration) *Dispatcher {
	t.Helper()
	catalog, err := templates.Load("https://app.example.com")
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}
	return New(f.prefs, f.logs, catalog,
		[]channel.Provider{f.desktop, f.sms, f.whatsapp, f.inapp},
		Options{Workers: 2, ChannelTimeout: timeout},
		logger.Nop(),
	)
}

func (f *fixture) jobCaptured() events.JobCaptured {
	return events.JobCaptured{
		BaseEvent: events.NewBaseEvent(f.tenantID),
		JobID:     uuid.New(),
		UserID:    f.userID,
		Title:     "Go API for marketplace",
	}
}

func TestDesktopWithoutSubscriptionLogsFailure(t *testing.T) {
	f := newFixture(t, func(p *preference.Preference) {
		p.DesktopEnabled = true
	})
	f.desktop = channel.NewDesktopProvider(&config.Config{}, nil)

	deliveries := f.dispatcher(t, time.Second).Dispatch(context.Background(), f.jobCaptured())

	if len(deliveries) != 1 || deliveries[0].State != StateAttempted {
		t.Fatalf("expected one attempted delivery, got %+v", deliveries)
	}
	desktop := f.logs.byChannel(channel.Desktop)
	if len(desktop) != 1 {
		t.Fatalf("expected one desktop entry, got %d", len(desktop))
	}
	if desktop[0].Status != notiflog.StatusFailed {
		t.Fatalf("expected failed desktop entry, got %s", desktop[0].Status)
	}
	if desktop[0].ErrorMessage == nil || !strings.Contains(*desktop[0].ErrorMessage, "subscription") {
		t.Fatalf("expected error about the missing subscription, got %v", desktop[0].ErrorMessage)
	}
	if n := len(f.logs.byChannel(channel.SMS)) + len(f.logs.byChannel(channel.WhatsApp)); n != 0 {
		t.Fatalf("expected no sms/whatsapp entries, got %d", n)
	}
	if f.sms.callCount() != 0 || f.whatsapp.callCount() != 0 {
		t.Fatal("disabled channels must not be invoked")
	}
}

func TestDisabledPreferenceWritesNothing(t *testing.T) {
	f := newFixture(t, func(p *preference.Preference) {
		p.IsEnabled = false
		p.SMSEnabled = true
	})

	deliveries := f.dispatcher(t, time.Second).Dispatch(context.Background(), f.jobCaptured())

	if len(deliveries) != 1 || deliveries[0].State != StateFilteredOut || deliveries[0].Reason != ReasonDisabled {
		t.Fatalf("expected disabled filter, got %+v", deliveries)
	}
	if f.logs.count() != 0 {
		t.Fatalf("expected no log entries, got %d", f.logs.count())
	}
	if f.sms.callCount() != 0 || f.inapp.callCount() != 0 {
		t.Fatal("expected no channel invocations")
	}
}

func TestMissingPreferenceIsFilteredOut(t *testing.T) {
	f := newFixture(t, nil)
	event := f.jobCaptured()
	event.UserID = uuid.New()

	deliveries := f.dispatcher(t, time.Second).Dispatch(context.Background(), event)

	if len(deliveries) != 1 || deliveries[0].Reason != ReasonNoPreference {
		t.Fatalf("expected no-preference filter, got %+v", deliveries)
	}
	if f.logs.count() != 0 {
		t.Fatal("expected no log entries")
	}
}

func TestMatchBelowThresholdIsFilteredOut(t *testing.T) {
	f := newFixture(t, func(p *preference.Preference) {
		p.MinMatchPercentage = 80
		p.SMSEnabled = true
	})
	d := f.dispatcher(t, time.Second)

	low := events.AnalysisComplete{
		BaseEvent:       events.NewBaseEvent(f.tenantID),
		JobID:           uuid.New(),
		UserID:          f.userID,
		JobTitle:        "Scraper",
		MatchPercentage: 60,
	}
	deliveries := d.Dispatch(context.Background(), low)
	if len(deliveries) != 1 || deliveries[0].Reason != ReasonBelowThreshold {
		t.Fatalf("expected threshold filter, got %+v", deliveries)
	}
	if f.logs.count() != 0 || f.sms.callCount() != 0 || f.inapp.callCount() != 0 {
		t.Fatal("expected no entries and no channel invocations")
	}

	high := low
	high.MatchPercentage = 80
	d.Dispatch(context.Background(), high)
	if f.sms.callCount() != 1 || f.inapp.callCount() != 1 {
		t.Fatal("expected delivery at the threshold")
	}
}

func TestOneFailingChannelDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t, func(p *preference.Preference) {
		p.DesktopEnabled = true
		p.SMSEnabled = true
		p.WhatsAppEnabled = true
	})
	f.sms.result = channel.Result{Error: "twilio: 401 unauthorized"}
	f.whatsapp.panicMsg = "gateway exploded"

	deliveries := f.dispatcher(t, time.Second).Dispatch(context.Background(), f.jobCaptured())

	if len(deliveries) != 1 || len(deliveries[0].Channels) != 4 {
		t.Fatalf("expected four channel results, got %+v", deliveries)
	}
	states := map[channel.Channel]State{}
	for _, r := range deliveries[0].Channels {
		states[r.Channel] = r.State
	}
	if states[channel.SMS] != StateFailed || states[channel.WhatsApp] != StateFailed {
		t.Fatalf("expected sms and whatsapp failures, got %v", states)
	}
	if states[channel.Desktop] != StateSent || states[channel.InApp] != StateSent {
		t.Fatalf("expected desktop and in-app to succeed, got %v", states)
	}
	if f.logs.count() != 4 {
		t.Fatalf("expected one log entry per attempt, got %d", f.logs.count())
	}
}

func TestSlowChannelIsBoundedByTimeout(t *testing.T) {
	f := newFixture(t, func(p *preference.Preference) {
		p.SMSEnabled = true
	})
	f.sms.block = true

	start := time.Now()
	deliveries := f.dispatcher(t, 30*time.Millisecond).Dispatch(context.Background(), f.jobCaptured())
	if time.Since(start) > time.Second {
		t.Fatal("dispatch was not bounded by the channel timeout")
	}

	sms := f.logs.byChannel(channel.SMS)
	if len(sms) != 1 || sms[0].Status != notiflog.StatusFailed {
		t.Fatalf("expected failed sms entry, got %+v", sms)
	}
	if inapp := f.logs.byChannel(channel.InApp); len(inapp) != 1 || inapp[0].Status != notiflog.StatusSent {
		t.Fatalf("expected in-app to be sent, got %+v", inapp)
	}
	if len(deliveries[0].Channels) != 2 {
		t.Fatalf("expected two attempts, got %d", len(deliveries[0].Channels))
	}
}

func TestStaleSubscriptionIsFlagged(t *testing.T) {
	endpoint := "https://push.example.com/gone"
	f := newFixture(t, func(p *preference.Preference) {
		p.DesktopEnabled = true
		p.PushSubscription = &channel.PushSubscription{Endpoint: endpoint}
	})
	f.desktop = &fakeProvider{ch: channel.Desktop, result: channel.Result{Error: "push subscription is no longer valid", Stale: true}}

	f.dispatcher(t, time.Second).Dispatch(context.Background(), f.jobCaptured())

	if len(f.prefs.stale) != 1 || f.prefs.stale[0] != endpoint {
		t.Fatalf("expected stale endpoint flagged, got %v", f.prefs.stale)
	}
	if desktop := f.logs.byChannel(channel.Desktop); len(desktop) != 1 || desktop[0].Status != notiflog.StatusFailed {
		t.Fatalf("expected failed desktop entry, got %+v", desktop)
	}
}

func TestUntargetedEventReachesEveryUserOfTenant(t *testing.T) {
	f := newFixture(t, nil)
	second := preference.Defaults(f.tenantID, uuid.New())
	f.prefs.rows[second.UserID] = second
	other := preference.Defaults(uuid.New(), uuid.New())
	f.prefs.rows[other.UserID] = other

	event := events.Raw{
		BaseEvent: events.NewBaseEvent(f.tenantID),
		Name:      events.NameJobCaptured,
		Data:      map[string]any{"title": "Imported job"},
	}
	deliveries := f.dispatcher(t, time.Second).Dispatch(context.Background(), event)

	if len(deliveries) != 2 {
		t.Fatalf("expected two recipients in the tenant, got %d", len(deliveries))
	}
	for _, e := range f.logs.byChannel(channel.InApp) {
		if e.TenantID != f.tenantID {
			t.Fatal("entry written for another tenant")
		}
	}
}

func TestNonNotifiableEventsAreIgnored(t *testing.T) {
	f := newFixture(t, nil)
	event := events.JourneyAdvanced{BaseEvent: events.NewBaseEvent(f.tenantID), JobID: uuid.New(), Phase: "ANALYZED"}

	if deliveries := f.dispatcher(t, time.Second).Dispatch(context.Background(), event); deliveries != nil {
		t.Fatalf("expected nil, got %+v", deliveries)
	}
	if f.inapp.callCount() != 0 {
		t.Fatal("expected no channel invocations")
	}
}

func TestHandleQueuesAndCloseDrains(t *testing.T) {
	f := newFixture(t, nil)
	d := f.dispatcher(t, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 5; i++ {
		if err := d.Handle(ctx, f.jobCaptured()); err != nil {
			t.Fatalf("Handle returned error: %v", err)
		}
	}
	cancel()
	d.Close()

	if got := len(f.logs.byChannel(channel.InApp)); got != 5 {
		t.Fatalf("expected 5 in-app entries after drain, got %d", got)
	}
	if err := d.Handle(context.Background(), f.jobCaptured()); err != nil {
		t.Fatalf("Handle after Close returned error: %v", err)
	}
	d.Close()
}

func TestSendTestWithoutPreferenceUsesInApp(t *testing.T) {
	f := newFixture(t, nil)
	d := f.dispatcher(t, time.Second)

	results, err := d.SendTest(context.Background(), f.tenantID, uuid.New())
	if err != nil {
		t.Fatalf("SendTest returned error: %v", err)
	}
	if len(results) != 1 || results[0].Channel != channel.InApp || results[0].State != StateSent {
		t.Fatalf("unexpected results %+v", results)
	}
	entries := f.logs.byChannel(channel.InApp)
	if len(entries) != 1 || entries[0].EventName != templates.NameTest {
		t.Fatalf("expected test entry, got %+v", entries)
	}
}

func TestSendTestIgnoresMasterSwitch(t *testing.T) {
	f := newFixture(t, func(p *preference.Preference) {
		p.IsEnabled = false
		p.SMSEnabled = true
	})

	results, err := f.dispatcher(t, time.Second).SendTest(context.Background(), f.tenantID, f.userID)
	if err != nil {
		t.Fatalf("SendTest returned error: %v", err)
	}
	if len(results) != 2 || f.sms.callCount() != 1 {
		t.Fatalf("expected sms and in-app attempts, got %+v", results)
	}
}
