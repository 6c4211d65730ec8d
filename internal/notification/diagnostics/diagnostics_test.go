package diagnostics

import (
	"context"
	"reflect"
	"testing"

	"freelancer_ops_backend/internal/notification/channel"
	"freelancer_ops_backend/internal/notification/notiflog"
	"freelancer_ops_backend/internal/notification/preference"

	"github.com/google/uuid"
)

func allHealthy() map[channel.Channel]bool {
	return map[channel.Channel]bool{channel.Desktop: true, channel.SMS: true, channel.WhatsApp: true, channel.InApp: true}
}

func strPtr(s string) *string { return &s }

func TestHealthyConfigurationHasNoIssues(t *testing.T) {
	p := preference.Defaults(uuid.New(), uuid.New())
	report := Evaluate(Input{Preference: p, HasPreference: true, Health: allHealthy(), ActiveConnections: 1})
	if len(report.Issues) != 0 {
		t.Fatalf("expected no issues, got %v", report.Issues)
	}
	if len(report.Channels) != len(channel.All) {
		t.Fatalf("expected a status per channel, got %d", len(report.Channels))
	}
}

func TestDesktopWithoutSubscription(t *testing.T) {
	p := preference.Defaults(uuid.New(), uuid.New())
	p.DesktopEnabled = true

	report := Evaluate(Input{Preference: p, HasPreference: true, Health: allHealthy(), ActiveConnections: 1})
	want := []string{"Desktop is enabled but no push subscription registered"}
	if !reflect.DeepEqual(report.Issues, want) {
		t.Fatalf("got %v, want %v", report.Issues, want)
	}
}

func TestRulesKeepFixedOrder(t *testing.T) {
	p := preference.Defaults(uuid.New(), uuid.New())
	p.IsEnabled = false
	p.DesktopEnabled = true
	p.SMSEnabled = true
	p.WhatsAppEnabled = true
	p.WhatsAppPhoneNumber = strPtr("612345678")

	health := map[channel.Channel]bool{channel.InApp: true}
	in := Input{Preference: p, HasPreference: false, Health: health}

	want := []string{
		"Notification settings have never been saved, defaults are in use",
		"Notifications are turned off",
		"Desktop is enabled but no push subscription registered",
		"Desktop is enabled but Web Push keys are not configured on the server",
		"SMS is enabled but no phone number is set",
		"SMS is enabled but the SMS gateway is not configured",
		"WhatsApp phone number has no country code",
		"WhatsApp is enabled but the WhatsApp gateway is not configured",
	}
	first := Evaluate(in).Issues
	if !reflect.DeepEqual(first, want) {
		t.Fatalf("got %v\nwant %v", first, want)
	}
	if second := Evaluate(in).Issues; !reflect.DeepEqual(first, second) {
		t.Fatal("evaluation is not deterministic")
	}
}

func TestLastFailurePerChannel(t *testing.T) {
	p := preference.Defaults(uuid.New(), uuid.New())
	p.SMSEnabled = true
	p.SMSPhoneNumber = strPtr("+31612345678")

	recent := []notiflog.Entry{
		{Channel: channel.SMS, Status: notiflog.StatusFailed, ErrorMessage: strPtr("twilio: 401")},
		{Channel: channel.InApp, Status: notiflog.StatusSent},
		{Channel: channel.SMS, Status: notiflog.StatusSent},
	}
	report := Evaluate(Input{Preference: p, HasPreference: true, Recent: recent, Health: allHealthy(), ActiveConnections: 1})

	want := []string{"Last SMS notification failed: twilio: 401"}
	if !reflect.DeepEqual(report.Issues, want) {
		t.Fatalf("got %v, want %v", report.Issues, want)
	}
	for _, ch := range report.Channels {
		if ch.Channel == channel.SMS && (ch.LastStatus != "failed" || !ch.Configured || !ch.Enabled) {
			t.Fatalf("unexpected sms status %+v", ch)
		}
	}
}

type fakePrefs struct{}

func (fakePrefs) Find(context.Context, uuid.UUID, uuid.UUID) (preference.Preference, bool, error) {
	return preference.Preference{}, false, nil
}

type fakeLog struct{ n int }

func (f *fakeLog) Recent(_ context.Context, _, _ uuid.UUID, n int) ([]notiflog.Entry, error) {
	f.n = n
	return nil, nil
}

type healthProvider struct {
	ch      channel.Channel
	healthy bool
}

func (p healthProvider) Channel() channel.Channel { return p.ch }
func (p healthProvider) HealthCheck() bool        { return p.healthy }
func (p healthProvider) Send(context.Context, channel.Message, channel.Target) channel.Result {
	return channel.Result{}
}

type fakeConns int

func (f fakeConns) ActiveConnectionsForUser(uuid.UUID, uuid.UUID) int { return int(f) }

func TestServiceRunUsesDefaultsWithoutCreating(t *testing.T) {
	logs := &fakeLog{}
	svc := NewService(fakePrefs{}, logs, []channel.Provider{
		healthProvider{ch: channel.Desktop, healthy: false},
		healthProvider{ch: channel.InApp, healthy: true},
	}, fakeConns(2))

	report, err := svc.Run(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if logs.n != RecentLimit {
		t.Fatalf("expected %d recent entries requested, got %d", RecentLimit, logs.n)
	}
	want := []string{"Notification settings have never been saved, defaults are in use"}
	if !reflect.DeepEqual(report.Issues, want) {
		t.Fatalf("got %v, want %v", report.Issues, want)
	}
}
