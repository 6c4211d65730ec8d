// Package diagnostics explains why notifications might not arrive. Rules are
// plain boolean checks evaluated in a fixed order so the output is stable.
package diagnostics

import (
	"context"
	"fmt"
	"strings"

	"freelancer_ops_backend/internal/notification/channel"
	"freelancer_ops_backend/internal/notification/notiflog"
	"freelancer_ops_backend/internal/notification/preference"

	"github.com/google/uuid"
)

// RecentLimit is how many log entries the rules look at.
const RecentLimit = 20

type ChannelStatus struct {
	Channel    channel.Channel `json:"channel"`
	Enabled    bool            `json:"enabled"`
	Configured bool            `json:"configured"`
	Healthy    bool            `json:"healthy"`
	LastStatus string          `json:"lastStatus,omitempty"`
	LastError  string          `json:"lastError,omitempty"`
}

type Report struct {
	Issues   []string        `json:"issues"`
	Channels []ChannelStatus `json:"channels"`
}

// Input is everything the rules read.
type Input struct {
	Preference        preference.Preference
	HasPreference     bool
	Recent            []notiflog.Entry // newest first
	Health            map[channel.Channel]bool
	ActiveConnections int
}

type rule func(in Input) (string, bool)

var rules = []rule{
	func(in Input) (string, bool) {
		return "Notification settings have never been saved, defaults are in use", !in.HasPreference
	},
	func(in Input) (string, bool) {
		return "Notifications are turned off", !in.Preference.IsEnabled
	},
	func(in Input) (string, bool) {
		p := in.Preference
		return "Desktop is enabled but no push subscription registered", p.DesktopEnabled && p.PushSubscription == nil
	},
	func(in Input) (string, bool) {
		p := in.Preference
		return "Desktop push subscription was rejected by the browser's push service, re-enable desktop notifications in this browser",
			p.DesktopEnabled && p.PushSubscription != nil && p.PushSubscriptionStale
	},
	unhealthy(channel.Desktop, "Desktop is enabled but Web Push keys are not configured on the server"),
	missingPhone(channel.SMS),
	missingCountryCode(channel.SMS),
	unhealthy(channel.SMS, "SMS is enabled but the SMS gateway is not configured"),
	missingPhone(channel.WhatsApp),
	missingCountryCode(channel.WhatsApp),
	unhealthy(channel.WhatsApp, "WhatsApp is enabled but the WhatsApp gateway is not configured"),
	func(in Input) (string, bool) {
		return "No dashboard tab is connected, live updates will show on the next page load",
			in.Preference.IsEnabled && in.ActiveConnections == 0
	},
}

func unhealthy(ch channel.Channel, issue string) rule {
	return func(in Input) (string, bool) {
		return issue, in.Preference.Enabled(ch) && !in.Health[ch]
	}
}

func missingPhone(ch channel.Channel) rule {
	return func(in Input) (string, bool) {
		return fmt.Sprintf("%s is enabled but no phone number is set", ch.Label()),
			in.Preference.Enabled(ch) && in.Preference.Target(ch).PhoneNumber == ""
	}
}

func missingCountryCode(ch channel.Channel) rule {
	return func(in Input) (string, bool) {
		t := in.Preference.Target(ch)
		return fmt.Sprintf("%s phone number has no country code", ch.Label()),
			in.Preference.Enabled(ch) && t.PhoneNumber != "" && t.CountryCode == "" && !strings.HasPrefix(t.PhoneNumber, "+")
	}
}

// Evaluate derives the report. It has no side effects.
func Evaluate(in Input) Report {
	report := Report{Issues: []string{}, Channels: make([]ChannelStatus, 0, len(channel.All))}

	for _, r := range rules {
		if issue, hit := r(in); hit {
			report.Issues = append(report.Issues, issue)
		}
	}

	last := lastPerChannel(in.Recent)
	for _, ch := range channel.All {
		status := ChannelStatus{
			Channel:    ch,
			Enabled:    in.Preference.Enabled(ch),
			Configured: hasTarget(in.Preference, ch),
			Healthy:    in.Health[ch],
		}
		if e, ok := last[ch]; ok {
			status.LastStatus = string(e.Status)
			if e.ErrorMessage != nil {
				status.LastError = *e.ErrorMessage
			}
			if e.Status == notiflog.StatusFailed {
				report.Issues = append(report.Issues, fmt.Sprintf("Last %s notification failed: %s", ch.Label(), status.LastError))
			}
		}
		report.Channels = append(report.Channels, status)
	}
	return report
}

func lastPerChannel(recent []notiflog.Entry) map[channel.Channel]notiflog.Entry {
	out := make(map[channel.Channel]notiflog.Entry, len(channel.All))
	for _, e := range recent {
		if _, seen := out[e.Channel]; !seen {
			out[e.Channel] = e
		}
	}
	return out
}

func hasTarget(p preference.Preference, ch channel.Channel) bool {
	switch ch {
	case channel.Desktop:
		return p.PushSubscription != nil && !p.PushSubscriptionStale
	case channel.SMS, channel.WhatsApp:
		return p.Target(ch).PhoneNumber != ""
	default:
		return true
	}
}

// PreferenceFinder is implemented by preference.Service.
type PreferenceFinder interface {
	Find(ctx context.Context, tenantID, userID uuid.UUID) (preference.Preference, bool, error)
}

// RecentLog is implemented by notiflog.Repository.
type RecentLog interface {
	Recent(ctx context.Context, tenantID, userID uuid.UUID, n int) ([]notiflog.Entry, error)
}

// ConnectionCounter is implemented by sse.Service.
type ConnectionCounter interface {
	ActiveConnectionsForUser(tenantID, userID uuid.UUID) int
}

type Service struct {
	prefs     PreferenceFinder
	logs      RecentLog
	providers []channel.Provider
	conns     ConnectionCounter
}

func NewService(prefs PreferenceFinder, logs RecentLog, providers []channel.Provider, conns ConnectionCounter) *Service {
	return &Service{prefs: prefs, logs: logs, providers: providers, conns: conns}
}

// Run gathers the user's state and evaluates the rules. It never creates a
// preference row.
func (s *Service) Run(ctx context.Context, tenantID, userID uuid.UUID) (Report, error) {
	pref, found, err := s.prefs.Find(ctx, tenantID, userID)
	if err != nil {
		return Report{}, err
	}
	if !found {
		pref = preference.Defaults(tenantID, userID)
	}

	recent, err := s.logs.Recent(ctx, tenantID, userID, RecentLimit)
	if err != nil {
		return Report{}, err
	}

	health := make(map[channel.Channel]bool, len(s.providers))
	for _, p := range s.providers {
		health[p.Channel()] = p.HealthCheck()
	}

	active := 0
	if s.conns != nil {
		active = s.conns.ActiveConnectionsForUser(tenantID, userID)
	}

	return Evaluate(Input{
		Preference:        pref,
		HasPreference:     found,
		Recent:            recent,
		Health:            health,
		ActiveConnections: active,
	}), nil
}
