// Package preference stores per-user notification settings. Rows are created
// lazily and never deleted; disabling a channel clears its target fields.
package preference

import (
	"time"

	"freelancer_ops_backend/internal/notification/channel"

	"github.com/google/uuid"
)

const (
	DefaultScanIntervalMinutes = 30
	DefaultMinMatchPercentage  = 70
)

type Preference struct {
	TenantID              uuid.UUID                 `json:"-"`
	UserID                uuid.UUID                 `json:"userId"`
	IsEnabled             bool                      `json:"isEnabled"`
	AutoScanEnabled       bool                      `json:"autoScanEnabled"`
	ScanIntervalMinutes   int                       `json:"scanIntervalMinutes"`
	MinMatchPercentage    int                       `json:"minMatchPercentage"`
	Categories            []string                  `json:"categories"`
	TargetSkills          []string                  `json:"targetSkills"`
	DesktopEnabled        bool                      `json:"desktopEnabled"`
	PushSubscription      *channel.PushSubscription `json:"pushSubscription,omitempty"`
	PushSubscriptionStale bool                      `json:"pushSubscriptionStale"`
	SMSEnabled            bool                      `json:"smsEnabled"`
	SMSPhoneNumber        *string                   `json:"smsPhoneNumber,omitempty"`
	SMSCountryCode        *string                   `json:"smsCountryCode,omitempty"`
	WhatsAppEnabled       bool                      `json:"whatsappEnabled"`
	WhatsAppPhoneNumber   *string                   `json:"whatsappPhoneNumber,omitempty"`
	WhatsAppCountryCode   *string                   `json:"whatsappCountryCode,omitempty"`
	CreatedAt             time.Time                 `json:"createdAt"`
	UpdatedAt             time.Time                 `json:"updatedAt"`
}

// Defaults returns the settings a user starts with.
func Defaults(tenantID, userID uuid.UUID) Preference {
	return Preference{
		TenantID:            tenantID,
		UserID:              userID,
		IsEnabled:           true,
		ScanIntervalMinutes: DefaultScanIntervalMinutes,
		MinMatchPercentage:  DefaultMinMatchPercentage,
		Categories:          []string{},
		TargetSkills:        []string{},
	}
}

// Enabled reports whether ch is switched on. In-app is always on.
func (p Preference) Enabled(ch channel.Channel) bool {
	switch ch {
	case channel.Desktop:
		return p.DesktopEnabled
	case channel.SMS:
		return p.SMSEnabled
	case channel.WhatsApp:
		return p.WhatsAppEnabled
	case channel.InApp:
		return true
	default:
		return false
	}
}

// EnabledChannels lists the channels a delivery goes to.
func (p Preference) EnabledChannels() []channel.Channel {
	out := make([]channel.Channel, 0, len(channel.All))
	for _, ch := range channel.All {
		if p.Enabled(ch) {
			out = append(out, ch)
		}
	}
	return out
}

// Target returns the delivery data for ch.
func (p Preference) Target(ch channel.Channel) channel.Target {
	t := channel.Target{TenantID: p.TenantID, UserID: p.UserID}
	switch ch {
	case channel.Desktop:
		t.PushSubscription = p.PushSubscription
		t.PushSubscriptionStale = p.PushSubscriptionStale
	case channel.SMS:
		t.PhoneNumber = deref(p.SMSPhoneNumber)
		t.CountryCode = deref(p.SMSCountryCode)
	case channel.WhatsApp:
		t.PhoneNumber = deref(p.WhatsAppPhoneNumber)
		t.CountryCode = deref(p.WhatsAppCountryCode)
	}
	return t
}

// AcceptsMatch reports whether a job match score clears the user's threshold.
func (p Preference) AcceptsMatch(score int) bool {
	return score >= p.MinMatchPercentage
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
