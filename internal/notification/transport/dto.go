package transport

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

// UpdatePreferencesRequest is a partial update; nil fields are left as is.
// Phone numbers are normalized to E.164 before storage.
type UpdatePreferencesRequest struct {
	IsEnabled           *bool    `json:"isEnabled,omitempty"`
	AutoScanEnabled     *bool    `json:"autoScanEnabled,omitempty"`
	ScanIntervalMinutes *int     `json:"scanIntervalMinutes,omitempty" validate:"omitempty,min=5,max=1440"`
	MinMatchPercentage  *int     `json:"minMatchPercentage,omitempty" validate:"omitempty,min=0,max=100"`
	Categories          []string `json:"categories,omitempty" validate:"omitempty,max=50,dive,min=1,max=100"`
	TargetSkills        []string `json:"targetSkills,omitempty" validate:"omitempty,max=50,dive,min=1,max=100"`
	DesktopEnabled      *bool    `json:"desktopEnabled,omitempty"`
	SMSEnabled          *bool    `json:"smsEnabled,omitempty"`
	SMSPhoneNumber      *string  `json:"smsPhoneNumber,omitempty" validate:"omitempty,min=5,max=20"`
	SMSCountryCode      *string  `json:"smsCountryCode,omitempty" validate:"omitempty,countrycode"`
	WhatsAppEnabled     *bool    `json:"whatsappEnabled,omitempty"`
	WhatsAppPhoneNumber *string  `json:"whatsappPhoneNumber,omitempty" validate:"omitempty,min=5,max=20"`
	WhatsAppCountryCode *string  `json:"whatsappCountryCode,omitempty" validate:"omitempty,countrycode"`
}

type PushSubscriptionKeys struct {
	P256dh string `json:"p256dh" validate:"required,min=1,max=200"`
	Auth   string `json:"auth" validate:"required,min=1,max=100"`
}

type PushSubscriptionRequest struct {
	Endpoint string               `json:"endpoint" validate:"required,url,max=2000"`
	Keys     PushSubscriptionKeys `json:"keys"`
}

type HistoryQuery struct {
	Page  int `form:"page" validate:"omitempty,min=1"`
	Limit int `form:"limit" validate:"omitempty,min=1,max=100"`
}

type InboxQuery struct {
	Page     int `form:"page" validate:"omitempty,min=1"`
	PageSize int `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// Response DTOs

type ExtensionConfigResponse struct {
	Enabled            bool     `json:"enabled"`
	IntervalMinutes    int      `json:"intervalMinutes"`
	Categories         []string `json:"categories"`
	TargetSkills       []string `json:"targetSkills"`
	MinMatchPercentage int      `json:"minMatchPercentage"`
}

type PublicKeyResponse struct {
	PublicKey  string `json:"publicKey"`
	Configured bool   `json:"configured"`
}

type HistoryEntry struct {
	ID           uuid.UUID `json:"id"`
	Channel      string    `json:"channel"`
	EventName    string    `json:"eventName"`
	Title        string    `json:"title"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type HistoryResponse struct {
	Items []HistoryEntry `json:"items"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

type ChannelOutcome struct {
	Channel string `json:"channel"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type TestNotificationResponse struct {
	Results []ChannelOutcome `json:"results"`
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}
