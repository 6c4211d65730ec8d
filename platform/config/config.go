// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides Redis/asynq settings for background jobs.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// JourneyConfig provides settings for journey maintenance jobs.
type JourneyConfig interface {
	GetJourneyExpireAfter() time.Duration
	GetJourneySweepInterval() time.Duration
}

// RealtimeConfig provides settings for the live event stream.
type RealtimeConfig interface {
	GetSSEHeartbeatInterval() time.Duration
	GetSSEBufferSize() int
}

// DispatchConfig provides settings for the notification dispatcher.
type DispatchConfig interface {
	GetNotifyWorkers() int
	GetNotifyChannelTimeout() time.Duration
	GetAppBaseURL() string
}

// WebPushConfig provides VAPID settings for desktop push.
type WebPushConfig interface {
	GetVAPIDPublicKey() string
	GetVAPIDPrivateKey() string
	GetVAPIDSubject() string
}

// TwilioConfig provides credentials for the SMS/WhatsApp gateway.
type TwilioConfig interface {
	GetTwilioAccountSID() string
	GetTwilioAuthToken() string
	GetTwilioSMSFrom() string
	GetTwilioWhatsAppFrom() string
}

// WhatsAppConfig provides settings for the self-hosted GOWA WhatsApp gateway.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppDeviceID() string
}

// RateLimitConfig provides settings for user-triggered test sends.
type RateLimitConfig interface {
	GetTestNotificationLimit() int
	GetTestNotificationWindow() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                    string
	HTTPAddr               string
	DatabaseURL            string
	MigrationsEnabled      bool
	JWTAccessSecret        string
	CORSAllowAll           bool
	CORSOrigins            []string
	CORSAllowCreds         bool
	AppBaseURL             string
	RedisURL               string
	RedisTLSInsecure       bool
	AsynqQueueName         string
	AsynqConcurrency       int
	JourneyExpireAfter     time.Duration
	JourneySweepInterval   time.Duration
	SSEHeartbeatInterval   time.Duration
	SSEBufferSize          int
	NotifyWorkers          int
	NotifyChannelTimeout   time.Duration
	VAPIDPublicKey         string
	VAPIDPrivateKey        string
	VAPIDSubject           string
	TwilioAccountSID       string
	TwilioAuthToken        string
	TwilioSMSFrom          string
	TwilioWhatsAppFrom     string
	WhatsAppURL            string
	WhatsAppKey            string
	WhatsAppDeviceID       string
	TestNotificationLimit  int
	TestNotificationWindow time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }

// JourneyConfig implementation
func (c *Config) GetJourneyExpireAfter() time.Duration   { return c.JourneyExpireAfter }
func (c *Config) GetJourneySweepInterval() time.Duration { return c.JourneySweepInterval }

// RealtimeConfig implementation
func (c *Config) GetSSEHeartbeatInterval() time.Duration { return c.SSEHeartbeatInterval }
func (c *Config) GetSSEBufferSize() int                  { return c.SSEBufferSize }

// DispatchConfig implementation
func (c *Config) GetNotifyWorkers() int                  { return c.NotifyWorkers }
func (c *Config) GetNotifyChannelTimeout() time.Duration { return c.NotifyChannelTimeout }
func (c *Config) GetAppBaseURL() string                  { return c.AppBaseURL }

// WebPushConfig implementation
func (c *Config) GetVAPIDPublicKey() string  { return c.VAPIDPublicKey }
func (c *Config) GetVAPIDPrivateKey() string { return c.VAPIDPrivateKey }
func (c *Config) GetVAPIDSubject() string    { return c.VAPIDSubject }

// TwilioConfig implementation
func (c *Config) GetTwilioAccountSID() string   { return c.TwilioAccountSID }
func (c *Config) GetTwilioAuthToken() string    { return c.TwilioAuthToken }
func (c *Config) GetTwilioSMSFrom() string      { return c.TwilioSMSFrom }
func (c *Config) GetTwilioWhatsAppFrom() string { return c.TwilioWhatsAppFrom }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppURL() string      { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string      { return c.WhatsAppKey }
func (c *Config) GetWhatsAppDeviceID() string { return c.WhatsAppDeviceID }

// RateLimitConfig implementation
func (c *Config) GetTestNotificationLimit() int            { return c.TestNotificationLimit }
func (c *Config) GetTestNotificationWindow() time.Duration { return c.TestNotificationWindow }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                    getEnv("APP_ENV", "development"),
		HTTPAddr:               getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		MigrationsEnabled:      strings.EqualFold(getEnv("DB_MIGRATE", "true"), "true"),
		JWTAccessSecret:        getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:           corsAllowAll,
		CORSOrigins:            corsOrigins,
		CORSAllowCreds:         strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:             getEnv("APP_BASE_URL", "http://localhost:4200"),
		RedisURL:               getEnv("REDIS_URL", ""),
		RedisTLSInsecure:       strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:         getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:       mustInt(getEnv("ASYNQ_CONCURRENCY", "5")),
		JourneyExpireAfter:     mustDuration(getEnv("JOURNEY_EXPIRE_AFTER", "720h")),
		JourneySweepInterval:   mustDuration(getEnv("JOURNEY_SWEEP_INTERVAL", "1h")),
		SSEHeartbeatInterval:   mustDuration(getEnv("SSE_HEARTBEAT_INTERVAL", "30s")),
		SSEBufferSize:          mustInt(getEnv("SSE_BUFFER_SIZE", "32")),
		NotifyWorkers:          mustInt(getEnv("NOTIFY_WORKERS", "16")),
		NotifyChannelTimeout:   mustDuration(getEnv("NOTIFY_CHANNEL_TIMEOUT", "5s")),
		VAPIDPublicKey:         getEnv("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey:        getEnv("VAPID_PRIVATE_KEY", ""),
		VAPIDSubject:           getEnv("VAPID_SUBJECT", ""),
		TwilioAccountSID:       getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:        getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioSMSFrom:          getEnv("TWILIO_PHONE_NUMBER", ""),
		TwilioWhatsAppFrom:     getEnv("TWILIO_WHATSAPP_NUMBER", ""),
		WhatsAppURL:            getEnv("WHATSAPP_URL", ""),
		WhatsAppKey:            getEnv("WHATSAPP_KEY", ""),
		WhatsAppDeviceID:       getEnv("WHATSAPP_DEVICE_ID", ""),
		TestNotificationLimit:  mustInt(getEnv("TEST_NOTIFICATION_LIMIT", "5")),
		TestNotificationWindow: mustDuration(getEnv("TEST_NOTIFICATION_WINDOW", "1m")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if (cfg.VAPIDPublicKey == "") != (cfg.VAPIDPrivateKey == "") {
		return nil, fmt.Errorf("VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY must be set together")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
