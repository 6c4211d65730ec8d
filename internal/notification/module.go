// Package notification wires the realtime stream, the preference store, the
// dispatcher with its channel providers, and the diagnostics into one module.
// Domain modules only publish events; they never call a channel directly.
package notification

import (
	"context"
	"fmt"

	"freelancer_ops_backend/internal/events"
	apphttp "freelancer_ops_backend/internal/http"
	"freelancer_ops_backend/internal/notification/channel"
	"freelancer_ops_backend/internal/notification/diagnostics"
	"freelancer_ops_backend/internal/notification/dispatcher"
	notifhandler "freelancer_ops_backend/internal/notification/handler"
	"freelancer_ops_backend/internal/notification/inapp"
	"freelancer_ops_backend/internal/notification/notiflog"
	"freelancer_ops_backend/internal/notification/preference"
	"freelancer_ops_backend/internal/notification/sse"
	"freelancer_ops_backend/internal/notification/templates"
	"freelancer_ops_backend/internal/whatsapp"
	"freelancer_ops_backend/platform/config"
	"freelancer_ops_backend/platform/logger"
	"freelancer_ops_backend/platform/ratelimit"
	"freelancer_ops_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Config is the configuration slice the module reads.
type Config interface {
	config.RealtimeConfig
	config.DispatchConfig
	config.WebPushConfig
	config.TwilioConfig
	config.WhatsAppConfig
	config.RateLimitConfig
}

// Module handles notification delivery, the live stream and their HTTP API.
type Module struct {
	log         *logger.Logger
	stream      *sse.Service
	dispatcher  *dispatcher.Dispatcher
	preferences *preference.Service
	inbox       *inapp.Service
	desktop     *channel.DesktopProvider
	handler     *notifhandler.HTTPHandler
}

// New creates the notification module. rdb may be nil, in which case test
// sends are not rate limited.
func New(pool *pgxpool.Pool, bus events.Bus, cfg Config, rdb redis.Cmdable, val *validator.Validator, log *logger.Logger) (*Module, error) {
	catalog, err := templates.Load(cfg.GetAppBaseURL())
	if err != nil {
		return nil, fmt.Errorf("load notification templates: %w", err)
	}

	prefs := preference.NewService(preference.NewRepository(pool), val, log)
	logRepo := notiflog.NewRepository(pool)
	inbox := inapp.NewService(inapp.NewRepository(pool), bus, log)
	stream := sse.New(bus, log, cfg.GetSSEHeartbeatInterval(), cfg.GetSSEBufferSize())

	twilio := channel.NewTwilioSender(cfg, cfg.GetNotifyChannelTimeout())
	var gateway channel.GatewaySender
	if client := whatsapp.NewClient(cfg, log); client != nil {
		gateway = client
	}
	var (
		smsSender      channel.SMSSender
		whatsAppSender channel.WhatsAppSender
	)
	if twilio != nil {
		smsSender = twilio
		whatsAppSender = twilio
	}

	desktop := channel.NewDesktopProvider(cfg, nil)
	providers := []channel.Provider{
		desktop,
		channel.NewSMSProvider(smsSender),
		channel.NewWhatsAppProvider(gateway, whatsAppSender),
		channel.NewInAppProvider(inbox),
	}
	for _, p := range providers {
		if !p.HealthCheck() {
			log.Warn("notification channel not configured", "channel", string(p.Channel()))
		}
	}

	disp := dispatcher.New(prefs, logRepo, catalog, providers, dispatcher.Options{
		Workers:        cfg.GetNotifyWorkers(),
		ChannelTimeout: cfg.GetNotifyChannelTimeout(),
	}, log)

	var limiter notifhandler.Limiter
	if rdb != nil {
		limiter = ratelimit.New(rdb, "notify-test", cfg.GetTestNotificationLimit(), cfg.GetTestNotificationWindow())
	}

	return &Module{
		log:         log,
		stream:      stream,
		dispatcher:  disp,
		preferences: prefs,
		inbox:       inbox,
		desktop:     desktop,
		handler: notifhandler.NewHTTPHandler(notifhandler.Deps{
			Preferences: prefs,
			History:     logRepo,
			Tests:       disp,
			Diagnostics: diagnostics.NewService(prefs, logRepo, providers, stream),
			Inbox:       inbox,
			TestLimiter: limiter,
			PushKeys:    desktop,
			Validator:   val,
			Log:         log,
		}),
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterRoutes registers notification API routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	notifications := ctx.Protected.Group("/notifications")
	notifications.GET("/stream", m.stream.Handler())
	m.handler.RegisterRoutes(notifications)

	ctx.Protected.GET("/extension/config", m.handler.ExtensionConfig)
}

// RegisterHandlers subscribes the dispatcher to notifiable events. Realtime
// connections subscribe themselves when they open.
func (m *Module) RegisterHandlers(bus events.Bus) func() {
	unsubscribe := bus.Subscribe(m.dispatcher.Matcher(), m)
	m.log.Info("notification module registered event handlers", "events", len(dispatcher.Notifiable))
	return unsubscribe
}

// Handle hands the event to the dispatcher's worker pool.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	return m.dispatcher.Handle(ctx, event)
}

// Stream exposes the realtime stream manager.
func (m *Module) Stream() *sse.Service { return m.stream }

// Dispatcher exposes the dispatcher for shutdown and tests.
func (m *Module) Dispatcher() *dispatcher.Dispatcher { return m.dispatcher }

// Close ends open streams and waits for queued deliveries.
func (m *Module) Close() {
	m.stream.Close()
	m.dispatcher.Close()
}

var _ apphttp.Module = (*Module)(nil)
