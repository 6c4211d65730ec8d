package http

import (
	"context"

	"freelancer_ops_backend/internal/events"
	"freelancer_ops_backend/platform/config"
	"freelancer_ops_backend/platform/logger"
)

// RouterConfig is the configuration the router reads.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker backs /api/health. *pgxpool.Pool satisfies it.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is assembled by the composition root and handed to the router.
type App struct {
	Config   RouterConfig
	Logger   *logger.Logger
	Health   HealthChecker
	EventBus events.Bus
	Modules  []Module
}

// Subscribe registers the event handlers of every module that has them and
// returns one function that removes them all, in reverse order.
func (a *App) Subscribe() func() {
	var unsubscribers []func()
	for _, m := range a.Modules {
		sub, ok := m.(EventSubscriber)
		if !ok {
			continue
		}
		unsubscribers = append(unsubscribers, sub.RegisterHandlers(a.EventBus))
		a.Logger.Info("module event handlers registered", "module", m.Name())
	}
	return func() {
		for i := len(unsubscribers) - 1; i >= 0; i-- {
			unsubscribers[i]()
		}
	}
}
