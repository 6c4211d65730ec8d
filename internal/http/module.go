// Package http holds the contracts between the router and the domain
// modules that mount routes on it.
package http

import (
	"freelancer_ops_backend/internal/events"
	"freelancer_ops_backend/platform/config"

	"github.com/gin-gonic/gin"
)

// Module is a bounded context with its own routes.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// EventSubscriber is implemented by modules that react to bus events.
// RegisterHandlers returns the function that removes the subscription.
type EventSubscriber interface {
	RegisterHandlers(bus events.Bus) func()
}

// RouterContext is what a module gets to mount routes on.
type RouterContext struct {
	Engine *gin.Engine
	// V1 is /api/v1 without authentication.
	V1 *gin.RouterGroup
	// Protected is /api/v1 behind the JWT middleware; every request in it
	// carries a tenant-scoped identity.
	Protected      *gin.RouterGroup
	Config         config.JWTConfig
	AuthMiddleware gin.HandlerFunc
}
