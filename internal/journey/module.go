// Package journey provides the job journey bounded context: the append-only
// activity ledger, the pipeline aggregator and the recorder that turns
// domain events into ledger rows.
package journey

import (
	"context"

	"freelancer_ops_backend/internal/events"
	apphttp "freelancer_ops_backend/internal/http"
	"freelancer_ops_backend/internal/journey/handler"
	"freelancer_ops_backend/internal/journey/repository"
	"freelancer_ops_backend/internal/journey/service"
	"freelancer_ops_backend/platform/logger"
	"freelancer_ops_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the journey bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	log     *logger.Logger
}

// NewModule creates and initializes the journey module with all its dependencies.
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, repo, bus, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		log:     log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "journey"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts journey routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/journey")
	group.GET("/pipeline", m.handler.GetPipeline)
	group.GET("/pipeline.csv", m.handler.ExportPipelineCSV)
	group.GET("/stats", m.handler.GetStats)
	group.GET("/jobs/:jobId/timeline", m.handler.GetJobTimeline)
	group.POST("/jobs/:jobId/activities", m.handler.RecordActivity)
	group.POST("/captures", m.handler.CaptureJob)
}

// RegisterHandlers subscribes the recorder to journey events. Returns the
// unsubscribe function for shutdown.
func (m *Module) RegisterHandlers(bus events.Bus) func() {
	return bus.Subscribe(events.Named(service.RecordedEvents...), m)
}

// Handle routes events to the recorder.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	return m.service.HandleEvent(ctx, event)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
