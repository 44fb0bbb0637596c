// Package calls provides the missed-call capture bounded context module.
package calls

import (
	"callcapture_backend/internal/calls/handler"
	"callcapture_backend/internal/calls/repository"
	"callcapture_backend/internal/calls/service"
	"callcapture_backend/internal/events"
	apphttp "callcapture_backend/internal/http"
	"callcapture_backend/internal/messaging"
	"callcapture_backend/platform/config"
	"callcapture_backend/platform/logger"
	"callcapture_backend/platform/metrics"
	"callcapture_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the calls bounded context module implementing http.Module.
type Module struct {
	service *service.Service
	handler *handler.Handler
}

// NewModule wires the calls repository, service and handler.
func NewModule(
	pool *pgxpool.Pool,
	provider service.CallStatusFetcher,
	sender service.MessageSender,
	usage service.UsageCounter,
	bus events.Bus,
	m *metrics.Metrics,
	cfg config.ReconcilerConfig,
	val *validator.Validator,
	log *logger.Logger,
) (*Module, error) {
	renderer, err := messaging.NewRenderer()
	if err != nil {
		return nil, err
	}

	repo := repository.New(pool)
	svc := service.New(repo, provider, sender, renderer, usage, bus, m, cfg, log)

	return &Module{
		service: svc,
		handler: handler.New(svc, val, log),
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "calls"
}

// Service exposes the call pipeline for the scheduler binary.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts call webhook and operator routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	voice := ctx.Hooks.Group("/voice")
	voice.POST("/forwarded", m.handler.HandleForwardStarted)
	voice.POST("/dial-status", m.handler.HandleDialStatus)

	ctx.Internal.POST("/reconcile", m.handler.HandleReconcile)
}
