package container

import (
	"context"
	"fmt"
	"log"

	"orchestrator-backend/config"
	"orchestrator-backend/core/workflow"
	"orchestrator-backend/handlers"
	"orchestrator-backend/services"
	auth "orchestrator-backend/storage/auth"
	"orchestrator-backend/storage/events"
)

// keyStore is implemented by both API key stores.
type keyStore interface {
	auth.APIKeyValidator
	auth.APIKeyIssuer
	Seed(key string, address workflow.Address, source string)
}

// Container holds all application dependencies
type Container struct {
	Config *config.Config

	// Storage
	EventStore events.Store
	APIKeys    keyStore

	// Services
	WorkflowService *services.WorkflowService
	QRCodeService   *services.QRCodeService
	HealthService   *services.HealthService
	Metrics         *services.Metrics

	// Handlers
	HealthHandler    *handlers.HealthHandler
	BountyHandler    *handlers.BountyHandler
	MilestoneHandler *handlers.MilestoneHandler
	PaymentHandler   *handlers.PaymentHandler
	QRCodeHandler    *handlers.QRCodeHandler
	APIKeyHandler    *handlers.APIKeyHandler
}

// Options override collaborators built by NewContainer. Tests use them to pin
// the clock.
type Options struct {
	Clock workflow.Clock
}

// NewContainer creates a new dependency container
func NewContainer(ctx context.Context, cfg *config.Config, opts Options) (*Container, error) {
	dsn := cfg.Store.SQLitePath
	if cfg.Store.Driver == events.DriverPostgres {
		dsn = cfg.Store.PGDSN
	}
	store, err := events.Open(ctx, cfg.Store.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening event store: %w", err)
	}

	var keys keyStore = auth.NewAPIKeyStore()
	if pg, ok := store.(*events.PGStore); ok {
		pgKeys, err := auth.NewPGAPIKeyStore(ctx, pg.Pool())
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("opening api key store: %w", err)
		}
		keys = pgKeys
	}
	if cfg.Auth.APIKey != "" {
		keys.Seed(cfg.Auth.APIKey, workflow.NormalizeAddress(cfg.Auth.CallerAddress), "seed")
	}

	// Initialize services
	metrics := services.NewMetrics()
	wf, err := services.NewWorkflowService(ctx, cfg.Deployment, store, services.WorkflowOptions{
		Clock:   opts.Clock,
		Metrics: metrics,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	qrService := services.NewQRCodeService(cfg.HTTP.BaseURL)
	healthService := services.NewHealthService(store, cfg.Store.Driver)

	log.Printf("container ready: store=%s api_key_seeded=%t", cfg.Store.Driver, cfg.Auth.APIKey != "")

	return &Container{
		Config:     cfg,
		EventStore: store,
		APIKeys:    keys,

		// Services
		WorkflowService: wf,
		QRCodeService:   qrService,
		HealthService:   healthService,
		Metrics:         metrics,

		// Handlers
		HealthHandler:    handlers.NewHealthHandler(healthService),
		BountyHandler:    handlers.NewBountyHandler(wf),
		MilestoneHandler: handlers.NewMilestoneHandler(wf),
		PaymentHandler:   handlers.NewPaymentHandler(wf),
		QRCodeHandler:    handlers.NewQRCodeHandler(qrService, wf),
		APIKeyHandler:    handlers.NewAPIKeyHandler(keys, keys, wf),
	}, nil
}

// Close releases the event store.
func (c *Container) Close() {
	c.EventStore.Close()
}
