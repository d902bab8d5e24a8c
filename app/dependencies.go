package app

import (
	"context"
	"fmt"

	"github.com/hirewise/llm-proxy/config"
	"github.com/hirewise/llm-proxy/metering"
	"github.com/hirewise/llm-proxy/middleware"
	"github.com/hirewise/llm-proxy/pricing"
	"github.com/hirewise/llm-proxy/providers"
	"github.com/hirewise/llm-proxy/providers/anthropic"
	"github.com/hirewise/llm-proxy/providers/gemini"
	"github.com/hirewise/llm-proxy/providers/openai"
	"github.com/hirewise/llm-proxy/repositories"
	"github.com/hirewise/llm-proxy/repositories/postgres"
	"github.com/hirewise/llm-proxy/router"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repositories
	UsageRepo   repositories.UsageRepository
	PricingRepo repositories.PricingRepository

	// Domain services
	PricingTable *pricing.Table
	Registry     *providers.Registry
	Meter        *metering.Service
	Router       *router.Router

	// Middleware
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initPricing(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize pricing: %w", err)
	}

	if err := deps.initProviders(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	if err := deps.initMetering(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize metering: %w", err)
	}

	deps.Router = router.New(cfg.Router, deps.Registry, deps.Meter, logger)
	deps.AuthMiddleware = middleware.NewAuthMiddleware(cfg.Auth.Required, logger)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL connection, schema and repositories
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	db, err := postgres.NewDB(cfg.Database, d.Logger)
	if err != nil {
		return err
	}
	d.DB = db

	if err := db.InitSchema(ctx); err != nil {
		return err
	}

	d.UsageRepo = postgres.NewUsageRepository(db, d.Logger)
	d.PricingRepo = postgres.NewPricingRepository(db, d.Logger)

	return nil
}

// initPricing builds the pricing table: shipped defaults layered with
// operator overrides from the pricing store. The table is never mutated
// after this point.
func (d *Dependencies) initPricing(ctx context.Context) error {
	table := pricing.NewTable()

	entries, err := d.PricingRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		table.Set(entry.Provider, entry.Model, pricing.Entry{
			InputCostPerToken:  entry.InputCostPerToken,
			OutputCostPerToken: entry.OutputCostPerToken,
		})
	}

	d.PricingTable = table
	d.Logger.Info("pricing table loaded",
		zap.Int("entries", table.Len()),
		zap.Int("overrides", len(entries)))
	return nil
}

// initProviders registers an adapter for each provider with credentials
func (d *Dependencies) initProviders(cfg *config.Config) error {
	registry := providers.NewRegistry()

	register := func(name string, pc config.ProviderConfig, build func(providers.Config) providers.Provider) error {
		if !pc.Enabled() {
			return nil
		}
		adapter := build(providers.Config{
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
			Timeout: pc.Timeout,
			Model:   pc.Model,
		})
		if err := registry.Register(adapter); err != nil {
			return err
		}
		d.Logger.Info("registered provider", zap.String("provider", name))
		return nil
	}

	if err := register("openai", cfg.Providers.OpenAI, func(c providers.Config) providers.Provider {
		return openai.NewAdapter(c)
	}); err != nil {
		return err
	}
	if err := register("anthropic", cfg.Providers.Anthropic, func(c providers.Config) providers.Provider {
		return anthropic.NewAdapter(c)
	}); err != nil {
		return err
	}
	if err := register("gemini", cfg.Providers.Gemini, func(c providers.Config) providers.Provider {
		return gemini.NewAdapter(c)
	}); err != nil {
		return err
	}

	if registry.Count() == 0 {
		d.Logger.Warn("no LLM providers configured")
	}

	d.Registry = registry
	return nil
}

// initMetering creates and starts the metering workers
func (d *Dependencies) initMetering(cfg *config.Config) error {
	meter := metering.NewService(d.UsageRepo, d.PricingTable, d.Logger, metering.Config{
		BufferSize:    cfg.Metering.BufferSize,
		WorkerCount:   cfg.Metering.WorkerCount,
		CharsPerToken: cfg.Metering.CharsPerToken,
	})
	if err := meter.Start(); err != nil {
		return err
	}

	d.Meter = meter
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Drain pending usage records before closing the store they write to
	if d.Meter != nil {
		if err := d.Meter.Stop(d.Config.Metering.StopTimeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop metering: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
