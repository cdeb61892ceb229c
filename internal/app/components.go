package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/flightops/flight-data-server/internal/app/storage"
	"github.com/flightops/flight-data-server/internal/config"
	"github.com/flightops/flight-data-server/internal/flights"
	"github.com/flightops/flight-data-server/internal/logger"
	"github.com/flightops/flight-data-server/internal/phase"
	"github.com/flightops/flight-data-server/internal/registry"
	"github.com/flightops/flight-data-server/internal/store"
	"github.com/flightops/flight-data-server/internal/sync"
	"github.com/flightops/flight-data-server/internal/sync/providers/dummy"
	"github.com/flightops/flight-data-server/internal/sync/providers/httpjson"
	"github.com/flightops/flight-data-server/internal/telemetry"
)

const tracerName = "github.com/flightops/flight-data-server"

// Components groups the services built from one configuration
type Components struct {
	Store      store.Store
	Flights    *flights.Service
	Dispatcher *sync.Dispatcher
	Registry   *registry.Registry
	Telemetry  *telemetry.Telemetry
}

// componentOptions holds overrides for BuildComponents
type componentOptions struct {
	store     store.Store
	telemetry *telemetry.Telemetry
	register  []func(*sync.Handlers, *registry.Registry)
}

// ComponentOption configures BuildComponents
type ComponentOption func(*componentOptions)

// WithStore uses s instead of opening the configured store
func WithStore(s store.Store) ComponentOption {
	return func(o *componentOptions) {
		o.store = s
	}
}

// WithTelemetry uses t instead of initializing telemetry from the configuration
func WithTelemetry(t *telemetry.Telemetry) ComponentOption {
	return func(o *componentOptions) {
		o.telemetry = t
	}
}

// WithServices registers additional sync services next to the built-in ones
func WithServices(register ...func(*sync.Handlers, *registry.Registry)) ComponentOption {
	return func(o *componentOptions) {
		o.register = append(o.register, register...)
	}
}

// PhasePolicy converts the configured policy for the phase engine
func PhasePolicy(cfg *config.PhasePolicyConfig) phase.Policy {
	return phase.Policy{
		Duplicates:    phase.DuplicatePolicy(cfg.GetDuplicates()),
		AllowNegative: cfg.GetAllowNegative(),
	}
}

// BuildComponents opens the store and wires the services on top of it. The
// caller releases them with Close.
func BuildComponents(ctx context.Context, cfg *config.Config, opts ...ComponentOption) (*Components, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	o := &componentOptions{}
	for _, opt := range opts {
		opt(o)
	}

	c := &Components{Store: o.store, Telemetry: o.telemetry}
	ok := false
	defer func() {
		if !ok {
			_ = c.Close(context.Background())
		}
	}()

	if c.Telemetry == nil {
		t, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		c.Telemetry = t
	}
	tracer := c.Telemetry.Tracer(tracerName)

	if c.Store == nil {
		s, err := storage.NewStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c.Store = s
	}

	phaseMetrics, err := telemetry.NewPhaseMetrics(c.Telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create phase metrics: %w", err)
	}
	syncMetrics, err := telemetry.NewSyncMetrics(c.Telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}

	engine := phase.New(c.Store,
		phase.WithPolicy(PhasePolicy(&cfg.PhasePolicy)),
		phase.WithMetrics(phaseMetrics),
		phase.WithTracer(tracer),
	)
	c.Flights, err = flights.New(c.Store, flights.WithEngine(engine), flights.WithTracer(tracer))
	if err != nil {
		return nil, fmt.Errorf("failed to create flight service: %w", err)
	}

	c.Registry = registry.New(c.Store, registry.WithTracer(tracer))

	handlers := sync.NewHandlers()
	dummy.Register(handlers)
	httpjson.Register(handlers, c.Registry)
	for _, register := range o.register {
		register(handlers, c.Registry)
	}
	c.Dispatcher = sync.NewDispatcher(c.Store, handlers,
		sync.WithTracer(tracer),
		sync.WithSyncMetrics(syncMetrics),
	)

	logger.Infow("Components initialized",
		"storage", cfg.GetStorageType(),
		"duplicates", engine.Policy().Duplicates,
		"allow_negative", engine.Policy().AllowNegative,
		"services", handlers.Services(),
	)
	ok = true
	return c, nil
}

// Close releases the store and flushes telemetry
func (c *Components) Close(ctx context.Context) error {
	var errs []error
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close store: %w", err))
		}
	}
	if c.Telemetry != nil {
		if err := c.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
