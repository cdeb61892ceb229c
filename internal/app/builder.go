package app

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/flightops/flight-data-server/internal/api"
	"github.com/flightops/flight-data-server/internal/config"
	"github.com/flightops/flight-data-server/internal/logger"
	"github.com/flightops/flight-data-server/internal/telemetry"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 30 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 60 * time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// FlightAppOptions is a function that configures the flight app builder
type FlightAppOptions func(*flightAppConfig) error

// flightAppConfig collects what NewFlightApp builds from
type flightAppConfig struct {
	config *config.Config

	componentOpts []ComponentOption

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
}

func baseConfig(opts ...FlightAppOptions) (*flightAppConfig, error) {
	cfg := &flightAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		cfg.config = config.Default()
	}
	return cfg, nil
}

// NewFlightApp builds the components, seeds the configured reference data
// and prepares the HTTP server.
func NewFlightApp(ctx context.Context, opts ...FlightAppOptions) (*FlightApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	components, err := BuildComponents(ctx, cfg.config, cfg.componentOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build components: %w", err)
	}

	if err := Seed(ctx, components, cfg.config); err != nil {
		_ = components.Close(ctx)
		return nil, fmt.Errorf("failed to seed configuration: %w", err)
	}

	httpServer, err := buildHTTPServer(cfg, components)
	if err != nil {
		_ = components.Close(ctx)
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	return &FlightApp{
		config:     cfg.config,
		components: components,
		httpServer: httpServer,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) FlightAppOptions {
	return func(cfg *flightAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithComponentOptions passes opts to BuildComponents
func WithComponentOptions(opts ...ComponentOption) FlightAppOptions {
	return func(cfg *flightAppConfig) error {
		cfg.componentOpts = append(cfg.componentOpts, opts...)
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) FlightAppOptions {
	return func(cfg *flightAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		parts := strings.SplitN(addr, ":", 2)
		if len(parts) != 2 || parts[1] == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		host, port := parts[0], parts[1]
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) FlightAppOptions {
	return func(cfg *flightAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithRequestTimeout bounds how long one request may run
func WithRequestTimeout(d time.Duration) FlightAppOptions {
	return func(cfg *flightAppConfig) error {
		if d <= 0 {
			return fmt.Errorf("request timeout must be positive")
		}
		cfg.requestTimeout = d
		return nil
	}
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(b *flightAppConfig, c *Components) (*http.Server, error) {
	logger.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Metrics and tracing go first so they see every request
	provider := c.Telemetry.MeterProvider()
	metricsMiddleware, err := telemetry.MetricsMiddleware(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
	}
	b.middlewares = append([]func(http.Handler) http.Handler{
		metricsMiddleware,
		telemetry.TracingMiddleware(c.Telemetry.TracerProvider()),
	}, b.middlewares...)

	router := api.NewServer(api.Services{
		Flights:    c.Flights,
		Dispatcher: c.Dispatcher,
		Registry:   c.Registry,
		Store:      c.Store,
	},
		api.WithMiddlewares(b.middlewares...),
		api.WithMetricsHandler(c.Telemetry.MetricsHandler()),
	)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	logger.Infow("HTTP server configured", "address", b.address)
	return server, nil
}
