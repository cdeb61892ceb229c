// Package app provides application lifecycle management for the flight data server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flightops/flight-data-server/internal/config"
	"github.com/flightops/flight-data-server/internal/logger"
)

// DefaultShutdownTimeout bounds the graceful shutdown of Run
const DefaultShutdownTimeout = 30 * time.Second

// FlightApp encapsulates all components needed to run the API server.
type FlightApp struct {
	config     *config.Config
	components *Components
	httpServer *http.Server
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully and
// releases the components.
func (app *FlightApp) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		_ = app.components.Close(context.Background())
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	return app.Serve(ctx, ln, shutdownTimeout)
}

// Serve is Run on an existing listener
func (app *FlightApp) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infof("Server listening on %s", ln.Addr())
		if err := app.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return app.Stop(shutdownTimeout)
	})

	return g.Wait()
}

// Stop gracefully shuts down the HTTP server and releases the components
func (app *FlightApp) Stop(timeout time.Duration) error {
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}
	if err := app.components.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	logger.Info("Server shutdown complete")
	return errors.Join(errs...)
}

// GetConfig returns the application configuration
func (app *FlightApp) GetConfig() *config.Config {
	return app.config
}

// GetComponents returns the services the app serves
func (app *FlightApp) GetComponents() *Components {
	return app.components
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *FlightApp) GetHTTPServer() *http.Server {
	return app.httpServer
}
