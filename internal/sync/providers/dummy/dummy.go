// Package dummy provides a sync service whose operations do nothing.
// It is useful to exercise schedules end to end without an external system.
package dummy

import (
	"context"

	"github.com/flightops/flight-data-server/internal/logger"
	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/sync"
)

// Service is the service name providers use to select this implementation
const Service = "dummy"

func handle(_ context.Context, req *sync.Request) (any, error) {
	logger.Debugw("Dummy sync operation",
		"run_id", req.RunID,
		"operation", req.Operation,
		"model", req.Schedule.Model,
	)
	return nil, nil
}

// Register adds the dummy handlers for every sync model to h
func Register(h *sync.Handlers) {
	h.RegisterAll(Service, sync.HandlerFunc(handle), models.SyncModels...)
}
