// Package v1 provides the flight data REST endpoints.
package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flightops/flight-data-server/internal/flights"
	"github.com/flightops/flight-data-server/internal/registry"
	"github.com/flightops/flight-data-server/internal/sync"
)

// Routes handles HTTP requests for the v1 endpoints.
type Routes struct {
	flights    *flights.Service
	dispatcher *sync.Dispatcher
	registry   *registry.Registry
}

// NewRoutes creates a new Routes instance with the given services.
func NewRoutes(fs *flights.Service, d *sync.Dispatcher, reg *registry.Registry) *Routes {
	return &Routes{
		flights:    fs,
		dispatcher: d,
		registry:   reg,
	}
}

// Router creates and configures the HTTP router for the v1 endpoints.
func Router(fs *flights.Service, d *sync.Dispatcher, reg *registry.Registry) http.Handler {
	routes := NewRoutes(fs, d, reg)

	r := chi.NewRouter()

	r.Get("/aerodromes", routes.listAerodromes)
	r.Post("/aerodromes", routes.createAerodrome)
	r.Get("/aircraft", routes.listAircraft)
	r.Post("/aircraft", routes.createAircraft)
	r.Get("/flight-numbers", routes.listFlightNumbers)
	r.Post("/flight-numbers", routes.createFlightNumber)
	r.Get("/event-codes", routes.listEventCodes)
	r.Post("/event-codes", routes.createEventCode)
	r.Get("/phases", routes.listPhases)
	r.Post("/phases", routes.createPhase)

	r.Post("/flights", routes.createFlight)
	r.Get("/flights", routes.listFlights)
	r.Route("/flights/{id}", func(r chi.Router) {
		r.Get("/", routes.getFlight)
		r.Patch("/", routes.updateFlight)
		r.Delete("/", routes.deleteFlight)
		r.Put("/lock", routes.setLocked)
		r.Get("/messages", routes.listFlightMessages)

		r.Get("/events", routes.listEvents)
		r.Post("/events", routes.createEvent)
		r.Post("/events:batch", routes.applyEventChanges)

		r.Get("/durations", routes.listDurations)
		r.Post("/durations:recompute", routes.recomputeDurations)
		r.Get("/durations/{phase}", routes.getPhaseDuration)
	})
	r.Route("/events/{id}", func(r chi.Router) {
		r.Get("/", routes.getEvent)
		r.Patch("/", routes.updateEvent)
		r.Delete("/", routes.deleteEvent)
	})

	r.Get("/providers", routes.listProviders)
	r.Post("/providers", routes.createProvider)
	r.Get("/providers/{id}/messages", routes.listProviderMessages)
	r.Get("/schedules", routes.listSchedules)
	r.Post("/schedules", routes.createSchedule)
	r.Post("/schedules:run", routes.runSchedules)
	r.Post("/schedules:run-due", routes.runDue)
	r.Post("/schedules/{id}:run", routes.runSchedule)
	r.Route("/schedules/{id}", func(r chi.Router) {
		r.Get("/", routes.getSchedule)
		r.Get("/logs", routes.listLogs)
	})

	r.Get("/registry", routes.lookupRegistry)
	r.Post("/registry", routes.getOrCreateRegistry)

	return r
}
