// Package store defines the persistence contract of the flight data server.
//
// All access goes through InTx so a service mutation and every derivation it
// triggers commit or roll back together. Implementations live in the memory
// and postgres subpackages.
package store

import (
	"context"
	"time"

	"github.com/flightops/flight-data-server/internal/models"
)

// Store is a transactional record store.
type Store interface {
	// InTx runs fn in a transaction. The transaction commits when fn returns
	// nil and rolls back otherwise; fn's error is returned unchanged.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// Ping verifies the backend is reachable
	Ping(ctx context.Context) error

	// Close releases the backend's resources
	Close() error
}

// Tx is the set of record operations available inside a transaction.
// Lookups of a missing record return models.ErrNotFound; writes that would
// break a uniqueness rule return models.ErrConflict.
type Tx interface {
	ReferenceTx
	FlightTx
	EventTx
	SyncTx
	MessageTx
}

// ReferenceTx covers the static reference data.
type ReferenceTx interface {
	CreateAerodrome(ctx context.Context, a *models.Aerodrome) error
	GetAerodrome(ctx context.Context, id int64) (*models.Aerodrome, error)
	ListAerodromes(ctx context.Context) ([]models.Aerodrome, error)

	CreateAircraft(ctx context.Context, a *models.Aircraft) error
	GetAircraft(ctx context.Context, id int64) (*models.Aircraft, error)
	ListAircraft(ctx context.Context) ([]models.Aircraft, error)

	CreateFlightNumber(ctx context.Context, n *models.FlightNumber) error
	GetFlightNumber(ctx context.Context, id int64) (*models.FlightNumber, error)
	ListFlightNumbers(ctx context.Context) ([]models.FlightNumber, error)

	CreateEventCode(ctx context.Context, c *models.EventCode) error
	GetEventCode(ctx context.Context, id int64) (*models.EventCode, error)
	// ListEventCodes returns codes ordered by (sequence, id)
	ListEventCodes(ctx context.Context) ([]models.EventCode, error)

	CreatePhase(ctx context.Context, p *models.Phase) error
	// ListPhases returns phases ordered by (sequence, id)
	ListPhases(ctx context.Context) ([]models.Phase, error)
}

// FlightFilter narrows ListFlights. Zero values match everything.
type FlightFilter struct {
	From       time.Time
	To         time.Time
	AircraftID int64
}

// Match reports whether f passes the filter
func (ff FlightFilter) Match(f *models.Flight) bool {
	if !ff.From.IsZero() && f.Date.Before(ff.From) {
		return false
	}
	if !ff.To.IsZero() && f.Date.After(ff.To) {
		return false
	}
	return ff.AircraftID == 0 || f.AircraftID == ff.AircraftID
}

// FlightTx covers flights.
type FlightTx interface {
	CreateFlight(ctx context.Context, f *models.Flight) error
	GetFlight(ctx context.Context, id int64) (*models.Flight, error)
	// LockFlight reads the flight like GetFlight and holds it until the
	// transaction ends. Every mutation of a flight, its events or its
	// durations reads the flight through it.
	LockFlight(ctx context.Context, id int64) (*models.Flight, error)
	// ListFlights returns flights ordered by (date desc, id desc)
	ListFlights(ctx context.Context, filter FlightFilter) ([]models.Flight, error)
	UpdateFlight(ctx context.Context, f *models.Flight) error
	// DeleteFlight removes the flight with its events and phase durations
	DeleteFlight(ctx context.Context, id int64) error
}

// EventTx covers events and the phase durations derived from them.
type EventTx interface {
	CreateEvent(ctx context.Context, e *models.Event) error
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
	UpdateEvent(ctx context.Context, e *models.Event) error
	DeleteEvent(ctx context.Context, id int64) error
	// ListEvents returns the flight's events ordered by (code, time kind, id)
	ListEvents(ctx context.Context, flightID int64) ([]models.Event, error)

	// UpsertPhaseDuration inserts d or overwrites the row holding the same
	// (flight, phase, time kind) and sets d.ID.
	UpsertPhaseDuration(ctx context.Context, d *models.PhaseDuration) error
	DeletePhaseDuration(ctx context.Context, id int64) error
	ListPhaseDurations(ctx context.Context, flightID int64) ([]models.PhaseDuration, error)
}

// SyncTx covers providers, schedules, the registry and sync logs.
type SyncTx interface {
	CreateProvider(ctx context.Context, p *models.Provider) error
	GetProvider(ctx context.Context, id int64) (*models.Provider, error)
	ListProviders(ctx context.Context) ([]models.Provider, error)
	UpdateProvider(ctx context.Context, p *models.Provider) error

	CreateSchedule(ctx context.Context, s *models.Schedule) error
	GetSchedule(ctx context.Context, id int64) (*models.Schedule, error)
	// ListSchedules returns the provider's schedules, or all of them when providerID is 0
	ListSchedules(ctx context.Context, providerID int64) ([]models.Schedule, error)
	UpdateSchedule(ctx context.Context, s *models.Schedule) error

	FindRegistryEntry(ctx context.Context, providerID int64, model, externalID string) (*models.RegistryEntry, error)
	CreateRegistryEntry(ctx context.Context, e *models.RegistryEntry) error
	ListRegistryEntries(ctx context.Context, providerID int64, model string) ([]models.RegistryEntry, error)

	CreateSyncLog(ctx context.Context, l *models.SyncLog) error
	// ListSyncLogs returns the schedule's logs newest first
	ListSyncLogs(ctx context.Context, scheduleID int64) ([]models.SyncLog, error)
}

// MessageTx covers the audit trail.
type MessageTx interface {
	CreateMessage(ctx context.Context, m *models.Message) error
	// ListMessages returns a record's messages oldest first
	ListMessages(ctx context.Context, kind string, recordID int64) ([]models.Message, error)
}
