// Package memory provides an in-process implementation of store.Store.
//
// Each transaction works on a copy of the state and swaps it in on commit,
// so a failed transaction leaves no trace. When a snapshot path is set the
// committed state is written to disk after every commit and loaded on start.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/flightops/flight-data-server/internal/logger"
	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/store"
)

// state is the full content of the store. Fields are exported for the snapshot.
type state struct {
	NextID int64 `json:"next_id"`

	Aerodromes    map[int64]models.Aerodrome     `json:"aerodromes"`
	Aircraft      map[int64]models.Aircraft      `json:"aircraft"`
	FlightNumbers map[int64]models.FlightNumber  `json:"flight_numbers"`
	EventCodes    map[int64]models.EventCode     `json:"event_codes"`
	Phases        map[int64]models.Phase         `json:"phases"`
	Flights       map[int64]models.Flight        `json:"flights"`
	Events        map[int64]models.Event         `json:"events"`
	Durations     map[int64]models.PhaseDuration `json:"durations"`
	Providers     map[int64]models.Provider      `json:"providers"`
	Schedules     map[int64]models.Schedule      `json:"schedules"`
	Registry      map[int64]models.RegistryEntry `json:"registry"`
	SyncLogs      map[int64]models.SyncLog       `json:"sync_logs"`
	Messages      map[int64]models.Message       `json:"messages"`
}

func newState() *state {
	return &state{
		Aerodromes:    map[int64]models.Aerodrome{},
		Aircraft:      map[int64]models.Aircraft{},
		FlightNumbers: map[int64]models.FlightNumber{},
		EventCodes:    map[int64]models.EventCode{},
		Phases:        map[int64]models.Phase{},
		Flights:       map[int64]models.Flight{},
		Events:        map[int64]models.Event{},
		Durations:     map[int64]models.PhaseDuration{},
		Providers:     map[int64]models.Provider{},
		Schedules:     map[int64]models.Schedule{},
		Registry:      map[int64]models.RegistryEntry{},
		SyncLogs:      map[int64]models.SyncLog{},
		Messages:      map[int64]models.Message{},
	}
}

// fill replaces nil maps left by an older or partial snapshot
func (s *state) fill() {
	fresh := newState()
	if s.Aerodromes == nil {
		s.Aerodromes = fresh.Aerodromes
	}
	if s.Aircraft == nil {
		s.Aircraft = fresh.Aircraft
	}
	if s.FlightNumbers == nil {
		s.FlightNumbers = fresh.FlightNumbers
	}
	if s.EventCodes == nil {
		s.EventCodes = fresh.EventCodes
	}
	if s.Phases == nil {
		s.Phases = fresh.Phases
	}
	if s.Flights == nil {
		s.Flights = fresh.Flights
	}
	if s.Events == nil {
		s.Events = fresh.Events
	}
	if s.Durations == nil {
		s.Durations = fresh.Durations
	}
	if s.Providers == nil {
		s.Providers = fresh.Providers
	}
	if s.Schedules == nil {
		s.Schedules = fresh.Schedules
	}
	if s.Registry == nil {
		s.Registry = fresh.Registry
	}
	if s.SyncLogs == nil {
		s.SyncLogs = fresh.SyncLogs
	}
	if s.Messages == nil {
		s.Messages = fresh.Messages
	}
}

func (s *state) clone() *state {
	return &state{
		NextID:        s.NextID,
		Aerodromes:    maps.Clone(s.Aerodromes),
		Aircraft:      maps.Clone(s.Aircraft),
		FlightNumbers: maps.Clone(s.FlightNumbers),
		EventCodes:    maps.Clone(s.EventCodes),
		Phases:        maps.Clone(s.Phases),
		Flights:       maps.Clone(s.Flights),
		Events:        maps.Clone(s.Events),
		Durations:     maps.Clone(s.Durations),
		Providers:     maps.Clone(s.Providers),
		Schedules:     maps.Clone(s.Schedules),
		Registry:      maps.Clone(s.Registry),
		SyncLogs:      maps.Clone(s.SyncLogs),
		Messages:      maps.Clone(s.Messages),
	}
}

func (s *state) nextID() int64 {
	s.NextID++
	return s.NextID
}

// Store is an in-memory store.Store. Transactions are serialized.
type Store struct {
	mu       sync.Mutex
	state    *state
	snapshot *snapshotFile
}

var _ store.Store = (*Store)(nil)

// Option configures a Store
type Option func(*Store) error

// WithSnapshot persists the committed state to path and restores it on start.
func WithSnapshot(path string) Option {
	return func(s *Store) error {
		if path == "" {
			return nil
		}
		s.snapshot = &snapshotFile{path: path}
		loaded, err := s.snapshot.load()
		if err != nil {
			return err
		}
		if loaded != nil {
			s.state = loaded
			logger.Infof("Restored store snapshot from %s", path)
		}
		return nil
	}
}

// New creates an empty store
func New(opts ...Option) (*Store, error) {
	s := &Store{state: newState()}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("failed to apply memory store option: %w", err)
		}
	}
	return s, nil
}

// InTx implements store.Store
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}

	if s.snapshot != nil {
		if err := s.snapshot.save(work); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
	}
	s.state = work
	return nil
}

// Ping implements store.Store
func (*Store) Ping(context.Context) error {
	return nil
}

// Close implements store.Store
func (*Store) Close() error {
	return nil
}

// tx operates on a private copy of the state
type tx struct {
	st *state
}

var _ store.Tx = (*tx)(nil)

func notFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, models.ErrNotFound)
}

func conflict(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), models.ErrConflict)
}
