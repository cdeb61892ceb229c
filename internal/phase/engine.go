// Package phase derives phase durations from a flight's events.
//
// A phase is the interval between a start and an end event code. For every
// phase and every time kind present on the flight, the engine pairs the
// start and end events of that kind and stores end minus start in hours,
// rounded to two decimals. Durations whose pair is incomplete are removed,
// and the flight's block and flight time projections are refreshed.
package phase

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/flightops/flight-data-server/internal/logger"
	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/otel"
	"github.com/flightops/flight-data-server/internal/store"
	"github.com/flightops/flight-data-server/internal/telemetry"
)

// DuplicatePolicy decides what happens when a flight has more than one event
// for the same code and time kind.
type DuplicatePolicy string

// Duplicate policies
const (
	// DuplicatesReject makes Validate refuse duplicated slots
	DuplicatesReject DuplicatePolicy = "reject"

	// DuplicatesLowestID accepts duplicates; the event with the lowest id wins
	DuplicatesLowestID DuplicatePolicy = "lowest-id"
)

// Policy groups the engine's data quality decisions.
type Policy struct {
	Duplicates DuplicatePolicy

	// AllowNegative keeps durations whose end precedes their start.
	// When false such pairs produce no duration and Validate rejects them.
	AllowNegative bool
}

// DefaultPolicy rejects duplicates and keeps negative durations
func DefaultPolicy() Policy {
	return Policy{Duplicates: DuplicatesReject, AllowNegative: true}
}

// Engine recomputes phase durations. It is safe for concurrent use.
type Engine struct {
	store   store.Store
	policy  Policy
	metrics *telemetry.PhaseMetrics
	tracer  trace.Tracer
}

// Option configures an Engine
type Option func(*Engine)

// WithPolicy sets the data quality policy
func WithPolicy(p Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithMetrics records recomputations on m
func WithMetrics(m *telemetry.PhaseMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTracer traces recomputations with t
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// New creates an engine over s
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{store: s, policy: DefaultPolicy()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the engine's policy
func (e *Engine) Policy() Policy {
	return e.policy
}

// Result summarises one recomputation.
type Result struct {
	// Durations holds the flight's durations after the run
	Durations []models.PhaseDuration
	Written   int
	Deleted   int
	Unchanged int
}

// Changed reports whether the run wrote anything
func (r Result) Changed() bool {
	return r.Written > 0 || r.Deleted > 0
}

// Recompute derives the durations of flightID in its own transaction.
func (e *Engine) Recompute(ctx context.Context, flightID int64) (Result, error) {
	var res Result
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		res, err = e.RecomputeTx(ctx, tx, flightID)
		return err
	})
	return res, err
}

// RecomputeTx derives the durations of flightID inside tx. Running it twice
// without event changes writes nothing the second time.
func (e *Engine) RecomputeTx(ctx context.Context, tx store.Tx, flightID int64) (Result, error) {
	ctx, span := otel.StartSpan(ctx, e.tracer, "phase.Recompute",
		trace.WithAttributes(otel.AttrFlightID.Int64(flightID)))
	defer span.End()

	res, err := e.recompute(ctx, tx, flightID)
	if err != nil {
		otel.RecordError(span, err)
		return Result{}, err
	}

	e.metrics.RecordRecompute(ctx, res.Written, res.Deleted)
	if res.Changed() {
		logger.Debugw("Recomputed phase durations",
			"flight_id", flightID,
			"written", res.Written,
			"deleted", res.Deleted,
		)
	}
	return res, nil
}

func (e *Engine) recompute(ctx context.Context, tx store.Tx, flightID int64) (Result, error) {
	flight, err := tx.LockFlight(ctx, flightID)
	if err != nil {
		return Result{}, err
	}
	phases, err := tx.ListPhases(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list phases: %w", err)
	}
	events, err := tx.ListEvents(ctx, flightID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list events: %w", err)
	}
	existing, err := tx.ListPhaseDurations(ctx, flightID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list phase durations: %w", err)
	}

	computed := derive(flightID, phases, events, e.policy.AllowNegative)

	// a locked flight may still be recomputed as long as nothing changes
	lock := models.ParentLock{Flight: flight}
	guard := func(action string, id int64) error {
		return models.CheckLock(lock, action, models.KindPhaseDuration, id)
	}

	var res Result
	seen := make(map[models.DurationKey]bool, len(existing))
	for _, old := range existing {
		key := old.Key()
		next, ok := computed[key]
		if !ok || seen[key] {
			if err := guard(models.ActionDelete, old.ID); err != nil {
				return Result{}, err
			}
			if err := tx.DeletePhaseDuration(ctx, old.ID); err != nil {
				return Result{}, fmt.Errorf("failed to delete phase duration %d: %w", old.ID, err)
			}
			res.Deleted++
			continue
		}
		seen[key] = true
		if sameDuration(&old, &next) {
			res.Unchanged++
			res.Durations = append(res.Durations, old)
			continue
		}
		if err := guard(models.ActionWrite, old.ID); err != nil {
			return Result{}, err
		}
		next.ID = old.ID
		if err := tx.UpsertPhaseDuration(ctx, &next); err != nil {
			return Result{}, fmt.Errorf("failed to store phase duration: %w", err)
		}
		res.Written++
		res.Durations = append(res.Durations, next)
	}

	for _, key := range orderedKeys(phases, computed) {
		if seen[key] {
			continue
		}
		if err := guard(models.ActionCreate, 0); err != nil {
			return Result{}, err
		}
		d := computed[key]
		if err := tx.UpsertPhaseDuration(ctx, &d); err != nil {
			return Result{}, fmt.Errorf("failed to store phase duration: %w", err)
		}
		res.Written++
		res.Durations = append(res.Durations, d)
	}

	if err := refreshProjections(ctx, tx, flight, phases, computed); err != nil {
		return Result{}, err
	}
	return res, nil
}

// refreshProjections copies the actual-time Block and Flight durations onto the flight
func refreshProjections(
	ctx context.Context, tx store.Tx, flight *models.Flight,
	phases []models.Phase, computed map[models.DurationKey]models.PhaseDuration,
) error {
	project := func(name string) float64 {
		p := findPhase(phases, name)
		if p == nil {
			return 0
		}
		return computed[models.DurationKey{PhaseID: p.ID, TimeKind: models.TimeKindActual}].Duration
	}

	block, flightTime := project(models.PhaseBlock), project(models.PhaseFlight)
	if flight.BlockDuration == block && flight.FlightDuration == flightTime {
		return nil
	}
	if err := models.CheckLock(flight, models.ActionWrite, models.KindFlight, flight.ID,
		"block_duration", "flight_duration"); err != nil {
		return err
	}
	flight.BlockDuration = block
	flight.FlightDuration = flightTime
	if err := tx.UpdateFlight(ctx, flight); err != nil {
		return fmt.Errorf("failed to update flight projections: %w", err)
	}
	return nil
}

// GetPhaseDuration returns the stored duration of the named phase for the
// flight and time kind, or 0 when there is none.
func (e *Engine) GetPhaseDuration(ctx context.Context, flightID int64, phaseName string, kind models.TimeKind) (float64, error) {
	if kind == "" {
		kind = models.TimeKindActual
	}

	var out float64
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetFlight(ctx, flightID); err != nil {
			return err
		}
		phases, err := tx.ListPhases(ctx)
		if err != nil {
			return err
		}
		p := findPhase(phases, phaseName)
		if p == nil {
			return nil
		}
		durations, err := tx.ListPhaseDurations(ctx, flightID)
		if err != nil {
			return err
		}
		for _, d := range durations {
			if d.PhaseID == p.ID && d.TimeKind == kind {
				out = d.Duration
				return nil
			}
		}
		return nil
	})
	return out, err
}

func findPhase(phases []models.Phase, name string) *models.Phase {
	for i := range phases {
		if phases[i].Name == name {
			return &phases[i]
		}
	}
	return nil
}

func sameDuration(a, b *models.PhaseDuration) bool {
	return a.StartTime.Equal(b.StartTime) && a.EndTime.Equal(b.EndTime) && a.Duration == b.Duration
}
