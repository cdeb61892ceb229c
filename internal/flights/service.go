// Package flights provides the mutation entry points for flights, their
// events and the reference data they point to.
//
// Every mutation runs in one store transaction. Event mutations check the
// owning flight's lock, validate the resulting event set against the phase
// policy and recompute the flight's phase durations before committing.
package flights

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/flightops/flight-data-server/internal/audit"
	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/otel"
	"github.com/flightops/flight-data-server/internal/phase"
	"github.com/flightops/flight-data-server/internal/store"
)

// options holds configuration options for the service
type options struct {
	engine *phase.Engine
	sink   audit.Sink
	tracer trace.Tracer
	now    func() time.Time
}

// Option is a functional option for configuring the service
type Option func(*options) error

// WithEngine sets the phase engine. Defaults to an engine with the default policy.
func WithEngine(e *phase.Engine) Option {
	return func(o *options) error {
		if e == nil {
			return fmt.Errorf("phase engine is required")
		}
		o.engine = e
		return nil
	}
}

// WithAuditSink sets where narration messages go. Defaults to the store itself.
func WithAuditSink(sink audit.Sink) Option {
	return func(o *options) error {
		o.sink = sink
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer. Tracing is disabled when unset.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

// WithClock overrides the time source used for write dates
func WithClock(now func() time.Time) Option {
	return func(o *options) error {
		o.now = now
		return nil
	}
}

// Service implements flight, event and reference data operations.
type Service struct {
	store  store.Store
	engine *phase.Engine
	sink   audit.Sink
	tracer trace.Tracer
	now    func() time.Time
}

// New creates a flight service over s
func New(s store.Store, opts ...Option) (*Service, error) {
	if s == nil {
		return nil, fmt.Errorf("store is required")
	}
	o := &options{now: time.Now}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.engine == nil {
		o.engine = phase.New(s, phase.WithTracer(o.tracer))
	}
	if o.sink == nil {
		o.sink = audit.NewStoreSink(s)
	}

	return &Service{
		store:  s,
		engine: o.engine,
		sink:   o.sink,
		tracer: o.tracer,
		now:    o.now,
	}, nil
}

// Engine returns the phase engine the service recomputes with
func (s *Service) Engine() *phase.Engine {
	return s.engine
}

func (s *Service) startSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.StartSpan(ctx, s.tracer, name, opts...)
}

// read runs fn in a transaction and returns its value
func read[T any](ctx context.Context, s store.Store, fn func(tx store.Tx) (T, error)) (T, error) {
	var out T
	err := s.InTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = fn(tx)
		return err
	})
	return out, err
}

// mustExist turns a missing reference into a validation error on field
func mustExist(field string, err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return models.NewValidationError(field, "references an unknown record", err)
	}
	return err
}
