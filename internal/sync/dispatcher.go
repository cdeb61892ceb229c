package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/flightops/flight-data-server/internal/audit"
	"github.com/flightops/flight-data-server/internal/kwargs"
	"github.com/flightops/flight-data-server/internal/logger"
	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/otel"
	"github.com/flightops/flight-data-server/internal/store"
	"github.com/flightops/flight-data-server/internal/telemetry"
)

// Dispatcher runs schedules through their service's handlers.
type Dispatcher struct {
	store    store.Store
	handlers *Handlers
	sink     audit.Sink
	tracer   trace.Tracer
	metrics  *telemetry.SyncMetrics
	now      func() time.Time
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithAuditSink sets where run outcome messages go. Defaults to the store.
func WithAuditSink(sink audit.Sink) Option {
	return func(d *Dispatcher) {
		d.sink = sink
	}
}

// WithTracer sets the OpenTelemetry tracer. Tracing is disabled when unset.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = tracer
	}
}

// WithSyncMetrics records run durations and outcomes on m
func WithSyncMetrics(m *telemetry.SyncMetrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// NewDispatcher creates a dispatcher over s using handlers
func NewDispatcher(s store.Store, handlers *Handlers, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:    s,
		handlers: handlers,
		sink:     audit.NewStoreSink(s),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handlers returns the dispatcher's handler set
func (d *Dispatcher) Handlers() *Handlers {
	return d.handlers
}

// Validate checks that every stored schedule has all four handlers. It
// returns every missing handler joined.
func (d *Dispatcher) Validate(ctx context.Context) error {
	var errs []error
	err := d.store.InTx(ctx, func(tx store.Tx) error {
		providers, err := tx.ListProviders(ctx)
		if err != nil {
			return err
		}
		for i := range providers {
			p := &providers[i]
			schedules, err := tx.ListSchedules(ctx, p.ID)
			if err != nil {
				return err
			}
			for _, s := range schedules {
				if _, err := d.handlers.resolveAll(p.Service, s.Model); err != nil {
					errs = append(errs, withSchedule(err, s.ID))
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}
	return errors.Join(errs...)
}

// withSchedule stamps the schedule id on every ConfigurationError in err
func withSchedule(err error, scheduleID int64) error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			withSchedule(e, scheduleID)
		}
		return err
	}
	var cerr *ConfigurationError
	if errors.As(err, &cerr) {
		cerr.ScheduleID = scheduleID
	}
	return err
}

// load reads a schedule and its provider
func (d *Dispatcher) load(ctx context.Context, scheduleID int64) (*models.Schedule, *models.Provider, error) {
	var (
		sched    *models.Schedule
		provider *models.Provider
	)
	err := d.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		if sched, err = tx.GetSchedule(ctx, scheduleID); err != nil {
			return err
		}
		provider, err = tx.GetProvider(ctx, sched.ProviderID)
		return err
	})
	return sched, provider, err
}

// RunSchedule runs one schedule. Provider failures are recorded on the
// schedule and the provider and are not returned; configuration errors and
// store failures are.
func (d *Dispatcher) RunSchedule(ctx context.Context, scheduleID int64) error {
	runID := uuid.NewString()
	ctx, span := otel.StartSpan(ctx, d.tracer, "sync.RunSchedule",
		trace.WithAttributes(
			otel.AttrScheduleID.Int64(scheduleID),
			otel.AttrRunID.String(runID),
		))
	defer span.End()

	sched, provider, err := d.load(ctx, scheduleID)
	if err != nil {
		otel.RecordError(span, err)
		return fmt.Errorf("failed to load schedule %d: %w", scheduleID, err)
	}
	span.SetAttributes(
		otel.AttrProviderID.Int64(provider.ID),
		otel.AttrService.String(provider.Service),
		otel.AttrModel.String(sched.Model),
	)

	start := d.now()
	handlers, err := d.handlers.resolveAll(provider.Service, sched.Model)
	if err != nil {
		err = withSchedule(err, sched.ID)
		otel.RecordError(span, err)
		d.metrics.RecordRun(ctx, sched.Name, sched.Model, telemetry.OutcomeConfigError, d.now().Sub(start))
		logger.Errorw("Schedule is misconfigured",
			"schedule_id", sched.ID,
			"schedule", sched.Name,
			"service", provider.Service,
			"error", err,
		)
		return err
	}

	logger.Infow("Starting sync",
		"run_id", runID,
		"provider", provider.Name,
		"schedule", sched.Name,
		"model", sched.Model,
	)

	runErr := d.run(ctx, runID, provider, sched, handlers)
	now := d.now().UTC()
	outcome := telemetry.OutcomeSuccess
	if runErr != nil {
		outcome = telemetry.OutcomeFailure
	}

	if err := d.finish(ctx, sched.ID, now, runErr == nil); err != nil {
		otel.RecordError(span, err)
		return err
	}
	d.metrics.RecordRun(ctx, sched.Name, sched.Model, outcome, now.Sub(start))

	if runErr != nil {
		otel.RecordError(span, runErr)
		logger.Errorw("Sync failed",
			"run_id", runID,
			"provider", provider.Name,
			"schedule", sched.Name,
			"error", runErr,
		)
		audit.Notify(ctx, d.sink, models.KindProvider, provider.ID,
			fmt.Sprintf("Error in schedule %s: %v", sched.Name, runErr))
		return nil
	}

	logger.Infow("Sync completed", "run_id", runID, "schedule", sched.Name)
	audit.Notify(ctx, d.sink, models.KindProvider, provider.ID,
		"Data sync successful for schedule: "+sched.Name)
	return nil
}

// finish stamps the run times on the schedule
func (d *Dispatcher) finish(ctx context.Context, scheduleID int64, now time.Time, success bool) error {
	err := d.store.InTx(ctx, func(tx store.Tx) error {
		sched, err := tx.GetSchedule(ctx, scheduleID)
		if err != nil {
			return err
		}
		sched.LastRun = &now
		if success {
			sched.LastSuccess = &now
		}
		return tx.UpdateSchedule(ctx, sched)
	})
	if err != nil {
		return fmt.Errorf("failed to record run of schedule %d: %w", scheduleID, err)
	}
	return nil
}

// run executes receive, process, prepare and send. Every failure is a ProviderError.
func (d *Dispatcher) run(
	ctx context.Context, runID string, provider *models.Provider, sched *models.Schedule, handlers []Handler,
) error {
	fail := func(op Operation, err error) error {
		return &ProviderError{ScheduleID: sched.ID, Schedule: sched.Name, Operation: op, Err: err}
	}

	args, err := kwargs.ParseMapping(sched.Kwargs)
	if err != nil {
		return fail("", fmt.Errorf("invalid kwargs: %w", err))
	}

	client, err := d.handlers.client(ctx, provider, sched)
	if err != nil {
		return fail("", err)
	}

	req := func(op Operation, data any) *Request {
		return &Request{
			RunID:     runID,
			Operation: op,
			Provider:  provider,
			Schedule:  sched,
			Client:    client,
			Kwargs:    args,
			Data:      data,
			store:     d.store,
			now:       d.now,
		}
	}

	var data any
	for i, op := range Operations {
		var in any
		if op == OpProcess || op == OpSend {
			in = data
		}
		out, err := d.call(ctx, handlers[i], req(op, in))
		if err != nil {
			return fail(op, err)
		}
		if op == OpReceive || op == OpPrepare {
			data = out
		}
	}
	return nil
}

// call runs one handler, turning a panic into an error
func (d *Dispatcher) call(ctx context.Context, h Handler, req *Request) (out any, err error) {
	ctx, span := otel.StartSpan(ctx, d.tracer, "sync."+string(req.Operation),
		trace.WithAttributes(otel.AttrOperation.String(string(req.Operation))))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
		otel.RecordError(span, err)
	}()
	return h.Handle(ctx, req)
}

// RunSchedules runs the schedules one after another. A provider failure
// never stops the batch; configuration and store errors are collected and
// returned joined once every schedule ran.
func (d *Dispatcher) RunSchedules(ctx context.Context, ids []int64) error {
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := d.RunSchedule(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DueSchedules returns the ids of the active schedules of active providers
// whose next run is at or before now
func (d *Dispatcher) DueSchedules(ctx context.Context, now time.Time) ([]int64, error) {
	var ids []int64
	err := d.store.InTx(ctx, func(tx store.Tx) error {
		providers, err := tx.ListProviders(ctx)
		if err != nil {
			return err
		}
		for _, p := range providers {
			if !p.Active {
				continue
			}
			schedules, err := tx.ListSchedules(ctx, p.ID)
			if err != nil {
				return err
			}
			for i := range schedules {
				if schedules[i].IsDue(now) {
					ids = append(ids, schedules[i].ID)
				}
			}
		}
		return nil
	})
	return ids, err
}

// RunDue runs every due schedule once and returns how many were started
func (d *Dispatcher) RunDue(ctx context.Context, now time.Time) (int, error) {
	ids, err := d.DueSchedules(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list due schedules: %w", err)
	}
	if len(ids) == 0 {
		logger.Debug("No schedules due")
		return 0, nil
	}
	return len(ids), d.RunSchedules(ctx, ids)
}
