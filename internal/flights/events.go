package flights

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/flightops/flight-data-server/internal/audit"
	"github.com/flightops/flight-data-server/internal/logger"
	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/otel"
	"github.com/flightops/flight-data-server/internal/store"
)

// EventInput holds the fields of a new event. An empty time kind means actual.
type EventInput struct {
	CodeID   int64           `json:"code_id"`
	TimeKind models.TimeKind `json:"time_kind,omitempty"`
	Time     *time.Time      `json:"time,omitempty"`
	User     string          `json:"user,omitempty"`
}

// EventPatch holds the fields an event update sets. Nil fields are left
// alone; ClearTime removes the timestamp.
type EventPatch struct {
	CodeID    *int64           `json:"code_id,omitempty"`
	TimeKind  *models.TimeKind `json:"time_kind,omitempty"`
	Time      *time.Time       `json:"time,omitempty"`
	ClearTime bool             `json:"clear_time,omitempty"`
	User      *string          `json:"user,omitempty"`
}

// ChangeOp is the kind of one entry in an event batch
type ChangeOp string

// Batch operations
const (
	ChangeAdd    ChangeOp = "add"
	ChangeUpdate ChangeOp = "update"
	ChangeRemove ChangeOp = "remove"
)

// EventChange is one add, update or remove in ApplyEventChanges.
// Add uses Event, update uses ID and Patch, remove uses ID.
type EventChange struct {
	Op    ChangeOp    `json:"op"`
	ID    int64       `json:"id,omitempty"`
	Event *EventInput `json:"event,omitempty"`
	Patch *EventPatch `json:"patch,omitempty"`
}

// BatchResult reports what an event batch did
type BatchResult struct {
	// Events holds the added or updated events in change order
	Events    []models.Event         `json:"events"`
	Durations []models.PhaseDuration `json:"durations"`
	Narration string                 `json:"narration,omitempty"`
}

// CreateEvent adds one event to a flight
func (s *Service) CreateEvent(ctx context.Context, flightID int64, in EventInput) (*models.Event, error) {
	res, err := s.ApplyEventChanges(ctx, flightID, []EventChange{{Op: ChangeAdd, Event: &in}})
	if err != nil {
		return nil, err
	}
	return &res.Events[0], nil
}

// GetEvent returns one event
func (s *Service) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	return read(ctx, s.store, func(tx store.Tx) (*models.Event, error) {
		return tx.GetEvent(ctx, id)
	})
}

// ListEvents returns the flight's events ordered by code and time kind
func (s *Service) ListEvents(ctx context.Context, flightID int64) ([]models.Event, error) {
	return read(ctx, s.store, func(tx store.Tx) ([]models.Event, error) {
		if _, err := tx.GetFlight(ctx, flightID); err != nil {
			return nil, err
		}
		return tx.ListEvents(ctx, flightID)
	})
}

// UpdateEvent applies patch to one event
func (s *Service) UpdateEvent(ctx context.Context, id int64, patch EventPatch) (*models.Event, error) {
	var out *models.Event
	res, err := s.applyWith(ctx, func(tx store.Tx) (int64, []EventChange, error) {
		ev, err := tx.GetEvent(ctx, id)
		if err != nil {
			return 0, nil, err
		}
		return ev.FlightID, []EventChange{{Op: ChangeUpdate, ID: id, Patch: &patch}}, nil
	})
	if err != nil {
		return nil, err
	}
	if len(res.Events) > 0 {
		out = &res.Events[0]
	}
	return out, nil
}

// DeleteEvent removes one event
func (s *Service) DeleteEvent(ctx context.Context, id int64) error {
	_, err := s.applyWith(ctx, func(tx store.Tx) (int64, []EventChange, error) {
		ev, err := tx.GetEvent(ctx, id)
		if err != nil {
			return 0, nil, err
		}
		return ev.FlightID, []EventChange{{Op: ChangeRemove, ID: id}}, nil
	})
	return err
}

// ApplyEventChanges applies a batch of event changes to one flight in a single
// transaction, recomputes its phase durations and narrates the changes on the
// flight's audit trail. Any failing change rolls the whole batch back.
func (s *Service) ApplyEventChanges(ctx context.Context, flightID int64, changes []EventChange) (*BatchResult, error) {
	return s.applyWith(ctx, func(store.Tx) (int64, []EventChange, error) {
		return flightID, changes, nil
	})
}

// applyWith resolves the target flight and changes inside the transaction,
// then applies them
func (s *Service) applyWith(
	ctx context.Context,
	resolve func(tx store.Tx) (int64, []EventChange, error),
) (*BatchResult, error) {
	ctx, span := s.startSpan(ctx, "flights.ApplyEventChanges")
	defer span.End()

	var (
		flightID int64
		res      *BatchResult
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		id, changes, err := resolve(tx)
		if err != nil {
			return err
		}
		flightID = id
		span.SetAttributes(otel.AttrFlightID.Int64(id))
		res, err = s.applyTx(ctx, tx, id, changes)
		return err
	})
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}

	if res.Narration != "" {
		audit.Notify(ctx, s.sink, models.KindFlight, flightID, res.Narration)
	}
	return res, nil
}

func (s *Service) applyTx(ctx context.Context, tx store.Tx, flightID int64, changes []EventChange) (*BatchResult, error) {
	flight, err := tx.LockFlight(ctx, flightID)
	if err != nil {
		return nil, err
	}
	lock := models.ParentLock{Flight: flight}
	codes, err := codeNames(ctx, tx)
	if err != nil {
		return nil, err
	}

	n := &narrator{codes: codes, flightDate: flight.Date}
	res := &BatchResult{}

	for i, ch := range changes {
		var (
			ev  *models.Event
			err error
		)
		switch ch.Op {
		case ChangeAdd:
			ev, err = s.addEvent(ctx, tx, lock, flightID, ch.Event, codes, n)
		case ChangeUpdate:
			ev, err = s.updateEvent(ctx, tx, lock, flightID, ch.ID, ch.Patch, codes, n)
		case ChangeRemove:
			err = s.removeEvent(ctx, tx, lock, flightID, ch.ID, n)
		default:
			err = models.NewValidationError("op", fmt.Sprintf("unknown change operation %q", ch.Op), nil)
		}
		if err != nil {
			if len(changes) > 1 {
				return nil, fmt.Errorf("change %d: %w", i, err)
			}
			return nil, err
		}
		if ev != nil {
			res.Events = append(res.Events, *ev)
		}
	}

	phases, err := tx.ListPhases(ctx)
	if err != nil {
		return nil, err
	}
	events, err := tx.ListEvents(ctx, flightID)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Validate(phases, events); err != nil {
		return nil, err
	}

	computed, err := s.engine.RecomputeTx(ctx, tx, flightID)
	if err != nil {
		return nil, err
	}
	res.Durations = computed.Durations
	res.Narration = n.String()

	logger.Debugw("Applied event changes",
		"flight_id", flightID,
		"changes", len(changes),
		"durations_written", computed.Written,
		"durations_deleted", computed.Deleted,
	)
	return res, nil
}

func (*Service) addEvent(
	ctx context.Context, tx store.Tx, lock models.Lockable, flightID int64,
	in *EventInput, codes map[int64]string, n *narrator,
) (*models.Event, error) {
	if err := models.CheckLock(lock, models.ActionCreate, models.KindEvent, 0); err != nil {
		return nil, err
	}
	if in == nil {
		return nil, models.NewValidationError("event", "is required for add", nil)
	}

	ev := &models.Event{
		FlightID: flightID,
		CodeID:   in.CodeID,
		TimeKind: in.TimeKind,
		Time:     utc(in.Time),
		User:     in.User,
	}
	if ev.TimeKind == "" {
		ev.TimeKind = models.TimeKindActual
	}
	if err := validateEvent(ev, codes); err != nil {
		return nil, err
	}
	if err := tx.CreateEvent(ctx, ev); err != nil {
		return nil, err
	}
	n.added(ev)
	return ev, nil
}

func (*Service) updateEvent(
	ctx context.Context, tx store.Tx, lock models.Lockable, flightID, id int64,
	patch *EventPatch, codes map[int64]string, n *narrator,
) (*models.Event, error) {
	old, err := ownedEvent(ctx, tx, flightID, id)
	if err != nil {
		return nil, err
	}
	if patch == nil {
		return nil, models.NewValidationError("patch", "is required for update", nil)
	}

	next := *old
	changed := patch.apply(&next)
	if err := models.CheckLock(lock, models.ActionWrite, models.KindEvent, id, changed...); err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return old, nil
	}
	if err := validateEvent(&next, codes); err != nil {
		return nil, err
	}
	if err := tx.UpdateEvent(ctx, &next); err != nil {
		return nil, err
	}
	n.updated(old, &next, changed)
	return &next, nil
}

func (*Service) removeEvent(
	ctx context.Context, tx store.Tx, lock models.Lockable, flightID, id int64, n *narrator,
) error {
	old, err := ownedEvent(ctx, tx, flightID, id)
	if err != nil {
		return err
	}
	if err := models.CheckLock(lock, models.ActionDelete, models.KindEvent, id); err != nil {
		return err
	}
	if err := tx.DeleteEvent(ctx, id); err != nil {
		return err
	}
	n.removed(old)
	return nil
}

// ownedEvent loads an event and checks it belongs to the flight
func ownedEvent(ctx context.Context, tx store.Tx, flightID, id int64) (*models.Event, error) {
	ev, err := tx.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if ev.FlightID != flightID {
		return nil, models.NewValidationError("id",
			fmt.Sprintf("event %d does not belong to flight %d", id, flightID), nil)
	}
	return ev, nil
}

func validateEvent(ev *models.Event, codes map[int64]string) error {
	if _, ok := codes[ev.CodeID]; !ok {
		return models.NewValidationError("code_id", fmt.Sprintf("unknown event code %d", ev.CodeID), nil)
	}
	if !ev.TimeKind.Valid() {
		return models.NewValidationError("time_kind", fmt.Sprintf("unknown time kind %q", ev.TimeKind), nil)
	}
	return nil
}

// apply sets the patched fields on ev and returns the names of those that changed
func (p *EventPatch) apply(ev *models.Event) []string {
	var changed []string
	if p.CodeID != nil && *p.CodeID != ev.CodeID {
		ev.CodeID = *p.CodeID
		changed = append(changed, "code")
	}
	if p.TimeKind != nil && *p.TimeKind != ev.TimeKind {
		ev.TimeKind = *p.TimeKind
		changed = append(changed, "time_kind")
	}
	switch {
	case p.ClearTime && ev.Time != nil:
		ev.Time = nil
		changed = append(changed, "time")
	case !p.ClearTime && p.Time != nil && (ev.Time == nil || !ev.Time.Equal(*p.Time)):
		ev.Time = utc(p.Time)
		changed = append(changed, "time")
	}
	if p.User != nil && *p.User != ev.User {
		ev.User = *p.User
		changed = append(changed, "user")
	}
	return changed
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func codeNames(ctx context.Context, tx store.Tx) (map[int64]string, error) {
	codes, err := tx.ListEventCodes(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]string, len(codes))
	for _, c := range codes {
		out[c.ID] = c.Code
	}
	return out, nil
}

// RecomputeDurations recomputes a flight's phase durations on demand
func (s *Service) RecomputeDurations(ctx context.Context, flightID int64) ([]models.PhaseDuration, error) {
	ctx, span := s.startSpan(ctx, "flights.RecomputeDurations",
		trace.WithAttributes(otel.AttrFlightID.Int64(flightID)))
	defer span.End()

	res, err := s.engine.Recompute(ctx, flightID)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	return res.Durations, nil
}
