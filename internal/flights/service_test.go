package flights

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/flightops/flight-data-server/internal/audit/mocks"
	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/phase"
	"github.com/flightops/flight-data-server/internal/store"
	"github.com/flightops/flight-data-server/internal/store/memory"
)

type fixture struct {
	svc      *Service
	store    *memory.Store
	aircraft *models.Aircraft
	dep, arr *models.Aerodrome
	codes    map[string]int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := memory.New()
	require.NoError(t, err)
	return newFixtureOn(t, st)
}

func newFixtureOn(t *testing.T, st *memory.Store, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()

	svc, err := New(st, opts...)
	require.NoError(t, err)

	fx := &fixture{svc: svc, store: st, codes: map[string]int64{}}
	fx.aircraft = &models.Aircraft{Registration: "d-abcd", ModelCode: "A320"}
	require.NoError(t, svc.CreateAircraft(ctx, fx.aircraft))
	fx.dep = &models.Aerodrome{ICAO: "eddf", IATA: "fra", Name: "Frankfurt"}
	require.NoError(t, svc.CreateAerodrome(ctx, fx.dep))
	fx.arr = &models.Aerodrome{ICAO: "EGLL", IATA: "LHR", Name: "Heathrow"}
	require.NoError(t, svc.CreateAerodrome(ctx, fx.arr))

	for _, code := range []string{"OUT", "OFF", "ON", "IN"} {
		c := &models.EventCode{Code: code, Name: code}
		require.NoError(t, svc.CreateEventCode(ctx, c))
		fx.codes[code] = c.ID
	}
	require.NoError(t, svc.CreatePhase(ctx, &models.Phase{
		Name: models.PhaseBlock, Sequence: 1, StartCodeID: fx.codes["OUT"], EndCodeID: fx.codes["IN"],
	}))
	require.NoError(t, svc.CreatePhase(ctx, &models.Phase{
		Name: models.PhaseFlight, Sequence: 2, StartCodeID: fx.codes["OFF"], EndCodeID: fx.codes["ON"],
	}))
	return fx
}

func (fx *fixture) flight(t *testing.T) *models.Flight {
	t.Helper()
	f, err := fx.svc.CreateFlight(context.Background(), FlightInput{
		Date:        time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC),
		AircraftID:  fx.aircraft.ID,
		DepartureID: fx.dep.ID,
		ArrivalID:   fx.arr.ID,
	})
	require.NoError(t, err)
	return f
}

func at(hour, minute int) *time.Time {
	ts := time.Date(2024, 5, 1, hour, minute, 0, 0, time.UTC)
	return &ts
}

func TestReferenceData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)

	assert.Equal(t, "D-ABCD", fx.aircraft.Registration)
	assert.Equal(t, models.EquipmentAircraft, fx.aircraft.EquipmentType)
	assert.Equal(t, "EDDF(FRA) - Frankfurt", fx.dep.DisplayName())

	codes, err := fx.svc.ListEventCodes(ctx)
	require.NoError(t, err)
	require.Len(t, codes, 4)
	assert.Equal(t, models.DefaultEventCodeSequence, codes[0].Sequence)

	tests := []struct {
		name string
		fn   func() error
	}{
		{"aerodrome without icao", func() error { return fx.svc.CreateAerodrome(ctx, &models.Aerodrome{Name: "Nowhere"}) }},
		{"aircraft without registration", func() error { return fx.svc.CreateAircraft(ctx, &models.Aircraft{}) }},
		{"aircraft with bad equipment", func() error {
			return fx.svc.CreateAircraft(ctx, &models.Aircraft{Registration: "N1", EquipmentType: "balloon"})
		}},
		{"flight number without number", func() error { return fx.svc.CreateFlightNumber(ctx, &models.FlightNumber{Prefix: "LH"}) }},
		{"event code without code", func() error { return fx.svc.CreateEventCode(ctx, &models.EventCode{}) }},
		{"phase with unknown code", func() error {
			return fx.svc.CreatePhase(ctx, &models.Phase{Name: "Taxi", StartCodeID: 9999, EndCodeID: fx.codes["OFF"]})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.fn(), models.ErrValidation)
		})
	}

	err = fx.svc.CreateAircraft(ctx, &models.Aircraft{Registration: "D-ABCD"})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestCreateFlight(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)

	f := fx.flight(t)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), f.Date)
	assert.False(t, f.Locked)
	assert.False(t, f.WriteDate.IsZero())

	_, err := fx.svc.CreateFlight(ctx, FlightInput{AircraftID: fx.aircraft.ID, DepartureID: fx.dep.ID, ArrivalID: fx.arr.ID})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = fx.svc.CreateFlight(ctx, FlightInput{
		Date: time.Now(), AircraftID: 9999, DepartureID: fx.dep.ID, ArrivalID: fx.arr.ID,
	})
	require.ErrorIs(t, err, models.ErrValidation)
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "aircraft_id", verr.Field)
}

func TestDescribeFlight(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)
	f := fx.flight(t)

	_, err := fx.svc.CreateEvent(ctx, f.ID, EventInput{CodeID: fx.codes["OUT"], Time: at(23, 50)})
	require.NoError(t, err)

	view, err := fx.svc.DescribeFlight(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01 / D-ABCD: EDDF - EGLL", view.DisplayName)
	require.Len(t, view.Events, 1)
	assert.Equal(t, "AOUTT 23:50", view.Events[0].DisplayName)

	number := &models.FlightNumber{Prefix: "lh", Number: "400"}
	require.NoError(t, fx.svc.CreateFlightNumber(ctx, number))
	_, err = fx.svc.UpdateFlight(ctx, f.ID, FlightPatch{NumberID: &number.ID})
	require.NoError(t, err)

	view, err = fx.svc.DescribeFlight(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01 / LH400", view.DisplayName)
}

func TestEvents_RecomputeInSameTransaction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)
	f := fx.flight(t)

	_, err := fx.svc.CreateEvent(ctx, f.ID, EventInput{CodeID: fx.codes["OUT"], Time: at(9, 0)})
	require.NoError(t, err)
	in, err := fx.svc.CreateEvent(ctx, f.ID, EventInput{CodeID: fx.codes["IN"], Time: at(10, 30)})
	require.NoError(t, err)
	assert.Equal(t, models.TimeKindActual, in.TimeKind)

	got, err := fx.svc.GetFlight(ctx, f.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, got.BlockDuration, 1e-9)

	durations, err := fx.svc.ListDurations(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, durations, 1)
	assert.InDelta(t, 1.5, durations[0].Duration, 1e-9)

	_, err = fx.svc.UpdateEvent(ctx, in.ID, EventPatch{Time: at(11, 0)})
	require.NoError(t, err)
	block, err := fx.svc.Engine().GetPhaseDuration(ctx, f.ID, models.PhaseBlock, models.TimeKindActual)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, block, 1e-9)

	require.NoError(t, fx.svc.DeleteEvent(ctx, in.ID))
	durations, err = fx.svc.ListDurations(ctx, f.ID)
	require.NoError(t, err)
	assert.Empty(t, durations)

	got, err = fx.svc.GetFlight(ctx, f.ID)
	require.NoError(t, err)
	assert.Zero(t, got.BlockDuration)
}

func TestEvents_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)
	f := fx.flight(t)
	other := fx.flight(t)

	_, err := fx.svc.CreateEvent(ctx, f.ID, EventInput{CodeID: 9999, Time: at(9, 0)})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = fx.svc.CreateEvent(ctx, f.ID, EventInput{CodeID: fx.codes["OUT"], TimeKind: "X"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = fx.svc.CreateEvent(ctx, 9999, EventInput{})
	assert.ErrorIs(t, err, models.ErrNotFound)

	ev, err := fx.svc.CreateEvent(ctx, other.ID, EventInput{CodeID: fx.codes["OUT"], Time: at(9, 0)})
	require.NoError(t, err)
	_, err = fx.svc.ApplyEventChanges(ctx, f.ID, []EventChange{{Op: ChangeRemove, ID: ev.ID}})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = fx.svc.ApplyEventChanges(ctx, f.ID, []EventChange{{Op: "rename"}})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestEvents_DuplicatePolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		policy  phase.Policy
		wantErr error
		block   float64
	}{
		{
			name:    "reject",
			policy:  phase.DefaultPolicy(),
			wantErr: models.ErrDuplicateEvent,
		},
		{
			name:   "lowest id",
			policy: phase.Policy{Duplicates: phase.DuplicatesLowestID, AllowNegative: true},
			block:  1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			st, err := memory.New()
			require.NoError(t, err)
			fx := newFixtureOn(t, st, WithEngine(phase.New(st, phase.WithPolicy(tt.policy))))
			f := fx.flight(t)

			_, err = fx.svc.ApplyEventChanges(ctx, f.ID, []EventChange{
				{Op: ChangeAdd, Event: &EventInput{CodeID: fx.codes["OUT"], Time: at(9, 0)}},
				{Op: ChangeAdd, Event: &EventInput{CodeID: fx.codes["IN"], Time: at(10, 0)}},
			})
			require.NoError(t, err)

			_, err = fx.svc.CreateEvent(ctx, f.ID, EventInput{CodeID: fx.codes["OUT"], Time: at(9, 30)})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, models.ErrValidation)

				events, err := fx.svc.ListEvents(ctx, f.ID)
				require.NoError(t, err)
				assert.Len(t, events, 2)
				return
			}
			require.NoError(t, err)
			got, err := fx.svc.GetFlight(ctx, f.ID)
			require.NoError(t, err)
			assert.InDelta(t, tt.block, got.BlockDuration, 1e-9)
		})
	}
}

func TestEvents_OutOfOrderRejected(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st, err := memory.New()
	require.NoError(t, err)
	policy := phase.Policy{Duplicates: phase.DuplicatesReject, AllowNegative: false}
	fx := newFixtureOn(t, st, WithEngine(phase.New(st, phase.WithPolicy(policy))))
	f := fx.flight(t)

	_, err = fx.svc.ApplyEventChanges(ctx, f.ID, []EventChange{
		{Op: ChangeAdd, Event: &EventInput{CodeID: fx.codes["OUT"], Time: at(10, 0)}},
		{Op: ChangeAdd, Event: &EventInput{CodeID: fx.codes["IN"], Time: at(9, 0)}},
	})
	require.ErrorIs(t, err, models.ErrOutOfOrder)

	events, err := fx.svc.ListEvents(ctx, f.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestLock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)
	f := fx.flight(t)
	ev, err := fx.svc.CreateEvent(ctx, f.ID, EventInput{CodeID: fx.codes["OUT"], Time: at(9, 0)})
	require.NoError(t, err)

	locked, err := fx.svc.SetLocked(ctx, f.ID, true)
	require.NoError(t, err)
	assert.True(t, locked.Locked)

	tests := []struct {
		name string
		fn   func() error
	}{
		{"create event", func() error {
			_, err := fx.svc.CreateEvent(ctx, f.ID, EventInput{CodeID: fx.codes["IN"], Time: at(10, 0)})
			return err
		}},
		{"update event", func() error {
			_, err := fx.svc.UpdateEvent(ctx, ev.ID, EventPatch{Time: at(9, 5)})
			return err
		}},
		{"delete event", func() error { return fx.svc.DeleteEvent(ctx, ev.ID) }},
		{"update flight", func() error {
			date := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
			_, err := fx.svc.UpdateFlight(ctx, f.ID, FlightPatch{Date: &date})
			return err
		}},
		{"unlock with other changes", func() error {
			unlocked := false
			date := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
			_, err := fx.svc.UpdateFlight(ctx, f.ID, FlightPatch{Locked: &unlocked, Date: &date})
			return err
		}},
		{"delete flight", func() error { return fx.svc.DeleteFlight(ctx, f.ID) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			require.ErrorIs(t, err, models.ErrLocked)
			assert.ErrorIs(t, err, models.ErrValidation)
			var lockErr *models.LockError
			assert.True(t, errors.As(err, &lockErr))
		})
	}

	unlocked, err := fx.svc.SetLocked(ctx, f.ID, false)
	require.NoError(t, err)
	assert.False(t, unlocked.Locked)

	_, err = fx.svc.UpdateEvent(ctx, ev.ID, EventPatch{Time: at(9, 5)})
	assert.NoError(t, err)
}

func TestRecomputeDurations_LockedFlight(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)
	f := fx.flight(t)
	_, err := fx.svc.ApplyEventChanges(ctx, f.ID, []EventChange{
		{Op: ChangeAdd, Event: &EventInput{CodeID: fx.codes["OUT"], Time: at(9, 0)}},
		{Op: ChangeAdd, Event: &EventInput{CodeID: fx.codes["OFF"], Time: at(9, 20)}},
		{Op: ChangeAdd, Event: &EventInput{CodeID: fx.codes["ON"], Time: at(10, 30)}},
		{Op: ChangeAdd, Event: &EventInput{CodeID: fx.codes["IN"], Time: at(10, 45)}},
	})
	require.NoError(t, err)
	_, err = fx.svc.SetLocked(ctx, f.ID, true)
	require.NoError(t, err)

	// nothing to change, so the locked flight recomputes cleanly
	durations, err := fx.svc.RecomputeDurations(ctx, f.ID)
	require.NoError(t, err)
	assert.Len(t, durations, 2)

	require.NoError(t, fx.svc.CreatePhase(ctx, &models.Phase{
		Name: "Taxi out", Sequence: 3, StartCodeID: fx.codes["OUT"], EndCodeID: fx.codes["OFF"],
	}))
	_, err = fx.svc.RecomputeDurations(ctx, f.ID)
	require.ErrorIs(t, err, models.ErrLocked)

	stored, err := fx.svc.ListDurations(ctx, f.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	got, err := fx.svc.GetFlight(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.75, got.BlockDuration)

	_, err = fx.svc.SetLocked(ctx, f.ID, false)
	require.NoError(t, err)
	durations, err = fx.svc.RecomputeDurations(ctx, f.ID)
	require.NoError(t, err)
	assert.Len(t, durations, 3)
}

func TestDeleteFlight_Cascades(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)
	f := fx.flight(t)
	ev, err := fx.svc.CreateEvent(ctx, f.ID, EventInput{CodeID: fx.codes["OUT"], Time: at(9, 0)})
	require.NoError(t, err)

	require.NoError(t, fx.svc.DeleteFlight(ctx, f.ID))

	_, err = fx.svc.GetFlight(ctx, f.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = fx.svc.GetEvent(ctx, ev.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestApplyEventChanges_Narration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockSink(ctrl)

	st, err := memory.New()
	require.NoError(t, err)
	fx := newFixtureOn(t, st, WithAuditSink(sink))
	f := fx.flight(t)

	sink.EXPECT().
		Post(gomock.Any(), models.KindFlight, f.ID, "Event Times Updated:\nAdded: AOUTT 09:00\nAdded: AINT 10:30").
		Return(nil)
	res, err := fx.svc.ApplyEventChanges(ctx, f.ID, []EventChange{
		{Op: ChangeAdd, Event: &EventInput{CodeID: fx.codes["OUT"], Time: at(9, 0)}},
		{Op: ChangeAdd, Event: &EventInput{CodeID: fx.codes["IN"], Time: at(10, 30)}},
	})
	require.NoError(t, err)
	require.Len(t, res.Events, 2)
	require.Len(t, res.Durations, 1)
	out, in := res.Events[0], res.Events[1]

	sink.EXPECT().
		Post(gomock.Any(), models.KindFlight, f.ID,
			"Event Times Updated:\nAINT 10:30: time changed from 2024-05-01 10:30:00 to 2024-05-01 10:45:00\nRemoved: AOUTT 09:00").
		Return(errors.New("sink down"))
	_, err = fx.svc.ApplyEventChanges(ctx, f.ID, []EventChange{
		{Op: ChangeUpdate, ID: in.ID, Patch: &EventPatch{Time: at(10, 45)}},
		{Op: ChangeRemove, ID: out.ID},
	})
	require.NoError(t, err, "a failing sink must not fail the mutation")

	// no-op update posts nothing
	_, err = fx.svc.UpdateEvent(ctx, in.ID, EventPatch{Time: at(10, 45)})
	require.NoError(t, err)
}

func TestApplyEventChanges_StoreSink(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)
	f := fx.flight(t)

	ev, err := fx.svc.CreateEvent(ctx, f.ID, EventInput{CodeID: fx.codes["OUT"], Time: at(9, 0)})
	require.NoError(t, err)
	_, err = fx.svc.UpdateEvent(ctx, ev.ID, EventPatch{ClearTime: true})
	require.NoError(t, err)

	msgs, err := fx.svc.ListMessages(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Event Times Updated:\nAdded: AOUTT 09:00", msgs[0].Body)
	assert.Equal(t, "Event Times Updated:\nAOUTT 09:00: time changed from 2024-05-01 09:00:00 to None", msgs[1].Body)
}

func TestApplyEventChanges_RollsBackWholeBatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t)
	f := fx.flight(t)

	_, err := fx.svc.ApplyEventChanges(ctx, f.ID, []EventChange{
		{Op: ChangeAdd, Event: &EventInput{CodeID: fx.codes["OUT"], Time: at(9, 0)}},
		{Op: ChangeRemove, ID: 9999},
	})
	require.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, fx.store.InTx(ctx, func(tx store.Tx) error {
		events, err := tx.ListEvents(ctx, f.ID)
		require.NoError(t, err)
		assert.Empty(t, events)
		msgs, err := tx.ListMessages(ctx, models.KindFlight, f.ID)
		require.NoError(t, err)
		assert.Empty(t, msgs)
		return nil
	}))
}
