package flights

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/flightops/flight-data-server/internal/logger"
	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/otel"
	"github.com/flightops/flight-data-server/internal/store"
)

// FlightInput holds the fields of a new flight
type FlightInput struct {
	Date        time.Time `json:"date"`
	AircraftID  int64     `json:"aircraft_id"`
	DepartureID int64     `json:"departure_id"`
	ArrivalID   int64     `json:"arrival_id"`
	NumberID    *int64    `json:"number_id,omitempty"`
}

// FlightPatch holds the fields an update sets. Nil fields are left alone;
// a NumberID of 0 clears the flight number.
type FlightPatch struct {
	Date        *time.Time `json:"date,omitempty"`
	AircraftID  *int64     `json:"aircraft_id,omitempty"`
	DepartureID *int64     `json:"departure_id,omitempty"`
	ArrivalID   *int64     `json:"arrival_id,omitempty"`
	NumberID    *int64     `json:"number_id,omitempty"`
	Locked      *bool      `json:"locked,omitempty"`
}

// FlightView is a flight with its display name, events and durations.
type FlightView struct {
	models.Flight
	DisplayName string                 `json:"display_name"`
	Events      []EventView            `json:"events"`
	Durations   []models.PhaseDuration `json:"durations"`
}

// EventView is an event with its display name
type EventView struct {
	models.Event
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
}

// dateOnly truncates t to its UTC calendar day
func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// checkReferences verifies the records a flight points to exist
func checkReferences(ctx context.Context, tx store.Tx, f *models.Flight) error {
	if _, err := tx.GetAircraft(ctx, f.AircraftID); err != nil {
		return mustExist("aircraft_id", err)
	}
	if _, err := tx.GetAerodrome(ctx, f.DepartureID); err != nil {
		return mustExist("departure_id", err)
	}
	if _, err := tx.GetAerodrome(ctx, f.ArrivalID); err != nil {
		return mustExist("arrival_id", err)
	}
	if f.NumberID != nil {
		if _, err := tx.GetFlightNumber(ctx, *f.NumberID); err != nil {
			return mustExist("number_id", err)
		}
	}
	return nil
}

// CreateFlight stores a new, unlocked flight
func (s *Service) CreateFlight(ctx context.Context, in FlightInput) (*models.Flight, error) {
	ctx, span := s.startSpan(ctx, "flights.CreateFlight")
	defer span.End()

	f := &models.Flight{
		Date:        dateOnly(in.Date),
		AircraftID:  in.AircraftID,
		DepartureID: in.DepartureID,
		ArrivalID:   in.ArrivalID,
		NumberID:    in.NumberID,
		WriteDate:   s.now().UTC(),
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if err := checkReferences(ctx, tx, f); err != nil {
			return err
		}
		return tx.CreateFlight(ctx, f)
	})
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}

	logger.Infow("Created flight", "flight_id", f.ID, "date", f.Date.Format(time.DateOnly))
	return f, nil
}

// GetFlight returns one flight
func (s *Service) GetFlight(ctx context.Context, id int64) (*models.Flight, error) {
	return read(ctx, s.store, func(tx store.Tx) (*models.Flight, error) {
		return tx.GetFlight(ctx, id)
	})
}

// DescribeFlight returns the flight with its display name, events and durations
func (s *Service) DescribeFlight(ctx context.Context, id int64) (*FlightView, error) {
	return read(ctx, s.store, func(tx store.Tx) (*FlightView, error) {
		f, err := tx.GetFlight(ctx, id)
		if err != nil {
			return nil, err
		}
		name, err := flightName(ctx, tx, f)
		if err != nil {
			return nil, err
		}
		events, err := tx.ListEvents(ctx, id)
		if err != nil {
			return nil, err
		}
		codes, err := codeNames(ctx, tx)
		if err != nil {
			return nil, err
		}
		durations, err := tx.ListPhaseDurations(ctx, id)
		if err != nil {
			return nil, err
		}

		view := &FlightView{Flight: *f, DisplayName: name, Durations: durations}
		for _, ev := range events {
			view.Events = append(view.Events, EventView{
				Event:       ev,
				Code:        codes[ev.CodeID],
				DisplayName: ev.DisplayName(codes[ev.CodeID], f.Date),
			})
		}
		return view, nil
	})
}

// flightName resolves the labels a flight's display name needs
func flightName(ctx context.Context, tx store.Tx, f *models.Flight) (string, error) {
	var label models.FlightLabel
	if f.NumberID != nil {
		n, err := tx.GetFlightNumber(ctx, *f.NumberID)
		if err != nil {
			return "", err
		}
		label.Number = n
		return f.DisplayName(label), nil
	}

	ac, err := tx.GetAircraft(ctx, f.AircraftID)
	if err != nil {
		return "", err
	}
	dep, err := tx.GetAerodrome(ctx, f.DepartureID)
	if err != nil {
		return "", err
	}
	arr, err := tx.GetAerodrome(ctx, f.ArrivalID)
	if err != nil {
		return "", err
	}
	label.Registration = ac.Registration
	label.Departure = dep.ICAO
	label.Arrival = arr.ICAO
	return f.DisplayName(label), nil
}

// ListFlights returns the flights matching filter, newest first
func (s *Service) ListFlights(ctx context.Context, filter store.FlightFilter) ([]models.Flight, error) {
	ctx, span := s.startSpan(ctx, "flights.ListFlights")
	defer span.End()

	flights, err := read(ctx, s.store, func(tx store.Tx) ([]models.Flight, error) {
		return tx.ListFlights(ctx, filter)
	})
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(otel.AttrResultCount.Int(len(flights)))
	return flights, nil
}

// apply sets the patched fields on f and returns the names of those that changed
func (p *FlightPatch) apply(f *models.Flight) []string {
	var changed []string
	if p.Date != nil && !dateOnly(*p.Date).Equal(f.Date) {
		f.Date = dateOnly(*p.Date)
		changed = append(changed, "date")
	}
	if p.AircraftID != nil && *p.AircraftID != f.AircraftID {
		f.AircraftID = *p.AircraftID
		changed = append(changed, "aircraft_id")
	}
	if p.DepartureID != nil && *p.DepartureID != f.DepartureID {
		f.DepartureID = *p.DepartureID
		changed = append(changed, "departure_id")
	}
	if p.ArrivalID != nil && *p.ArrivalID != f.ArrivalID {
		f.ArrivalID = *p.ArrivalID
		changed = append(changed, "arrival_id")
	}
	if p.NumberID != nil {
		switch {
		case *p.NumberID == 0 && f.NumberID != nil:
			f.NumberID = nil
			changed = append(changed, "number_id")
		case *p.NumberID != 0 && (f.NumberID == nil || *f.NumberID != *p.NumberID):
			id := *p.NumberID
			f.NumberID = &id
			changed = append(changed, "number_id")
		}
	}
	if p.Locked != nil && *p.Locked != f.Locked {
		f.Locked = *p.Locked
		changed = append(changed, models.FieldLocked)
	}
	return changed
}

// UpdateFlight applies patch to the flight. A locked flight only accepts a
// patch that changes nothing but its lock.
func (s *Service) UpdateFlight(ctx context.Context, id int64, patch FlightPatch) (*models.Flight, error) {
	ctx, span := s.startSpan(ctx, "flights.UpdateFlight",
		trace.WithAttributes(otel.AttrFlightID.Int64(id)))
	defer span.End()

	f, err := read(ctx, s.store, func(tx store.Tx) (*models.Flight, error) {
		f, err := tx.LockFlight(ctx, id)
		if err != nil {
			return nil, err
		}
		lock := models.SelfLock{Locked: f.Locked}

		changed := patch.apply(f)
		if len(changed) == 0 {
			return f, nil
		}
		changed = append(changed, models.FieldWriteDate)
		if err := models.CheckLock(lock, models.ActionWrite, models.KindFlight, id, changed...); err != nil {
			return nil, err
		}
		if err := f.Validate(); err != nil {
			return nil, err
		}
		if err := checkReferences(ctx, tx, f); err != nil {
			return nil, err
		}
		f.WriteDate = s.now().UTC()
		if err := tx.UpdateFlight(ctx, f); err != nil {
			return nil, err
		}
		return f, nil
	})
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	return f, nil
}

// SetLocked locks or unlocks a flight. It is allowed whatever the current state.
func (s *Service) SetLocked(ctx context.Context, id int64, locked bool) (*models.Flight, error) {
	f, err := s.UpdateFlight(ctx, id, FlightPatch{Locked: &locked})
	if err != nil {
		return nil, err
	}
	logger.Infow("Changed flight lock", "flight_id", id, "locked", locked)
	return f, nil
}

// DeleteFlight removes an unlocked flight with its events and durations
func (s *Service) DeleteFlight(ctx context.Context, id int64) error {
	ctx, span := s.startSpan(ctx, "flights.DeleteFlight",
		trace.WithAttributes(otel.AttrFlightID.Int64(id)))
	defer span.End()

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		f, err := tx.LockFlight(ctx, id)
		if err != nil {
			return err
		}
		if err := models.CheckLock(f, models.ActionDelete, models.KindFlight, id); err != nil {
			return err
		}
		return tx.DeleteFlight(ctx, id)
	})
	if err != nil {
		otel.RecordError(span, err)
		return err
	}
	logger.Infow("Deleted flight", "flight_id", id)
	return nil
}

// ListDurations returns the flight's stored phase durations
func (s *Service) ListDurations(ctx context.Context, flightID int64) ([]models.PhaseDuration, error) {
	return read(ctx, s.store, func(tx store.Tx) ([]models.PhaseDuration, error) {
		if _, err := tx.GetFlight(ctx, flightID); err != nil {
			return nil, err
		}
		return tx.ListPhaseDurations(ctx, flightID)
	})
}

// ListMessages returns the flight's audit trail, oldest first
func (s *Service) ListMessages(ctx context.Context, flightID int64) ([]models.Message, error) {
	return read(ctx, s.store, func(tx store.Tx) ([]models.Message, error) {
		return tx.ListMessages(ctx, models.KindFlight, flightID)
	})
}
