package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/store"
)

const flightColumns = `id, date, aircraft_id, departure_id, arrival_id, number_id, locked, block_duration, flight_duration, write_date`

func scanFlight(row pgx.Row) (models.Flight, error) {
	var f models.Flight
	err := row.Scan(&f.ID, &f.Date, &f.AircraftID, &f.DepartureID, &f.ArrivalID, &f.NumberID,
		&f.Locked, &f.BlockDuration, &f.FlightDuration, &f.WriteDate)
	return f, err
}

func (t *tx) CreateFlight(ctx context.Context, f *models.Flight) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO flight (date, aircraft_id, departure_id, arrival_id, number_id, locked, block_duration, flight_duration, write_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		f.Date, f.AircraftID, f.DepartureID, f.ArrivalID, f.NumberID, f.Locked, f.BlockDuration, f.FlightDuration, f.WriteDate,
	).Scan(&f.ID)
	return mapError(err)
}

func (t *tx) GetFlight(ctx context.Context, id int64) (*models.Flight, error) {
	return one(ctx, t.q, scanFlight, `SELECT `+flightColumns+` FROM flight WHERE id = $1`, id)
}

func (t *tx) LockFlight(ctx context.Context, id int64) (*models.Flight, error) {
	return one(ctx, t.q, scanFlight, `SELECT `+flightColumns+` FROM flight WHERE id = $1 FOR UPDATE`, id)
}

func (t *tx) ListFlights(ctx context.Context, filter store.FlightFilter) ([]models.Flight, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if !filter.From.IsZero() {
		add("date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		add("date <= ?", filter.To)
	}
	if filter.AircraftID != 0 {
		add("aircraft_id = ?", filter.AircraftID)
	}

	sql := `SELECT ` + flightColumns + ` FROM flight`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY date DESC, id DESC`
	return collect(ctx, t.q, scanFlight, sql, args...)
}

func (t *tx) UpdateFlight(ctx context.Context, f *models.Flight) error {
	return t.execOne(ctx, "flight", f.ID, `
		UPDATE flight SET date = $2, aircraft_id = $3, departure_id = $4, arrival_id = $5, number_id = $6,
			locked = $7, block_duration = $8, flight_duration = $9, write_date = $10
		WHERE id = $1`,
		f.ID, f.Date, f.AircraftID, f.DepartureID, f.ArrivalID, f.NumberID,
		f.Locked, f.BlockDuration, f.FlightDuration, f.WriteDate,
	)
}

// DeleteFlight relies on ON DELETE CASCADE for events and durations
func (t *tx) DeleteFlight(ctx context.Context, id int64) error {
	return t.execOne(ctx, "flight", id, `DELETE FROM flight WHERE id = $1`, id)
}

const eventColumns = `id, flight_id, code_id, time_kind, time, "user"`

func scanEvent(row pgx.Row) (models.Event, error) {
	var (
		e    models.Event
		kind string
	)
	err := row.Scan(&e.ID, &e.FlightID, &e.CodeID, &kind, &e.Time, &e.User)
	e.TimeKind = models.TimeKind(kind)
	return e, err
}

func (t *tx) CreateEvent(ctx context.Context, e *models.Event) error {
	err := t.q.QueryRow(ctx,
		`INSERT INTO event (flight_id, code_id, time_kind, time, "user") VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		e.FlightID, e.CodeID, string(e.TimeKind), e.Time, e.User,
	).Scan(&e.ID)
	return mapError(err)
}

func (t *tx) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	return one(ctx, t.q, scanEvent, `SELECT `+eventColumns+` FROM event WHERE id = $1`, id)
}

func (t *tx) UpdateEvent(ctx context.Context, e *models.Event) error {
	return t.execOne(ctx, "event", e.ID,
		`UPDATE event SET flight_id = $2, code_id = $3, time_kind = $4, time = $5, "user" = $6 WHERE id = $1`,
		e.ID, e.FlightID, e.CodeID, string(e.TimeKind), e.Time, e.User,
	)
}

func (t *tx) DeleteEvent(ctx context.Context, id int64) error {
	return t.execOne(ctx, "event", id, `DELETE FROM event WHERE id = $1`, id)
}

func (t *tx) ListEvents(ctx context.Context, flightID int64) ([]models.Event, error) {
	return collect(ctx, t.q, scanEvent,
		`SELECT `+eventColumns+` FROM event WHERE flight_id = $1 ORDER BY code_id, time_kind, id`, flightID)
}

const durationColumns = `id, flight_id, phase_id, time_kind, start_time, end_time, duration`

func scanDuration(row pgx.Row) (models.PhaseDuration, error) {
	var (
		d    models.PhaseDuration
		kind string
	)
	err := row.Scan(&d.ID, &d.FlightID, &d.PhaseID, &kind, &d.StartTime, &d.EndTime, &d.Duration)
	d.TimeKind = models.TimeKind(kind)
	return d, err
}

func (t *tx) UpsertPhaseDuration(ctx context.Context, d *models.PhaseDuration) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO phase_duration (flight_id, phase_id, time_kind, start_time, end_time, duration)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (flight_id, phase_id, time_kind)
		DO UPDATE SET start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time, duration = EXCLUDED.duration
		RETURNING id`,
		d.FlightID, d.PhaseID, string(d.TimeKind), d.StartTime, d.EndTime, d.Duration,
	).Scan(&d.ID)
	return mapError(err)
}

func (t *tx) DeletePhaseDuration(ctx context.Context, id int64) error {
	return t.execOne(ctx, "phase duration", id, `DELETE FROM phase_duration WHERE id = $1`, id)
}

func (t *tx) ListPhaseDurations(ctx context.Context, flightID int64) ([]models.PhaseDuration, error) {
	return collect(ctx, t.q, scanDuration,
		`SELECT `+durationColumns+` FROM phase_duration WHERE flight_id = $1 ORDER BY id`, flightID)
}
