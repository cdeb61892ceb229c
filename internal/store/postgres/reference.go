package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/flightops/flight-data-server/internal/models"
)

const aerodromeColumns = `id, name, icao, iata, lid, city, municipality, country_code, elevation_ft, tz, latitude, longitude`

func scanAerodrome(row pgx.Row) (models.Aerodrome, error) {
	var a models.Aerodrome
	err := row.Scan(&a.ID, &a.Name, &a.ICAO, &a.IATA, &a.LID, &a.City, &a.Municipality,
		&a.CountryCode, &a.ElevationFt, &a.TZ, &a.Latitude, &a.Longitude)
	return a, err
}

func (t *tx) CreateAerodrome(ctx context.Context, a *models.Aerodrome) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO aerodrome (name, icao, iata, lid, city, municipality, country_code, elevation_ft, tz, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		a.Name, a.ICAO, a.IATA, a.LID, a.City, a.Municipality, a.CountryCode, a.ElevationFt, a.TZ, a.Latitude, a.Longitude,
	).Scan(&a.ID)
	return mapError(err)
}

func (t *tx) GetAerodrome(ctx context.Context, id int64) (*models.Aerodrome, error) {
	return one(ctx, t.q, scanAerodrome, `SELECT `+aerodromeColumns+` FROM aerodrome WHERE id = $1`, id)
}

func (t *tx) ListAerodromes(ctx context.Context) ([]models.Aerodrome, error) {
	return collect(ctx, t.q, scanAerodrome, `SELECT `+aerodromeColumns+` FROM aerodrome ORDER BY id`)
}

const aircraftColumns = `id, registration, model_code, serial_number, manufactured_on, equipment_type, mtow_lb`

func scanAircraft(row pgx.Row) (models.Aircraft, error) {
	var (
		a         models.Aircraft
		equipment string
	)
	err := row.Scan(&a.ID, &a.Registration, &a.ModelCode, &a.SerialNumber, &a.ManufacturedOn, &equipment, &a.MTOWLb)
	a.EquipmentType = models.EquipmentType(equipment)
	return a, err
}

func (t *tx) CreateAircraft(ctx context.Context, a *models.Aircraft) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO aircraft (registration, model_code, serial_number, manufactured_on, equipment_type, mtow_lb)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		a.Registration, a.ModelCode, a.SerialNumber, a.ManufacturedOn, string(a.EquipmentType), a.MTOWLb,
	).Scan(&a.ID)
	return mapError(err)
}

func (t *tx) GetAircraft(ctx context.Context, id int64) (*models.Aircraft, error) {
	return one(ctx, t.q, scanAircraft, `SELECT `+aircraftColumns+` FROM aircraft WHERE id = $1`, id)
}

func (t *tx) ListAircraft(ctx context.Context) ([]models.Aircraft, error) {
	return collect(ctx, t.q, scanAircraft, `SELECT `+aircraftColumns+` FROM aircraft ORDER BY id`)
}

func scanFlightNumber(row pgx.Row) (models.FlightNumber, error) {
	var n models.FlightNumber
	err := row.Scan(&n.ID, &n.Prefix, &n.Number)
	return n, err
}

func (t *tx) CreateFlightNumber(ctx context.Context, n *models.FlightNumber) error {
	err := t.q.QueryRow(ctx,
		`INSERT INTO flight_number (prefix, number) VALUES ($1, $2) RETURNING id`,
		n.Prefix, n.Number,
	).Scan(&n.ID)
	return mapError(err)
}

func (t *tx) GetFlightNumber(ctx context.Context, id int64) (*models.FlightNumber, error) {
	return one(ctx, t.q, scanFlightNumber, `SELECT id, prefix, number FROM flight_number WHERE id = $1`, id)
}

func (t *tx) ListFlightNumbers(ctx context.Context) ([]models.FlightNumber, error) {
	return collect(ctx, t.q, scanFlightNumber, `SELECT id, prefix, number FROM flight_number ORDER BY id`)
}

func scanEventCode(row pgx.Row) (models.EventCode, error) {
	var c models.EventCode
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Description, &c.Sequence)
	return c, err
}

func (t *tx) CreateEventCode(ctx context.Context, c *models.EventCode) error {
	err := t.q.QueryRow(ctx,
		`INSERT INTO event_code (code, name, description, sequence) VALUES ($1, $2, $3, $4) RETURNING id`,
		c.Code, c.Name, c.Description, c.Sequence,
	).Scan(&c.ID)
	return mapError(err)
}

func (t *tx) GetEventCode(ctx context.Context, id int64) (*models.EventCode, error) {
	return one(ctx, t.q, scanEventCode,
		`SELECT id, code, name, description, sequence FROM event_code WHERE id = $1`, id)
}

func (t *tx) ListEventCodes(ctx context.Context) ([]models.EventCode, error) {
	return collect(ctx, t.q, scanEventCode,
		`SELECT id, code, name, description, sequence FROM event_code ORDER BY sequence, id`)
}

func scanPhase(row pgx.Row) (models.Phase, error) {
	var p models.Phase
	err := row.Scan(&p.ID, &p.Name, &p.Sequence, &p.StartCodeID, &p.EndCodeID)
	return p, err
}

func (t *tx) CreatePhase(ctx context.Context, p *models.Phase) error {
	err := t.q.QueryRow(ctx,
		`INSERT INTO phase (name, sequence, start_code_id, end_code_id) VALUES ($1, $2, $3, $4) RETURNING id`,
		p.Name, p.Sequence, p.StartCodeID, p.EndCodeID,
	).Scan(&p.ID)
	return mapError(err)
}

func (t *tx) ListPhases(ctx context.Context) ([]models.Phase, error) {
	return collect(ctx, t.q, scanPhase,
		`SELECT id, name, sequence, start_code_id, end_code_id FROM phase ORDER BY sequence, id`)
}
