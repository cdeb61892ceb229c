package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/flightops/flight-data-server/internal/models"
)

const providerColumns = `id, name, service, active, api_base, username, password, run_as`

func scanProvider(row pgx.Row) (models.Provider, error) {
	var p models.Provider
	err := row.Scan(&p.ID, &p.Name, &p.Service, &p.Active, &p.APIBase, &p.Username, &p.Password, &p.RunAs)
	return p, err
}

func (t *tx) CreateProvider(ctx context.Context, p *models.Provider) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO provider (name, service, active, api_base, username, password, run_as)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		p.Name, p.Service, p.Active, p.APIBase, p.Username, p.Password, p.RunAs,
	).Scan(&p.ID)
	return mapError(err)
}

func (t *tx) GetProvider(ctx context.Context, id int64) (*models.Provider, error) {
	return one(ctx, t.q, scanProvider, `SELECT `+providerColumns+` FROM provider WHERE id = $1`, id)
}

func (t *tx) ListProviders(ctx context.Context) ([]models.Provider, error) {
	return collect(ctx, t.q, scanProvider, `SELECT `+providerColumns+` FROM provider ORDER BY id`)
}

func (t *tx) UpdateProvider(ctx context.Context, p *models.Provider) error {
	return t.execOne(ctx, "provider", p.ID, `
		UPDATE provider SET name = $2, service = $3, active = $4, api_base = $5, username = $6, password = $7, run_as = $8
		WHERE id = $1`,
		p.ID, p.Name, p.Service, p.Active, p.APIBase, p.Username, p.Password, p.RunAs,
	)
}

const scheduleColumns = `id, provider_id, name, model, active, interval_number, interval_type, kwargs, last_run, last_success`

func scanSchedule(row pgx.Row) (models.Schedule, error) {
	var (
		s        models.Schedule
		interval string
	)
	err := row.Scan(&s.ID, &s.ProviderID, &s.Name, &s.Model, &s.Active, &s.IntervalNumber, &interval,
		&s.Kwargs, &s.LastRun, &s.LastSuccess)
	s.IntervalType = models.IntervalType(interval)
	return s, err
}

func (t *tx) CreateSchedule(ctx context.Context, s *models.Schedule) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO schedule (provider_id, name, model, active, interval_number, interval_type, kwargs, last_run, last_success)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		s.ProviderID, s.Name, s.Model, s.Active, s.IntervalNumber, string(s.IntervalType), s.Kwargs, s.LastRun, s.LastSuccess,
	).Scan(&s.ID)
	return mapError(err)
}

func (t *tx) GetSchedule(ctx context.Context, id int64) (*models.Schedule, error) {
	return one(ctx, t.q, scanSchedule, `SELECT `+scheduleColumns+` FROM schedule WHERE id = $1`, id)
}

func (t *tx) ListSchedules(ctx context.Context, providerID int64) ([]models.Schedule, error) {
	if providerID == 0 {
		return collect(ctx, t.q, scanSchedule, `SELECT `+scheduleColumns+` FROM schedule ORDER BY id`)
	}
	return collect(ctx, t.q, scanSchedule,
		`SELECT `+scheduleColumns+` FROM schedule WHERE provider_id = $1 ORDER BY id`, providerID)
}

func (t *tx) UpdateSchedule(ctx context.Context, s *models.Schedule) error {
	return t.execOne(ctx, "schedule", s.ID, `
		UPDATE schedule SET provider_id = $2, name = $3, model = $4, active = $5, interval_number = $6,
			interval_type = $7, kwargs = $8, last_run = $9, last_success = $10
		WHERE id = $1`,
		s.ID, s.ProviderID, s.Name, s.Model, s.Active, s.IntervalNumber,
		string(s.IntervalType), s.Kwargs, s.LastRun, s.LastSuccess,
	)
}

const registryColumns = `id, provider_id, model, local_id, external_id, external_provider_id`

func scanRegistryEntry(row pgx.Row) (models.RegistryEntry, error) {
	var e models.RegistryEntry
	err := row.Scan(&e.ID, &e.ProviderID, &e.Model, &e.LocalID, &e.ExternalID, &e.ExternalProviderID)
	return e, err
}

func (t *tx) FindRegistryEntry(ctx context.Context, providerID int64, model, externalID string) (*models.RegistryEntry, error) {
	return one(ctx, t.q, scanRegistryEntry,
		`SELECT `+registryColumns+` FROM registry_entry WHERE provider_id = $1 AND model = $2 AND external_id = $3`,
		providerID, model, externalID)
}

func (t *tx) CreateRegistryEntry(ctx context.Context, e *models.RegistryEntry) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO registry_entry (provider_id, model, local_id, external_id, external_provider_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		e.ProviderID, e.Model, e.LocalID, e.ExternalID, e.ExternalProviderID,
	).Scan(&e.ID)
	return mapError(err)
}

func (t *tx) ListRegistryEntries(ctx context.Context, providerID int64, model string) ([]models.RegistryEntry, error) {
	return collect(ctx, t.q, scanRegistryEntry, `
		SELECT `+registryColumns+` FROM registry_entry
		WHERE provider_id = $1 AND ($2 = '' OR model = $2)
		ORDER BY id`,
		providerID, model)
}

func scanSyncLog(row pgx.Row) (models.SyncLog, error) {
	var (
		l         models.SyncLog
		direction string
	)
	err := row.Scan(&l.ID, &l.ScheduleID, &l.Timestamp, &direction, &l.Headers, &l.Body)
	l.Direction = models.Direction(direction)
	return l, err
}

func (t *tx) CreateSyncLog(ctx context.Context, l *models.SyncLog) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO sync_log (schedule_id, timestamp, direction, headers, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		l.ScheduleID, l.Timestamp, string(l.Direction), l.Headers, l.Body,
	).Scan(&l.ID)
	return mapError(err)
}

func (t *tx) ListSyncLogs(ctx context.Context, scheduleID int64) ([]models.SyncLog, error) {
	return collect(ctx, t.q, scanSyncLog, `
		SELECT id, schedule_id, timestamp, direction, headers, body FROM sync_log
		WHERE schedule_id = $1
		ORDER BY timestamp DESC, id DESC`,
		scheduleID)
}

func scanMessage(row pgx.Row) (models.Message, error) {
	var m models.Message
	err := row.Scan(&m.ID, &m.RecordKind, &m.RecordID, &m.Body, &m.CreatedAt)
	return m, err
}

func (t *tx) CreateMessage(ctx context.Context, m *models.Message) error {
	err := t.q.QueryRow(ctx,
		`INSERT INTO message (record_kind, record_id, body, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		m.RecordKind, m.RecordID, m.Body, m.CreatedAt,
	).Scan(&m.ID)
	return mapError(err)
}

func (t *tx) ListMessages(ctx context.Context, kind string, recordID int64) ([]models.Message, error) {
	return collect(ctx, t.q, scanMessage, `
		SELECT id, record_kind, record_id, body, created_at FROM message
		WHERE record_kind = $1 AND record_id = $2
		ORDER BY id`,
		kind, recordID)
}
