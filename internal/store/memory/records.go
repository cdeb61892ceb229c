package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"

	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/store"
)

func sorted[T any](m map[int64]T, compare func(a, b T) int) []T {
	out := slices.Collect(maps.Values(m))
	slices.SortFunc(out, compare)
	return out
}

// Aerodromes

func (t *tx) CreateAerodrome(_ context.Context, a *models.Aerodrome) error {
	for _, other := range t.st.Aerodromes {
		if other.ICAO == a.ICAO {
			return conflict("aerodrome %s already exists", a.ICAO)
		}
	}
	a.ID = t.st.nextID()
	t.st.Aerodromes[a.ID] = *a
	return nil
}

func (t *tx) GetAerodrome(_ context.Context, id int64) (*models.Aerodrome, error) {
	a, ok := t.st.Aerodromes[id]
	if !ok {
		return nil, notFound("aerodrome", id)
	}
	return &a, nil
}

func (t *tx) ListAerodromes(context.Context) ([]models.Aerodrome, error) {
	return sorted(t.st.Aerodromes, func(a, b models.Aerodrome) int { return cmp.Compare(a.ID, b.ID) }), nil
}

// Aircraft

func (t *tx) CreateAircraft(_ context.Context, a *models.Aircraft) error {
	for _, other := range t.st.Aircraft {
		if other.Registration == a.Registration {
			return conflict("aircraft %s already exists", a.Registration)
		}
	}
	a.ID = t.st.nextID()
	t.st.Aircraft[a.ID] = *a
	return nil
}

func (t *tx) GetAircraft(_ context.Context, id int64) (*models.Aircraft, error) {
	a, ok := t.st.Aircraft[id]
	if !ok {
		return nil, notFound("aircraft", id)
	}
	return &a, nil
}

func (t *tx) ListAircraft(context.Context) ([]models.Aircraft, error) {
	return sorted(t.st.Aircraft, func(a, b models.Aircraft) int { return cmp.Compare(a.ID, b.ID) }), nil
}

// Flight numbers

func (t *tx) CreateFlightNumber(_ context.Context, n *models.FlightNumber) error {
	for _, other := range t.st.FlightNumbers {
		if other.Prefix == n.Prefix && other.Number == n.Number {
			return conflict("flight number %s already exists", n.String())
		}
	}
	n.ID = t.st.nextID()
	t.st.FlightNumbers[n.ID] = *n
	return nil
}

func (t *tx) GetFlightNumber(_ context.Context, id int64) (*models.FlightNumber, error) {
	n, ok := t.st.FlightNumbers[id]
	if !ok {
		return nil, notFound("flight number", id)
	}
	return &n, nil
}

func (t *tx) ListFlightNumbers(context.Context) ([]models.FlightNumber, error) {
	return sorted(t.st.FlightNumbers, func(a, b models.FlightNumber) int { return cmp.Compare(a.ID, b.ID) }), nil
}

// Event codes and phases

func (t *tx) CreateEventCode(_ context.Context, c *models.EventCode) error {
	for _, other := range t.st.EventCodes {
		if other.Code == c.Code {
			return conflict("event code %s already exists", c.Code)
		}
	}
	c.ID = t.st.nextID()
	t.st.EventCodes[c.ID] = *c
	return nil
}

func (t *tx) GetEventCode(_ context.Context, id int64) (*models.EventCode, error) {
	c, ok := t.st.EventCodes[id]
	if !ok {
		return nil, notFound("event code", id)
	}
	return &c, nil
}

func (t *tx) ListEventCodes(context.Context) ([]models.EventCode, error) {
	return sorted(t.st.EventCodes, func(a, b models.EventCode) int {
		return cmp.Or(cmp.Compare(a.Sequence, b.Sequence), cmp.Compare(a.ID, b.ID))
	}), nil
}

func (t *tx) CreatePhase(_ context.Context, p *models.Phase) error {
	p.ID = t.st.nextID()
	t.st.Phases[p.ID] = *p
	return nil
}

func (t *tx) ListPhases(context.Context) ([]models.Phase, error) {
	return sorted(t.st.Phases, func(a, b models.Phase) int {
		return cmp.Or(cmp.Compare(a.Sequence, b.Sequence), cmp.Compare(a.ID, b.ID))
	}), nil
}

// Flights

func (t *tx) CreateFlight(_ context.Context, f *models.Flight) error {
	f.ID = t.st.nextID()
	t.st.Flights[f.ID] = *f
	return nil
}

func (t *tx) GetFlight(_ context.Context, id int64) (*models.Flight, error) {
	f, ok := t.st.Flights[id]
	if !ok {
		return nil, notFound("flight", id)
	}
	return &f, nil
}

// LockFlight is GetFlight: transactions already run one at a time
func (t *tx) LockFlight(ctx context.Context, id int64) (*models.Flight, error) {
	return t.GetFlight(ctx, id)
}

func (t *tx) ListFlights(_ context.Context, filter store.FlightFilter) ([]models.Flight, error) {
	out := make([]models.Flight, 0, len(t.st.Flights))
	for _, f := range t.st.Flights {
		if filter.Match(&f) {
			out = append(out, f)
		}
	}
	slices.SortFunc(out, func(a, b models.Flight) int {
		return cmp.Or(b.Date.Compare(a.Date), cmp.Compare(b.ID, a.ID))
	})
	return out, nil
}

func (t *tx) UpdateFlight(_ context.Context, f *models.Flight) error {
	if _, ok := t.st.Flights[f.ID]; !ok {
		return notFound("flight", f.ID)
	}
	t.st.Flights[f.ID] = *f
	return nil
}

func (t *tx) DeleteFlight(_ context.Context, id int64) error {
	if _, ok := t.st.Flights[id]; !ok {
		return notFound("flight", id)
	}
	delete(t.st.Flights, id)
	maps.DeleteFunc(t.st.Events, func(_ int64, e models.Event) bool { return e.FlightID == id })
	maps.DeleteFunc(t.st.Durations, func(_ int64, d models.PhaseDuration) bool { return d.FlightID == id })
	return nil
}

// Events and durations

func (t *tx) CreateEvent(_ context.Context, e *models.Event) error {
	if _, ok := t.st.Flights[e.FlightID]; !ok {
		return notFound("flight", e.FlightID)
	}
	e.ID = t.st.nextID()
	t.st.Events[e.ID] = *e
	return nil
}

func (t *tx) GetEvent(_ context.Context, id int64) (*models.Event, error) {
	e, ok := t.st.Events[id]
	if !ok {
		return nil, notFound("event", id)
	}
	return &e, nil
}

func (t *tx) UpdateEvent(_ context.Context, e *models.Event) error {
	if _, ok := t.st.Events[e.ID]; !ok {
		return notFound("event", e.ID)
	}
	t.st.Events[e.ID] = *e
	return nil
}

func (t *tx) DeleteEvent(_ context.Context, id int64) error {
	if _, ok := t.st.Events[id]; !ok {
		return notFound("event", id)
	}
	delete(t.st.Events, id)
	return nil
}

func (t *tx) ListEvents(_ context.Context, flightID int64) ([]models.Event, error) {
	var out []models.Event
	for _, e := range t.st.Events {
		if e.FlightID == flightID {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b models.Event) int {
		return cmp.Or(cmp.Compare(a.CodeID, b.CodeID), cmp.Compare(a.TimeKind, b.TimeKind), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (t *tx) UpsertPhaseDuration(_ context.Context, d *models.PhaseDuration) error {
	for id, existing := range t.st.Durations {
		if existing.FlightID == d.FlightID && existing.Key() == d.Key() {
			d.ID = id
			t.st.Durations[id] = *d
			return nil
		}
	}
	d.ID = t.st.nextID()
	t.st.Durations[d.ID] = *d
	return nil
}

func (t *tx) DeletePhaseDuration(_ context.Context, id int64) error {
	if _, ok := t.st.Durations[id]; !ok {
		return notFound("phase duration", id)
	}
	delete(t.st.Durations, id)
	return nil
}

func (t *tx) ListPhaseDurations(_ context.Context, flightID int64) ([]models.PhaseDuration, error) {
	var out []models.PhaseDuration
	for _, d := range t.st.Durations {
		if d.FlightID == flightID {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b models.PhaseDuration) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// Providers and schedules

func (t *tx) CreateProvider(_ context.Context, p *models.Provider) error {
	p.ID = t.st.nextID()
	t.st.Providers[p.ID] = *p
	return nil
}

func (t *tx) GetProvider(_ context.Context, id int64) (*models.Provider, error) {
	p, ok := t.st.Providers[id]
	if !ok {
		return nil, notFound("provider", id)
	}
	return &p, nil
}

func (t *tx) ListProviders(context.Context) ([]models.Provider, error) {
	return sorted(t.st.Providers, func(a, b models.Provider) int { return cmp.Compare(a.ID, b.ID) }), nil
}

func (t *tx) UpdateProvider(_ context.Context, p *models.Provider) error {
	if _, ok := t.st.Providers[p.ID]; !ok {
		return notFound("provider", p.ID)
	}
	t.st.Providers[p.ID] = *p
	return nil
}

func (t *tx) CreateSchedule(_ context.Context, s *models.Schedule) error {
	if _, ok := t.st.Providers[s.ProviderID]; !ok {
		return notFound("provider", s.ProviderID)
	}
	s.ID = t.st.nextID()
	t.st.Schedules[s.ID] = *s
	return nil
}

func (t *tx) GetSchedule(_ context.Context, id int64) (*models.Schedule, error) {
	s, ok := t.st.Schedules[id]
	if !ok {
		return nil, notFound("schedule", id)
	}
	return &s, nil
}

func (t *tx) ListSchedules(_ context.Context, providerID int64) ([]models.Schedule, error) {
	var out []models.Schedule
	for _, s := range t.st.Schedules {
		if providerID == 0 || s.ProviderID == providerID {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b models.Schedule) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (t *tx) UpdateSchedule(_ context.Context, s *models.Schedule) error {
	if _, ok := t.st.Schedules[s.ID]; !ok {
		return notFound("schedule", s.ID)
	}
	t.st.Schedules[s.ID] = *s
	return nil
}

// Registry and logs

func (t *tx) FindRegistryEntry(_ context.Context, providerID int64, model, externalID string) (*models.RegistryEntry, error) {
	for _, e := range t.st.Registry {
		if e.ProviderID == providerID && e.Model == model && e.ExternalID == externalID {
			return &e, nil
		}
	}
	return nil, models.ErrNotFound
}

func (t *tx) CreateRegistryEntry(ctx context.Context, e *models.RegistryEntry) error {
	if _, err := t.FindRegistryEntry(ctx, e.ProviderID, e.Model, e.ExternalID); err == nil {
		return conflict("registry entry %s/%s already exists", e.Model, e.ExternalID)
	}
	e.ID = t.st.nextID()
	t.st.Registry[e.ID] = *e
	return nil
}

func (t *tx) ListRegistryEntries(_ context.Context, providerID int64, model string) ([]models.RegistryEntry, error) {
	var out []models.RegistryEntry
	for _, e := range t.st.Registry {
		if e.ProviderID == providerID && (model == "" || e.Model == model) {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b models.RegistryEntry) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (t *tx) CreateSyncLog(_ context.Context, l *models.SyncLog) error {
	l.ID = t.st.nextID()
	t.st.SyncLogs[l.ID] = *l
	return nil
}

func (t *tx) ListSyncLogs(_ context.Context, scheduleID int64) ([]models.SyncLog, error) {
	var out []models.SyncLog
	for _, l := range t.st.SyncLogs {
		if l.ScheduleID == scheduleID {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b models.SyncLog) int {
		return cmp.Or(b.Timestamp.Compare(a.Timestamp), cmp.Compare(b.ID, a.ID))
	})
	return out, nil
}

// Messages

func (t *tx) CreateMessage(_ context.Context, m *models.Message) error {
	m.ID = t.st.nextID()
	t.st.Messages[m.ID] = *m
	return nil
}

func (t *tx) ListMessages(_ context.Context, kind string, recordID int64) ([]models.Message, error) {
	var out []models.Message
	for _, m := range t.st.Messages {
		if m.RecordKind == kind && m.RecordID == recordID {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b models.Message) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}
