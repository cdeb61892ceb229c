package flights

import (
	"context"
	"fmt"
	"strings"

	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/store"
)

// CreateAerodrome stores a new aerodrome. ICAO and IATA codes are upper-cased.
func (s *Service) CreateAerodrome(ctx context.Context, a *models.Aerodrome) error {
	a.ICAO = strings.ToUpper(strings.TrimSpace(a.ICAO))
	a.IATA = strings.ToUpper(strings.TrimSpace(a.IATA))
	if a.ICAO == "" {
		return models.NewValidationError("icao", "is required", nil)
	}
	return s.store.InTx(ctx, func(tx store.Tx) error {
		return tx.CreateAerodrome(ctx, a)
	})
}

// GetAerodrome returns one aerodrome
func (s *Service) GetAerodrome(ctx context.Context, id int64) (*models.Aerodrome, error) {
	return read(ctx, s.store, func(tx store.Tx) (*models.Aerodrome, error) {
		return tx.GetAerodrome(ctx, id)
	})
}

// ListAerodromes returns every aerodrome
func (s *Service) ListAerodromes(ctx context.Context) ([]models.Aerodrome, error) {
	return read(ctx, s.store, func(tx store.Tx) ([]models.Aerodrome, error) {
		return tx.ListAerodromes(ctx)
	})
}

// CreateAircraft stores a new aircraft. The equipment type defaults to aircraft.
func (s *Service) CreateAircraft(ctx context.Context, a *models.Aircraft) error {
	a.Registration = strings.ToUpper(strings.TrimSpace(a.Registration))
	if a.Registration == "" {
		return models.NewValidationError("registration", "is required", nil)
	}
	if a.EquipmentType == "" {
		a.EquipmentType = models.EquipmentAircraft
	}
	if !a.EquipmentType.Valid() {
		return models.NewValidationError("equipment_type", fmt.Sprintf("unknown equipment type %q", a.EquipmentType), nil)
	}
	return s.store.InTx(ctx, func(tx store.Tx) error {
		return tx.CreateAircraft(ctx, a)
	})
}

// GetAircraft returns one aircraft
func (s *Service) GetAircraft(ctx context.Context, id int64) (*models.Aircraft, error) {
	return read(ctx, s.store, func(tx store.Tx) (*models.Aircraft, error) {
		return tx.GetAircraft(ctx, id)
	})
}

// ListAircraft returns every aircraft
func (s *Service) ListAircraft(ctx context.Context) ([]models.Aircraft, error) {
	return read(ctx, s.store, func(tx store.Tx) ([]models.Aircraft, error) {
		return tx.ListAircraft(ctx)
	})
}

// CreateFlightNumber stores a new flight designator
func (s *Service) CreateFlightNumber(ctx context.Context, n *models.FlightNumber) error {
	n.Prefix = strings.ToUpper(strings.TrimSpace(n.Prefix))
	n.Number = strings.TrimSpace(n.Number)
	if n.Prefix == "" {
		return models.NewValidationError("prefix", "is required", nil)
	}
	if n.Number == "" {
		return models.NewValidationError("number", "is required", nil)
	}
	return s.store.InTx(ctx, func(tx store.Tx) error {
		return tx.CreateFlightNumber(ctx, n)
	})
}

// ListFlightNumbers returns every flight designator
func (s *Service) ListFlightNumbers(ctx context.Context) ([]models.FlightNumber, error) {
	return read(ctx, s.store, func(tx store.Tx) ([]models.FlightNumber, error) {
		return tx.ListFlightNumbers(ctx)
	})
}

// CreateEventCode stores a new event code
func (s *Service) CreateEventCode(ctx context.Context, c *models.EventCode) error {
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	if c.Code == "" {
		return models.NewValidationError("code", "is required", nil)
	}
	if c.Sequence == 0 {
		c.Sequence = models.DefaultEventCodeSequence
	}
	return s.store.InTx(ctx, func(tx store.Tx) error {
		return tx.CreateEventCode(ctx, c)
	})
}

// ListEventCodes returns every event code ordered by sequence
func (s *Service) ListEventCodes(ctx context.Context) ([]models.EventCode, error) {
	return read(ctx, s.store, func(tx store.Tx) ([]models.EventCode, error) {
		return tx.ListEventCodes(ctx)
	})
}

// CreatePhase stores a new phase between two existing event codes
func (s *Service) CreatePhase(ctx context.Context, p *models.Phase) error {
	if strings.TrimSpace(p.Name) == "" {
		return models.NewValidationError("name", "is required", nil)
	}
	return s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetEventCode(ctx, p.StartCodeID); err != nil {
			return mustExist("start_code_id", err)
		}
		if _, err := tx.GetEventCode(ctx, p.EndCodeID); err != nil {
			return mustExist("end_code_id", err)
		}
		return tx.CreatePhase(ctx, p)
	})
}

// ListPhases returns every phase ordered by sequence
func (s *Service) ListPhases(ctx context.Context) ([]models.Phase, error) {
	return read(ctx, s.store, func(tx store.Tx) ([]models.Phase, error) {
		return tx.ListPhases(ctx)
	})
}
