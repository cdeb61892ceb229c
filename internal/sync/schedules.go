package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/flightops/flight-data-server/internal/kwargs"
	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/store"
)

// ScheduleName renders "PROVIDER (SERVICE): NAME"
func ScheduleName(p *models.Provider, s *models.Schedule) string {
	return fmt.Sprintf("%s (%s): %s", p.Name, p.Service, s.Name)
}

func (d *Dispatcher) validateProvider(p *models.Provider) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return models.NewValidationError("name", "is required", nil)
	}
	if p.Service == "" {
		return models.NewValidationError("service", "is required", nil)
	}
	if !d.handlers.HasService(p.Service) {
		return models.NewValidationError("service", fmt.Sprintf("unknown service %q", p.Service), nil)
	}
	return nil
}

func validateSchedule(s *models.Schedule) error {
	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return err
	}
	if err := kwargs.Validate(s.Kwargs); err != nil {
		return models.NewValidationError("kwargs", "invalid kwargs", err)
	}
	return nil
}

// CreateProvider stores a new provider
func (d *Dispatcher) CreateProvider(ctx context.Context, p *models.Provider) error {
	if err := d.validateProvider(p); err != nil {
		return err
	}
	return d.store.InTx(ctx, func(tx store.Tx) error {
		return tx.CreateProvider(ctx, p)
	})
}

// GetProvider returns one provider
func (d *Dispatcher) GetProvider(ctx context.Context, id int64) (*models.Provider, error) {
	var out *models.Provider
	err := d.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.GetProvider(ctx, id)
		return err
	})
	return out, err
}

// ListProviders returns every provider
func (d *Dispatcher) ListProviders(ctx context.Context) ([]models.Provider, error) {
	var out []models.Provider
	err := d.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListProviders(ctx)
		return err
	})
	return out, err
}

// UpdateProvider overwrites a provider
func (d *Dispatcher) UpdateProvider(ctx context.Context, p *models.Provider) error {
	if err := d.validateProvider(p); err != nil {
		return err
	}
	return d.store.InTx(ctx, func(tx store.Tx) error {
		return tx.UpdateProvider(ctx, p)
	})
}

// CreateSchedule stores a new schedule after checking its interval, model and kwargs
func (d *Dispatcher) CreateSchedule(ctx context.Context, s *models.Schedule) error {
	if err := validateSchedule(s); err != nil {
		return err
	}
	return d.store.InTx(ctx, func(tx store.Tx) error {
		return tx.CreateSchedule(ctx, s)
	})
}

// GetSchedule returns one schedule
func (d *Dispatcher) GetSchedule(ctx context.Context, id int64) (*models.Schedule, error) {
	var out *models.Schedule
	err := d.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.GetSchedule(ctx, id)
		return err
	})
	return out, err
}

// ScheduleView is a schedule with its provider's name and computed next run
type ScheduleView struct {
	models.Schedule
	DisplayName string `json:"display_name"`
	Service     string `json:"service"`
	NextRun     string `json:"next_run"`
}

// ListSchedules returns the schedules of providerID, or all when it is 0
func (d *Dispatcher) ListSchedules(ctx context.Context, providerID int64) ([]ScheduleView, error) {
	var out []ScheduleView
	now := d.now().UTC()
	err := d.store.InTx(ctx, func(tx store.Tx) error {
		schedules, err := tx.ListSchedules(ctx, providerID)
		if err != nil {
			return err
		}
		providers := make(map[int64]*models.Provider)
		for i := range schedules {
			s := &schedules[i]
			p, ok := providers[s.ProviderID]
			if !ok {
				if p, err = tx.GetProvider(ctx, s.ProviderID); err != nil {
					return err
				}
				providers[s.ProviderID] = p
			}
			out = append(out, ScheduleView{
				Schedule:    *s,
				DisplayName: ScheduleName(p, s),
				Service:     p.Service,
				NextRun:     s.NextRun(now).Format("2006-01-02 15:04:05"),
			})
		}
		return nil
	})
	return out, err
}

// UpdateSchedule overwrites a schedule after the same checks as CreateSchedule
func (d *Dispatcher) UpdateSchedule(ctx context.Context, s *models.Schedule) error {
	if err := validateSchedule(s); err != nil {
		return err
	}
	return d.store.InTx(ctx, func(tx store.Tx) error {
		return tx.UpdateSchedule(ctx, s)
	})
}

// ListLogs returns the schedule's sync logs, newest first
func (d *Dispatcher) ListLogs(ctx context.Context, scheduleID int64) ([]models.SyncLog, error) {
	var out []models.SyncLog
	err := d.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetSchedule(ctx, scheduleID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListSyncLogs(ctx, scheduleID)
		return err
	})
	return out, err
}

// ListProviderMessages returns the provider's audit trail, oldest first
func (d *Dispatcher) ListProviderMessages(ctx context.Context, providerID int64) ([]models.Message, error) {
	var out []models.Message
	err := d.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListMessages(ctx, models.KindProvider, providerID)
		return err
	})
	return out, err
}
