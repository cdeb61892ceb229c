package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/flightops/flight-data-server/internal/config"
	"github.com/flightops/flight-data-server/internal/logger"
	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/sync"
)

// Seed creates the event codes, phases, providers and schedules the
// configuration lists. It is idempotent and safe to call on every startup:
// codes, phases, providers and schedules are matched by code or name, and
// existing providers and schedules are updated to the configured values.
func Seed(ctx context.Context, c *Components, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if cfg.Seed != nil {
		if err := seedReferenceData(ctx, c, cfg.Seed); err != nil {
			return err
		}
	}
	for i := range cfg.Providers {
		if err := seedProvider(ctx, c, &cfg.Providers[i]); err != nil {
			return fmt.Errorf("failed to seed provider '%s': %w", cfg.Providers[i].Name, err)
		}
	}
	return nil
}

func seedReferenceData(ctx context.Context, c *Components, seed *config.SeedConfig) error {
	codes, err := c.Flights.ListEventCodes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list event codes: %w", err)
	}
	codeIDs := make(map[string]int64, len(codes))
	for _, code := range codes {
		codeIDs[code.Code] = code.ID
	}

	created := 0
	for _, ec := range seed.EventCodes {
		key := strings.ToUpper(strings.TrimSpace(ec.Code))
		if _, ok := codeIDs[key]; ok {
			continue
		}
		code := &models.EventCode{Code: ec.Code, Name: ec.Name, Description: ec.Description, Sequence: ec.Sequence}
		if err := c.Flights.CreateEventCode(ctx, code); err != nil {
			return fmt.Errorf("failed to seed event code '%s': %w", ec.Code, err)
		}
		codeIDs[code.Code] = code.ID
		created++
	}

	phases, err := c.Flights.ListPhases(ctx)
	if err != nil {
		return fmt.Errorf("failed to list phases: %w", err)
	}
	existing := make(map[string]bool, len(phases))
	for _, p := range phases {
		existing[p.Name] = true
	}
	for _, pc := range seed.Phases {
		if existing[pc.Name] {
			continue
		}
		start, ok := codeIDs[strings.ToUpper(pc.Start)]
		if !ok {
			return fmt.Errorf("phase '%s': unknown start code '%s'", pc.Name, pc.Start)
		}
		end, ok := codeIDs[strings.ToUpper(pc.End)]
		if !ok {
			return fmt.Errorf("phase '%s': unknown end code '%s'", pc.Name, pc.End)
		}
		p := &models.Phase{Name: pc.Name, Sequence: pc.Sequence, StartCodeID: start, EndCodeID: end}
		if err := c.Flights.CreatePhase(ctx, p); err != nil {
			return fmt.Errorf("failed to seed phase '%s': %w", pc.Name, err)
		}
		created++
	}

	if created > 0 {
		logger.Infof("Seeded %d reference record%s", created, pluralize(created, "", "s"))
	}
	return nil
}

func seedProvider(ctx context.Context, c *Components, pc *config.ProviderConfig) error {
	password, err := pc.GetPassword()
	if err != nil {
		return err
	}

	providers, err := c.Dispatcher.ListProviders(ctx)
	if err != nil {
		return err
	}
	p := &models.Provider{}
	for i := range providers {
		if providers[i].Name == pc.Name {
			p = &providers[i]
			break
		}
	}
	p.Name = pc.Name
	p.Service = pc.Service
	p.Active = pc.IsActive()
	p.APIBase = pc.APIBase
	p.Username = pc.Username
	p.Password = password
	p.RunAs = pc.RunAs

	if p.ID == 0 {
		if err := c.Dispatcher.CreateProvider(ctx, p); err != nil {
			return err
		}
		logger.Infow("Seeded provider", "provider", p.Name, "service", p.Service, "id", p.ID)
	} else if err := c.Dispatcher.UpdateProvider(ctx, p); err != nil {
		return err
	}

	views, err := c.Dispatcher.ListSchedules(ctx, p.ID)
	if err != nil {
		return err
	}
	byName := make(map[string]models.Schedule, len(views))
	for _, v := range views {
		byName[v.Name] = v.Schedule
	}

	for i := range pc.Schedules {
		want := pc.Schedules[i].ToModel(p.ID)
		if have, ok := byName[want.Name]; ok {
			want.ID = have.ID
			want.LastRun = have.LastRun
			want.LastSuccess = have.LastSuccess
			if err := c.Dispatcher.UpdateSchedule(ctx, &want); err != nil {
				return fmt.Errorf("schedule '%s': %w", want.Name, err)
			}
			continue
		}
		if err := c.Dispatcher.CreateSchedule(ctx, &want); err != nil {
			return fmt.Errorf("schedule '%s': %w", want.Name, err)
		}
		logger.Infow("Seeded schedule", "schedule", sync.ScheduleName(p, &want), "id", want.ID)
	}
	return nil
}

// pluralize returns singular or plural suffix based on count
func pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}
