package phase

import (
	"fmt"

	"github.com/flightops/flight-data-server/internal/models"
)

type slot struct {
	codeID int64
	kind   models.TimeKind
}

// index maps each (code, kind) slot to its event with the lowest id. A slot
// whose lowest-id event has no time is left out, even when a later duplicate
// is timed.
func index(events []models.Event) map[slot]models.Event {
	out := make(map[slot]models.Event, len(events))
	for _, ev := range events {
		s := slot{codeID: ev.CodeID, kind: ev.TimeKind}
		if cur, ok := out[s]; !ok || ev.ID < cur.ID {
			out[s] = ev
		}
	}
	for s, ev := range out {
		if ev.Time == nil {
			delete(out, s)
		}
	}
	return out
}

// kindsPresent returns the time kinds used by events, in canonical order
func kindsPresent(events []models.Event) []models.TimeKind {
	present := make(map[models.TimeKind]bool)
	for _, ev := range events {
		present[ev.TimeKind] = true
	}
	var out []models.TimeKind
	for _, k := range models.TimeKinds {
		if present[k] {
			out = append(out, k)
		}
	}
	return out
}

// derive computes the durations the flight should have
func derive(flightID int64, phases []models.Phase, events []models.Event, allowNegative bool) map[models.DurationKey]models.PhaseDuration {
	idx := index(events)
	out := make(map[models.DurationKey]models.PhaseDuration)

	for _, p := range phases {
		for _, kind := range kindsPresent(events) {
			start, ok := idx[slot{codeID: p.StartCodeID, kind: kind}]
			if !ok {
				continue
			}
			end, ok := idx[slot{codeID: p.EndCodeID, kind: kind}]
			if !ok {
				continue
			}
			hours := models.DurationHours(*start.Time, *end.Time)
			if hours < 0 && !allowNegative {
				continue
			}
			d := models.PhaseDuration{
				FlightID:  flightID,
				PhaseID:   p.ID,
				TimeKind:  kind,
				StartTime: start.Time.UTC(),
				EndTime:   end.Time.UTC(),
				Duration:  hours,
			}
			out[d.Key()] = d
		}
	}
	return out
}

// orderedKeys lists computed keys by phase order then time kind order
func orderedKeys(phases []models.Phase, computed map[models.DurationKey]models.PhaseDuration) []models.DurationKey {
	var out []models.DurationKey
	for _, p := range phases {
		for _, k := range models.TimeKinds {
			key := models.DurationKey{PhaseID: p.ID, TimeKind: k}
			if _, ok := computed[key]; ok {
				out = append(out, key)
			}
		}
	}
	return out
}

// Validate checks the flight's events against the policy: duplicated slots
// under DuplicatesReject and negative phase intervals when negatives are not
// allowed. It is meant to run after an event mutation and before Recompute.
func (e *Engine) Validate(phases []models.Phase, events []models.Event) error {
	if e.policy.Duplicates != DuplicatesLowestID {
		seen := make(map[slot]int64, len(events))
		for _, ev := range events {
			s := slot{codeID: ev.CodeID, kind: ev.TimeKind}
			if other, ok := seen[s]; ok {
				return models.NewValidationError("code_id",
					fmt.Sprintf("events %d and %d share code %d and time kind %s", other, ev.ID, ev.CodeID, ev.TimeKind),
					models.ErrDuplicateEvent)
			}
			seen[s] = ev.ID
		}
	}

	if !e.policy.AllowNegative {
		idx := index(events)
		for _, p := range phases {
			for _, kind := range kindsPresent(events) {
				start, okStart := idx[slot{codeID: p.StartCodeID, kind: kind}]
				end, okEnd := idx[slot{codeID: p.EndCodeID, kind: kind}]
				if okStart && okEnd && end.Time.Before(*start.Time) {
					return models.NewValidationError("time",
						fmt.Sprintf("phase %s (%s) ends before it starts", p.Name, kind),
						models.ErrOutOfOrder)
				}
			}
		}
	}
	return nil
}
