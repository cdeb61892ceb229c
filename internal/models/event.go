package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// TimeKind tags which flavour of timestamp an event carries.
type TimeKind string

// Time kinds
const (
	TimeKindActual    TimeKind = "A"
	TimeKindScheduled TimeKind = "S"
	TimeKindRequested TimeKind = "R"
	TimeKindTarget    TimeKind = "T"
	TimeKindEstimated TimeKind = "E"
)

// TimeKinds lists every time kind in display order
var TimeKinds = []TimeKind{
	TimeKindActual, TimeKindScheduled, TimeKindRequested, TimeKindTarget, TimeKindEstimated,
}

// Valid reports whether k is one of the known time kinds
func (k TimeKind) Valid() bool {
	switch k {
	case TimeKindActual, TimeKindScheduled, TimeKindRequested, TimeKindTarget, TimeKindEstimated:
		return true
	}
	return false
}

// Label returns the long name of the time kind
func (k TimeKind) Label() string {
	switch k {
	case TimeKindActual:
		return "Actual"
	case TimeKindScheduled:
		return "Scheduled"
	case TimeKindRequested:
		return "Requested"
	case TimeKindTarget:
		return "Target"
	case TimeKindEstimated:
		return "Estimated"
	}
	return string(k)
}

// ParseTimeKind accepts either the single letter or the long name
func ParseTimeKind(s string) (TimeKind, error) {
	if s == "" {
		return TimeKindActual, nil
	}
	for _, k := range TimeKinds {
		if strings.EqualFold(s, string(k)) || strings.EqualFold(s, k.Label()) {
			return k, nil
		}
	}
	return "", NewValidationError("time_kind", fmt.Sprintf("unknown time kind %q", s), nil)
}

// EventCode identifies what happened, e.g. "OUT" (off-block) or "IN" (on-block).
type EventCode struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Sequence    int    `json:"sequence"`
}

// DefaultEventCodeSequence is assigned when a code is created without one
const DefaultEventCodeSequence = 10

// Event is one timestamp of one kind for one code on a flight. All times are UTC.
type Event struct {
	ID       int64      `json:"id"`
	FlightID int64      `json:"flight_id"`
	CodeID   int64      `json:"code_id"`
	TimeKind TimeKind   `json:"time_kind"`
	Time     *time.Time `json:"time,omitempty"`
	User     string     `json:"user,omitempty"`
}

// DisplayName renders e.g. "AOUTT 09:05 (+1)" relative to the flight date.
func (e *Event) DisplayName(code string, flightDate time.Time) string {
	return strings.ToUpper(fmt.Sprintf("%s%sT %s", e.TimeKind, code, e.DisplayTime(flightDate)))
}

// DisplayTime renders HH:MM with the day offset to the flight date appended
// when the event falls on another day.
func (e *Event) DisplayTime(flightDate time.Time) string {
	if e.Time == nil || flightDate.IsZero() {
		return ""
	}
	t := e.Time.UTC()
	out := t.Format("15:04")
	day := time.Date(flightDate.Year(), flightDate.Month(), flightDate.Day(), 0, 0, 0, 0, time.UTC)
	days := int(math.Floor(t.Sub(day).Hours() / 24))
	switch {
	case days > 0:
		out += fmt.Sprintf(" (+%d)", days)
	case days < 0:
		out += fmt.Sprintf(" (%d)", days)
	}
	return out
}

// Phase is a named interval between a start and an end event code.
type Phase struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Sequence    int    `json:"sequence"`
	StartCodeID int64  `json:"start_code_id"`
	EndCodeID   int64  `json:"end_code_id"`
}

// Well known phase names projected onto the flight
const (
	PhaseBlock  = "Block"
	PhaseFlight = "Flight"
)

// PhaseDuration is the derived length of a phase for one flight and time kind.
type PhaseDuration struct {
	ID        int64     `json:"id"`
	FlightID  int64     `json:"flight_id"`
	PhaseID   int64     `json:"phase_id"`
	TimeKind  TimeKind  `json:"time_kind"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"`
}

// DurationHours returns end-start in hours rounded to two decimals, halves
// to even (7.5 minutes is 0.12). Negative results are returned as is.
func DurationHours(start, end time.Time) float64 {
	hours := end.Sub(start).Hours()
	return math.RoundToEven(hours*100) / 100
}

// Key identifies the slot a duration occupies within its flight
func (d *PhaseDuration) Key() DurationKey {
	return DurationKey{PhaseID: d.PhaseID, TimeKind: d.TimeKind}
}

// DurationKey is the (phase, time kind) pair unique per flight
type DurationKey struct {
	PhaseID  int64
	TimeKind TimeKind
}

// Name renders "<flight> - <phase> (<kind>): 1.50 hours"
func (d *PhaseDuration) Name(flightName, phaseName string) string {
	return fmt.Sprintf("%s - %s (%s): %.2f hours", flightName, phaseName, d.TimeKind, d.Duration)
}
