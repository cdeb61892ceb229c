package models

import (
	"fmt"
	"time"
)

// Sync target models
const (
	ModelFlight    = "flight.flight"
	ModelAircraft  = "flight.aircraft"
	ModelAerodrome = "flight.aerodrome"
	ModelCrew      = "flight.crew"
)

// SyncModels lists every model a schedule may target
var SyncModels = []string{ModelFlight, ModelCrew, ModelAerodrome, ModelAircraft}

// IsSyncModel reports whether model can be targeted by a schedule
func IsSyncModel(model string) bool {
	for _, m := range SyncModels {
		if m == model {
			return true
		}
	}
	return false
}

// Provider is one configured external system integration.
type Provider struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Service  string `json:"service"`
	Active   bool   `json:"active"`
	APIBase  string `json:"api_base,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"-"`
	// RunAs names the user handlers act on behalf of; empty means the caller
	RunAs string `json:"run_as,omitempty"`
}

// IntervalType is the unit of a schedule's run interval
type IntervalType string

// Interval units
const (
	IntervalMinutes IntervalType = "minutes"
	IntervalHours   IntervalType = "hours"
	IntervalDays    IntervalType = "days"
	IntervalWeeks   IntervalType = "weeks"
)

// Valid reports whether t is a known unit
func (t IntervalType) Valid() bool {
	switch t {
	case IntervalMinutes, IntervalHours, IntervalDays, IntervalWeeks:
		return true
	}
	return false
}

// Add returns from advanced by n units. Days and weeks follow the calendar.
func (t IntervalType) Add(from time.Time, n int) time.Time {
	switch t {
	case IntervalMinutes:
		return from.Add(time.Duration(n) * time.Minute)
	case IntervalHours:
		return from.Add(time.Duration(n) * time.Hour)
	case IntervalDays:
		return from.AddDate(0, 0, n)
	case IntervalWeeks:
		return from.AddDate(0, 0, 7*n)
	}
	return from
}

// Schedule is a recurring sync job bound to one provider and one model.
type Schedule struct {
	ID             int64        `json:"id"`
	ProviderID     int64        `json:"provider_id"`
	Name           string       `json:"name"`
	Model          string       `json:"model"`
	Active         bool         `json:"active"`
	IntervalNumber int          `json:"interval_number"`
	IntervalType   IntervalType `json:"interval_type"`
	Kwargs         string       `json:"kwargs,omitempty"`
	LastRun        *time.Time   `json:"last_run,omitempty"`
	LastSuccess    *time.Time   `json:"last_success,omitempty"`
}

// Schedule defaults
const (
	DefaultIntervalNumber = 1
	DefaultIntervalType   = IntervalHours
)

// ApplyDefaults fills in the interval when absent
func (s *Schedule) ApplyDefaults() {
	if s.IntervalNumber == 0 {
		s.IntervalNumber = DefaultIntervalNumber
	}
	if s.IntervalType == "" {
		s.IntervalType = DefaultIntervalType
	}
}

// Validate checks the schedule's static fields. Kwargs are validated by the
// kwargs package since that needs the literal parser.
func (s *Schedule) Validate() error {
	if s.Name == "" {
		return NewValidationError("name", "is required", nil)
	}
	if s.ProviderID == 0 {
		return NewValidationError("provider_id", "is required", nil)
	}
	if !IsSyncModel(s.Model) {
		return NewValidationError("model", fmt.Sprintf("unsupported sync model %q", s.Model), nil)
	}
	if s.IntervalNumber <= 0 {
		return NewValidationError("interval_number", "must be positive", nil)
	}
	if !s.IntervalType.Valid() {
		return NewValidationError("interval_type", fmt.Sprintf("unknown interval unit %q", s.IntervalType), nil)
	}
	return nil
}

// NextRun is last_run plus the interval, or now when the schedule never ran.
func (s *Schedule) NextRun(now time.Time) time.Time {
	if s.LastRun == nil {
		return now
	}
	return s.IntervalType.Add(*s.LastRun, s.IntervalNumber)
}

// IsDue reports whether the schedule should run at now
func (s *Schedule) IsDue(now time.Time) bool {
	return s.Active && !s.NextRun(now).After(now)
}

// RegistryEntry maps an external record to a local one for one provider and model.
type RegistryEntry struct {
	ID                 int64  `json:"id"`
	ProviderID         int64  `json:"provider_id"`
	Model              string `json:"model"`
	LocalID            int64  `json:"local_id"`
	ExternalID         string `json:"external_id"`
	ExternalProviderID string `json:"external_provider_id"`
}

// Direction of a logged exchange
type Direction string

// Directions
const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// SyncLog records one exchange with an external system.
type SyncLog struct {
	ID         int64     `json:"id"`
	ScheduleID int64     `json:"schedule_id"`
	Timestamp  time.Time `json:"timestamp"`
	Direction  Direction `json:"direction"`
	Headers    string    `json:"headers,omitempty"`
	Body       string    `json:"body,omitempty"`
}

// Message is one entry of a record's audit trail.
type Message struct {
	ID         int64     `json:"id"`
	RecordKind string    `json:"record_kind"`
	RecordID   int64     `json:"record_id"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}
