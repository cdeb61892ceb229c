// Package models defines the flight data records, their reference data and
// the invariants that hold across them.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Record kinds, used for audit messages and lock errors
const (
	KindFlight        = "flight"
	KindEvent         = "event"
	KindPhaseDuration = "phase_duration"
	KindProvider      = "provider"
	KindSchedule      = "schedule"
)

// Aerodrome is an airport, heliport or other landing site.
type Aerodrome struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name,omitempty" mapstructure:"name"`
	ICAO         string  `json:"icao" mapstructure:"icao"`
	IATA         string  `json:"iata,omitempty" mapstructure:"iata"`
	LID          string  `json:"lid,omitempty" mapstructure:"lid"`
	City         string  `json:"city,omitempty" mapstructure:"city"`
	Municipality string  `json:"municipality,omitempty" mapstructure:"municipality"`
	CountryCode  string  `json:"country_code,omitempty" mapstructure:"country_code"`
	ElevationFt  int     `json:"elevation_ft,omitempty" mapstructure:"elevation_ft"`
	TZ           string  `json:"tz,omitempty" mapstructure:"tz"`
	Latitude     float64 `json:"latitude,omitempty" mapstructure:"latitude"`
	Longitude    float64 `json:"longitude,omitempty" mapstructure:"longitude"`
}

// DisplayName renders "ICAO(IATA) - Name", dropping absent parts.
func (a *Aerodrome) DisplayName() string {
	code := a.ICAO
	if a.IATA != "" {
		code = fmt.Sprintf("%s(%s)", a.ICAO, a.IATA)
	}
	if a.Name == "" {
		return code
	}
	return code + " - " + a.Name
}

// EquipmentType distinguishes real aircraft from training devices
type EquipmentType string

// Equipment types
const (
	EquipmentAircraft EquipmentType = "aircraft"
	EquipmentFFS      EquipmentType = "ffs"
	EquipmentFTD      EquipmentType = "ftd"
	EquipmentBATD     EquipmentType = "batd"
	EquipmentAATD     EquipmentType = "aatd"
)

// Valid reports whether t is a known equipment type
func (t EquipmentType) Valid() bool {
	switch t {
	case EquipmentAircraft, EquipmentFFS, EquipmentFTD, EquipmentBATD, EquipmentAATD:
		return true
	}
	return false
}

// Aircraft is a single airframe or training device.
type Aircraft struct {
	ID             int64         `json:"id"`
	Registration   string        `json:"registration" mapstructure:"registration"`
	ModelCode      string        `json:"model_code,omitempty" mapstructure:"model_code"`
	SerialNumber   string        `json:"serial_number,omitempty" mapstructure:"serial_number"`
	ManufacturedOn *time.Time    `json:"manufactured_on,omitempty" mapstructure:"manufactured_on"`
	EquipmentType  EquipmentType `json:"equipment_type" mapstructure:"equipment_type"`
	MTOWLb         int           `json:"mtow_lb,omitempty" mapstructure:"mtow_lb"`
}

// FlightNumber is a commercial flight designator such as "LH400".
type FlightNumber struct {
	ID     int64  `json:"id"`
	Prefix string `json:"prefix" mapstructure:"prefix"`
	Number string `json:"number" mapstructure:"number"`
}

// String renders the designator
func (n *FlightNumber) String() string {
	return n.Prefix + n.Number
}

// Flight is one operated flight. Its events, phase durations and the
// block/flight projections belong to it.
type Flight struct {
	ID             int64     `json:"id"`
	Date           time.Time `json:"date" mapstructure:"date"`
	AircraftID     int64     `json:"aircraft_id" mapstructure:"aircraft_id"`
	DepartureID    int64     `json:"departure_id" mapstructure:"departure_id"`
	ArrivalID      int64     `json:"arrival_id" mapstructure:"arrival_id"`
	NumberID       *int64    `json:"number_id,omitempty" mapstructure:"number_id"`
	Locked         bool      `json:"locked"`
	BlockDuration  float64   `json:"block_duration"`
	FlightDuration float64   `json:"flight_duration"`
	WriteDate      time.Time `json:"write_date"`
}

// IsLocked implements Lockable
func (f *Flight) IsLocked() bool {
	return f != nil && f.Locked
}

// Validate checks the fields a flight cannot exist without
func (f *Flight) Validate() error {
	if f.Date.IsZero() {
		return NewValidationError("date", "is required", nil)
	}
	if f.AircraftID == 0 {
		return NewValidationError("aircraft_id", "is required", nil)
	}
	if f.DepartureID == 0 {
		return NewValidationError("departure_id", "is required", nil)
	}
	if f.ArrivalID == 0 {
		return NewValidationError("arrival_id", "is required", nil)
	}
	return nil
}

// FlightLabel holds the resolved names needed to render a flight's display name.
type FlightLabel struct {
	Registration string
	Departure    string
	Arrival      string
	Number       *FlightNumber
}

// DisplayName renders "DATE / NUMBER" for numbered flights, otherwise
// "DATE / REG: DEP - ARR".
func (f *Flight) DisplayName(label FlightLabel) string {
	date := f.Date.Format(time.DateOnly)
	if label.Number != nil {
		return fmt.Sprintf("%s / %s", date, label.Number.String())
	}
	return fmt.Sprintf("%s / %s: %s - %s", date, label.Registration,
		strings.ToUpper(label.Departure), strings.ToUpper(label.Arrival))
}
