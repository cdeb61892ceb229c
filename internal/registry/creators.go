package registry

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/store"
)

// RecordCreator creates a local record from values and returns its id.
type RecordCreator func(ctx context.Context, tx store.Tx, values map[string]any) (int64, error)

// DefaultCreators returns the creators for every model with a local record type.
// flight.crew is selectable on schedules but has no local record.
func DefaultCreators() map[string]RecordCreator {
	return map[string]RecordCreator{
		models.ModelAerodrome: createAerodrome,
		models.ModelAircraft:  createAircraft,
		models.ModelFlight:    createFlight,
	}
}

var timeType = reflect.TypeOf(time.Time{})

// timeHook accepts RFC 3339 timestamps and plain dates
func timeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	s, ok := data.(string)
	if !ok || to != timeType {
		return data, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return nil, fmt.Errorf("cannot parse %q as a time", s)
}

// decode fills out from values using out's mapstructure tags. An "id" in
// values is the external id and never becomes the local one.
func decode(values map[string]any, out any) error {
	if _, ok := values["id"]; ok {
		values = maps.Clone(values)
		delete(values, "id")
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       timeHook,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(values); err != nil {
		return models.NewValidationError("values", err.Error(), nil)
	}
	return nil
}

func createAerodrome(ctx context.Context, tx store.Tx, values map[string]any) (int64, error) {
	var a models.Aerodrome
	if err := decode(values, &a); err != nil {
		return 0, err
	}
	a.ICAO = strings.ToUpper(a.ICAO)
	a.IATA = strings.ToUpper(a.IATA)
	if a.ICAO == "" {
		return 0, models.NewValidationError("icao", "is required", nil)
	}
	if err := tx.CreateAerodrome(ctx, &a); err != nil {
		return 0, err
	}
	return a.ID, nil
}

func createAircraft(ctx context.Context, tx store.Tx, values map[string]any) (int64, error) {
	var a models.Aircraft
	if err := decode(values, &a); err != nil {
		return 0, err
	}
	a.Registration = strings.ToUpper(a.Registration)
	if a.Registration == "" {
		return 0, models.NewValidationError("registration", "is required", nil)
	}
	if a.EquipmentType == "" {
		a.EquipmentType = models.EquipmentAircraft
	}
	if !a.EquipmentType.Valid() {
		return 0, models.NewValidationError("equipment_type", fmt.Sprintf("unknown equipment type %q", a.EquipmentType), nil)
	}
	if err := tx.CreateAircraft(ctx, &a); err != nil {
		return 0, err
	}
	return a.ID, nil
}

func createFlight(ctx context.Context, tx store.Tx, values map[string]any) (int64, error) {
	var f models.Flight
	if err := decode(values, &f); err != nil {
		return 0, err
	}
	f.Locked = false
	if !f.Date.IsZero() {
		f.Date = time.Date(f.Date.Year(), f.Date.Month(), f.Date.Day(), 0, 0, 0, 0, time.UTC)
	}
	f.WriteDate = time.Now().UTC()
	if err := f.Validate(); err != nil {
		return 0, err
	}
	if _, err := tx.GetAircraft(ctx, f.AircraftID); err != nil {
		return 0, fmt.Errorf("aircraft_id: %w", err)
	}
	if _, err := tx.GetAerodrome(ctx, f.DepartureID); err != nil {
		return 0, fmt.Errorf("departure_id: %w", err)
	}
	if _, err := tx.GetAerodrome(ctx, f.ArrivalID); err != nil {
		return 0, fmt.Errorf("arrival_id: %w", err)
	}
	if err := tx.CreateFlight(ctx, &f); err != nil {
		return 0, err
	}
	return f.ID, nil
}
