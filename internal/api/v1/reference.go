package v1

import (
	"context"
	"net/http"

	"github.com/flightops/flight-data-server/internal/api/common"
	"github.com/flightops/flight-data-server/internal/models"
)

// createHandler decodes a T, passes it to create and answers 201 with it
func createHandler[T any](create func(context.Context, *T) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in T
		if !common.DecodeJSON(w, r, &in) {
			return
		}
		if err := create(r.Context(), &in); err != nil {
			common.WriteError(w, r, err)
			return
		}
		common.WriteJSONResponse(w, &in, http.StatusCreated)
	}
}

// listHandler answers 200 with what fetch returns
func listHandler[T any](fetch func(context.Context) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := fetch(r.Context())
		if err != nil {
			common.WriteError(w, r, err)
			return
		}
		common.WriteJSONResponse(w, list(out), http.StatusOK)
	}
}

func (routes *Routes) createAerodrome(w http.ResponseWriter, r *http.Request) {
	createHandler[models.Aerodrome](routes.flights.CreateAerodrome)(w, r)
}

func (routes *Routes) listAerodromes(w http.ResponseWriter, r *http.Request) {
	listHandler(routes.flights.ListAerodromes)(w, r)
}

func (routes *Routes) createAircraft(w http.ResponseWriter, r *http.Request) {
	createHandler[models.Aircraft](routes.flights.CreateAircraft)(w, r)
}

func (routes *Routes) listAircraft(w http.ResponseWriter, r *http.Request) {
	listHandler(routes.flights.ListAircraft)(w, r)
}

func (routes *Routes) createFlightNumber(w http.ResponseWriter, r *http.Request) {
	createHandler[models.FlightNumber](routes.flights.CreateFlightNumber)(w, r)
}

func (routes *Routes) listFlightNumbers(w http.ResponseWriter, r *http.Request) {
	listHandler(routes.flights.ListFlightNumbers)(w, r)
}

func (routes *Routes) createEventCode(w http.ResponseWriter, r *http.Request) {
	createHandler[models.EventCode](routes.flights.CreateEventCode)(w, r)
}

func (routes *Routes) listEventCodes(w http.ResponseWriter, r *http.Request) {
	listHandler(routes.flights.ListEventCodes)(w, r)
}

func (routes *Routes) createPhase(w http.ResponseWriter, r *http.Request) {
	createHandler[models.Phase](routes.flights.CreatePhase)(w, r)
}

func (routes *Routes) listPhases(w http.ResponseWriter, r *http.Request) {
	listHandler(routes.flights.ListPhases)(w, r)
}
