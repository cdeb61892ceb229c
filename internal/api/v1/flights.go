package v1

import (
	"net/http"
	"time"

	"github.com/flightops/flight-data-server/internal/api/common"
	"github.com/flightops/flight-data-server/internal/flights"
	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/store"
)

// LockRequest is the body of PUT /v1/flights/{id}/lock
type LockRequest struct {
	Locked bool `json:"locked"`
}

// ListResponse wraps every list result
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func list[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := common.IDParam(r, "id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (routes *Routes) createFlight(w http.ResponseWriter, r *http.Request) {
	var in flights.FlightInput
	if !common.DecodeJSON(w, r, &in) {
		return
	}
	f, err := routes.flights.CreateFlight(r.Context(), in)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, f, http.StatusCreated)
}

// listFlights handles GET /v1/flights?from=&to=&aircraft_id=
func (routes *Routes) listFlights(w http.ResponseWriter, r *http.Request) {
	var filter store.FlightFilter
	query := r.URL.Query()
	for name, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			common.WriteErrorResponse(w, "Invalid "+name+" parameter: must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		*dst = t
	}
	aircraftID, err := common.QueryID(r, "aircraft_id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter.AircraftID = aircraftID

	out, err := routes.flights.ListFlights(r.Context(), filter)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, list(out), http.StatusOK)
}

func (routes *Routes) getFlight(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	view, err := routes.flights.DescribeFlight(r.Context(), id)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, view, http.StatusOK)
}

func (routes *Routes) updateFlight(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch flights.FlightPatch
	if !common.DecodeJSON(w, r, &patch) {
		return
	}
	f, err := routes.flights.UpdateFlight(r.Context(), id, patch)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, f, http.StatusOK)
}

func (routes *Routes) deleteFlight(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := routes.flights.DeleteFlight(r.Context(), id); err != nil {
		common.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (routes *Routes) setLocked(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req LockRequest
	if !common.DecodeJSON(w, r, &req) {
		return
	}
	f, err := routes.flights.SetLocked(r.Context(), id, req.Locked)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, f, http.StatusOK)
}

func (routes *Routes) listFlightMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	out, err := routes.flights.ListMessages(r.Context(), id)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, list(out), http.StatusOK)
}

func (routes *Routes) listDurations(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	out, err := routes.flights.ListDurations(r.Context(), id)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, list(out), http.StatusOK)
}

func (routes *Routes) recomputeDurations(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	out, err := routes.flights.RecomputeDurations(r.Context(), id)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, list(out), http.StatusOK)
}

// PhaseDurationResponse is the body of GET /v1/flights/{id}/durations/{phase}
type PhaseDurationResponse struct {
	FlightID int64           `json:"flight_id"`
	Phase    string          `json:"phase"`
	TimeKind models.TimeKind `json:"time_kind"`
	Duration float64         `json:"duration"`
}

func (routes *Routes) getPhaseDuration(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	phaseName, err := common.GetAndValidateURLParam(r, "phase")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	kind := models.TimeKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = models.TimeKindActual
	}
	if !kind.Valid() {
		common.WriteErrorResponse(w, "Invalid kind parameter: must be one of A, S, R, T, E", http.StatusBadRequest)
		return
	}

	d, err := routes.flights.Engine().GetPhaseDuration(r.Context(), id, phaseName, kind)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, PhaseDurationResponse{
		FlightID: id,
		Phase:    phaseName,
		TimeKind: kind,
		Duration: d,
	}, http.StatusOK)
}
