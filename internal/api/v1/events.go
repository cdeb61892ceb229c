package v1

import (
	"net/http"

	"github.com/flightops/flight-data-server/internal/api/common"
	"github.com/flightops/flight-data-server/internal/flights"
)

// BatchRequest is the body of POST /v1/flights/{id}/events:batch
type BatchRequest struct {
	Changes []flights.EventChange `json:"changes"`
}

func (routes *Routes) listEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	out, err := routes.flights.ListEvents(r.Context(), id)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, list(out), http.StatusOK)
}

func (routes *Routes) createEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in flights.EventInput
	if !common.DecodeJSON(w, r, &in) {
		return
	}
	e, err := routes.flights.CreateEvent(r.Context(), id, in)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, e, http.StatusCreated)
}

// applyEventChanges applies a batch in one transaction; nothing is stored
// when any change fails.
func (routes *Routes) applyEventChanges(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req BatchRequest
	if !common.DecodeJSON(w, r, &req) {
		return
	}
	if len(req.Changes) == 0 {
		common.WriteErrorResponse(w, "changes cannot be empty", http.StatusBadRequest)
		return
	}
	res, err := routes.flights.ApplyEventChanges(r.Context(), id, req.Changes)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, res, http.StatusOK)
}

func (routes *Routes) getEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := routes.flights.GetEvent(r.Context(), id)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, e, http.StatusOK)
}

func (routes *Routes) updateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch flights.EventPatch
	if !common.DecodeJSON(w, r, &patch) {
		return
	}
	e, err := routes.flights.UpdateEvent(r.Context(), id, patch)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, e, http.StatusOK)
}

func (routes *Routes) deleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := routes.flights.DeleteEvent(r.Context(), id); err != nil {
		common.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
