package v1

import (
	"net/http"
	"time"

	"github.com/flightops/flight-data-server/internal/api/common"
	"github.com/flightops/flight-data-server/internal/models"
)

// ProviderRequest is the body of POST /v1/providers. The password is write-only.
type ProviderRequest struct {
	models.Provider
	Password string `json:"password,omitempty"`
}

// ScheduleRequest is the body of POST /v1/schedules. Run times are owned by
// the dispatcher and cannot be set.
type ScheduleRequest struct {
	ProviderID     int64               `json:"provider_id"`
	Name           string              `json:"name"`
	Model          string              `json:"model"`
	Active         bool                `json:"active"`
	IntervalNumber int                 `json:"interval_number,omitempty"`
	IntervalType   models.IntervalType `json:"interval_type,omitempty"`
	Kwargs         string              `json:"kwargs,omitempty"`
}

// RunRequest is the body of POST /v1/schedules:run
type RunRequest struct {
	IDs []int64 `json:"ids"`
}

// RunResponse reports a manual run. Provider failures do not fail the
// request; they show up on the schedule's last_success and messages.
type RunResponse struct {
	RunCount int `json:"run_count"`
}

func (routes *Routes) createProvider(w http.ResponseWriter, r *http.Request) {
	var req ProviderRequest
	if !common.DecodeJSON(w, r, &req) {
		return
	}
	p := req.Provider
	p.Password = req.Password
	if err := routes.dispatcher.CreateProvider(r.Context(), &p); err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, &p, http.StatusCreated)
}

func (routes *Routes) listProviders(w http.ResponseWriter, r *http.Request) {
	listHandler(routes.dispatcher.ListProviders)(w, r)
}

func (routes *Routes) listProviderMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	out, err := routes.dispatcher.ListProviderMessages(r.Context(), id)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, list(out), http.StatusOK)
}

// listSchedules handles GET /v1/schedules?provider_id=
func (routes *Routes) listSchedules(w http.ResponseWriter, r *http.Request) {
	providerID, err := common.QueryID(r, "provider_id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	out, err := routes.dispatcher.ListSchedules(r.Context(), providerID)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, list(out), http.StatusOK)
}

func (routes *Routes) createSchedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if !common.DecodeJSON(w, r, &req) {
		return
	}
	s := models.Schedule{
		ProviderID:     req.ProviderID,
		Name:           req.Name,
		Model:          req.Model,
		Active:         req.Active,
		IntervalNumber: req.IntervalNumber,
		IntervalType:   req.IntervalType,
		Kwargs:         req.Kwargs,
	}
	if err := routes.dispatcher.CreateSchedule(r.Context(), &s); err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, &s, http.StatusCreated)
}

func (routes *Routes) getSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s, err := routes.dispatcher.GetSchedule(r.Context(), id)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, s, http.StatusOK)
}

func (routes *Routes) runSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := routes.dispatcher.RunSchedule(r.Context(), id); err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, RunResponse{RunCount: 1}, http.StatusOK)
}

func (routes *Routes) runSchedules(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if !common.DecodeJSON(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		common.WriteErrorResponse(w, "ids cannot be empty", http.StatusBadRequest)
		return
	}
	if err := routes.dispatcher.RunSchedules(r.Context(), req.IDs); err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, RunResponse{RunCount: len(req.IDs)}, http.StatusOK)
}

func (routes *Routes) runDue(w http.ResponseWriter, r *http.Request) {
	n, err := routes.dispatcher.RunDue(r.Context(), time.Now())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, RunResponse{RunCount: n}, http.StatusOK)
}

func (routes *Routes) listLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	out, err := routes.dispatcher.ListLogs(r.Context(), id)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, list(out), http.StatusOK)
}
