package v1

import (
	"net/http"

	"github.com/flightops/flight-data-server/internal/api/common"
)

// RegistryEntryResponse is what a registry lookup returns
type RegistryEntryResponse struct {
	ProviderID int64  `json:"provider_id"`
	Model      string `json:"model"`
	ExternalID string `json:"external_id"`
	LocalID    int64  `json:"local_id"`
}

// GetOrCreateRequest is the body of POST /v1/registry
type GetOrCreateRequest struct {
	ProviderID         int64          `json:"provider_id"`
	Model              string         `json:"model"`
	ExternalID         string         `json:"external_id"`
	ExternalProviderID string         `json:"external_provider_id,omitempty"`
	Values             map[string]any `json:"values,omitempty"`
}

// lookupRegistry handles GET /v1/registry?provider=&model=&external_id=
// and answers 404 when nothing is registered.
func (routes *Routes) lookupRegistry(w http.ResponseWriter, r *http.Request) {
	providerID, err := common.QueryID(r, "provider")
	if err != nil || providerID == 0 {
		common.WriteErrorResponse(w, "provider must be a positive integer", http.StatusBadRequest)
		return
	}
	query := r.URL.Query()
	model := query.Get("model")
	externalID := query.Get("external_id")
	if model == "" || externalID == "" {
		common.WriteErrorResponse(w, "model and external_id are required", http.StatusBadRequest)
		return
	}

	id, err := routes.registry.RequireLocalID(r.Context(), providerID, model, externalID)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, RegistryEntryResponse{
		ProviderID: providerID,
		Model:      model,
		ExternalID: externalID,
		LocalID:    id,
	}, http.StatusOK)
}

func (routes *Routes) getOrCreateRegistry(w http.ResponseWriter, r *http.Request) {
	var req GetOrCreateRequest
	if !common.DecodeJSON(w, r, &req) {
		return
	}
	if req.ProviderID <= 0 {
		common.WriteErrorResponse(w, "provider_id must be a positive integer", http.StatusBadRequest)
		return
	}
	if _, err := routes.dispatcher.GetProvider(r.Context(), req.ProviderID); err != nil {
		common.WriteError(w, r, err)
		return
	}

	id, err := routes.registry.GetOrCreateLocalID(r.Context(),
		req.ProviderID, req.Model, req.ExternalID, req.ExternalProviderID, req.Values)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, RegistryEntryResponse{
		ProviderID: req.ProviderID,
		Model:      req.Model,
		ExternalID: req.ExternalID,
		LocalID:    id,
	}, http.StatusOK)
}
