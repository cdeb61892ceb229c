package common

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/flightops/flight-data-server/internal/logger"
	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/registry"
	"github.com/flightops/flight-data-server/internal/sync"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// WriteJSONResponse writes a JSON response with the given data
func WriteJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("Failed to encode JSON response: %v", err)
	}
}

// WriteErrorResponse writes a standardized error response
func WriteErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	WriteJSONResponse(w, ErrorResponse{Error: message}, statusCode)
}

// StatusFor maps a service error to its HTTP status.
// Lock errors are checked before validation errors since they wrap them.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrLocked):
		return http.StatusConflict
	case sync.IsConfigurationError(err), errors.Is(err, registry.ErrUnsupportedModel):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrNotFound), errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err with the status StatusFor picks. Internal errors are
// logged and replaced by a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		logger.Errorw("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		WriteErrorResponse(w, "internal server error", status)
		return
	}

	resp := ErrorResponse{Error: err.Error()}
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	WriteJSONResponse(w, resp, status)
}

// DecodeJSON reads the request body into out, writing a 400 response and
// returning false when it is not valid JSON.
func DecodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		WriteErrorResponse(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
