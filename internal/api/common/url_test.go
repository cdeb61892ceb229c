package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/registry"
	"github.com/flightops/flight-data-server/internal/sync"
)

func withParam(name, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(name, value)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestGetAndValidateURLParam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		paramValue string
		wantValue  string
		wantErrMsg string
	}{
		{name: "plain", paramValue: "Block", wantValue: "Block"},
		{name: "url-encoded slash", paramValue: "taxi%2Fout", wantValue: "taxi/out"},
		{name: "empty", paramValue: "", wantErrMsg: "phase cannot be empty"},
		{name: "whitespace", paramValue: "taxi%20out", wantErrMsg: "phase cannot contain whitespace"},
		{name: "bad encoding", paramValue: "%zz", wantErrMsg: "invalid URL encoding in phase"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := GetAndValidateURLParam(withParam("phase", tt.paramValue), "phase")
			if tt.wantErrMsg != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErrMsg, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantValue, got)
		})
	}
}

func TestIDParam(t *testing.T) {
	t.Parallel()

	id, err := IDParam(withParam("id", "42"), "id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"abc", "0", "-3", ""} {
		_, err := IDParam(withParam("id", bad), "id")
		assert.Error(t, err, bad)
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "lock", err: &models.LockError{Action: models.ActionWrite, Kind: "flight", ID: 1}, want: http.StatusConflict},
		{name: "validation", err: models.NewValidationError("icao", "is required", nil), want: http.StatusUnprocessableEntity},
		{name: "duplicate event", err: fmt.Errorf("change 2: %w", models.ErrDuplicateEvent), want: http.StatusUnprocessableEntity},
		{name: "not found", err: fmt.Errorf("flight 9: %w", models.ErrNotFound), want: http.StatusNotFound},
		{name: "registry miss", err: fmt.Errorf("x: %w", registry.ErrNotFound), want: http.StatusNotFound},
		{name: "configuration", err: &sync.ConfigurationError{Service: "x", Operation: sync.OpReceive, Model: models.ModelFlight, Err: sync.ErrHandlerNotRegistered}, want: http.StatusBadRequest},
		{name: "unsupported model", err: registry.ErrUnsupportedModel, want: http.StatusBadRequest},
		{name: "conflict", err: models.ErrConflict, want: http.StatusConflict},
		{name: "other", err: errors.New("disk on fire"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}
