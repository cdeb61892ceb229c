package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightops/flight-data-server/internal/api"
	"github.com/flightops/flight-data-server/internal/flights"
	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/registry"
	"github.com/flightops/flight-data-server/internal/store/memory"
	"github.com/flightops/flight-data-server/internal/sync"
	"github.com/flightops/flight-data-server/internal/sync/providers/dummy"
)

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func newServer(t *testing.T) http.Handler {
	t.Helper()

	st, err := memory.New()
	require.NoError(t, err)
	fs, err := flights.New(st)
	require.NoError(t, err)
	h := sync.NewHandlers()
	dummy.Register(h)

	return api.NewServer(api.Services{
		Flights:    fs,
		Dispatcher: sync.NewDispatcher(st, h),
		Registry:   registry.New(st),
		Store:      st,
	})
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func create(t *testing.T, h http.Handler, path string, body any) int64 {
	t.Helper()
	rr := do(t, h, http.MethodPost, path, body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[struct {
		ID int64 `json:"id"`
	}](t, rr).ID
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	rr := do(t, newServer(t), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "healthy", decode[map[string]string](t, rr)["status"])
}

func TestReadinessEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		ping           error
		expectedStatus int
		expectedBody   string
	}{
		{name: "store ready", expectedStatus: http.StatusOK, expectedBody: "ready"},
		{name: "store not ready", ping: errors.New("connection refused"), expectedStatus: http.StatusServiceUnavailable, expectedBody: "connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := api.NewServer(api.Services{
				Store: pingerFunc(func(context.Context) error { return tt.ping }),
			})
			rr := do(t, server, http.MethodGet, "/readiness", nil)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
		})
	}
}

func TestVersionAndMetricsEndpoints(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("flightd_up 1\n"))
	})
	server := api.NewServer(api.Services{Store: pingerFunc(func(context.Context) error { return nil })},
		api.WithMetricsHandler(metrics))

	rr := do(t, server, http.MethodGet, "/version", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, decode[map[string]string](t, rr)["go_version"])

	rr = do(t, server, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "flightd_up")
}

// seedFlight creates reference data and one flight through the API
func seedFlight(t *testing.T, h http.Handler) (flightID, out, in int64) {
	t.Helper()

	dep := create(t, h, "/v1/aerodromes", map[string]any{"icao": "eddf", "iata": "fra"})
	arr := create(t, h, "/v1/aerodromes", map[string]any{"icao": "EGLL"})
	ac := create(t, h, "/v1/aircraft", map[string]any{"registration": "D-ABCD"})
	out = create(t, h, "/v1/event-codes", map[string]any{"code": "OUT", "name": "Off block", "sequence": 1})
	in = create(t, h, "/v1/event-codes", map[string]any{"code": "IN", "name": "On block", "sequence": 4})
	create(t, h, "/v1/phases", map[string]any{"name": "Block", "start_code_id": out, "end_code_id": in})

	flightID = create(t, h, "/v1/flights", map[string]any{
		"date": "2024-05-01T00:00:00Z", "aircraft_id": ac, "departure_id": dep, "arrival_id": arr,
	})
	return flightID, out, in
}

func TestFlightLifecycle(t *testing.T) {
	t.Parallel()

	h := newServer(t)
	flightID, out, in := seedFlight(t, h)
	base := fmt.Sprintf("/v1/flights/%d", flightID)

	rr := do(t, h, http.MethodPost, base+"/events:batch", map[string]any{
		"changes": []map[string]any{
			{"op": "add", "event": map[string]any{"code_id": out, "time_kind": "A", "time": "2024-05-01T08:00:00Z"}},
			{"op": "add", "event": map[string]any{"code_id": in, "time_kind": "A", "time": "2024-05-01T09:30:00Z"}},
		},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	batch := decode[flights.BatchResult](t, rr)
	require.Len(t, batch.Events, 2)
	assert.Contains(t, batch.Narration, "Added: ")

	rr = do(t, h, http.MethodGet, base+"/durations/Block", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.InDelta(t, 1.5, decode[map[string]any](t, rr)["duration"], 1e-9)

	rr = do(t, h, http.MethodGet, base+"/durations/Block?kind=S", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, decode[map[string]any](t, rr)["duration"])

	rr = do(t, h, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	view := decode[flights.FlightView](t, rr)
	assert.InDelta(t, 1.5, view.BlockDuration, 1e-9)
	assert.Len(t, view.Durations, 1)

	// locked flights refuse event changes but can be unlocked
	rr = do(t, h, http.MethodPut, base+"/lock", map[string]bool{"locked": true})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodPatch, fmt.Sprintf("/v1/events/%d", batch.Events[1].ID),
		map[string]any{"time": "2024-05-01T10:00:00Z"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, h, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, h, http.MethodPatch, base, map[string]any{"locked": false})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodPatch, fmt.Sprintf("/v1/events/%d", batch.Events[1].ID),
		map[string]any{"time": "2024-05-01T10:00:00Z"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodGet, base+"/durations/Block", nil)
	assert.InDelta(t, 2.0, decode[map[string]any](t, rr)["duration"], 1e-9)

	rr = do(t, h, http.MethodGet, base+"/messages", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, int(decode[map[string]any](t, rr)["count"].(float64)))

	rr = do(t, h, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = do(t, h, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	h := newServer(t)
	flightID, out, _ := seedFlight(t, h)
	base := fmt.Sprintf("/v1/flights/%d", flightID)

	addOut := map[string]any{"code_id": out, "time_kind": "A", "time": "2024-05-01T08:00:00Z"}
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, base+"/events", addOut).Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		field  string
	}{
		{name: "duplicate slot", method: http.MethodPost, path: base + "/events", body: addOut, status: http.StatusUnprocessableEntity, field: "code_id"},
		{name: "missing icao", method: http.MethodPost, path: "/v1/aerodromes", body: map[string]any{"name": "Nowhere"}, status: http.StatusUnprocessableEntity, field: "icao"},
		{name: "duplicate icao", method: http.MethodPost, path: "/v1/aerodromes", body: map[string]any{"icao": "EDDF"}, status: http.StatusConflict},
		{name: "unknown flight", method: http.MethodGet, path: "/v1/flights/9999", status: http.StatusNotFound},
		{name: "bad id", method: http.MethodGet, path: "/v1/flights/abc", status: http.StatusBadRequest},
		{name: "bad kind", method: http.MethodGet, path: base + "/durations/Block?kind=X", status: http.StatusBadRequest},
		{name: "unknown field", method: http.MethodPost, path: "/v1/flights", body: map[string]any{"tail": "x"}, status: http.StatusBadRequest},
		{name: "empty batch", method: http.MethodPost, path: base + "/events:batch", body: map[string]any{"changes": []any{}}, status: http.StatusBadRequest},
		{name: "registry miss", method: http.MethodGet, path: "/v1/registry?provider=1&model=flight.aircraft&external_id=x", status: http.StatusNotFound},
		{name: "registry needs provider", method: http.MethodGet, path: "/v1/registry?model=flight.aircraft&external_id=x", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
			if tt.field != "" {
				assert.Equal(t, tt.field, decode[map[string]string](t, rr)["field"])
			}
		})
	}
}

func TestSchedulesAndRegistry(t *testing.T) {
	t.Parallel()

	h := newServer(t)

	providerID := create(t, h, "/v1/providers", map[string]any{"name": "Ops", "service": dummy.Service, "active": true})
	scheduleID := create(t, h, "/v1/schedules", map[string]any{
		"provider_id": providerID, "name": "Crew", "model": models.ModelCrew, "active": true, "kwargs": "{'limit': 5}",
	})

	rr := do(t, h, http.MethodPost, "/v1/schedules", map[string]any{
		"provider_id": providerID, "name": "Bad", "model": models.ModelCrew, "kwargs": "import os",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	// run times belong to the dispatcher
	rr = do(t, h, http.MethodPost, "/v1/schedules", map[string]any{
		"provider_id": providerID, "name": "Backdated", "model": models.ModelCrew, "active": true,
		"last_run": "2020-01-01T00:00:00Z", "last_success": "2020-01-01T00:00:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, fmt.Sprintf("/v1/schedules/%d", scheduleID), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, decode[models.Schedule](t, rr).LastRun)

	rr = do(t, h, http.MethodPost, fmt.Sprintf("/v1/schedules/%d:run", scheduleID), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodGet, fmt.Sprintf("/v1/schedules/%d", scheduleID), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotNil(t, decode[models.Schedule](t, rr).LastSuccess)

	rr = do(t, h, http.MethodPost, "/v1/schedules:run", map[string]any{"ids": []int64{scheduleID}})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, fmt.Sprintf("/v1/providers/%d/messages", providerID), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Data sync successful for schedule: Crew")

	rr = do(t, h, http.MethodGet, fmt.Sprintf("/v1/schedules?provider_id=%d", providerID), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Ops (dummy): Crew")

	create(t, h, "/v1/aerodromes", map[string]any{"icao": "LFPG"})

	reqBody := map[string]any{
		"provider_id": providerID, "model": models.ModelAerodrome, "external_id": "ext-1",
		"values": map[string]any{"icao": "KJFK", "name": "John F Kennedy"},
	}
	rr = do(t, h, http.MethodPost, "/v1/registry", reqBody)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	first := decode[map[string]any](t, rr)["local_id"]

	rr = do(t, h, http.MethodPost, "/v1/registry", reqBody)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, first, decode[map[string]any](t, rr)["local_id"])

	rr = do(t, h, http.MethodGet, fmt.Sprintf("/v1/registry?provider=%d&model=%s&external_id=ext-1", providerID, models.ModelAerodrome), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, first, decode[map[string]any](t, rr)["local_id"])

	reqBody["model"] = models.ModelCrew
	rr = do(t, h, http.MethodPost, "/v1/registry", reqBody)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/aerodromes", nil)
	assert.Equal(t, 2, int(decode[map[string]any](t, rr)["count"].(float64)))
}
