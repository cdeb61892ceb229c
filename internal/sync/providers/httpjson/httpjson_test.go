package httpjson

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/registry"
	"github.com/flightops/flight-data-server/internal/store/memory"
	"github.com/flightops/flight-data-server/internal/sync"
)

func fastRetry(tries uint) ClientOption {
	return WithRetry(tries, func() backoff.BackOff {
		return backoff.NewConstantBackOff(time.Millisecond)
	})
}

type fixture struct {
	dispatcher *sync.Dispatcher
	registry   *registry.Registry
	provider   *models.Provider
}

func newFixture(t *testing.T, apiBase string) *fixture {
	t.Helper()

	st, err := memory.New()
	require.NoError(t, err)
	reg := registry.New(st)
	h := sync.NewHandlers()
	Register(h, reg, fastRetry(3))
	d := sync.NewDispatcher(st, h)

	p := &models.Provider{
		Name:     "Fleet API",
		Service:  Service,
		Active:   true,
		APIBase:  apiBase,
		Username: "ops",
		Password: "secret",
	}
	require.NoError(t, d.CreateProvider(context.Background(), p))
	return &fixture{dispatcher: d, registry: reg, provider: p}
}

func (fx *fixture) schedule(t *testing.T, model, kwargs string) *models.Schedule {
	t.Helper()
	s := &models.Schedule{ProviderID: fx.provider.ID, Name: "Import", Model: model, Active: true, Kwargs: kwargs}
	require.NoError(t, fx.dispatcher.CreateSchedule(context.Background(), s))
	return s
}

func TestRegister_SkipsModelsWithoutCreator(t *testing.T) {
	t.Parallel()

	st, err := memory.New()
	require.NoError(t, err)
	h := sync.NewHandlers()
	Register(h, registry.New(st))

	_, err = h.Resolve(Service, sync.OpReceive, models.ModelAircraft)
	assert.NoError(t, err)
	_, err = h.Resolve(Service, sync.OpReceive, models.ModelCrew)
	assert.ErrorIs(t, err, sync.ErrHandlerNotRegistered)
}

func TestRunSchedule_ImportsAndSends(t *testing.T) {
	t.Parallel()

	var posted []byte
	var runAs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		runAs = append(runAs, r.Header.Get(RunAsHeader))
		user, pass, ok := r.BasicAuth()
		if !ok || user != "ops" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/fleet":
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"data":{"items":[
				{"ref":"AC-1","registration":"d-abcd","model_code":"A320"},
				{"ref":"AC-2","registration":"D-EFGH"}
			]}}`)
		case r.Method == http.MethodPost && r.URL.Path == "/ack":
			posted, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusAccepted)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	fx := newFixture(t, srv.URL)
	s := fx.schedule(t, models.ModelAircraft,
		`{'path': 'fleet', 'items_path': 'data.items', 'id_field': 'ref', 'send_path': '/ack'}`)

	require.NoError(t, fx.dispatcher.RunSchedule(ctx, s.ID))

	got, err := fx.dispatcher.GetSchedule(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastSuccess)

	entries, err := fx.registry.List(ctx, fx.provider.ID, models.ModelAircraft)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "Fleet API", e.ExternalProviderID)
	}

	id, err := fx.registry.RequireLocalID(ctx, fx.provider.ID, models.ModelAircraft, "AC-1")
	require.NoError(t, err)
	assert.NotZero(t, id)

	var doc outboundDocument
	require.NoError(t, json.Unmarshal(posted, &doc))
	assert.Equal(t, models.ModelAircraft, doc.Model)
	assert.Len(t, doc.Entries, 2)

	logs, err := fx.dispatcher.ListLogs(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	directions := []models.Direction{logs[0].Direction, logs[1].Direction}
	assert.ElementsMatch(t, []models.Direction{models.DirectionInbound, models.DirectionOutbound}, directions)

	// without a run-as user requests act for the provider itself
	assert.Equal(t, []string{"Fleet API", "Fleet API"}, runAs)

	// a second run maps the same items to the same records
	require.NoError(t, fx.dispatcher.RunSchedule(ctx, s.ID))
	again, err := fx.registry.RequireLocalID(ctx, fx.provider.ID, models.ModelAircraft, "AC-1")
	require.NoError(t, err)
	assert.Equal(t, id, again)
	entries, err = fx.registry.List(ctx, fx.provider.ID, models.ModelAircraft)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRunSchedule_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		kwargs  string
		calls   int32
		logs    int
		message string
	}{
		{
			name:    "client error is not retried",
			status:  http.StatusForbidden,
			calls:   1,
			logs:    1,
			message: "unexpected status 403",
		},
		{
			name:    "server error is retried",
			status:  http.StatusBadGateway,
			calls:   3,
			logs:    1,
			message: "unexpected status 502",
		},
		{
			name:    "invalid json",
			status:  http.StatusOK,
			body:    `not json`,
			calls:   1,
			logs:    1,
			message: "not valid JSON",
		},
		{
			name:    "items not a list",
			status:  http.StatusOK,
			body:    `{"items":{}}`,
			kwargs:  `{'items_path': 'items'}`,
			calls:   1,
			logs:    1,
			message: "not a JSON array",
		},
		{
			name:    "item without id",
			status:  http.StatusOK,
			body:    `[{"icao":"EDDF"}]`,
			calls:   1,
			logs:    1,
			message: `item 0 has no "id"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			t.Cleanup(srv.Close)

			ctx := context.Background()
			fx := newFixture(t, srv.URL)
			s := fx.schedule(t, models.ModelAerodrome, tt.kwargs)

			// provider failures are recorded, not returned
			require.NoError(t, fx.dispatcher.RunSchedule(ctx, s.ID))
			assert.Equal(t, tt.calls, calls.Load())

			got, err := fx.dispatcher.GetSchedule(ctx, s.ID)
			require.NoError(t, err)
			assert.NotNil(t, got.LastRun)
			assert.Nil(t, got.LastSuccess)

			msgs, err := fx.dispatcher.ListProviderMessages(ctx, fx.provider.ID)
			require.NoError(t, err)
			require.NotEmpty(t, msgs)
			assert.Contains(t, msgs[len(msgs)-1].Body, tt.message)

			// the failing exchange is still on the sync log
			logs, err := fx.dispatcher.ListLogs(ctx, s.ID)
			require.NoError(t, err)
			require.Len(t, logs, tt.logs)
			assert.Equal(t, models.DirectionInbound, logs[0].Direction)
			assert.Contains(t, logs[0].Headers, "Status:")
		})
	}
}

func TestClient_RunAsHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		user string
		want string
	}{
		{name: "set", user: "dispatch", want: "dispatch"},
		{name: "empty leaves header unset", user: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get(RunAsHeader)
				_, _ = io.WriteString(w, `[]`)
			}))
			t.Cleanup(srv.Close)

			c, err := NewClient(&models.Provider{Name: "p", APIBase: srv.URL}, fastRetry(1))
			require.NoError(t, err)
			_, err = c.Get(context.Background(), "items", OnBehalfOf(tt.user))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_ReturnsFailedResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"no such resource"}`)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(&models.Provider{Name: "p", APIBase: srv.URL}, fastRetry(3))
	require.NoError(t, err)

	resp, err := c.Get(context.Background(), "missing")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.JSONEq(t, `{"error":"no such resource"}`, string(resp.Body))
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		apiBase string
		wantErr string
	}{
		{name: "valid", apiBase: "https://api.example.com/v2"},
		{name: "missing", wantErr: "has no api_base"},
		{name: "bad scheme", apiBase: "ftp://files.example.com", wantErr: "scheme must be http or https"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, err := NewClient(&models.Provider{Name: "p", APIBase: tt.apiBase})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "https://api.example.com/v2/fleet/list", c.resolve("/fleet/list"))
		})
	}
}
