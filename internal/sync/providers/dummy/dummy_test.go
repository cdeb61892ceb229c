package dummy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/store/memory"
	"github.com/flightops/flight-data-server/internal/sync"
)

func TestRegister(t *testing.T) {
	t.Parallel()

	h := sync.NewHandlers()
	Register(h)

	assert.Equal(t, []string{Service}, h.Services())
	for _, model := range models.SyncModels {
		for _, op := range sync.Operations {
			_, err := h.Resolve(Service, op, model)
			assert.NoError(t, err, "%s/%s", op, model)
		}
	}
}

func TestRunSchedule(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st, err := memory.New()
	require.NoError(t, err)
	h := sync.NewHandlers()
	Register(h)
	d := sync.NewDispatcher(st, h)

	p := &models.Provider{Name: "Test", Service: Service, Active: true}
	require.NoError(t, d.CreateProvider(ctx, p))
	s := &models.Schedule{ProviderID: p.ID, Name: "Crew", Model: models.ModelCrew, Active: true}
	require.NoError(t, d.CreateSchedule(ctx, s))

	require.NoError(t, d.Validate(ctx))
	require.NoError(t, d.RunSchedule(ctx, s.ID))

	got, err := d.GetSchedule(ctx, s.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastSuccess)
}
