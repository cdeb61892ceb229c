package sync

import (
	"context"
	"time"

	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/store"
)

// Request is the input of one handler call.
type Request struct {
	// RunID correlates every call and log line of one schedule run
	RunID     string
	Operation Operation
	Provider  *models.Provider
	Schedule  *models.Schedule

	// Client is built once per run by the service's ClientFactory; nil when
	// the service has none
	Client any

	// Kwargs are the schedule's parsed parameters
	Kwargs map[string]any

	// Data is the result of receive for process, and of prepare for send
	Data any

	store store.Store
	now   func() time.Time
}

// RunAs returns the user the run acts for: the provider's run-as user, or
// the provider name when unset.
func (r *Request) RunAs() string {
	if r.Provider.RunAs != "" {
		return r.Provider.RunAs
	}
	return r.Provider.Name
}

// Kwarg returns the named parameter as a string, or def when absent
func (r *Request) Kwarg(name, def string) string {
	v, ok := r.Kwargs[name]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

// Log records one exchange with the provider on the schedule's sync log. It
// commits on its own so the log survives a failed run.
func (r *Request) Log(ctx context.Context, direction models.Direction, headers, body string) error {
	return r.store.InTx(ctx, func(tx store.Tx) error {
		return tx.CreateSyncLog(ctx, &models.SyncLog{
			ScheduleID: r.Schedule.ID,
			Timestamp:  r.now().UTC(),
			Direction:  direction,
			Headers:    headers,
			Body:       body,
		})
	})
}
