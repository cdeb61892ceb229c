// Package audit posts human-readable messages onto a record's audit trail.
package audit

import (
	"context"
	"time"

	"github.com/flightops/flight-data-server/internal/logger"
	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/store"
)

//go:generate mockgen -destination=mocks/mock_sink.go -package=mocks -source=audit.go Sink

// Sink receives audit messages.
type Sink interface {
	// Post appends body to the trail of the record (kind, recordID)
	Post(ctx context.Context, kind string, recordID int64, body string) error
}

// StoreSink writes messages to the record store in their own transaction.
type StoreSink struct {
	store store.Store
	now   func() time.Time
}

// NewStoreSink creates a sink backed by s
func NewStoreSink(s store.Store) *StoreSink {
	return &StoreSink{store: s, now: time.Now}
}

// Post implements Sink
func (s *StoreSink) Post(ctx context.Context, kind string, recordID int64, body string) error {
	return s.store.InTx(ctx, func(tx store.Tx) error {
		return tx.CreateMessage(ctx, &models.Message{
			RecordKind: kind,
			RecordID:   recordID,
			Body:       body,
			CreatedAt:  s.now().UTC(),
		})
	})
}

// Notify posts to sink and only logs a failure. A nil sink is a no-op.
func Notify(ctx context.Context, sink Sink, kind string, recordID int64, body string) {
	if sink == nil {
		return
	}
	if err := sink.Post(ctx, kind, recordID, body); err != nil {
		logger.Warnw("Failed to post audit message",
			"kind", kind,
			"record_id", recordID,
			"error", err,
		)
	}
}
