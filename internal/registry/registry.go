package registry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flightops/flight-data-server/internal/logger"
	"github.com/flightops/flight-data-server/internal/models"
	"github.com/flightops/flight-data-server/internal/otel"
	"github.com/flightops/flight-data-server/internal/store"
)

var (
	// ErrNotFound is returned by RequireLocalID when no entry exists
	ErrNotFound = errors.New("registry entry not found")

	// ErrUnsupportedModel is returned when no record creator exists for a model
	ErrUnsupportedModel = errors.New("no record creator for model")
)

// Registry resolves external ids to local record ids.
type Registry struct {
	store    store.Store
	creators map[string]RecordCreator
	tracer   trace.Tracer
}

// Option configures a Registry
type Option func(*Registry)

// WithCreator registers or replaces the record creator of model
func WithCreator(model string, c RecordCreator) Option {
	return func(r *Registry) {
		r.creators[model] = c
	}
}

// WithTracer sets the OpenTelemetry tracer. Tracing is disabled when unset.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Registry) {
		r.tracer = tracer
	}
}

// New creates a registry over s with the default record creators
func New(s store.Store, opts ...Option) *Registry {
	r := &Registry{store: s, creators: DefaultCreators()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Supports reports whether local records of model can be created
func (r *Registry) Supports(model string) bool {
	_, ok := r.creators[model]
	return ok
}

// GetLocalID looks up the local id registered for the external id. The
// boolean is false when there is no entry. Nothing is written.
func (r *Registry) GetLocalID(ctx context.Context, providerID int64, model, externalID string) (int64, bool, error) {
	var (
		id    int64
		found bool
	)
	err := r.store.InTx(ctx, func(tx store.Tx) error {
		entry, err := tx.FindRegistryEntry(ctx, providerID, model, externalID)
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		id, found = entry.LocalID, true
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up registry entry: %w", err)
	}
	return id, found, nil
}

// RequireLocalID is GetLocalID returning ErrNotFound on a miss
func (r *Registry) RequireLocalID(ctx context.Context, providerID int64, model, externalID string) (int64, error) {
	id, ok, err := r.GetLocalID(ctx, providerID, model, externalID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%s %q of provider %d: %w", model, externalID, providerID, ErrNotFound)
	}
	return id, nil
}

// GetOrCreateLocalID returns the local id registered for the external id,
// creating the local record from values and registering it when there is none.
func (r *Registry) GetOrCreateLocalID(
	ctx context.Context,
	providerID int64,
	model, externalID, externalProviderID string,
	values map[string]any,
) (int64, error) {
	ctx, span := otel.StartSpan(ctx, r.tracer, "registry.GetOrCreateLocalID",
		trace.WithAttributes(
			otel.AttrProviderID.Int64(providerID),
			otel.AttrModel.String(model),
			attribute.String("sync.external_id", externalID),
		))
	defer span.End()

	if externalID == "" {
		err := models.NewValidationError("external_id", "is required", nil)
		otel.RecordError(span, err)
		return 0, err
	}

	id, created, err := r.getOrCreate(ctx, providerID, model, externalID, externalProviderID, values)
	if errors.Is(err, models.ErrConflict) {
		// A concurrent caller registered the same external id first
		id, created, err = r.getOrCreate(ctx, providerID, model, externalID, externalProviderID, values)
	}
	if err != nil {
		otel.RecordError(span, err)
		return 0, err
	}

	if created {
		logger.Debugw("Registered external record",
			"provider_id", providerID,
			"model", model,
			"external_id", externalID,
			"local_id", id,
		)
	}
	return id, nil
}

func (r *Registry) getOrCreate(
	ctx context.Context,
	providerID int64,
	model, externalID, externalProviderID string,
	values map[string]any,
) (id int64, created bool, err error) {
	err = r.store.InTx(ctx, func(tx store.Tx) error {
		entry, err := tx.FindRegistryEntry(ctx, providerID, model, externalID)
		if err == nil {
			id = entry.LocalID
			return nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return err
		}

		create, ok := r.creators[model]
		if !ok {
			return fmt.Errorf("%w %q", ErrUnsupportedModel, model)
		}
		localID, err := create(ctx, tx, values)
		if err != nil {
			return fmt.Errorf("failed to create %s record: %w", model, err)
		}

		if err := tx.CreateRegistryEntry(ctx, &models.RegistryEntry{
			ProviderID:         providerID,
			Model:              model,
			LocalID:            localID,
			ExternalID:         externalID,
			ExternalProviderID: externalProviderID,
		}); err != nil {
			return err
		}
		id, created = localID, true
		return nil
	})
	return id, created, err
}

// List returns the provider's entries for model, or for every model when model is empty
func (r *Registry) List(ctx context.Context, providerID int64, model string) ([]models.RegistryEntry, error) {
	var out []models.RegistryEntry
	err := r.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListRegistryEntries(ctx, providerID, model)
		return err
	})
	return out, err
}
