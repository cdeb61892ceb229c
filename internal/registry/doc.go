// Package registry maps external record identifiers to local records.
//
// Each sync provider identifies records by its own ids. The registry keeps one
// entry per (provider, model, external id) pointing at the local record that
// represents it, so repeated syncs update the same local record instead of
// creating duplicates.
//
// # Lookup and creation
//
// GetLocalID is a pure lookup. GetOrCreateLocalID returns the existing local
// id when the entry exists; otherwise it creates a local record of the model
// from the supplied values and registers it, all in one transaction. The first
// write wins: a second call with different values returns the first record.
//
//	id, err := reg.GetOrCreateLocalID(ctx, providerID, models.ModelAircraft,
//	    "ext-42", "acme", map[string]any{"registration": "D-ABCD"})
//
// # Record creators
//
// Local records are built by a RecordCreator registered for the model. Values
// are decoded with mapstructure into the model's record type, so the keys
// follow the record's mapstructure tags. A model without a creator fails with
// ErrUnsupportedModel.
package registry
