// Package sync runs data synchronization schedules against external providers.
//
// A provider is one configured external system, identified by its service
// name. A schedule targets one model of that provider. Running a schedule
// dispatches four operations in order:
//
//   - receive: fetch data from the provider
//   - process: turn the received data into local records
//   - prepare: collect local data to send back
//   - send: deliver the prepared data
//
// # Handlers
//
// Each (service, operation, model) triple is served by a Handler registered
// on a Handlers set, and each service may register a ClientFactory that builds
// the client shared by the four operations of one run. Missing handlers are
// configuration errors: Validate reports them for every stored schedule at
// startup, and RunSchedule refuses to start a run with one missing.
//
// # Failure handling
//
// A failure inside a run (client construction, a handler error or panic, or
// kwargs that are not a mapping) is a ProviderError. It is recorded on the
// schedule's last run time and posted to the provider's audit trail, but it is
// not returned: one failing provider never aborts its siblings in a batch.
// Configuration errors and store failures are returned.
package sync
