// Package ledger is the append-only audit and billing record of admission
// decisions.
//
// One record is written per request attempt (allowed, denied, or billed as
// overage), so billing can reconcile overage charges and abuse analysis can
// see denials. Records are never updated in place.
//
// Storage backends: MemoryStorage for tests and SQLiteStorage for durable
// single-file persistence. The Pruner deletes records past the retention
// period on a cron schedule; the ledger is an operational audit trail, not
// a data warehouse.
package ledger
