// Package recorder turns admission results into durable usage facts and
// counter updates.
//
// Record runs after every request attempt, allowed or not. It updates both
// sliding windows synchronously (the next decision must see this attempt),
// then hands the ledger write to a background worker so the request path
// never blocks on ledger I/O. High-cost operations and hard denials without
// overage additionally emit structured log entries as abuse signals.
package recorder
