// Package concurrency tracks in-flight request counts per identity.
//
// Acquire atomically increments the identity's counter and returns the
// pre-increment value; the caller compares that against the tier's
// concurrency cap. Release decrements, never below zero, and must fire
// exactly once per Acquire; call sites guarantee that with a deferred
// cleanup so the ledger stays balanced even when a request panics or is
// cancelled.
//
// A five-minute TTL on idle counters bounds drift from callers that crashed
// before releasing. Counters are partitioned purely by identity key; there
// is no cross-identity locking.
package concurrency
