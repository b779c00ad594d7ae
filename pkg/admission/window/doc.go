// Package window maintains sliding-window cost totals per identity.
//
// # Overview
//
// Two independent windows run per identity: hourly (3600s, 60s sub-buckets)
// and minutely (60s, 1s sub-buckets). Both are genuine sliding windows:
// usage is accumulated into fine-grained sub-buckets and summed over the
// trailing window, so contributions age out continuously. Fixed reset
// buckets would let a client double its budget by straddling a boundary;
// that shape is deliberately not offered here.
//
// # Backends
//
// The Store interface decouples the admission engine from the backing
// counter store. MemoryStore serves single-instance deployments with
// mutex-guarded in-process counters; RedisStore shares counters across
// service instances using pipelined atomic hash increments. Either way,
// concurrent writers for one identity never lose increments to a
// read-modify-write race.
//
// # Retry hints
//
// Usage.TimeRemaining is the time until the oldest contributing sub-bucket
// exits the window, which is the earliest moment a denied client could see
// capacity again. It is surfaced upward as the Retry-After hint.
package window
