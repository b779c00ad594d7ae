// Package storage persists window counter snapshots across restarts.
//
// Counters are live in-process (or in Redis) state; this package exists so a
// single-instance deployment using the in-memory window store does not zero
// everyone's usage on every deploy. Snapshots are written periodically and
// loaded once at startup; buckets that aged out while the process was down
// are dropped by the window store on restore.
//
// Two backends are provided: MemoryBackend (tests, throwaway environments)
// and SQLiteBackend (durable single-file storage).
package storage
