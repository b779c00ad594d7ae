// Package identity resolves the rate-limited principal for a request.
//
// Every inbound request is attributed to exactly one Identity, which becomes
// the partition key for all usage counters. Resolution follows a fixed
// priority order:
//
//  1. Authenticated user ID (set by the platform's auth layer)
//  2. API key (hashed before use, never stored raw)
//  3. Caller IP address
//
// Identities are resolved fresh per request and never persisted. An
// IP-derived identity is considered anonymous: it always receives the lowest
// tier and rate limit exceptions never apply to it.
package identity
