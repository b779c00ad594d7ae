package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// Kind distinguishes how an identity was derived.
type Kind string

const (
	// KindUser identifies an authenticated platform user.
	KindUser Kind = "user"

	// KindAPIKey identifies a hashed bearer/API key.
	KindAPIKey Kind = "api_key"

	// KindIP identifies an unauthenticated caller by IP address.
	KindIP Kind = "ip"
)

// Identity is the rate-limited principal. It is immutable for the lifetime
// of a request and acts as the partition key for all counters.
type Identity struct {
	Kind  Kind
	Value string
}

// Key returns the counter partition key, e.g. "user:42" or "ip:203.0.113.9".
func (id Identity) Key() string {
	return string(id.Kind) + ":" + id.Value
}

// Anonymous reports whether the identity is IP-derived. Anonymous identities
// always receive the free tier and never match exceptions.
func (id Identity) Anonymous() bool {
	return id.Kind == KindIP
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool {
	return id.Value == ""
}

// Resolve picks the identity for a request in priority order:
// authenticated user, then hashed API key, then caller IP.
func Resolve(userID, apiKey, remoteIP string) Identity {
	if userID != "" {
		return Identity{Kind: KindUser, Value: userID}
	}
	if apiKey != "" {
		return Identity{Kind: KindAPIKey, Value: HashAPIKey(apiKey)}
	}
	return Identity{Kind: KindIP, Value: remoteIP}
}

// FromRequest resolves the identity from an HTTP request.
//
// The authenticated user ID is read from the X-User-ID header (set by the
// auth layer upstream of the admission gateway, never by the client). API
// keys are accepted from Authorization: Bearer or X-API-Key.
func FromRequest(r *http.Request) Identity {
	userID := r.Header.Get("X-User-ID")

	apiKey := r.Header.Get("X-API-Key")
	if apiKey == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			apiKey = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
	}

	return Resolve(userID, apiKey, ClientIP(r))
}

// HashAPIKey returns a truncated SHA-256 digest of an API key. Raw keys are
// never used as counter keys or written to the ledger.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}

// ClientIP extracts the caller IP, preferring the left-most entry of
// X-Forwarded-For when present.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
