// Package server provides the HTTP admission gateway. Every request is
// resolved to an identity, judged by the admission controller, and either
// proxied to the upstream API or answered with a 429 carrying rate-limit
// headers and a retry hint.
package server
