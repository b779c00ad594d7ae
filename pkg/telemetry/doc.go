// Package telemetry groups Saturn's observability concerns.
//
// The logging subpackage configures the process-wide structured logger
// and carries request-scoped fields through context. Prometheus metrics
// live with the code they instrument (see the admission package) and are
// exposed by the gateway's metrics endpoint.
package telemetry
