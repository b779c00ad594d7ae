// Saturn is the admission gateway for the Clubline API platform.
//
// It sits in front of the API and decides, per request, whether the
// caller's subscription tier permits it: allow, deny with a retry hint,
// or allow with billed overage. Decisions weigh endpoints by cost,
// track true sliding-window usage per identity, cap concurrent
// requests, and honor per-identity limit exceptions.
//
// Usage:
//
//	# Start the gateway with default configuration
//	saturn run
//
//	# Start with a custom configuration file
//	saturn run --config /etc/saturn/saturn.yaml
//
//	# Validate a configuration file without starting
//	saturn validate --config saturn.yaml
//
//	# Inspect the usage ledger
//	saturn ledger list --identity user:42 --limit 20
//
//	# Show version information
//	saturn version
package main

func main() {
	Execute()
}
