// Package billing defines the subscription collaborator consumed by the
// admission engine.
//
// Admission control never talks to the billing provider directly. It only
// needs three facts per identity: which subscription tier it is on, whether
// its plan permits billed overage past the hourly cap, and what a given
// amount of excess usage costs. The Subscriptions interface captures exactly
// that; the production implementation lives with the billing service.
package billing
