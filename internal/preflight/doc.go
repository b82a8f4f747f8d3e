// Package preflight provides readiness checks for the paths and services
// ratingsync depends on.
//
// The CLI "ratingsync status" command runs RunAll to display health before an
// operator starts the daemon. Provider checks are skipped when the provider's
// capability is disabled.
package preflight
