// Package daemon owns the ratingsync process lifecycle.
//
// A Session wires configuration, the Plex catalog, provider clients, caches,
// and the persisted job state into a batch orchestrator, guarded by a
// flock-based single-instance lock. Session.Close flushes caches and state
// exactly once regardless of how the process exits.
//
// Daemon layers the interval scheduler and the optional metrics endpoint on
// top of a Session. Individual stage logic lives in the pipeline and batch
// packages; this package only sequences startup, ticks, and shutdown.
package daemon
