// Package services defines shared utilities consumed by the pipeline stages and
// the external provider integrations.
//
// Key responsibilities:
//   - Context helpers that stamp library IDs, stage names, job run tokens and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that the job runner uses
//     to classify a stage failure as a provider problem (retry on the next
//     scheduled batch) or as a fatal condition.
//
// Use these helpers when wiring new stage logic so error classification stays
// uniform across the pipeline.
package services
