// Package pipeline implements the stage operations a library job moves
// through. Each operation is idempotent on the same job so a job resumed
// after a crash or a deferred batch can safely repeat the stage it stopped
// in.
package pipeline
