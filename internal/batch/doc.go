// Package batch drives one pass over every eligible library.
//
// Libraries become a FIFO queue of jobs. Jobs recorded in the persisted state
// resume at their stage; others start fresh. The queue drains until it is
// empty, until a job is deferred by a transient failure (the rest of the
// queue waits for the next batch), or until a job fails in a way that stops
// the process.
package batch
