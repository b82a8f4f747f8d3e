// Package jobs models one library's rating sync as a resumable unit of work.
//
// A Job carries a stage cursor that only moves forward:
//
//	QUEUED -> ENUMERATE_ITEMS -> RESOLVE_IDS -> APPLY_RATINGS -> DONE
//
// Unfinished jobs are kept in a State document keyed by library id. On the
// next run a job resumes at the stage recorded there, together with the
// per-item resolution progress made so far.
package jobs
