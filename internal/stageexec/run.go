// Package stageexec runs a library job through its remaining stages and
// classifies the outcome into a three-way result code.
package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ratingsync/internal/jobs"
	"ratingsync/internal/logging"
	"ratingsync/internal/metrics"
	"ratingsync/internal/services"
)

// Code is the outcome class of a job run.
type Code int

const (
	// Pass means the job reached DONE.
	Pass Code = iota
	// APIError means the job stopped on a transient failure; its stage is
	// unchanged and the rest of the batch is deferred.
	APIError
	// Error means an unclassified failure that must stop the process.
	Error
)

func (c Code) String() string {
	switch c {
	case Pass:
		return "PASS"
	case APIError:
		return "API_ERROR"
	case Error:
		return "ERROR"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Reasons refine an APIError result.
const (
	ReasonProvider    = "provider"
	ReasonDataset     = "dataset"
	ReasonInterrupted = "interrupted"
)

// Result reports how a job run ended. It is never persisted.
type Result struct {
	Code    Code
	Reason  string
	Message string
	Err     error
}

// Deferred reports whether the result postpones work to the next batch.
func (r Result) Deferred() bool { return r.Code == APIError }

// Pipeline is the set of stage operations a job moves through.
type Pipeline interface {
	Prepare(context.Context, *jobs.Job) error
	Enumerate(context.Context, *jobs.Job) error
	Resolve(context.Context, *jobs.Job) error
	Apply(context.Context, *jobs.Job) error
}

// Runner executes jobs.
type Runner struct {
	Logger  *slog.Logger
	Metrics *metrics.Collector
	// Checkpoint is called after every stage transition so the new cursor
	// survives a crash. A checkpoint failure is fatal.
	Checkpoint func(*jobs.Job) error
}

// Run dispatches on job.Stage until the job is done or a stage fails. Each
// completed stage advances the cursor before the next one starts, so a
// failure never causes earlier stages to run again on resume.
func (r *Runner) Run(ctx context.Context, job *jobs.Job, p Pipeline) Result {
	jobCtx := services.WithLibraryID(ctx, job.LibraryID)
	jobCtx = services.WithJobUUID(jobCtx, job.UUID)
	logger := logging.NewComponentLogger(r.Logger, "stageexec")

	for !job.Stage.Terminal() {
		stage := job.Stage
		op, err := operation(p, stage)
		if err != nil {
			return r.finish(Result{Code: Error, Message: err.Error(), Err: err})
		}

		stageCtx := services.WithStage(jobCtx, stage.String())
		stageLogger := logging.WithContext(stageCtx, logger)
		stageLogger.Debug("stage started",
			logging.String(logging.FieldEventType, "stage_start"),
			logging.String("library", job.Library))

		start := time.Now()
		stageErr := op(stageCtx, job)
		elapsed := time.Since(start)
		r.Metrics.ObserveStage(stage.String(), elapsed)

		if stageErr != nil {
			result := classify(ctx, stageErr)
			logStageFailure(stageLogger, result)
			return r.finish(result)
		}

		if err := job.Advance(stage.Next()); err != nil {
			return r.finish(Result{Code: Error, Message: "advance stage", Err: err})
		}
		if r.Checkpoint != nil {
			if err := r.Checkpoint(job); err != nil {
				err = fmt.Errorf("checkpoint job state: %w", err)
				return r.finish(Result{Code: Error, Message: err.Error(), Err: err})
			}
		}
		stageLogger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.String("next_stage", job.Stage.String()),
			logging.Duration("elapsed", elapsed))
	}
	return r.finish(Result{Code: Pass, Message: "job complete"})
}

func (r *Runner) finish(result Result) Result {
	r.Metrics.RecordJob(result.Code.String())
	return result
}

func operation(p Pipeline, stage jobs.Stage) (func(context.Context, *jobs.Job) error, error) {
	switch stage {
	case jobs.StageQueued:
		return p.Prepare, nil
	case jobs.StageEnumerateItems:
		return p.Enumerate, nil
	case jobs.StageResolveIDs:
		return p.Resolve, nil
	case jobs.StageApplyRatings:
		return p.Apply, nil
	default:
		return nil, fmt.Errorf("no operation for stage %s", stage)
	}
}

// Interrupted reports whether err is the cancellation of ctx surfacing
// through a stage or collaborator, whatever marker wraps it.
func Interrupted(ctx context.Context, err error) bool {
	if ctx.Err() == nil || err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// classify maps a stage error onto a result code. An interruption is checked
// first: a cancelled catalog query is a shutdown, not broken storage. After
// that, catalog failures win over everything else.
func classify(ctx context.Context, err error) Result {
	result := Result{Message: err.Error(), Err: err}
	switch {
	case Interrupted(ctx, err):
		result.Code = APIError
		result.Reason = ReasonInterrupted
	case errors.Is(err, services.ErrCatalog):
		result.Code = Error
	case errors.Is(err, services.ErrDataset):
		result.Code = APIError
		result.Reason = ReasonDataset
	case errors.Is(err, services.ErrAPI), errors.Is(err, services.ErrAuthentication):
		result.Code = APIError
		result.Reason = ReasonProvider
	default:
		result.Code = Error
	}
	return result
}

func logStageFailure(logger *slog.Logger, result Result) {
	switch result.Code {
	case APIError:
		logging.WarnWithContext(logger, "stage deferred",
			"stage_deferred",
			logging.String("result", result.Code.String()),
			logging.String("reason", result.Reason),
			logging.Error(result.Err),
			logging.String(logging.FieldErrorHint, deferHint(result.Reason)),
			logging.String(logging.FieldImpact, "library and remaining queue retried at the next scheduled batch"))
	default:
		logging.ErrorWithContext(logger, "stage failed",
			"stage_failure",
			logging.String("result", result.Code.String()),
			logging.Error(result.Err),
			logging.String(logging.FieldErrorHint, "inspect the error; the process stops until an operator intervenes"))
	}
}

func deferHint(reason string) string {
	switch reason {
	case ReasonDataset:
		return "check that the ratings dataset url is reachable"
	case ReasonInterrupted:
		return "the batch was interrupted; it resumes from this stage"
	default:
		return "check provider availability and api keys"
	}
}
