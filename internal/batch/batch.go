package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"ratingsync/internal/capabilities"
	"ratingsync/internal/catalog"
	"ratingsync/internal/jobs"
	"ratingsync/internal/kvcache"
	"ratingsync/internal/logging"
	"ratingsync/internal/metrics"
	"ratingsync/internal/services"
	"ratingsync/internal/stageexec"
)

// Outcome summarizes a batch that did not fail fatally.
type Outcome int

const (
	// OutcomeNoop means no library was eligible.
	OutcomeNoop Outcome = iota
	// OutcomeDeferred means a job hit a transient failure; it and every job
	// after it wait for the next batch.
	OutcomeDeferred
	// OutcomeCompleted means every queued job finished.
	OutcomeCompleted
	// OutcomeFailed accompanies a fatal error.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoop:
		return "noop"
	case OutcomeDeferred:
		return "deferred"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// FatalError reports a job that failed with an unclassified error. The
// process must stop; state is flushed by the caller's teardown.
type FatalError struct {
	LibraryID int64
	Library   string
	Stage     jobs.Stage
	Result    stageexec.Result
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("library %d (%s) failed at %s: %s", e.LibraryID, e.Library, e.Stage, e.Result.Message)
}

func (e *FatalError) Unwrap() error { return e.Result.Err }

// Deferral describes why the last batch stopped early.
type Deferral struct {
	LibraryID int64
	Library   string
	Reason    string
	Pending   int
}

// Pipeline is the stage pipeline plus its per-batch reset hook.
type Pipeline interface {
	stageexec.Pipeline
	BeginBatch()
}

// Options wires an Orchestrator. IgnoreLibraries and Capabilities are fixed
// for the orchestrator's lifetime.
type Options struct {
	Catalog         catalog.Catalog
	Pipeline        Pipeline
	Runner          *stageexec.Runner
	State           *jobs.State
	Caches          *kvcache.Set
	Capabilities    capabilities.Set
	IgnoreLibraries []int64
	Logger          *slog.Logger
	Metrics         *metrics.Collector
}

// Orchestrator runs batches. It is not safe for concurrent Run calls.
type Orchestrator struct {
	catalog  catalog.Catalog
	pipeline Pipeline
	runner   *stageexec.Runner
	state    *jobs.State
	caches   *kvcache.Set
	caps     capabilities.Set
	ignore   map[int64]struct{}
	logger   *slog.Logger
	metrics  *metrics.Collector

	deferral *Deferral
}

// New constructs an Orchestrator. When opts.Runner has no checkpoint hook,
// the job state is saved after every stage transition.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		catalog:  opts.Catalog,
		pipeline: opts.Pipeline,
		state:    opts.State,
		caches:   opts.Caches,
		caps:     opts.Capabilities,
		ignore:   make(map[int64]struct{}, len(opts.IgnoreLibraries)),
		logger:   logging.NewComponentLogger(opts.Logger, "batch"),
		metrics:  opts.Metrics,
	}
	for _, id := range opts.IgnoreLibraries {
		o.ignore[id] = struct{}{}
	}

	runner := opts.Runner
	if runner == nil {
		runner = &stageexec.Runner{Logger: opts.Logger, Metrics: opts.Metrics}
	}
	if runner.Checkpoint == nil {
		runner.Checkpoint = func(*jobs.Job) error { return o.state.Save() }
	}
	o.runner = runner
	return o
}

// Run executes one batch. A non-nil error is fatal: either a catalog or
// persistence failure, or a *FatalError from a job.
func (o *Orchestrator) Run(ctx context.Context) (Outcome, error) {
	batchID := uuid.NewString()
	ctx = services.WithRequestID(ctx, batchID)
	logger := logging.WithContext(ctx, o.logger)

	o.deferral = nil
	outcome, err := o.run(ctx, logger)
	o.metrics.RecordBatch(outcome.String())
	o.metrics.SetPendingJobs(o.state.Len())
	return outcome, err
}

func (o *Orchestrator) run(ctx context.Context, logger *slog.Logger) (Outcome, error) {
	libraries, err := o.catalog.ListLibraries(ctx)
	if err != nil {
		if stageexec.Interrupted(ctx, err) {
			o.deferral = &Deferral{Reason: stageexec.ReasonInterrupted, Pending: o.state.Len()}
			logger.Warn("batch interrupted before the queue was built",
				logging.String(logging.FieldEventType, "batch_interrupted"),
				logging.Int("pending", o.state.Len()),
				logging.Error(err))
			return OutcomeDeferred, nil
		}
		return OutcomeFailed, fmt.Errorf("list libraries: %w", err)
	}
	eligible := o.filter(logger, libraries)
	orphans := o.reportOrphans(logger, libraries)
	if len(eligible) == 0 {
		logger.Info("no eligible libraries; nothing to do",
			logging.String(logging.FieldEventType, "batch_noop"),
			logging.Int("libraries", len(libraries)),
			logging.Int("orphaned_jobs", orphans))
		return OutcomeNoop, nil
	}

	if removed := o.caches.PurgeBlacklists(kvcache.BlacklistTTLDays); removed > 0 {
		logger.Info("expired blacklist entries purged",
			logging.String(logging.FieldEventType, "blacklist_purged"),
			logging.Int("removed", removed),
			logging.Int("ttl_days", kvcache.BlacklistTTLDays))
	}
	o.pipeline.BeginBatch()

	queue := o.enqueue(eligible)
	if err := o.state.Save(); err != nil {
		return OutcomeFailed, fmt.Errorf("save job state: %w", err)
	}
	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.Int("queued", len(queue)),
		logging.Int("orphaned_jobs", orphans),
		logging.String("capabilities", o.caps.String()))

	for i, job := range queue {
		result := o.runner.Run(ctx, job, o.pipeline)
		jobLogger := logger.With(
			logging.Int64(logging.FieldLibraryID, job.LibraryID),
			logging.String("library", job.Library),
			logging.String(logging.FieldJobUUID, job.UUID))

		switch result.Code {
		case stageexec.Pass:
			o.state.Remove(job.LibraryID)
			if err := o.state.Save(); err != nil {
				return OutcomeFailed, fmt.Errorf("save job state: %w", err)
			}
			jobLogger.Info("library synchronized",
				logging.String(logging.FieldEventType, "job_complete"),
				logging.Int("items", len(job.Items)),
				logging.Int("applied", job.Applied),
				logging.Int("failures", job.Failures.Total()))

		case stageexec.APIError:
			o.logDeferred(jobLogger, job, result, len(queue)-i-1)
			o.deferral = &Deferral{
				LibraryID: job.LibraryID,
				Library:   job.Library,
				Reason:    result.Reason,
				Pending:   len(queue) - i,
			}
			if err := o.flush(); err != nil {
				return OutcomeFailed, err
			}
			return OutcomeDeferred, nil

		default:
			logging.ErrorWithContext(jobLogger, "library failed; stopping",
				"job_fatal",
				logging.String("stage", job.Stage.String()),
				logging.Error(result.Err),
				logging.String(logging.FieldErrorHint, "fix the cause and restart ratingsync; the job resumes from this stage"))
			return OutcomeFailed, &FatalError{
				LibraryID: job.LibraryID,
				Library:   job.Library,
				Stage:     job.Stage,
				Result:    result,
			}
		}
	}

	if err := o.flush(); err != nil {
		return OutcomeFailed, err
	}
	logger.Info("batch completed",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("libraries", len(queue)))
	return OutcomeCompleted, nil
}

// LastDeferral reports where the most recent Run stopped when its outcome
// was OutcomeDeferred.
func (o *Orchestrator) LastDeferral() (Deferral, bool) {
	if o.deferral == nil {
		return Deferral{}, false
	}
	return *o.deferral, true
}

// filter drops libraries switched off by capability or listed in the ignore
// list, preserving catalog order.
func (o *Orchestrator) filter(logger *slog.Logger, libraries []catalog.Library) []catalog.Library {
	if len(o.ignore) > 0 {
		ids := make([]int64, 0, len(o.ignore))
		for id := range o.ignore {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = strconv.FormatInt(id, 10)
		}
		logger.Info("ignoring libraries", logging.String("ignore_libraries", strings.Join(parts, ";")))
	}

	eligible := make([]catalog.Library, 0, len(libraries))
	for _, lib := range libraries {
		if reason := o.skipReason(lib); reason != "" {
			logger.Debug("library skipped",
				logging.Int64(logging.FieldLibraryID, lib.ID),
				logging.String("library", lib.Name),
				logging.String("reason", reason))
			continue
		}
		eligible = append(eligible, lib)
	}
	return eligible
}

func (o *Orchestrator) skipReason(lib catalog.Library) string {
	if _, ignored := o.ignore[lib.ID]; ignored {
		return "ignored"
	}
	switch {
	case lib.Type == catalog.LibraryMovie && o.caps.Has(capabilities.NoMovie):
		return "movie libraries disabled"
	case lib.Type == catalog.LibrarySeries && o.caps.Has(capabilities.NoTV):
		return "series libraries disabled"
	}
	return ""
}

// reportOrphans warns about persisted jobs that no queue will pick up
// because their library is skipped or gone from the catalog. Such jobs stay
// in the state document until cleared by an operator.
func (o *Orchestrator) reportOrphans(logger *slog.Logger, libraries []catalog.Library) int {
	known := make(map[int64]catalog.Library, len(libraries))
	for _, lib := range libraries {
		known[lib.ID] = lib
	}
	orphans := 0
	for _, job := range o.state.Jobs() {
		reason := "library no longer in catalog"
		if lib, ok := known[job.LibraryID]; ok {
			if reason = o.skipReason(lib); reason == "" {
				continue
			}
		}
		orphans++
		logging.WarnWithContext(logger, "unfinished job will not be queued",
			"orphaned_job",
			logging.Int64(logging.FieldLibraryID, job.LibraryID),
			logging.String("library", job.Library),
			logging.String("stage", job.Stage.String()),
			logging.String("reason", reason),
			logging.String(logging.FieldErrorHint, fmt.Sprintf("run 'ratingsync state clear --library %d' to discard it", job.LibraryID)),
			logging.String(logging.FieldImpact, "the job stays in the state file and counts as pending"))
	}
	return orphans
}

// enqueue builds the FIFO queue, reusing persisted jobs and recording fresh
// ones so jobs not reached in this batch are still pending in the next.
func (o *Orchestrator) enqueue(libraries []catalog.Library) []*jobs.Job {
	queue := make([]*jobs.Job, 0, len(libraries))
	for _, lib := range libraries {
		job, ok := o.state.Get(lib.ID)
		if !ok {
			job = jobs.New(lib)
			o.state.Put(job)
		} else {
			job.Library = lib.Name
		}
		queue = append(queue, job)
	}
	return queue
}

func (o *Orchestrator) logDeferred(logger *slog.Logger, job *jobs.Job, result stageexec.Result, remaining int) {
	message := "provider unavailable; deferring remaining libraries"
	eventType := "batch_deferred"
	hint := "check provider availability and api keys"
	switch result.Reason {
	case stageexec.ReasonDataset:
		message = "rating dataset unavailable; deferring remaining libraries"
		eventType = "batch_deferred_dataset"
		hint = "check that the ratings dataset url is reachable"
	case stageexec.ReasonInterrupted:
		message = "batch interrupted; deferring remaining libraries"
		eventType = "batch_interrupted"
		hint = "no action needed; the job resumes on the next run"
	}
	logging.WarnWithContext(logger, message,
		eventType,
		logging.String("stage", job.Stage.String()),
		logging.Int("remaining", remaining),
		logging.Error(result.Err),
		logging.String(logging.FieldErrorHint, hint),
		logging.String(logging.FieldImpact, "ratings for deferred libraries are updated at the next scheduled batch"))
}

func (o *Orchestrator) flush() error {
	var errs []error
	if err := o.caches.DumpAll(); err != nil {
		errs = append(errs, fmt.Errorf("dump caches: %w", err))
	}
	if err := o.state.Save(); err != nil {
		errs = append(errs, fmt.Errorf("save job state: %w", err))
	}
	for _, store := range o.caches.Stores() {
		o.metrics.SetCacheEntries(store.Name(), store.Len())
	}
	return errors.Join(errs...)
}
