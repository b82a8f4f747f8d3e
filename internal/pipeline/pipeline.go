package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"ratingsync/internal/capabilities"
	"ratingsync/internal/catalog"
	"ratingsync/internal/dataset"
	"ratingsync/internal/jobs"
	"ratingsync/internal/logging"
	"ratingsync/internal/metrics"
	"ratingsync/internal/resolver/guid"
	"ratingsync/internal/services"
)

// Resolver maps provider references to IMDB ids.
type Resolver interface {
	Resolve(ctx context.Context, ref guid.Reference) (string, bool, error)
}

// Config holds the pipeline settings.
type Config struct {
	Capabilities capabilities.Set
	// Workers bounds concurrent lookups during RESOLVE_IDS.
	Workers int
}

// Options wires a Pipeline.
type Options struct {
	Config   Config
	Catalog  catalog.Catalog
	Resolver Resolver
	Dataset  dataset.Source
	Logger   *slog.Logger
	Metrics  *metrics.Collector
}

// Pipeline runs the stage operations for library jobs.
type Pipeline struct {
	cfg      Config
	catalog  catalog.Catalog
	resolver Resolver
	dataset  *dataset.Memo
	logger   *slog.Logger
	metrics  *metrics.Collector

	// mu guards job mutations made by resolve workers.
	mu sync.Mutex
}

// New constructs a Pipeline.
func New(opts Options) *Pipeline {
	cfg := opts.Config
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Pipeline{
		cfg:      cfg,
		catalog:  opts.Catalog,
		resolver: opts.Resolver,
		dataset:  dataset.NewMemo(opts.Dataset),
		logger:   logging.NewComponentLogger(opts.Logger, "pipeline"),
		metrics:  opts.Metrics,
	}
}

// BeginBatch discards per-batch state so the dataset is fetched afresh.
func (p *Pipeline) BeginBatch() {
	p.dataset.Reset()
}

// Prepare resets the job's counters before enumeration.
func (p *Pipeline) Prepare(_ context.Context, job *jobs.Job) error {
	job.Items = nil
	job.Failures = jobs.Failures{}
	job.Applied = 0
	return nil
}

// Enumerate lists the library's items and records a provider reference for
// each item the resolver can handle. Earlier enumeration results are
// replaced.
func (p *Pipeline) Enumerate(ctx context.Context, job *jobs.Job) error {
	items, err := p.catalog.ListItems(ctx, job.LibraryID)
	if err != nil {
		return err
	}

	progress := make([]jobs.ItemProgress, 0, len(items))
	skipped := 0
	for _, item := range items {
		if !belongsTo(job.LibraryType, item.Kind) {
			continue
		}
		ref, ok := referenceFor(item)
		if !ok {
			skipped++
			p.logger.Debug("item agent not supported",
				logging.Int64("item_id", item.ID),
				logging.String("title", item.Title),
				logging.String("guid", item.GUID))
			continue
		}
		progress = append(progress, jobs.ItemProgress{
			ItemID:    item.ID,
			Title:     item.Title,
			Reference: ref,
		})
	}
	job.Items = progress
	job.Failures.SkippedAgent = skipped

	logging.WithContext(ctx, p.logger).Info("library items enumerated",
		logging.String(logging.FieldEventType, "items_enumerated"),
		logging.Int("items", len(progress)),
		logging.Int("skipped_agent", skipped))
	return nil
}

func belongsTo(libType catalog.LibraryType, kind guid.Kind) bool {
	switch libType {
	case catalog.LibraryMovie:
		return kind == guid.KindMovie
	case catalog.LibrarySeries:
		return kind == guid.KindSeries || kind == guid.KindEpisode
	default:
		return false
	}
}

func referenceFor(item catalog.Item) (guid.Reference, bool) {
	ref, ok := guid.Parse(item.GUID, item.Kind)
	if !ok {
		return guid.Reference{}, false
	}
	if ref.Provider != guid.ProviderPlex {
		return ref, true
	}
	external, ok := guid.FromExternal(item.ExternalGUIDs, item.Kind)
	if !ok {
		return ref, true
	}
	external.AgentID = ref.ID
	return external, true
}

// Resolve looks up IMDB ids for every item not yet resolved, using up to
// Config.Workers concurrent lookups. Each completed lookup is recorded on the
// job as it finishes, so a later failure does not discard earlier progress.
// After the first failure no further lookups are started; all failures are
// returned joined.
func (p *Pipeline) Resolve(ctx context.Context, job *jobs.Job) error {
	pending := job.Pending()
	if len(pending) == 0 {
		return nil
	}
	logger := logging.WithContext(ctx, p.logger)
	logger.Info("resolving imdb ids",
		logging.String(logging.FieldEventType, "resolve_start"),
		logging.Int("pending", len(pending)),
		logging.Int("workers", p.cfg.Workers))

	var (
		wg     sync.WaitGroup
		errMu  sync.Mutex
		errs   []error
		failed bool
		sem    = make(chan struct{}, p.cfg.Workers)
	)
	stopped := func() bool {
		errMu.Lock()
		defer errMu.Unlock()
		return failed
	}

	for _, idx := range pending {
		sem <- struct{}{}
		if ctx.Err() != nil || stopped() {
			<-sem
			break
		}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			p.mu.Lock()
			ref := job.Items[idx].Reference
			p.mu.Unlock()

			imdbID, found, err := p.resolver.Resolve(ctx, ref)
			switch {
			case errors.Is(err, services.ErrProviderDisabled):
				p.record(job, idx, "", true)
			case err != nil:
				errMu.Lock()
				errs = append(errs, fmt.Errorf("item %d (%s): %w", job.Items[idx].ItemID, ref, err))
				failed = true
				errMu.Unlock()
			case found:
				p.record(job, idx, imdbID, false)
			default:
				p.record(job, idx, "", false)
			}
		}(idx)
	}
	wg.Wait()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

func (p *Pipeline) record(job *jobs.Job, idx int, imdbID string, disabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	job.Items[idx].Resolved = true
	job.Items[idx].IMDbID = imdbID
	job.Items[idx].Disabled = disabled
}

// Apply writes the dataset rating of every resolved item to the catalog and
// recomputes the job's failure counters. With the DryRun capability the
// catalog is left untouched.
func (p *Pipeline) Apply(ctx context.Context, job *jobs.Job) error {
	ratings, err := p.dataset.Load(ctx)
	if err != nil {
		return err
	}

	var (
		updates  []catalog.RatingUpdate
		failures = jobs.Failures{SkippedAgent: job.Failures.SkippedAgent}
	)
	for _, item := range job.Items {
		switch {
		case item.Disabled:
			failures.Disabled++
		case item.IMDbID == "":
			failures.Unresolved++
		default:
			rating, ok := ratings.Lookup(item.IMDbID)
			if !ok {
				failures.NoRating++
				continue
			}
			updates = append(updates, catalog.RatingUpdate{ItemID: item.ItemID, Rating: rating.Average})
		}
	}
	job.Failures = failures

	logger := logging.WithContext(ctx, p.logger)
	if p.cfg.Capabilities.Has(capabilities.DryRun) {
		job.Applied = 0
		logger.Info("dry run: catalog left unchanged",
			logging.String(logging.FieldEventType, "ratings_dry_run"),
			logging.Int("would_update", len(updates)))
	} else {
		changed, err := p.catalog.UpdateRatings(ctx, updates)
		if err != nil {
			return err
		}
		job.Applied = changed
		p.metrics.AddRatingsApplied(changed)
	}

	p.metrics.AddItemsSkipped("skipped_agent", failures.SkippedAgent)
	p.metrics.AddItemsSkipped("disabled", failures.Disabled)
	p.metrics.AddItemsSkipped("unresolved", failures.Unresolved)
	p.metrics.AddItemsSkipped("no_rating", failures.NoRating)

	logger.Info("ratings applied",
		logging.String(logging.FieldEventType, "ratings_applied"),
		logging.Int("rated", len(updates)),
		logging.Int("changed", job.Applied),
		logging.Int("unresolved", failures.Unresolved),
		logging.Int("no_rating", failures.NoRating),
		logging.Int("disabled", failures.Disabled),
		logging.Int("skipped_agent", failures.SkippedAgent))
	return nil
}
