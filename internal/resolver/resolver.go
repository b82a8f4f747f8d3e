package resolver

import (
	"context"
	"errors"
	"log/slog"

	"ratingsync/internal/capabilities"
	"ratingsync/internal/kvcache"
	"ratingsync/internal/logging"
	"ratingsync/internal/metrics"
	"ratingsync/internal/providers/tmdb"
	"ratingsync/internal/providers/tvdb"
	"ratingsync/internal/resolver/guid"
	"ratingsync/internal/services"
)

// Reference locates an item at an external provider.
type Reference = guid.Reference

// Options configures a Resolver.
type Options struct {
	Caches       *kvcache.Set
	TMDB         tmdb.Looker
	TVDB         tvdb.Looker
	Capabilities capabilities.Set
	Logger       *slog.Logger
	Metrics      *metrics.Collector
}

// Resolver maps references to IMDB ids. It is safe for concurrent use.
type Resolver struct {
	caches  *kvcache.Set
	tmdb    tmdb.Looker
	tvdb    tvdb.Looker
	caps    capabilities.Set
	logger  *slog.Logger
	metrics *metrics.Collector
}

// New constructs a Resolver. Caches must be non-nil.
func New(opts Options) *Resolver {
	return &Resolver{
		caches:  opts.Caches,
		tmdb:    opts.TMDB,
		tvdb:    opts.TVDB,
		caps:    opts.Capabilities,
		logger:  logging.NewComponentLogger(opts.Logger, "resolver"),
		metrics: opts.Metrics,
	}
}

// Resolve returns the IMDB id for ref. found is false when the provider has
// no IMDB id for the item. Errors wrap services.ErrProviderDisabled when the
// needed provider is switched off, and services.ErrAPI (or
// services.ErrAuthentication) for provider failures.
func (r *Resolver) Resolve(ctx context.Context, ref Reference) (string, bool, error) {
	if ref.AgentID != "" {
		if id, ok := r.cached(kvcache.MovieAgentMapping, ref.AgentID); ok && id != kvcache.NotFound {
			return id, true, nil
		}
	}

	var (
		id    string
		found bool
		err   error
	)
	switch ref.Provider {
	case guid.ProviderIMDb:
		id, found = ref.ID, guid.IsIMDbID(ref.ID)
	case guid.ProviderPlex:
		// Without external guids only a previously recorded mapping helps.
		if id, found = r.cached(kvcache.MovieAgentMapping, ref.ID); id == kvcache.NotFound {
			id, found = "", false
		}
		return id, found, nil
	case guid.ProviderTMDB:
		id, found, err = r.resolveTMDB(ctx, ref)
	case guid.ProviderTVDB:
		id, found, err = r.resolveTVDB(ctx, ref)
	default:
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if found && ref.AgentID != "" {
		r.caches.Get(kvcache.MovieAgentMapping).Put(ref.AgentID, id)
	}
	return id, found, nil
}

func (r *Resolver) resolveTMDB(ctx context.Context, ref Reference) (string, bool, error) {
	if r.tmdb == nil || !r.caps.Has(capabilities.TMDB) {
		return "", false, services.Wrap(services.ErrProviderDisabled, "resolver", "tmdb", ref.String(), nil)
	}
	switch ref.Kind {
	case guid.KindMovie:
		if id, ok := r.cached(kvcache.TMDB, ref.Key()); ok {
			return id, id != kvcache.NotFound, nil
		}
		id, err := r.fetch(string(guid.ProviderTMDB), func() (string, error) {
			return r.tmdb.MovieIMDbID(ctx, ref.ID)
		})
		if err != nil {
			return "", false, err
		}
		if id == "" {
			r.caches.Get(kvcache.TMDB).Put(ref.Key(), kvcache.NotFound)
			return "", false, nil
		}
		r.caches.Get(kvcache.TMDB).Put(ref.Key(), id)
		return id, true, nil
	case guid.KindSeries:
		return r.resolveWithBlacklist(kvcache.TMDBSeries, kvcache.TMDBSeriesBlacklist, ref, string(guid.ProviderTMDB), func() (string, error) {
			return r.tmdb.SeriesIMDbID(ctx, ref.ID)
		})
	default:
		r.logger.Debug("tmdb episode references are not resolvable",
			logging.String("reference", ref.String()))
		return "", false, nil
	}
}

func (r *Resolver) resolveTVDB(ctx context.Context, ref Reference) (string, bool, error) {
	if r.tvdb == nil || !r.caps.Has(capabilities.TVDB) {
		return "", false, services.Wrap(services.ErrProviderDisabled, "resolver", "tvdb", ref.String(), nil)
	}
	lookup := func() (string, error) {
		return r.tvdb.SeriesIMDbID(ctx, ref.ID)
	}
	if ref.Kind == guid.KindEpisode {
		lookup = func() (string, error) {
			return r.tvdb.EpisodeIMDbID(ctx, ref.ID, ref.Season, ref.Episode)
		}
	}
	return r.resolveWithBlacklist(kvcache.TVDB, kvcache.TVDBBlacklist, ref, string(guid.ProviderTVDB), lookup)
}

func (r *Resolver) resolveWithBlacklist(positive, negative string, ref Reference, provider string, lookup func() (string, error)) (string, bool, error) {
	key := ref.Key()
	if _, ok := r.cached(negative, key); ok {
		return "", false, nil
	}
	if id, ok := r.cached(positive, key); ok {
		return id, true, nil
	}
	id, err := r.fetch(provider, lookup)
	if err != nil {
		return "", false, err
	}
	if id == "" {
		r.caches.Get(negative).Put(key, kvcache.NotFound)
		return "", false, nil
	}
	r.caches.Get(positive).Put(key, id)
	return id, true, nil
}

func (r *Resolver) cached(name, key string) (string, bool) {
	id, ok := r.caches.Get(name).Get(key)
	r.metrics.RecordCacheLookup(name, ok)
	return id, ok
}

func (r *Resolver) fetch(provider string, lookup func() (string, error)) (string, error) {
	id, err := lookup()
	switch {
	case err != nil:
		r.metrics.RecordProviderRequest(provider, "error")
		if !errors.Is(err, services.ErrAPI) && !errors.Is(err, services.ErrAuthentication) {
			err = services.Wrap(services.ErrAPI, "resolver", provider, "lookup failed", err)
		}
		return "", err
	case id == "":
		r.metrics.RecordProviderRequest(provider, "not_found")
	default:
		r.metrics.RecordProviderRequest(provider, "found")
	}
	return id, nil
}
