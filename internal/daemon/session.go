package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"ratingsync/internal/batch"
	"ratingsync/internal/capabilities"
	"ratingsync/internal/catalog"
	"ratingsync/internal/config"
	"ratingsync/internal/dataset"
	"ratingsync/internal/jobs"
	"ratingsync/internal/kvcache"
	"ratingsync/internal/logging"
	"ratingsync/internal/metrics"
	"ratingsync/internal/notifications"
	"ratingsync/internal/pipeline"
	"ratingsync/internal/providers/tmdb"
	"ratingsync/internal/providers/tvdb"
	"ratingsync/internal/resolver"
	"ratingsync/internal/services"
)

// ErrAlreadyRunning is returned when another process holds the instance lock.
var ErrAlreadyRunning = errors.New("another ratingsync instance is already running")

// AcquireLock takes the single-instance lock. Commands that rewrite the job
// state or caches hold it so they never race a running daemon.
func AcquireLock(cfg *config.Config) (*flock.Flock, error) {
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return lock, nil
}

// Session holds every resource a batch needs. Open acquires them; Close
// flushes caches and job state and releases them exactly once.
type Session struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Collector
	notifier notifications.Service

	lock    *flock.Flock
	catalog *catalog.SQLiteCatalog
	state   *jobs.State
	caches  *kvcache.Set

	orchestrator *batch.Orchestrator

	closeOnce sync.Once
	closeErr  error
}

// Open bootstraps a session. Provider credentials are checked eagerly so a
// rejected key fails startup rather than the first batch.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("session requires config")
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "prepare directories", "", err)
	}

	lock, err := AcquireLock(cfg)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics.NewCollector(),
		notifier: notifications.NewService(cfg),
		lock:     lock,
	}
	if err := s.bootstrap(ctx); err != nil {
		s.release()
		return nil, err
	}
	return s, nil
}

func (s *Session) bootstrap(ctx context.Context) error {
	cfg := s.cfg
	for _, notice := range cfg.Notices {
		logging.WarnWithContext(s.logger, notice, "config_notice",
			logging.String(logging.FieldImpact, "startup continues with the adjusted setting"))
	}

	cat, err := catalog.Open(cfg.CatalogPath())
	if err != nil {
		return err
	}
	s.catalog = cat

	state, err := jobs.LoadState(cfg.StatePath())
	if err != nil {
		return err
	}
	s.state = state
	s.caches = kvcache.OpenSet(cfg.CacheDir(), s.logger)

	timeout := time.Duration(cfg.Batch.RequestTimeout) * time.Second
	opts := resolver.Options{
		Caches:       s.caches,
		Capabilities: cfg.Capabilities,
		Logger:       s.logger,
		Metrics:      s.metrics,
	}
	if cfg.Capabilities.Has(capabilities.TMDB) {
		client, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, tmdb.WithTimeout(timeout))
		if err != nil {
			return services.Wrap(services.ErrConfiguration, "tmdb", "create client", "", err)
		}
		if err := client.Verify(ctx); err != nil {
			return err
		}
		opts.TMDB = client
	}
	if cfg.Capabilities.Has(capabilities.TVDB) {
		client, err := tvdb.Login(ctx, cfg.TVDB.BaseURL, cfg.TVDB.APIKey,
			tvdb.WithTimeout(timeout), tvdb.WithLogger(s.logger))
		if err != nil {
			return err
		}
		opts.TVDB = client
	}

	pipe := pipeline.New(pipeline.Options{
		Config: pipeline.Config{
			Capabilities: cfg.Capabilities,
			Workers:      cfg.Batch.ResolveWorkers,
		},
		Catalog:  cat,
		Resolver: resolver.New(opts),
		Dataset:  dataset.NewHTTPSource(cfg.Dataset.URL, time.Duration(cfg.Dataset.TimeoutSeconds)*time.Second, s.logger),
		Logger:   s.logger,
		Metrics:  s.metrics,
	})
	s.orchestrator = batch.New(batch.Options{
		Catalog:         cat,
		Pipeline:        pipe,
		State:           state,
		Caches:          s.caches,
		Capabilities:    cfg.Capabilities,
		IgnoreLibraries: cfg.Batch.IgnoreLibraries,
		Logger:          s.logger,
		Metrics:         s.metrics,
	})

	s.metrics.SetPendingJobs(state.Len())
	s.logger.Info("session ready",
		logging.String(logging.FieldEventType, "session_ready"),
		logging.String("catalog", cat.Path()),
		logging.Int("unfinished_jobs", state.Len()),
		logging.String("capabilities", cfg.Capabilities.String()))
	return nil
}

// RunBatch runs one batch.
func (s *Session) RunBatch(ctx context.Context) (batch.Outcome, error) {
	return s.orchestrator.Run(ctx)
}

// LastDeferral reports where the most recent batch stopped early.
func (s *Session) LastDeferral() (batch.Deferral, bool) {
	return s.orchestrator.LastDeferral()
}

// Notifier returns the configured notification service.
func (s *Session) Notifier() notifications.Service { return s.notifier }

// Metrics returns the session's collector.
func (s *Session) Metrics() *metrics.Collector { return s.metrics }

// State returns the persisted job state.
func (s *Session) State() *jobs.State { return s.state }

// Caches returns the cache set.
func (s *Session) Caches() *kvcache.Set { return s.caches }

// Close flushes caches and job state, closes the catalog, and releases the
// instance lock. Later calls return the first call's result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.caches != nil {
			if err := s.caches.DumpAll(); err != nil {
				errs = append(errs, fmt.Errorf("dump caches: %w", err))
			}
		}
		if s.state != nil {
			if err := s.state.Save(); err != nil {
				errs = append(errs, fmt.Errorf("save job state: %w", err))
			}
		}
		s.release()
		s.closeErr = errors.Join(errs...)
		if s.closeErr != nil {
			logging.ErrorWithContext(s.logger, "session teardown incomplete", "session_close_failed",
				logging.Error(s.closeErr),
				logging.String(logging.FieldErrorHint, "check data directory permissions and free space"))
			return
		}
		s.logger.Info("session closed", logging.String(logging.FieldEventType, "session_closed"))
	})
	return s.closeErr
}

func (s *Session) release() {
	if s.catalog != nil {
		if err := s.catalog.Close(); err != nil {
			s.logger.Warn("close catalog", logging.Error(err))
		}
	}
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("failed to release instance lock", logging.Error(err))
	}
}
