package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"ratingsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The media server data directory exists but holds no database; use
// NewCatalog to create one at cfg.CatalogPath().
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.PlexDataDir = filepath.Join(base, "plex")
	cfgVal.TMDB.APIKey = "test"
	cfgVal.TVDB.APIKey = "test"
	cfgVal.Batch.ResolveWorkers = 2

	if err := os.MkdirAll(cfgVal.Paths.PlexDataDir, 0o755); err != nil {
		t.Fatalf("mkdir plex dir: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithTMDB points the TMDB client at baseURL.
func WithTMDB(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.TMDB.BaseURL = baseURL
	}
}

// WithTVDB points the TVDB client at baseURL.
func WithTVDB(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.TVDB.BaseURL = baseURL
	}
}

// WithDatasetURL overrides the ratings dataset location.
func WithDatasetURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Dataset.URL = url
	}
}

// WithIgnoredLibraries sets the ignore list.
func WithIgnoredLibraries(ids ...int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Batch.IgnoreLibraries = ids
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
