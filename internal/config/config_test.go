package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"ratingsync/internal/capabilities"
	"ratingsync/internal/config"
	"ratingsync/internal/services"
)

var envKeys = []string{
	"TMDB_API_KEY", "TVDB_API_KEY", "TVDB_AUTH_STRING", "PLEX_DATA_DIR",
	"RATINGSYNC_DATA_DIR", "IGNORE_LIBS", "CAPABILITIES", "RATINGSYNC_SCHEDULE_HOURS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
	t.Setenv("HOME", t.TempDir())
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	plexDir := t.TempDir()
	dataDir := t.TempDir()
	t.Setenv("PLEX_DATA_DIR", plexDir)
	t.Setenv("RATINGSYNC_DATA_DIR", dataDir)
	t.Setenv("TMDB_API_KEY", "tmdb-key")
	t.Setenv("TVDB_API_KEY", "tvdb-key")
	t.Setenv("IGNORE_LIBS", "3;abc;7;3")
	t.Setenv("CAPABILITIES", "NO_TV")
	t.Setenv("RATINGSYNC_SCHEDULE_HOURS", "6")

	cfg, _, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Paths.PlexDataDir != plexDir || cfg.Paths.DataDir != dataDir {
		t.Fatalf("unexpected paths: %+v", cfg.Paths)
	}
	if cfg.TMDB.APIKey != "tmdb-key" || cfg.TVDB.APIKey != "tvdb-key" {
		t.Fatalf("expected keys from env, got %q %q", cfg.TMDB.APIKey, cfg.TVDB.APIKey)
	}
	if want := []int64{3, 7}; !reflect.DeepEqual(cfg.Batch.IgnoreLibraries, want) {
		t.Fatalf("IgnoreLibraries = %v, want %v", cfg.Batch.IgnoreLibraries, want)
	}
	if len(cfg.Notices) != 1 {
		t.Fatalf("expected one notice for the bad ignore entry, got %v", cfg.Notices)
	}
	if cfg.Batch.ScheduleHours != 6 {
		t.Fatalf("ScheduleHours = %d, want 6", cfg.Batch.ScheduleHours)
	}
	if !cfg.Capabilities.Has(capabilities.NoTV) || !cfg.Capabilities.Has(capabilities.TVDB) {
		t.Fatalf("unexpected capabilities %s", cfg.Capabilities)
	}
	if cfg.StatePath() != filepath.Join(dataDir, "state-imdb.json") {
		t.Fatalf("unexpected state path %q", cfg.StatePath())
	}
}

func TestLoadMissingPlexDataDirIsConfigurationError(t *testing.T) {
	clearEnv(t)
	_, _, _, err := config.Load("")
	if err == nil {
		t.Fatal("expected error without PLEX_DATA_DIR")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration marker, got %v", err)
	}
}

func TestLoadRejectsUnparsableSchedule(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLEX_DATA_DIR", t.TempDir())
	t.Setenv("RATINGSYNC_SCHEDULE_HOURS", "twelve")
	if _, _, _, err := config.Load(""); err == nil {
		t.Fatal("expected error for unparsable schedule")
	}
}

func TestLoadRejectsUnknownCapability(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLEX_DATA_DIR", t.TempDir())
	t.Setenv("CAPABILITIES", "NO_MOVIE;WARP_SPEED")
	if _, _, _, err := config.Load(""); err == nil {
		t.Fatal("expected error for unknown capability")
	}
}

func TestMissingKeysDisableProviders(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLEX_DATA_DIR", t.TempDir())
	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Capabilities.Has(capabilities.TMDB) || cfg.Capabilities.Has(capabilities.TVDB) {
		t.Fatalf("expected providers disabled, got %s", cfg.Capabilities)
	}
}

func TestLegacyTVDBAuthString(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLEX_DATA_DIR", t.TempDir())
	t.Setenv("TVDB_AUTH_STRING", "user;userkey;legacy-api-key")
	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.TVDB.APIKey != "legacy-api-key" {
		t.Fatalf("expected api key from legacy string, got %q", cfg.TVDB.APIKey)
	}
	if !cfg.Capabilities.Has(capabilities.TVDB) {
		t.Fatal("expected TVDB enabled")
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearEnv(t)
	plexDir := t.TempDir()
	configPath := filepath.Join(t.TempDir(), "ratingsync.toml")

	type payload struct {
		Paths struct {
			PlexDataDir string `toml:"plex_data_dir"`
		} `toml:"paths"`
		Batch struct {
			ScheduleHours   int     `toml:"schedule_hours"`
			IgnoreLibraries []int64 `toml:"ignore_libraries"`
		} `toml:"batch"`
	}
	custom := payload{}
	custom.Paths.PlexDataDir = plexDir
	custom.Batch.ScheduleHours = 24
	custom.Batch.IgnoreLibraries = []int64{9}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Batch.ScheduleHours != 24 {
		t.Fatalf("ScheduleHours = %d, want 24", cfg.Batch.ScheduleHours)
	}
	if !reflect.DeepEqual(cfg.Batch.IgnoreLibraries, []int64{9}) {
		t.Fatalf("unexpected ignore list %v", cfg.Batch.IgnoreLibraries)
	}
	if cfg.Batch.ResolveWorkers != config.Default().Batch.ResolveWorkers {
		t.Fatalf("expected default workers, got %d", cfg.Batch.ResolveWorkers)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLEX_DATA_DIR", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
}
