package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"ratingsync/internal/capabilities"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// DataDir holds the job state document and cache files.
	DataDir string `toml:"data_dir"`
	// PlexDataDir is the Plex Media Server data directory (PLEX_DATA_DIR).
	PlexDataDir string `toml:"plex_data_dir"`
	LogDir      string `toml:"log_dir"`
}

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// TVDB contains configuration for the TheTVDB API.
type TVDB struct {
	APIKey string `toml:"api_key"`
	// AuthString is the legacy "username;userkey;apikey" form.
	AuthString string `toml:"auth_string"`
	BaseURL    string `toml:"base_url"`
}

// Dataset locates the IMDB ratings dataset.
type Dataset struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Batch contains scheduling and queue settings.
type Batch struct {
	ScheduleHours   int      `toml:"schedule_hours"`
	RunOnStart      bool     `toml:"run_on_start"`
	ResolveWorkers  int      `toml:"resolve_workers"`
	RequestTimeout  int      `toml:"request_timeout"`
	IgnoreLibraries []int64  `toml:"ignore_libraries"`
	Capabilities    []string `toml:"capabilities"`
}

// Metrics configures the optional Prometheus endpoint.
type Metrics struct {
	Bind string `toml:"bind"`
	// Token, when set, is required as a bearer token on /metrics.
	Token string `toml:"token"`
}

// Notifications configures ntfy delivery of batch events.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for ratingsync.
type Config struct {
	Paths   Paths   `toml:"paths"`
	TMDB    TMDB    `toml:"tmdb"`
	TVDB    TVDB    `toml:"tvdb"`
	Dataset Dataset `toml:"dataset"`
	Batch   Batch   `toml:"batch"`
	Metrics Metrics `toml:"metrics"`

	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`

	// Capabilities is derived from Batch.Capabilities and the configured
	// credentials during Load.
	Capabilities capabilities.Set `toml:"-"`
	// Notices collects non-fatal remarks made while normalizing, for the
	// caller to log once a logger exists.
	Notices []string `toml:"-"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ratingsync/config.toml")
}

// Load locates, parses, and validates a configuration file. A missing file is
// not an error: the environment alone can configure the service.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("ratingsync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CatalogPath returns the Plex library database location.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.PlexDataDir, "Plug-in Support", "Databases", "com.plexapp.plugins.library.db")
}

// StatePath returns the job state document location.
func (c *Config) StatePath() string {
	return filepath.Join(c.Paths.DataDir, "state-imdb.json")
}

// CacheDir returns the directory holding the cache documents.
func (c *Config) CacheDir() string {
	return c.Paths.DataDir
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "ratingsync.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
