package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"ratingsync/internal/capabilities"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTMDB()
	c.normalizeTVDB()
	c.normalizeDataset()
	if err := c.normalizeBatch(); err != nil {
		return err
	}
	c.normalizeLogging()
	return c.deriveCapabilities()
}

func (c *Config) normalizePaths() error {
	if value, ok := lookupEnv("PLEX_DATA_DIR"); ok {
		c.Paths.PlexDataDir = value
	}
	if value, ok := lookupEnv("RATINGSYNC_DATA_DIR"); ok {
		c.Paths.DataDir = value
	}
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.PlexDataDir, err = expandPath(strings.TrimSpace(c.Paths.PlexDataDir)); err != nil {
		return fmt.Errorf("paths.plex_data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTMDB() {
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	if c.TMDB.APIKey == "" {
		if value, ok := lookupEnv("TMDB_API_KEY"); ok {
			c.TMDB.APIKey = value
		}
	}
	c.TMDB.BaseURL = strings.TrimSpace(c.TMDB.BaseURL)
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
}

func (c *Config) normalizeTVDB() {
	c.TVDB.APIKey = strings.TrimSpace(c.TVDB.APIKey)
	if c.TVDB.APIKey == "" {
		if value, ok := lookupEnv("TVDB_API_KEY"); ok {
			c.TVDB.APIKey = value
		}
	}
	c.TVDB.AuthString = strings.TrimSpace(c.TVDB.AuthString)
	if c.TVDB.AuthString == "" {
		if value, ok := lookupEnv("TVDB_AUTH_STRING"); ok {
			c.TVDB.AuthString = value
		}
	}
	if c.TVDB.AuthString != "" {
		c.Notices = append(c.Notices, "TVDB_AUTH_STRING is deprecated; provide only the API key via TVDB_API_KEY")
		parts := strings.Split(c.TVDB.AuthString, ";")
		switch {
		case len(parts) != legacyTVDBAuthStringParts:
			c.Notices = append(c.Notices, "invalid TVDB auth string: expected 3 items separated by ';', ignoring it")
		case c.TVDB.APIKey == "":
			c.TVDB.APIKey = strings.TrimSpace(parts[2])
		}
	}
	c.TVDB.BaseURL = strings.TrimSpace(c.TVDB.BaseURL)
	if c.TVDB.BaseURL == "" {
		c.TVDB.BaseURL = defaultTVDBBaseURL
	}
}

func (c *Config) normalizeDataset() {
	c.Dataset.URL = strings.TrimSpace(c.Dataset.URL)
	if c.Dataset.URL == "" {
		c.Dataset.URL = defaultDatasetURL
	}
	if c.Dataset.TimeoutSeconds <= 0 {
		c.Dataset.TimeoutSeconds = defaultDatasetTimeout
	}
}

func (c *Config) normalizeBatch() error {
	if value, ok := lookupEnv("RATINGSYNC_SCHEDULE_HOURS"); ok {
		hours, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("RATINGSYNC_SCHEDULE_HOURS: %q is not a whole number of hours", value)
		}
		c.Batch.ScheduleHours = hours
	}
	if c.Batch.ResolveWorkers <= 0 {
		c.Batch.ResolveWorkers = defaultResolveWorkers
	}
	if c.Batch.RequestTimeout <= 0 {
		c.Batch.RequestTimeout = defaultRequestTimeout
	}

	if value, ok := lookupEnv("IGNORE_LIBS"); ok {
		for _, candidate := range strings.Split(value, ";") {
			candidate = strings.TrimSpace(candidate)
			if candidate == "" {
				continue
			}
			id, err := strconv.ParseInt(candidate, 10, 64)
			if err != nil {
				c.Notices = append(c.Notices, fmt.Sprintf("ignoring non-numeric IGNORE_LIBS entry %q", candidate))
				continue
			}
			c.Batch.IgnoreLibraries = append(c.Batch.IgnoreLibraries, id)
		}
	}
	c.Batch.IgnoreLibraries = dedupeIDs(c.Batch.IgnoreLibraries)

	if value, ok := lookupEnv("CAPABILITIES"); ok {
		c.Batch.Capabilities = capabilities.Split(value)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format != "json" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) deriveCapabilities() error {
	set, err := capabilities.Parse(c.Batch.Capabilities)
	if err != nil {
		return fmt.Errorf("batch.capabilities: %w", err)
	}
	if c.TMDB.APIKey == "" {
		c.Notices = append(c.Notices, "no TMDB API key configured; TMDB backed libraries will not be processed")
		set = set.Without(capabilities.TMDB)
	}
	if c.TVDB.APIKey == "" {
		c.Notices = append(c.Notices, "no TVDB API key configured; TVDB backed series will not be processed")
		set = set.Without(capabilities.TVDB)
	}
	c.Capabilities = set
	return nil
}

func dedupeIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
