package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"ratingsync/internal/services"
)

// Validate ensures the configuration is usable. All failures carry the
// services.ErrConfiguration marker.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return fmt.Errorf("%w: %w", services.ErrConfiguration, err)
	}
	if err := c.validateBatch(); err != nil {
		return fmt.Errorf("%w: %w", services.ErrConfiguration, err)
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.PlexDataDir) == "" {
		return errors.New("paths.plex_data_dir is required; set PLEX_DATA_DIR or edit the config file")
	}
	info, err := os.Stat(c.Paths.PlexDataDir)
	if err != nil {
		return fmt.Errorf("paths.plex_data_dir %q: %w", c.Paths.PlexDataDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("paths.plex_data_dir %q is not a directory", c.Paths.PlexDataDir)
	}
	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.ScheduleHours < 1 {
		return fmt.Errorf("batch.schedule_hours must be at least 1, got %d", c.Batch.ScheduleHours)
	}
	for _, id := range c.Batch.IgnoreLibraries {
		if id <= 0 {
			return fmt.Errorf("batch.ignore_libraries contains invalid id %d", id)
		}
	}
	return nil
}
