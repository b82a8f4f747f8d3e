// Package config loads, normalizes, and validates ratingsync configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the environment variables the
// container image is driven by: TMDB_API_KEY, TVDB_API_KEY, the legacy
// TVDB_AUTH_STRING, PLEX_DATA_DIR, IGNORE_LIBS, CAPABILITIES and
// RATINGSYNC_SCHEDULE_HOURS. API keys from the environment only fill empty
// file values; the remaining variables take precedence over the file.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, a parsed capability set and clear validation errors.
package config
