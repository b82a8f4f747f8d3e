package kvcache

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
)

// Cache names.
const (
	TMDB                = "tmdb"
	TMDBSeries          = "tmdb-series"
	TMDBSeriesBlacklist = "tmdb-series-blacklist"
	TVDB                = "tvdb"
	TVDBBlacklist       = "tvdb-blacklist"
	MovieAgentMapping   = "new-movie-agent-mapping"
)

// BlacklistTTLDays is how long a negative lookup stays cached.
const BlacklistTTLDays = 14

var fileNames = map[string]string{
	TMDB:                "cache-tmdb2imdb.json",
	TMDBSeries:          "cache-tmdbseries2imdb.json",
	TMDBSeriesBlacklist: "cache-tmdbseriesBlacklist.json",
	TVDB:                "cache-tvdb2imdb.json",
	TVDBBlacklist:       "cache-tvdbBlacklist.json",
	MovieAgentMapping:   "new-movie-agent-mapping.json",
}

var blacklists = []string{TMDBSeriesBlacklist, TVDBBlacklist}

// Names returns every cache name in a stable order.
func Names() []string {
	names := make([]string, 0, len(fileNames))
	for name := range fileNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Set holds the named caches used by one process.
type Set struct {
	stores map[string]*Store
}

// OpenSet loads every named cache from dir. An empty dir yields in-memory
// caches.
func OpenSet(dir string, logger *slog.Logger) *Set {
	set := &Set{stores: make(map[string]*Store, len(fileNames))}
	for name, file := range fileNames {
		path := ""
		if dir != "" {
			path = filepath.Join(dir, file)
		}
		set.stores[name] = Open(name, path, logger)
	}
	return set
}

// Get returns the named cache. It panics on unknown names since those are
// programming errors.
func (s *Set) Get(name string) *Store {
	store, ok := s.stores[name]
	if !ok {
		panic(fmt.Sprintf("kvcache: unknown cache %q", name))
	}
	return store
}

// Stores returns every cache sorted by name.
func (s *Set) Stores() []*Store {
	stores := make([]*Store, 0, len(s.stores))
	for _, name := range Names() {
		stores = append(stores, s.stores[name])
	}
	return stores
}

// PurgeBlacklists expires blacklist entries older than ttlDays and returns
// the total removed.
func (s *Set) PurgeBlacklists(ttlDays int) int {
	removed := 0
	for _, name := range blacklists {
		removed += s.stores[name].ExpiredCheck(ttlDays)
	}
	return removed
}

// DumpAll persists every cache, continuing past failures.
func (s *Set) DumpAll() error {
	var errs []error
	for _, store := range s.Stores() {
		if err := store.Dump(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
