package kvcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"ratingsync/internal/fileutil"
	"ratingsync/internal/logging"
)

// NotFound is the value stored for keys a provider could not match.
const NotFound = "-"

// Entry is a single cached mapping.
type Entry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a thread-safe, file-backed key-value cache.
type Store struct {
	name   string
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]Entry
	// generation increments on every mutation; saved records the generation
	// last written to disk.
	generation uint64
	saved      uint64

	dumpMu sync.Mutex
}

// Open creates a cache backed by path. If path is empty the cache lives in
// memory only and Dump is a no-op.
func Open(name, path string, logger *slog.Logger) *Store {
	logger = logging.NewComponentLogger(logger, "kvcache").With(logging.String("cache", name))

	s := &Store{
		name:    name,
		path:    path,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]Entry),
	}
	if path == "" {
		return s
	}

	if err := s.load(); err != nil {
		logging.WarnWithContext(logger, "failed to load cache",
			"kvcache_load_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the cache file if the problem persists"),
			logging.String(logging.FieldImpact, "cache starts empty; previously resolved ids will be looked up again"))
		s.entries = make(map[string]Entry)
	}
	return s
}

// Name returns the cache name.
func (s *Store) Name() string { return s.name }

// Path returns the backing document path.
func (s *Store) Path() string { return s.path }

// Get returns the cached value for key.
func (s *Store) Get(key string) (string, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	return entry.Value, ok
}

// Lookup returns the full entry for key.
func (s *Store) Lookup(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[strings.TrimSpace(key)]
	return entry, ok
}

// Put records value for key, stamping the current time.
func (s *Store) Put(key, value string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = Entry{Key: key, Value: value, UpdatedAt: s.now().UTC()}
	s.generation++
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entries returns a copy of all entries sorted by key.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked()
}

// ExpiredCheck removes entries older than ttlDays, measured against the
// current time, and returns how many were removed.
func (s *Store) ExpiredCheck(ttlDays int) int {
	if ttlDays < 0 {
		return 0
	}
	cutoff := s.now().UTC().Add(-time.Duration(ttlDays) * 24 * time.Hour)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, entry := range s.entries {
		if entry.UpdatedAt.Before(cutoff) {
			delete(s.entries, key)
			removed++
		}
	}
	if removed > 0 {
		s.generation++
		s.logger.Debug("expired cache entries removed",
			logging.Int("removed", removed),
			logging.Int("ttl_days", ttlDays))
	}
	return removed
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return
	}
	s.entries = make(map[string]Entry)
	s.generation++
}

// Dump writes the cache to disk atomically. It is a no-op when nothing
// changed since the last successful dump. Concurrent callers are serialized;
// the last one to finish wins.
func (s *Store) Dump() error {
	if s.path == "" {
		return nil
	}
	s.dumpMu.Lock()
	defer s.dumpMu.Unlock()

	s.mu.RLock()
	if s.generation == s.saved {
		s.mu.RUnlock()
		return nil
	}
	generation := s.generation
	entries := s.sortedLocked()
	s.mu.RUnlock()

	if err := fileutil.WriteJSON(s.path, entries); err != nil {
		return fmt.Errorf("dump cache %s: %w", s.name, err)
	}

	s.mu.Lock()
	if generation > s.saved {
		s.saved = generation
	}
	s.mu.Unlock()

	s.logger.Debug("cache dumped",
		logging.Int("entry_count", len(entries)),
		logging.String("path", s.path))
	return nil
}

func (s *Store) sortedLocked() []Entry {
	entries := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})
	return entries
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse cache file: %w", err)
	}
	for _, entry := range entries {
		if key := strings.TrimSpace(entry.Key); key != "" {
			entry.Key = key
			s.entries[key] = entry
		}
	}

	s.logger.Debug("loaded cache",
		logging.Int("entry_count", len(s.entries)),
		logging.String("path", s.path))
	return nil
}
