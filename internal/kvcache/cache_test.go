package kvcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestStorePutAndGet(t *testing.T) {
	store := Open(TMDB, filepath.Join(t.TempDir(), "cache.json"), nil)

	store.Put("603", "tt0133093")

	value, ok := store.Get("603")
	if !ok {
		t.Fatal("Get failed to find stored entry")
	}
	if value != "tt0133093" {
		t.Errorf("value = %q, want tt0133093", value)
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}

func TestStoreGetEmptyKey(t *testing.T) {
	store := Open(TMDB, "", nil)
	store.Put("  ", "ignored")

	if _, ok := store.Get(""); ok {
		t.Error("Get should return false for empty key")
	}
	if store.Len() != 0 {
		t.Errorf("blank key should not be stored, Len = %d", store.Len())
	}
}

func TestStoreDumpAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	store := Open(TVDB, path, nil)
	store.Put("121361", "tt0944947")
	store.Put("121361/1/1", "tt1480055")
	if err := store.Dump(); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}

	reloaded := Open(TVDB, path, nil)
	if reloaded.Len() != 2 {
		t.Fatalf("reloaded Len = %d, want 2", reloaded.Len())
	}
	if value, _ := reloaded.Get("121361/1/1"); value != "tt1480055" {
		t.Errorf("episode value = %q, want tt1480055", value)
	}
	if entries, _ := os.ReadDir(filepath.Dir(path)); len(entries) != 1 {
		t.Errorf("temp file should not remain after dump, found %d entries", len(entries))
	}
}

func TestStoreDumpSkipsUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	store := Open(TMDB, path, nil)
	if err := store.Dump(); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("untouched cache should not create a file")
	}

	store.Put("603", "tt0133093")
	if err := store.Dump(); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	first, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	// Replace the document behind the store's back; an unchanged store must
	// not overwrite it.
	if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Dump(); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "[]" {
		t.Errorf("unchanged store rewrote file (size before %d)", first.Size())
	}
}

func TestStoreCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := Open(TMDB, path, nil)
	if store.Len() != 0 {
		t.Errorf("corrupt cache Len = %d, want 0", store.Len())
	}

	store.Put("603", "tt0133093")
	if err := store.Dump(); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	if reloaded := Open(TMDB, path, nil); reloaded.Len() != 1 {
		t.Errorf("rewritten cache Len = %d, want 1", reloaded.Len())
	}
}

func TestExpiredCheckRemovesOnlyOldEntries(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	store := Open(TVDBBlacklist, "", nil)

	store.now = fixedClock(now.Add(-15 * 24 * time.Hour))
	store.Put("old", NotFound)
	store.now = fixedClock(now.Add(-13 * 24 * time.Hour))
	store.Put("recent", NotFound)
	fresh, _ := store.Lookup("recent")

	store.now = fixedClock(now)
	removed := store.ExpiredCheck(BlacklistTTLDays)

	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, ok := store.Get("old"); ok {
		t.Error("entry older than TTL should be removed")
	}
	kept, ok := store.Lookup("recent")
	if !ok {
		t.Fatal("entry within TTL should remain")
	}
	if kept != fresh {
		t.Errorf("surviving entry changed: got %+v, want %+v", kept, fresh)
	}
}

func TestExpiredCheckNothingExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	store := Open(TVDBBlacklist, path, nil)
	store.Put("a", NotFound)
	if err := store.Dump(); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	generation := store.generation

	if removed := store.ExpiredCheck(BlacklistTTLDays); removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
	if store.generation != generation {
		t.Error("no-op expiry should not mark the cache dirty")
	}
}

func TestSetPurgeBlacklistsAndDumpAll(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	set := OpenSet(dir, nil)
	for _, store := range set.Stores() {
		store.now = fixedClock(now.Add(-30 * 24 * time.Hour))
		store.Put("key", "value")
		store.now = fixedClock(now)
	}

	if removed := set.PurgeBlacklists(BlacklistTTLDays); removed != 2 {
		t.Errorf("removed = %d, want 2 (one per blacklist)", removed)
	}
	if set.Get(TMDB).Len() != 1 {
		t.Error("positive caches must not be purged")
	}

	if err := set.DumpAll(); err != nil {
		t.Fatalf("DumpAll failed: %v", err)
	}
	for name, file := range fileNames {
		if _, err := os.Stat(filepath.Join(dir, file)); err != nil {
			t.Errorf("cache %s not written: %v", name, err)
		}
	}

	reloaded := OpenSet(dir, nil)
	if reloaded.Get(TVDBBlacklist).Len() != 0 {
		t.Error("purged blacklist should reload empty")
	}
	if reloaded.Get(MovieAgentMapping).Len() != 1 {
		t.Error("agent mapping should reload its entry")
	}
}

func TestSetGetUnknownPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown cache name")
		}
	}()
	OpenSet("", nil).Get("missing")
}
