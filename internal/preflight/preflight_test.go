package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"ratingsync/internal/capabilities"
	"ratingsync/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCatalog(t *testing.T) {
	dir := t.TempDir()
	if result := CheckCatalog(filepath.Join(dir, "missing.db")); result.Passed {
		t.Fatal("expected failure for missing database")
	}
	if result := CheckCatalog(dir); result.Passed {
		t.Fatal("expected failure for directory")
	}
	db := filepath.Join(dir, "library.db")
	if err := os.WriteFile(db, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckCatalog(db); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckTMDB_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/configuration" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"images":{}}`))
	}))
	defer srv.Close()

	result := CheckTMDB(context.Background(), srv.URL, "good-key")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckTMDB_BadKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result := CheckTMDB(context.Background(), srv.URL, "bad-key")
	if result.Passed {
		t.Fatal("expected failure for bad key")
	}
	if result.Detail != "auth failed (invalid api key)" {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckTVDB_MissingKey(t *testing.T) {
	result := CheckTVDB(context.Background(), "http://localhost", "")
	if result.Passed {
		t.Fatal("expected failure for missing key")
	}
}

func TestCheckTVDB_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"Error":"API Key Required"}`))
	}))
	defer srv.Close()

	result := CheckTVDB(context.Background(), srv.URL, "bad-key")
	if result.Passed {
		t.Fatal("expected failure for rejected login")
	}
}

func TestCheckDataset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if result := CheckDataset(context.Background(), srv.URL); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckDataset(context.Background(), srv.URL+"/missing\x7f"); result.Passed {
		t.Fatal("expected failure for invalid url")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ProvidersDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.PlexDataDir = t.TempDir()
	cfg.Dataset.URL = srv.URL
	cfg.Capabilities = capabilities.Defaults().Without(capabilities.TMDB, capabilities.TVDB)

	results := RunAll(context.Background(), &cfg)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	byName := make(map[string]Result, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}
	if !byName["Data directory"].Passed || !byName["IMDB dataset"].Passed {
		t.Errorf("expected data directory and dataset checks to pass: %+v", results)
	}
	if byName["Plex catalog"].Passed {
		t.Error("expected catalog check to fail without a database")
	}
	if byName["TMDB"].Detail != "Disabled" || byName["TVDB"].Detail != "Disabled" {
		t.Errorf("expected disabled providers: %+v", results)
	}
}
