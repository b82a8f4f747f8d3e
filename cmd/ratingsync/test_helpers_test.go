package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"ratingsync/internal/config"
	"ratingsync/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	tmdb       *httptest.Server
	dataset    *httptest.Server
}

// setupCLITestEnv writes a config that points at local provider and dataset
// stubs. TVDB is left unconfigured.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	for _, key := range []string{"TMDB_API_KEY", "TVDB_API_KEY", "TVDB_AUTH_STRING", "PLEX_DATA_DIR", "RATINGSYNC_DATA_DIR", "IGNORE_LIBS", "CAPABILITIES", "RATINGSYNC_SCHEDULE_HOURS"} {
		t.Setenv(key, "")
	}

	tmdbMux := http.NewServeMux()
	tmdbMux.HandleFunc("/configuration", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"images":{}}`))
	})
	tmdbMux.HandleFunc("/movie/603", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":603,"imdb_id":"tt0133093"}`))
	})
	tmdbServer := httptest.NewServer(tmdbMux)
	t.Cleanup(tmdbServer.Close)

	datasetServer, _ := testsupport.ServeRatings(t, map[string]testsupport.Rating{
		"tt0133093": {Average: 8.7, Votes: 2000000},
	})

	cfg := testsupport.NewConfig(t,
		testsupport.WithTMDB(tmdbServer.URL),
		testsupport.WithDatasetURL(datasetServer.URL),
	)
	cfg.TVDB.APIKey = ""

	configPath := filepath.Join(homeDir, ".config", "ratingsync", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		tmdb:       tmdbServer,
		dataset:    datasetServer,
	}
}

func (e *cliTestEnv) seedCatalog(t *testing.T) *testsupport.CatalogFixture {
	t.Helper()
	return testsupport.NewCatalog(t, e.cfg.CatalogPath(),
		[]testsupport.Section{{ID: 1, Name: "Movies", SectionType: 1, Agent: "com.plexapp.agents.themoviedb"}},
		[]testsupport.Metadata{
			{ID: 10, SectionID: 1, MetadataType: 1, GUID: "com.plexapp.agents.themoviedb://603?lang=en", Title: "The Matrix", Rating: testsupport.Float(7.0)},
		})
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
