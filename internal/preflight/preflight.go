package preflight

import (
	"context"

	"ratingsync/internal/capabilities"
	"ratingsync/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Disabled is the Detail of a check skipped because its provider is off.
const Disabled = "Disabled"

// RunAll executes every applicable preflight check for cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckCatalog(cfg.CatalogPath()),
	}
	if cfg.Capabilities.Has(capabilities.TMDB) {
		results = append(results, CheckTMDB(ctx, cfg.TMDB.BaseURL, cfg.TMDB.APIKey))
	} else {
		results = append(results, Result{Name: "TMDB", Detail: Disabled})
	}
	if cfg.Capabilities.Has(capabilities.TVDB) {
		results = append(results, CheckTVDB(ctx, cfg.TVDB.BaseURL, cfg.TVDB.APIKey))
	} else {
		results = append(results, Result{Name: "TVDB", Detail: Disabled})
	}
	results = append(results, CheckDataset(ctx, cfg.Dataset.URL))
	return results
}
