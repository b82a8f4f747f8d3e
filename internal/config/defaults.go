package config

import "ratingsync/internal/capabilities"

const (
	defaultDataDir            = "~/.local/share/ratingsync"
	defaultLogDir             = "~/.local/share/ratingsync/logs"
	defaultTMDBBaseURL        = "https://api.themoviedb.org/3"
	defaultTVDBBaseURL        = "https://api.thetvdb.com"
	defaultDatasetURL         = "https://datasets.imdbws.com/title.ratings.tsv.gz"
	defaultDatasetTimeout     = 300
	defaultScheduleHours      = 12
	defaultResolveWorkers     = 4
	defaultRequestTimeout     = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	legacyTVDBAuthStringParts = 3
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		TMDB: TMDB{BaseURL: defaultTMDBBaseURL},
		TVDB: TVDB{BaseURL: defaultTVDBBaseURL},
		Dataset: Dataset{
			URL:            defaultDatasetURL,
			TimeoutSeconds: defaultDatasetTimeout,
		},
		Batch: Batch{
			ScheduleHours:  defaultScheduleHours,
			RunOnStart:     true,
			ResolveWorkers: defaultResolveWorkers,
			RequestTimeout: defaultRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Capabilities: capabilities.Defaults(),
	}
}
