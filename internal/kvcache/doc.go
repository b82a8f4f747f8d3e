// Package kvcache provides the durable string-to-string caches that keep
// ratingsync from repeating external lookups.
//
// Each Store is backed by one JSON document. Entries carry the time they were
// written so blacklist caches can expire negative results: a title that could
// not be matched today may be matchable once the providers update their data.
//
// # Storage
//
// Documents live in the configured data directory, one per named cache:
//
//	cache-tmdb2imdb.json            TMDB movie id   -> IMDB id
//	cache-tmdbseries2imdb.json      TMDB series id  -> IMDB id
//	cache-tmdbseriesBlacklist.json  TMDB series ids without a match
//	cache-tvdb2imdb.json            TVDB series/episode key -> IMDB id
//	cache-tvdbBlacklist.json        TVDB keys without a match
//	new-movie-agent-mapping.json    Plex movie agent guid -> IMDB id
//
// A missing or unreadable document yields an empty cache. Writes only happen
// on Dump, which replaces the document atomically.
package kvcache
