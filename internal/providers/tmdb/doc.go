// Package tmdb implements the subset of The Movie Database API that ratingsync
// needs to translate TMDB identifiers into IMDB identifiers.
//
// Lookups return an empty id with a nil error when TMDB answers 404, so the
// caller can record a negative result. Every other failure wraps
// services.ErrAPI and defers the batch.
package tmdb
