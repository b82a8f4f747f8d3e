// Package tvdb implements the TheTVDB v3 endpoints that ratingsync uses to
// translate TVDB series and episode identifiers into IMDB identifiers.
//
// A Client only exists once Login has succeeded; the bearer token it holds is
// used for the lifetime of the process. Responses wrap their result in a
// "data" member whose shape depends on the endpoint: an object for series
// lookups and an array for episode queries. Payload classifies that shape
// while decoding.
package tvdb
