// Package resolver translates provider references into IMDB identifiers.
//
// Every lookup goes through the durable caches first. Positive results and
// TMDB movie misses are kept indefinitely; series and episode misses go to
// blacklist caches that expire, so a title without an IMDB id today is
// retried once the blacklist entry ages out. A blacklist hit never touches
// the network.
package resolver
