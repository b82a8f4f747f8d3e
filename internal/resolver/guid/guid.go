// Package guid interprets the metadata agent identifiers stored with catalog
// items.
//
// Legacy agents embed the provider id in the guid itself:
//
//	com.plexapp.agents.themoviedb://603?lang=en
//	com.plexapp.agents.thetvdb://121361/1/1?lang=en
//	com.plexapp.agents.imdb://tt0133093?lang=en
//
// The newer Plex agents use an opaque plex:// guid and list the provider ids
// separately as external guids (imdb://tt0133093, tmdb://603, tvdb://121361).
package guid

import (
	"fmt"
	"strconv"
	"strings"
)

// Provider identifies the service that owns an id.
type Provider string

const (
	ProviderTMDB Provider = "tmdb"
	ProviderTVDB Provider = "tvdb"
	ProviderIMDb Provider = "imdb"
	ProviderPlex Provider = "plex"
)

// Kind is the media kind of a catalog item.
type Kind string

const (
	KindMovie   Kind = "movie"
	KindSeries  Kind = "series"
	KindEpisode Kind = "episode"
)

// Reference locates an item at an external provider.
type Reference struct {
	Provider Provider `json:"provider"`
	Kind     Kind     `json:"kind"`
	ID       string   `json:"id"`
	Season   int      `json:"season,omitempty"`
	Episode  int      `json:"episode,omitempty"`
	// AgentID is the opaque plex:// id when the reference was derived from an
	// external guid of a new-agent item.
	AgentID string `json:"agent_id,omitempty"`
}

// Key returns the cache key for the reference: the provider id, or
// series/season/episode for episodes.
func (r Reference) Key() string {
	if r.Kind == KindEpisode {
		return fmt.Sprintf("%s/%d/%d", r.ID, r.Season, r.Episode)
	}
	return r.ID
}

func (r Reference) String() string {
	return string(r.Provider) + "://" + r.Key()
}

var schemes = map[string]Provider{
	"com.plexapp.agents.themoviedb": ProviderTMDB,
	"themoviedb":                    ProviderTMDB,
	"tmdb":                          ProviderTMDB,
	"com.plexapp.agents.thetvdb":    ProviderTVDB,
	"thetvdb":                       ProviderTVDB,
	"tvdb":                          ProviderTVDB,
	"com.plexapp.agents.imdb":       ProviderIMDb,
	"imdb":                          ProviderIMDb,
	"plex":                          ProviderPlex,
}

// Parse interprets an agent guid for an item of the given kind. It reports
// false for agents it does not understand (local media, anime agents) and for
// malformed ids.
func Parse(raw string, kind Kind) (Reference, bool) {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return Reference{}, false
	}
	provider, ok := schemes[strings.ToLower(scheme)]
	if !ok {
		return Reference{}, false
	}
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return Reference{}, false
	}

	switch provider {
	case ProviderPlex:
		// plex://movie/5d776825880197001ec967c2
		id := parts[len(parts)-1]
		if len(parts) < 2 || id == "" {
			return Reference{}, false
		}
		return Reference{Provider: ProviderPlex, Kind: kind, ID: id}, true
	case ProviderIMDb:
		if !IsIMDbID(parts[0]) {
			return Reference{}, false
		}
		return Reference{Provider: ProviderIMDb, Kind: kind, ID: parts[0]}, true
	}

	ref := Reference{Provider: provider, Kind: kind, ID: parts[0]}
	switch len(parts) {
	case 1:
		if kind == KindEpisode {
			return Reference{}, false
		}
	case 3:
		season, errSeason := strconv.Atoi(parts[1])
		episode, errEpisode := strconv.Atoi(parts[2])
		if errSeason != nil || errEpisode != nil || season < 0 || episode < 0 {
			return Reference{}, false
		}
		ref.Kind = KindEpisode
		ref.Season = season
		ref.Episode = episode
	default:
		return Reference{}, false
	}
	if _, err := strconv.ParseInt(ref.ID, 10, 64); err != nil {
		return Reference{}, false
	}
	return ref, true
}

// FromExternal picks the most direct reference among the external guids of a
// new-agent item: an IMDB id when present, else TMDB, else TVDB.
func FromExternal(guids []string, kind Kind) (Reference, bool) {
	var best Reference
	rank := 0
	for _, raw := range guids {
		ref, ok := Parse(raw, kind)
		if !ok {
			continue
		}
		r := providerRank(ref.Provider)
		if r > rank {
			best, rank = ref, r
		}
	}
	return best, rank > 0
}

func providerRank(p Provider) int {
	switch p {
	case ProviderIMDb:
		return 3
	case ProviderTMDB:
		return 2
	case ProviderTVDB:
		return 1
	default:
		return 0
	}
}

// IsIMDbID reports whether id looks like an IMDB title id.
func IsIMDbID(id string) bool {
	if len(id) < 3 || !strings.HasPrefix(id, "tt") {
		return false
	}
	for _, r := range id[2:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
