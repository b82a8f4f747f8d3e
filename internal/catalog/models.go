package catalog

import (
	"context"

	"ratingsync/internal/resolver/guid"
)

// LibraryType is the media class of a library.
type LibraryType string

const (
	LibraryMovie  LibraryType = "movie"
	LibrarySeries LibraryType = "series"
)

// Library is a catalog section.
type Library struct {
	ID    int64       `json:"id"`
	Name  string      `json:"name"`
	Type  LibraryType `json:"type"`
	Agent string      `json:"agent"`
	Items int         `json:"items"`
}

// Item is a rateable catalog entry: a movie, a series or an episode.
type Item struct {
	ID            int64
	LibraryID     int64
	GUID          string
	Kind          guid.Kind
	Title         string
	Season        int
	Episode       int
	Rating        *float64
	ExternalGUIDs []string
}

// RatingUpdate sets the audience rating of one item.
type RatingUpdate struct {
	ItemID int64
	Rating float64
}

// Catalog is the storage collaborator used by the batch and pipeline.
type Catalog interface {
	ListLibraries(ctx context.Context) ([]Library, error)
	ListItems(ctx context.Context, libraryID int64) ([]Item, error)
	UpdateRatings(ctx context.Context, updates []RatingUpdate) (int, error)
}

// media server metadata_type values.
const (
	metadataMovie   = 1
	metadataShow    = 2
	metadataSeason  = 3
	metadataEpisode = 4
)

// media server section_type values.
const (
	sectionMovie = 1
	sectionShow  = 2
)

// tagTypeExternalGUID marks tags holding provider guids of new-agent items.
const tagTypeExternalGUID = 314

func kindForMetadataType(t int) (guid.Kind, bool) {
	switch t {
	case metadataMovie:
		return guid.KindMovie, true
	case metadataShow:
		return guid.KindSeries, true
	case metadataEpisode:
		return guid.KindEpisode, true
	default:
		return "", false
	}
}

func libraryTypeForSection(t int) (LibraryType, bool) {
	switch t {
	case sectionMovie:
		return LibraryMovie, true
	case sectionShow:
		return LibrarySeries, true
	default:
		return "", false
	}
}
