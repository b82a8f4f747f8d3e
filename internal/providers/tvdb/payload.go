package tvdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Data is the decoded content of a TVDB "data" member.
type Data interface {
	// IMDbID returns the IMDB id carried by the payload, or "".
	IMDbID() string
	isData()
}

// SeriesData is returned by the series endpoint.
type SeriesData struct {
	ID         int64  `json:"id"`
	SeriesName string `json:"seriesName"`
	ImdbID     string `json:"imdbId"`
}

func (d SeriesData) IMDbID() string { return strings.TrimSpace(d.ImdbID) }

func (SeriesData) isData() {}

// EpisodeRecord is a single episode match.
type EpisodeRecord struct {
	ID                 int64  `json:"id"`
	AiredSeason        int    `json:"airedSeason"`
	AiredEpisodeNumber int    `json:"airedEpisodeNumber"`
	EpisodeName        string `json:"episodeName"`
	ImdbID             string `json:"imdbId"`
}

// EpisodeData is returned by the episode query endpoint. Only the first
// record is considered.
type EpisodeData []EpisodeRecord

func (d EpisodeData) IMDbID() string {
	if len(d) == 0 {
		return ""
	}
	return strings.TrimSpace(d[0].ImdbID)
}

func (EpisodeData) isData() {}

// Payload is the TVDB response envelope.
type Payload struct {
	Data  Data
	Error string
}

// IMDbID returns the IMDB id in the payload; absent data yields "".
func (p Payload) IMDbID() string {
	if p.Data == nil {
		return ""
	}
	return p.Data.IMDbID()
}

// UnmarshalJSON classifies the data member by its JSON shape.
func (p *Payload) UnmarshalJSON(raw []byte) error {
	var envelope struct {
		Data  json.RawMessage `json:"data"`
		Error string          `json:"Error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return err
	}
	p.Error = envelope.Error
	p.Data = nil

	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '{':
		var series SeriesData
		if err := json.Unmarshal(data, &series); err != nil {
			return fmt.Errorf("decode series data: %w", err)
		}
		p.Data = series
	case '[':
		var episodes EpisodeData
		if err := json.Unmarshal(data, &episodes); err != nil {
			return fmt.Errorf("decode episode data: %w", err)
		}
		p.Data = episodes
	default:
		return fmt.Errorf("unexpected tvdb data shape %q", data[:1])
	}
	return nil
}
