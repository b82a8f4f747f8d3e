package tvdb

import (
	"encoding/json"
	"testing"
)

func TestPayloadClassifiesShape(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		variant string
	}{
		{name: "series object", raw: `{"data":{"id":121361,"seriesName":"Game of Thrones","imdbId":"tt0944947"}}`, want: "tt0944947", variant: "series"},
		{name: "episode array", raw: `{"data":[{"airedSeason":1,"airedEpisodeNumber":1,"imdbId":"tt1480055"},{"imdbId":"tt9999999"}]}`, want: "tt1480055", variant: "episode"},
		{name: "empty array", raw: `{"data":[]}`, want: "", variant: "episode"},
		{name: "null data", raw: `{"data":null}`, want: "", variant: "none"},
		{name: "missing data", raw: `{"Error":"Resource not found"}`, want: "", variant: "none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var payload Payload
			if err := json.Unmarshal([]byte(tt.raw), &payload); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := payload.IMDbID(); got != tt.want {
				t.Errorf("IMDbID = %q, want %q", got, tt.want)
			}
			variant := "none"
			switch payload.Data.(type) {
			case SeriesData:
				variant = "series"
			case EpisodeData:
				variant = "episode"
			}
			if variant != tt.variant {
				t.Errorf("variant = %s, want %s", variant, tt.variant)
			}
		})
	}
}

func TestPayloadRejectsScalarData(t *testing.T) {
	var payload Payload
	if err := json.Unmarshal([]byte(`{"data":"tt0944947"}`), &payload); err == nil {
		t.Fatal("expected error for scalar data member")
	}
}
