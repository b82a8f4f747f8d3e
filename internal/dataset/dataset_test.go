package dataset_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ratingsync/internal/dataset"
	"ratingsync/internal/services"
	"ratingsync/internal/testsupport"
)

func gzipText(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(text))
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	return buf.Bytes()
}

func TestParse(t *testing.T) {
	body := gzipText(t, "tconst\taverageRating\tnumVotes\ntt0133093\t8.7\t2100000\nbroken\ntt0944947\tn/a\t5\ntt0113277\t8.3\t700000\n")

	ratings, err := dataset.Parse(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ratings) != 2 {
		t.Fatalf("expected 2 ratings, got %d", len(ratings))
	}
	rating, ok := ratings.Lookup("tt0133093")
	if !ok || rating.Average != 8.7 || rating.Votes != 2100000 {
		t.Errorf("unexpected rating: %+v (%v)", rating, ok)
	}
	if _, ok := ratings.Lookup("tt0944947"); ok {
		t.Error("unparsable rating should be skipped")
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := map[string][]byte{
		"not gzip":   []byte("tconst\taverageRating\n"),
		"bad header": gzipText(t, "id\trating\n"),
		"empty":      gzipText(t, ""),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := dataset.Parse(bytes.NewReader(body)); !errors.Is(err, services.ErrDataset) {
				t.Fatalf("expected ErrDataset, got %v", err)
			}
		})
	}
}

func TestHTTPSourceLoad(t *testing.T) {
	server, downloads := testsupport.ServeRatings(t, map[string]testsupport.Rating{
		"tt0133093": {Average: 8.7, Votes: 10},
	})

	source := dataset.NewHTTPSource(server.URL, time.Second, nil)
	ratings, err := source.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rating, ok := ratings.Lookup("tt0133093"); !ok || rating.Average != 8.7 {
		t.Errorf("unexpected rating: %+v", rating)
	}
	if downloads.Load() != 1 {
		t.Errorf("downloads = %d", downloads.Load())
	}
}

func TestHTTPSourceServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	_, err := dataset.NewHTTPSource(server.URL, time.Second, nil).Load(context.Background())
	if !errors.Is(err, services.ErrDataset) {
		t.Fatalf("expected ErrDataset, got %v", err)
	}
}

func TestMemoLoadsOnceUntilReset(t *testing.T) {
	server, downloads := testsupport.ServeRatings(t, map[string]testsupport.Rating{
		"tt0133093": {Average: 8.7, Votes: 10},
	})
	memo := dataset.NewMemo(dataset.NewHTTPSource(server.URL, time.Second, nil))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := memo.Load(ctx); err != nil {
			t.Fatalf("Load #%d: %v", i+1, err)
		}
	}
	if downloads.Load() != 1 {
		t.Fatalf("expected a single download, got %d", downloads.Load())
	}

	memo.Reset()
	if _, err := memo.Load(ctx); err != nil {
		t.Fatalf("Load after reset: %v", err)
	}
	if downloads.Load() != 2 {
		t.Fatalf("expected a fresh download after reset, got %d", downloads.Load())
	}
}
