package testsupport

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync/atomic"
	"testing"
)

// Rating is one row of a ratings dataset fixture.
type Rating struct {
	Average float64
	Votes   int
}

// GzipRatings renders ratings in the dataset's gzipped TSV layout, header
// included, rows sorted by title id.
func GzipRatings(t testing.TB, ratings map[string]Rating) []byte {
	t.Helper()

	ids := make([]string, 0, len(ratings))
	for id := range ratings {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	fmt.Fprint(zw, "tconst\taverageRating\tnumVotes\n")
	for _, id := range ids {
		r := ratings[id]
		fmt.Fprintf(zw, "%s\t%.1f\t%d\n", id, r.Average, r.Votes)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip ratings: %v", err)
	}
	return buf.Bytes()
}

// ServeRatings starts a server answering every request with the gzipped
// ratings. The returned counter reports how many downloads happened.
func ServeRatings(t testing.TB, ratings map[string]Rating) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	body := GzipRatings(t, ratings)
	var downloads atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		downloads.Add(1)
		w.Header().Set("Content-Type", "application/gzip")
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server, &downloads
}
