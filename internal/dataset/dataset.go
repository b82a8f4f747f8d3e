// Package dataset downloads and parses the IMDB title ratings dataset: a
// gzipped TSV file with a header line and the columns tconst, averageRating
// and numVotes.
//
// Any failure to obtain or read the dataset wraps services.ErrDataset; the
// batch defers the affected library to the next run.
package dataset

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"ratingsync/internal/logging"
	"ratingsync/internal/services"
)

// Rating is the IMDB rating of a title.
type Rating struct {
	Average float64
	Votes   int
}

// Ratings maps IMDB title ids to ratings.
type Ratings map[string]Rating

// Lookup returns the rating of an IMDB id.
func (r Ratings) Lookup(imdbID string) (Rating, bool) {
	rating, ok := r[imdbID]
	return rating, ok
}

// Source provides the ratings dataset.
type Source interface {
	Load(ctx context.Context) (Ratings, error)
}

// HTTPSource downloads the dataset over HTTP.
type HTTPSource struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPSource builds a source for url with the given download timeout.
func NewHTTPSource(url string, timeout time.Duration, logger *slog.Logger) *HTTPSource {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &HTTPSource{
		url:        strings.TrimSpace(url),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger(logger, "dataset"),
	}
}

// Load downloads and parses the dataset.
func (s *HTTPSource) Load(ctx context.Context) (Ratings, error) {
	if s.url == "" {
		return nil, services.Wrap(services.ErrDataset, "dataset", "download", "dataset url not configured", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrDataset, "dataset", "download", "build request", err)
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrDataset, "dataset", "download", "execute request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrDataset, "dataset", "download",
			fmt.Sprintf("returned %d", resp.StatusCode), nil)
	}

	ratings, err := Parse(resp.Body)
	if err != nil {
		return nil, err
	}
	s.logger.Info("rating dataset loaded",
		logging.Int("titles", len(ratings)),
		logging.Duration("elapsed", time.Since(start)))
	return ratings, nil
}

// Parse reads a gzipped ratings TSV. Malformed rows are skipped; a missing
// or unexpected header is an error.
func Parse(r io.Reader) (Ratings, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, services.Wrap(services.ErrDataset, "dataset", "parse", "open gzip stream", err)
	}
	defer zr.Close()

	scanner := bufio.NewScanner(zr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, services.Wrap(services.ErrDataset, "dataset", "parse", "read header", err)
		}
		return nil, services.Wrap(services.ErrDataset, "dataset", "parse", "empty dataset", nil)
	}
	if header := strings.Split(scanner.Text(), "\t"); len(header) < 2 || header[0] != "tconst" || header[1] != "averageRating" {
		return nil, services.Wrap(services.ErrDataset, "dataset", "parse",
			fmt.Sprintf("unexpected header %q", scanner.Text()), nil)
	}

	ratings := make(Ratings)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 2 {
			continue
		}
		average, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		rating := Rating{Average: average}
		if len(fields) > 2 {
			rating.Votes, _ = strconv.Atoi(fields[2])
		}
		ratings[fields[0]] = rating
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrDataset, "dataset", "parse", "read rows", err)
	}
	return ratings, nil
}

// Memo loads a Source at most once until Reset. Failed loads are not
// memoized.
type Memo struct {
	source Source

	mu      sync.Mutex
	ratings Ratings
}

// NewMemo wraps source.
func NewMemo(source Source) *Memo {
	return &Memo{source: source}
}

// Load returns the memoized dataset, loading it on first use.
func (m *Memo) Load(ctx context.Context) (Ratings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ratings != nil {
		return m.ratings, nil
	}
	ratings, err := m.source.Load(ctx)
	if err != nil {
		return nil, err
	}
	m.ratings = ratings
	return ratings, nil
}

// Reset drops the memoized dataset so the next Load fetches a fresh copy.
func (m *Memo) Reset() {
	m.mu.Lock()
	m.ratings = nil
	m.mu.Unlock()
}
