package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ratingsync/internal/services"
)

// Looker defines the TMDB lookups used by the resolver.
type Looker interface {
	MovieIMDbID(ctx context.Context, movieID string) (string, error)
	SeriesIMDbID(ctx context.Context, seriesID string) (string, error)
}

// Client provides access to the TMDB API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ Looker = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// New creates a TMDB client.
func New(apiKey, baseURL string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type externalIDs struct {
	IMDbID string `json:"imdb_id"`
}

// MovieIMDbID returns the IMDB id TMDB records for a movie. An unknown movie
// yields "" and a nil error.
func (c *Client) MovieIMDbID(ctx context.Context, movieID string) (string, error) {
	movieID = strings.TrimSpace(movieID)
	if movieID == "" {
		return "", errors.New("movie id must not be empty")
	}
	var payload externalIDs
	found, err := c.get(ctx, "movie lookup", "/movie/"+url.PathEscape(movieID), &payload)
	if err != nil || !found {
		return "", err
	}
	return strings.TrimSpace(payload.IMDbID), nil
}

// SeriesIMDbID returns the IMDB id TMDB records for a series.
func (c *Client) SeriesIMDbID(ctx context.Context, seriesID string) (string, error) {
	seriesID = strings.TrimSpace(seriesID)
	if seriesID == "" {
		return "", errors.New("series id must not be empty")
	}
	var payload externalIDs
	found, err := c.get(ctx, "series lookup", "/tv/"+url.PathEscape(seriesID)+"/external_ids", &payload)
	if err != nil || !found {
		return "", err
	}
	return strings.TrimSpace(payload.IMDbID), nil
}

// Verify checks that the API key is accepted.
func (c *Client) Verify(ctx context.Context) error {
	var payload json.RawMessage
	found, err := c.get(ctx, "verify", "/configuration", &payload)
	if err != nil {
		return err
	}
	if !found {
		return services.Wrap(services.ErrAPI, "tmdb", "verify", "configuration endpoint not found", nil)
	}
	return nil
}

// get performs a GET request and decodes the JSON body into out. It reports
// false without error on 404.
func (c *Client) get(ctx context.Context, operation, path string, out any) (bool, error) {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return false, fmt.Errorf("parse tmdb url: %w", err)
	}
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return false, services.Wrap(services.ErrAPI, "tmdb", operation,
			fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return false, services.Wrap(services.ErrAuthentication, "tmdb", operation,
			fmt.Sprintf("api key rejected (status %d)", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return false, services.Wrap(services.ErrAPI, "tmdb", operation,
			fmt.Sprintf("returned %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, services.Wrap(services.ErrAPI, "tmdb", operation, "decode response", err)
	}
	return true, nil
}
