package tvdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ratingsync/internal/logging"
	"ratingsync/internal/services"
)

// maxErrorBody bounds how much of a failed login response is logged.
const maxErrorBody = 4096

// Looker defines the TVDB lookups used by the resolver.
type Looker interface {
	SeriesIMDbID(ctx context.Context, seriesID string) (string, error)
	EpisodeIMDbID(ctx context.Context, seriesID string, season, episode int) (string, error)
}

// Client is an authenticated TVDB API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
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

// WithLogger sets the logger used for authentication diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Login exchanges apiKey for a bearer token and returns a client that uses it.
// A rejected login returns an error wrapping services.ErrAuthentication; the
// response body is logged to help diagnose credential problems.
func Login(ctx context.Context, baseURL, apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tvdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tvdb base url required")
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "tvdb")

	body, err := json.Marshal(map[string]string{"apikey": apiKey})
	if err != nil {
		return nil, fmt.Errorf("encode login request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := client.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrAuthentication, "tvdb", "login", "execute request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		logging.ErrorWithContext(client.logger, "tvdb authorization failed",
			"tvdb_login_failed",
			logging.Int("status", resp.StatusCode),
			logging.String("response_body", string(detail)),
			logging.String(logging.FieldErrorHint, "the TVDB API may be having issues or the api key is wrong"))
		return nil, services.Wrap(services.ErrAuthentication, "tvdb", "login",
			fmt.Sprintf("returned %d", resp.StatusCode), nil)
	}

	var token struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, services.Wrap(services.ErrAuthentication, "tvdb", "login", "decode token", err)
	}
	if strings.TrimSpace(token.Token) == "" {
		return nil, services.Wrap(services.ErrAuthentication, "tvdb", "login", "empty token", nil)
	}
	client.token = token.Token
	client.logger.Debug("tvdb login succeeded")
	return client, nil
}

// SeriesIMDbID returns the IMDB id TVDB records for a series. An unknown
// series yields "" and a nil error.
func (c *Client) SeriesIMDbID(ctx context.Context, seriesID string) (string, error) {
	seriesID = strings.TrimSpace(seriesID)
	if seriesID == "" {
		return "", errors.New("series id must not be empty")
	}
	return c.lookup(ctx, "series lookup", "/series/"+url.PathEscape(seriesID), nil)
}

// EpisodeIMDbID returns the IMDB id of the episode aired as season/episode of
// the series.
func (c *Client) EpisodeIMDbID(ctx context.Context, seriesID string, season, episode int) (string, error) {
	seriesID = strings.TrimSpace(seriesID)
	if seriesID == "" {
		return "", errors.New("series id must not be empty")
	}
	params := url.Values{}
	params.Set("airedSeason", strconv.Itoa(season))
	params.Set("airedEpisode", strconv.Itoa(episode))
	return c.lookup(ctx, "episode lookup", "/series/"+url.PathEscape(seriesID)+"/episodes/query", params)
}

func (c *Client) lookup(ctx context.Context, operation, path string, params url.Values) (string, error) {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("parse tvdb url: %w", err)
	}
	if len(params) > 0 {
		endpoint.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return "", services.Wrap(services.ErrAPI, "tvdb", operation,
			fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrAPI, "tvdb", operation,
			fmt.Sprintf("returned %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	var payload Payload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", services.Wrap(services.ErrAPI, "tvdb", operation, "decode response", err)
	}
	return payload.IMDbID(), nil
}
