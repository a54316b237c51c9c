// Package trakt is a client for a trakt-style watch-history service.
package trakt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultBaseURL = "https://api.trakt.tv"
	apiVersion     = "2"
)

// IDs carries the identifiers the service knows a piece of content by.
type IDs struct {
	Trakt int64  `json:"trakt"`
	Slug  string `json:"slug"`
}

// Show is the show part of a history item.
type Show struct {
	Title string `json:"title"`
	IDs   IDs    `json:"ids"`
}

// Episode is the episode part of a history item.
type Episode struct {
	Season  int    `json:"season"`
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Runtime int    `json:"runtime"`
	IDs     IDs    `json:"ids"`
}

// Movie is the movie part of a history item.
type Movie struct {
	Title   string `json:"title"`
	Year    int    `json:"year"`
	Runtime int    `json:"runtime"`
	IDs     IDs    `json:"ids"`
}

// HistoryItem is one watched entry, either an episode or a movie.
type HistoryItem struct {
	Type      string    `json:"type"`
	WatchedAt time.Time `json:"watched_at"`
	Show      *Show     `json:"show,omitempty"`
	Episode   *Episode  `json:"episode,omitempty"`
	Movie     *Movie    `json:"movie,omitempty"`
}

// Client talks to the watch-history service. Runtime lookups go through the
// on-disk cache first; the API is only hit on a miss.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	token      string
	cache      *RuntimeCache
	logger     *slog.Logger
	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a Client authenticated with the given credentials.
func NewClient(logger *slog.Logger, clientID, token string, cache *RuntimeCache) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		clientID:   clientID,
		token:      token,
		cache:      cache,
		logger:     logger,
		maxRetries: 3,
		retryDelay: 30 * time.Second,
	}
}

// History returns the watch history between start and end, oldest first.
func (c *Client) History(ctx context.Context, start, end time.Time) ([]HistoryItem, error) {
	query := url.Values{}
	query.Set("start_at", start.UTC().Format(time.RFC3339))
	query.Set("end_at", end.UTC().Format(time.RFC3339))
	query.Set("limit", "200")

	var items []HistoryItem
	if err := c.get(ctx, "/sync/history?"+query.Encode(), &items); err != nil {
		return nil, fmt.Errorf("failed to fetch watch history: %w", err)
	}

	// The service returns newest first.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	c.logger.Debug("Fetched watch history", "start", start, "end", end, "count", len(items))
	return items, nil
}

// EpisodeRuntime returns an episode's runtime, fetching and caching the whole
// season on a cache miss.
func (c *Client) EpisodeRuntime(ctx context.Context, showID string, season, episode int) (time.Duration, error) {
	if runtime, ok := c.cache.Episode(showID, season, episode); ok {
		return time.Duration(runtime) * time.Minute, nil
	}

	var episodes []Episode
	path := fmt.Sprintf("/shows/%s/seasons/%d?extended=full", showID, season)
	if err := c.get(ctx, path, &episodes); err != nil {
		return 0, fmt.Errorf("failed to fetch season %d of show %s: %w", season, showID, err)
	}

	if err := c.cache.PutSeason(showID, season, episodes); err != nil {
		c.logger.Warn("Failed to persist runtime cache", "error", err)
	}

	runtime, ok := c.cache.Episode(showID, season, episode)
	if !ok {
		return 0, fmt.Errorf("episode S%02dE%02d of show %s not in season listing", season, episode, showID)
	}
	return time.Duration(runtime) * time.Minute, nil
}

// MovieRuntime returns a movie's runtime, caching it on first lookup.
func (c *Client) MovieRuntime(ctx context.Context, movieID string) (time.Duration, error) {
	if runtime, ok := c.cache.Movie(movieID); ok {
		return time.Duration(runtime) * time.Minute, nil
	}

	var movie Movie
	if err := c.get(ctx, "/movies/"+movieID+"?extended=full", &movie); err != nil {
		return 0, fmt.Errorf("failed to fetch movie %s: %w", movieID, err)
	}

	if err := c.cache.PutMovie(movieID, movie.Runtime); err != nil {
		c.logger.Warn("Failed to persist runtime cache", "error", err)
	}
	return time.Duration(movie.Runtime) * time.Minute, nil
}

// get performs an authenticated GET with bounded retry on rate limiting.
func (c *Client) get(ctx context.Context, path string, out any) error {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("trakt-api-version", apiVersion)
		req.Header.Set("trakt-api-key", c.clientID)
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			if attempt >= c.maxRetries {
				return fmt.Errorf("rate limited after %d attempts", attempt+1)
			}
			delay := c.retryDelay
			if after := resp.Header.Get("Retry-After"); after != "" {
				if seconds, err := strconv.Atoi(after); err == nil {
					delay = time.Duration(seconds) * time.Second
				}
			}
			c.logger.Warn("Rate limited, backing off", "path", path, "delay", delay)
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d for %s", resp.StatusCode, path)
		}
		return json.Unmarshal(body, out)
	}
}
