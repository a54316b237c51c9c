package trakt

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// episodeEntry is what the cache keeps per episode.
type episodeEntry struct {
	Runtime int    `json:"runtime"`
	TraktID int64  `json:"trakt_id"`
	Title   string `json:"title"`
}

type cacheData struct {
	// shows -> show id -> season -> episode -> entry
	Shows  map[string]map[string]map[string]episodeEntry `json:"shows"`
	Movies map[string]int                                `json:"movies"`
}

// RuntimeCache is a write-back cache of content runtimes keyed by id. Every
// write re-persists the whole file; a crash mid-write can corrupt it, which
// is acceptable since it is only a cache.
type RuntimeCache struct {
	path string
	data cacheData
}

// OpenRuntimeCache loads the cache file, starting empty when it is missing.
func OpenRuntimeCache(path string) (*RuntimeCache, error) {
	cache := &RuntimeCache{
		path: path,
		data: cacheData{
			Shows:  make(map[string]map[string]map[string]episodeEntry),
			Movies: make(map[string]int),
		},
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cache, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read runtime cache: %w", err)
	}
	if err := json.Unmarshal(raw, &cache.data); err != nil {
		return nil, fmt.Errorf("failed to parse runtime cache %s: %w", path, err)
	}
	if cache.data.Shows == nil {
		cache.data.Shows = make(map[string]map[string]map[string]episodeEntry)
	}
	if cache.data.Movies == nil {
		cache.data.Movies = make(map[string]int)
	}
	return cache, nil
}

// Episode returns the cached runtime in minutes for one episode.
func (c *RuntimeCache) Episode(showID string, season, episode int) (int, bool) {
	seasons, ok := c.data.Shows[showID]
	if !ok {
		return 0, false
	}
	episodes, ok := seasons[strconv.Itoa(season)]
	if !ok {
		return 0, false
	}
	entry, ok := episodes[strconv.Itoa(episode)]
	return entry.Runtime, ok
}

// PutSeason caches a whole season listing and persists the cache.
func (c *RuntimeCache) PutSeason(showID string, season int, episodes []Episode) error {
	if c.data.Shows[showID] == nil {
		c.data.Shows[showID] = make(map[string]map[string]episodeEntry)
	}
	entries := make(map[string]episodeEntry, len(episodes))
	for _, episode := range episodes {
		entries[strconv.Itoa(episode.Number)] = episodeEntry{
			Runtime: episode.Runtime,
			TraktID: episode.IDs.Trakt,
			Title:   episode.Title,
		}
	}
	c.data.Shows[showID][strconv.Itoa(season)] = entries
	return c.save()
}

// Movie returns the cached runtime in minutes for one movie.
func (c *RuntimeCache) Movie(movieID string) (int, bool) {
	runtime, ok := c.data.Movies[movieID]
	return runtime, ok
}

// PutMovie caches a movie runtime and persists the cache.
func (c *RuntimeCache) PutMovie(movieID string, runtime int) error {
	c.data.Movies[movieID] = runtime
	return c.save()
}

func (c *RuntimeCache) save() error {
	raw, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal runtime cache: %w", err)
	}
	return os.WriteFile(c.path, raw, 0644)
}
