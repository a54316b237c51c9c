package media

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/carrieskye/calendar/internal/trakt"
)

// Runtimes resolves content runtimes. *trakt.Client satisfies it.
type Runtimes interface {
	EpisodeRuntime(ctx context.Context, showID string, season, episode int) (time.Duration, error)
	MovieRuntime(ctx context.Context, movieID string) (time.Duration, error)
}

// FromHistory converts raw history items into watches, resolving each item's
// runtime. Items must be in chronological order.
func FromHistory(ctx context.Context, items []trakt.HistoryItem, runtimes Runtimes) ([]Watch, error) {
	watches := make([]Watch, 0, len(items))
	for _, item := range items {
		switch item.Type {
		case "episode":
			if item.Show == nil || item.Episode == nil {
				return nil, fmt.Errorf("episode history item at %s without show or episode", item.WatchedAt)
			}
			showID := strconv.FormatInt(item.Show.IDs.Trakt, 10)
			runtime, err := runtimes.EpisodeRuntime(ctx, showID, item.Episode.Season, item.Episode.Number)
			if err != nil {
				return nil, err
			}
			watches = append(watches, NewEpisodeWatch(
				showID, item.Show.Title, item.Show.IDs.Slug,
				item.Episode.Season, item.Episode.Number,
				item.WatchedAt, runtime))

		case "movie":
			if item.Movie == nil {
				return nil, fmt.Errorf("movie history item at %s without movie", item.WatchedAt)
			}
			movieID := strconv.FormatInt(item.Movie.IDs.Trakt, 10)
			runtime, err := runtimes.MovieRuntime(ctx, movieID)
			if err != nil {
				return nil, err
			}
			watches = append(watches, NewMovieWatch(
				movieID, item.Movie.Title, item.Movie.IDs.Slug,
				item.Movie.Year, item.WatchedAt, runtime))

		default:
			return nil, fmt.Errorf("unsupported history item type %q", item.Type)
		}
	}
	return watches, nil
}
