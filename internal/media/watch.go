// Package media turns a chronological watch history into calendar-worthy
// viewing blocks.
package media

import (
	"fmt"
	"strings"
	"time"
)

// Watch is one watched episode or movie. End is when the watch finished;
// Start is derived from the runtime.
type Watch struct {
	ContentID string        // stable id of the show or movie
	Title     string        // summary material, shared by all watches in a block
	Detail    string        // one description line for this watch
	End       time.Time     // when the watch finished
	Runtime   time.Duration // content runtime
}

// Start returns when the watch began.
func (w Watch) Start() time.Time {
	return w.End.Add(-w.Runtime)
}

// NewEpisodeWatch builds a Watch for one episode. The show title is trimmed
// of franchise prefixes and year suffixes so episodes of the same show group
// under one summary.
func NewEpisodeWatch(showID, showTitle, slug string, season, episode int, watchedAt time.Time, runtime time.Duration) Watch {
	title := strings.ReplaceAll(showTitle, "Marvel's ", "")
	if i := strings.Index(title, " ("); i >= 0 {
		title = title[:i]
	}
	return Watch{
		ContentID: showID,
		Title:     title,
		Detail: fmt.Sprintf("S%02dE%02d (https://trakt.tv/shows/%s/seasons/%d/episodes/%d)",
			season, episode, slug, season, episode),
		End:     watchedAt,
		Runtime: runtime,
	}
}

// NewMovieWatch builds a Watch for one movie.
func NewMovieWatch(movieID, movieTitle, slug string, year int, watchedAt time.Time, runtime time.Duration) Watch {
	title := movieTitle
	if i := strings.Index(title, ":"); i >= 0 {
		title = title[:i]
	}
	return Watch{
		ContentID: movieID,
		Title:     title,
		Detail:    fmt.Sprintf("%s (%d) (https://trakt.tv/movies/%s)", movieTitle, year, slug),
		End:       watchedAt,
		Runtime:   runtime,
	}
}
