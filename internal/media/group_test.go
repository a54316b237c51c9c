package media

import (
	"strings"
	"testing"
	"time"

	"github.com/carrieskye/calendar/internal/geo"
)

func testPlace() geo.Place {
	return geo.Place{
		Label:    "home",
		Category: "home",
		Address:  "2 Severn Grove, Cardiff",
		TimeZone: "Europe/London",
	}
}

func watchEndingAt(contentID, title string, hour, minute int, runtime time.Duration) Watch {
	return Watch{
		ContentID: contentID,
		Title:     title,
		Detail:    title + " detail",
		End:       time.Date(2026, 3, 16, hour, minute, 0, 0, time.UTC),
		Runtime:   runtime,
	}
}

func TestGroupWatchesSameShowBackToBack(t *testing.T) {
	// Two episodes with a 2-minute gap: one sitting, the second episode
	// re-anchored to follow the first.
	episode1 := watchEndingAt("show-1", "The Wire", 20, 0, 55*time.Minute)
	episode2 := watchEndingAt("show-1", "The Wire", 20, 57, 55*time.Minute)

	groups := GroupWatches([]Watch{episode1, episode2}, 30*time.Minute)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, expected 1", len(groups))
	}
	group := groups[0]
	if len(group) != 2 {
		t.Fatalf("group holds %d watches, expected 2", len(group))
	}

	expectedEnd := episode1.End.Add(episode2.Runtime)
	if !group[1].End.Equal(expectedEnd) {
		t.Errorf("second episode ends %v, expected %v", group[1].End, expectedEnd)
	}
}

func TestGroupWatchesGapSplitsGroups(t *testing.T) {
	episode1 := watchEndingAt("show-1", "The Wire", 20, 0, 55*time.Minute)
	episode2 := watchEndingAt("show-1", "The Wire", 22, 30, 55*time.Minute)

	groups := GroupWatches([]Watch{episode1, episode2}, 30*time.Minute)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, expected a split at the long gap", len(groups))
	}
}

func TestGroupWatchesDifferentShowPushedPastGroup(t *testing.T) {
	episode := watchEndingAt("show-1", "The Wire", 20, 0, 55*time.Minute)
	movie := watchEndingAt("movie-9", "Dune", 20, 10, 150*time.Minute)

	groups := GroupWatches([]Watch{episode, movie}, 30*time.Minute)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, expected 2", len(groups))
	}

	// The movie's end moves past the episode group's span.
	expectedEnd := episode.Start().Add(55 * time.Minute).Add(movie.Runtime)
	if !groups[1][0].End.Equal(expectedEnd) {
		t.Errorf("pushed end = %v, expected %v", groups[1][0].End, expectedEnd)
	}
}

func TestGroupWatchesShortGroupFloor(t *testing.T) {
	short := watchEndingAt("show-1", "Short Cartoon", 20, 0, 10*time.Minute)
	movie := watchEndingAt("movie-9", "Dune", 20, 5, 150*time.Minute)

	groups := GroupWatches([]Watch{short, movie}, 30*time.Minute)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, expected 2", len(groups))
	}

	// A 10-minute group still blocks 30 minutes.
	expectedEnd := short.Start().Add(30 * time.Minute).Add(movie.Runtime)
	if !groups[1][0].End.Equal(expectedEnd) {
		t.Errorf("pushed end = %v, expected the floored span %v", groups[1][0].End, expectedEnd)
	}
}

func TestGroupWatchesInputUntouched(t *testing.T) {
	episode1 := watchEndingAt("show-1", "The Wire", 20, 0, 55*time.Minute)
	episode2 := watchEndingAt("show-1", "The Wire", 20, 57, 55*time.Minute)
	watches := []Watch{episode1, episode2}

	GroupWatches(watches, 30*time.Minute)
	if !watches[1].End.Equal(episode2.End) {
		t.Error("GroupWatches mutated its input")
	}
}

func TestBuildEvent(t *testing.T) {
	episode1 := watchEndingAt("show-1", "The Wire", 20, 0, 55*time.Minute)
	episode2 := watchEndingAt("show-1", "The Wire", 20, 57, 55*time.Minute)
	groups := GroupWatches([]Watch{episode1, episode2}, 30*time.Minute)

	event := BuildEvent(groups[0], testPlace())
	if event.Summary != "The Wire" {
		t.Errorf("summary = %q", event.Summary)
	}
	if !event.Start.Time.Equal(episode1.Start()) {
		t.Errorf("event starts %v, expected the first watch start", event.Start.Time)
	}
	if !event.End.Time.Equal(groups[0][1].End) {
		t.Errorf("event ends %v, expected the adjusted last watch end", event.End.Time)
	}
	if lines := strings.Split(event.Description, "\n"); len(lines) != 2 {
		t.Errorf("description has %d lines, expected one per watch", len(lines))
	}
	if event.Location != testPlace().Address {
		t.Errorf("location = %q, expected the place address", event.Location)
	}
}

func TestNewEpisodeWatchTitleCleanup(t *testing.T) {
	tests := []struct {
		name     string
		show     string
		expected string
	}{
		{name: "plain title", show: "The Wire", expected: "The Wire"},
		{name: "franchise prefix", show: "Marvel's Daredevil", expected: "Daredevil"},
		{name: "year suffix", show: "Doctor Who (2005)", expected: "Doctor Who"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			watch := NewEpisodeWatch("1", tt.show, "slug", 1, 2, time.Now(), 45*time.Minute)
			if watch.Title != tt.expected {
				t.Errorf("Title = %q, expected %q", watch.Title, tt.expected)
			}
		})
	}
}
