package media

import (
	"slices"
	"strings"
	"time"

	"github.com/carrieskye/calendar/internal/geo"
	"github.com/carrieskye/calendar/internal/models"
)

// minGroupSpan floors a group's occupied span when pushing a different show
// past it: even a single short episode blocks half an hour.
const minGroupSpan = 30 * time.Minute

// GroupWatches clusters a chronological watch history into sittings. A watch
// continues the current group when it is the same content within the gap; its
// end is then re-anchored to follow the previous watch back-to-back. A
// different content within the gap is pushed past the current group's span
// before starting its own group.
func GroupWatches(watches []Watch, gap time.Duration) [][]Watch {
	if len(watches) == 0 {
		return nil
	}

	ws := slices.Clone(watches)
	groups := [][]Watch{{ws[0]}}
	for i := 1; i < len(ws); i++ {
		previous := ws[i-1]
		withinGap := previous.End.Add(gap).After(ws[i].Start())
		sameContent := previous.ContentID == ws[i].ContentID

		last := len(groups) - 1
		if withinGap && sameContent {
			ws[i].End = previous.End.Add(ws[i].Runtime)
			groups[last] = append(groups[last], ws[i])
			continue
		}
		if withinGap {
			// Different content hot on the heels of the current group: avoid
			// overlap by pushing it past the group's occupied span.
			span := groupRuntime(groups[last])
			if span < minGroupSpan {
				span = minGroupSpan
			}
			ws[i].End = groups[last][0].Start().Add(span).Add(ws[i].Runtime)
		}
		groups = append(groups, []Watch{ws[i]})
	}
	return groups
}

func groupRuntime(group []Watch) time.Duration {
	var total time.Duration
	for _, watch := range group {
		total += watch.Runtime
	}
	return total
}

// BuildEvent turns one sitting into a calendar event at the given place,
// listing every constituent watch in the description.
func BuildEvent(group []Watch, place geo.Place) models.Event {
	details := make([]string, len(group))
	for i, watch := range group {
		details[i] = watch.Detail
	}
	return models.Event{
		Summary:     group[0].Title,
		Location:    place.Address,
		Description: strings.Join(details, "\n"),
		Start:       models.EventTime{Time: group[0].Start(), TimeZone: place.TimeZone},
		End:         models.EventTime{Time: group[len(group)-1].End, TimeZone: place.TimeZone},
	}
}
