package timeline

import (
	"time"

	"github.com/carrieskye/calendar/internal/location"
)

// Event is one contiguous run of same-label samples: "at Name from Start to
// End". Members holds the label of every contributing sample, so Count is the
// event's sample support.
type Event struct {
	Name    string
	Members []string
	Start   time.Time
	End     time.Time
}

// Count returns the number of samples backing the event.
func (e Event) Count() int { return len(e.Members) }

// Duration returns the event's time span.
func (e Event) Duration() time.Duration { return e.End.Sub(e.Start) }

// Group collapses labeled samples into candidate events: a new event starts
// whenever the label changes. The resulting spans tile the sample window
// exactly, adjacent events sharing their boundary timestamp.
func Group(samples []location.Labeled) []Event {
	if len(samples) == 0 {
		return nil
	}

	var events []Event
	current := Event{
		Name:    samples[0].Label,
		Members: []string{samples[0].Label},
		Start:   samples[0].Time,
	}
	for _, sample := range samples[1:] {
		if sample.Label == current.Name {
			current.Members = append(current.Members, sample.Label)
			continue
		}
		current.End = sample.Time
		events = append(events, current)
		current = Event{
			Name:    sample.Label,
			Members: []string{sample.Label},
			Start:   sample.Time,
		}
	}
	current.End = samples[len(samples)-1].Time
	return append(events, current)
}
