package timeline

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/carrieskye/calendar/internal/location"
)

// Merger runs the smoothing passes that turn candidate events into a clean
// day timeline. Each pass consumes a snapshot and produces a new slice; the
// whole sequence repeats until a fixed point or Rules.MaxPasses.
type Merger struct {
	rules  Rules
	zone   *time.Location
	logger *slog.Logger
}

// NewMerger creates a Merger. The zone is used for all time-of-day
// comparisons in the work-day heuristics.
func NewMerger(rules Rules, zone *time.Location, logger *slog.Logger) *Merger {
	return &Merger{rules: rules, zone: zone, logger: logger}
}

// Run merges the candidate events until no pass changes the timeline. The
// result never contains two adjacent events with the same name.
func (m *Merger) Run(events []Event) []Event {
	out := coalesce(events)
	for pass := 0; pass < m.rules.MaxPasses; pass++ {
		next := m.absorbLowConfidence(out)
		m.trace("absorbed low-confidence events", next)

		if m.isWorkDay(next) {
			next = m.cleanCommute(next)
			m.trace("cleaned office commute", next)
		} else {
			next = m.mergeBrief(next)
			m.trace("merged brief events", next)
		}

		next = coalesce(next)
		if equalTimelines(next, out) {
			return next
		}
		out = next
	}
	m.logger.Warn("Merge did not reach a fixed point", "passes", m.rules.MaxPasses)
	return out
}

// absorbLowConfidence bridges brief GPS dropouts: an unknown or sparsely
// sampled event between two stays at the same place becomes part of one
// continuous stay, provided the gap is small enough.
func (m *Merger) absorbLowConfidence(events []Event) []Event {
	var out []Event
	for i := 0; i < len(events); i++ {
		event := events[i]
		lowConfidence := event.Name == location.Unknown || event.Count() < 3

		if lowConfidence && len(out) > 0 && i+1 < len(events) {
			previous := out[len(out)-1]
			next := events[i+1]
			if previous.Name == next.Name && previous.End.Add(m.rules.MergeGap).After(next.Start) {
				out[len(out)-1] = Event{
					Name:    previous.Name,
					Members: concat(previous.Members, event.Members, next.Members),
					Start:   previous.Start,
					End:     next.End,
				}
				i++ // next is consumed by the merge
				continue
			}
		}
		out = append(out, event)
	}
	return out
}

// isWorkDay reports whether the office place straddles midday: at least one
// office event starting before AfternoonHour and one ending after NoonHour.
func (m *Merger) isWorkDay(events []Event) bool {
	if m.rules.Office == "" {
		return false
	}
	morning, afternoon := false, false
	for _, event := range events {
		if event.Name != m.rules.Office {
			continue
		}
		if m.clock(event.Start) < m.rules.AfternoonHour*60 {
			morning = true
		}
		if m.clock(event.End) > m.rules.NoonHour*60 {
			afternoon = true
		}
	}
	return morning && afternoon
}

// mergeBrief is the non-work-day pass: events shorter than MinEvent are
// absorbed into the event preceding them.
func (m *Merger) mergeBrief(events []Event) []Event {
	var out []Event
	for _, event := range events {
		if len(out) > 0 && event.Duration() < m.rules.MinEvent {
			previous := &out[len(out)-1]
			previous.Members = concat(previous.Members, event.Members)
			previous.End = event.End
			continue
		}
		out = append(out, event)
	}
	return out
}

// cleanCommute is the work-day pass: transit-hub appearances around office
// hours are commute noise, and short non-office runs around midday are lunch
// noise. Both are folded into the surrounding office stay.
func (m *Merger) cleanCommute(events []Event) []Event {
	events = slices.Clone(events)

	var out []Event
	for i := 0; i < len(events); i++ {
		event := events[i]
		morning := m.clock(event.Start) < m.rules.NoonHour*60
		noon := !morning &&
			m.clock(event.End) > m.rules.DayStartHour*60 &&
			m.clock(event.End) < m.rules.AfternoonHour*60
		afternoon := m.clock(event.End) > m.rules.AfternoonHour*60

		switch {
		case event.Name == m.rules.TransitHub && (morning || afternoon):
			merged, consumed := m.absorbHub(events, i)
			if consumed {
				i++
			}
			if len(out) > 0 && out[len(out)-1].Name == m.rules.Office {
				previous := out[len(out)-1]
				out = out[:len(out)-1]
				merged.Name = previous.Name
				merged.Start = previous.Start
				merged.Members = concat(previous.Members, merged.Members)
			}
			out = append(out, merged)

		case event.Name == m.rules.Office && noon && event.Duration() < m.rules.MergeGap && m.nextToHub(out, events, i):
			// Short midday office blip in the middle of a commute: fold it
			// into the hub event rather than the other way round.
			merged := Event{Name: m.rules.TransitHub, Members: slices.Clone(event.Members), Start: event.Start, End: event.End}
			if len(out) > 0 && out[len(out)-1].Name == m.rules.TransitHub {
				previous := out[len(out)-1]
				out = out[:len(out)-1]
				merged.Start = previous.Start
				merged.Members = concat(previous.Members, merged.Members)
			}
			if i+1 < len(events) && events[i+1].Name == m.rules.TransitHub {
				next := events[i+1]
				merged.End = next.End
				merged.Members = concat(merged.Members, next.Members)
				i++
			}
			out = append(out, merged)

		case event.Name != m.rules.Office && noon &&
			i+1 < len(events) && events[i+1].Name == m.rules.Office && lastOffice(out, m.rules.Office) >= 0:
			// Lunch-break noise sandwiched between two office stays: collapse
			// everything since the last office event into the office.
			first := lastOffice(out, m.rules.Office) + 1
			merged := Event{Name: m.rules.Office, Start: event.Start, End: event.End}
			if first < len(out) {
				merged.Start = out[first].Start
			}
			for _, collapsed := range out[first:] {
				merged.Members = concat(merged.Members, collapsed.Members)
			}
			merged.Members = concat(merged.Members, event.Members)
			out = out[:first]

			if merged.Duration() < m.rules.MinSpan {
				merged.End = merged.Start.Add(m.rules.MinSpan)
				if merged.End.After(events[i+1].Start) {
					events[i+1].Start = merged.End
				}
			}
			out = append(out, merged)

		default:
			out = append(out, event)
		}
	}
	return out
}

// absorbHub builds the combined event for a hub appearance, pulling in the
// following office event when present. It reports whether the next event was
// consumed.
func (m *Merger) absorbHub(events []Event, i int) (Event, bool) {
	event := events[i]
	merged := Event{
		Name:    event.Name,
		Members: slices.Clone(event.Members),
		Start:   event.Start,
		End:     event.End,
	}
	if i+1 < len(events) && events[i+1].Name == m.rules.Office {
		next := events[i+1]
		merged.Name = next.Name
		merged.End = next.End
		merged.Members = concat(merged.Members, next.Members)
		return merged, true
	}
	return merged, false
}

// nextToHub reports whether the event at index i borders a transit-hub event
// on either side.
func (m *Merger) nextToHub(out, events []Event, i int) bool {
	if len(out) > 0 && out[len(out)-1].Name == m.rules.TransitHub {
		return true
	}
	return i+1 < len(events) && events[i+1].Name == m.rules.TransitHub
}

// lastOffice returns the index of the most recent office event, or -1.
func lastOffice(events []Event, office string) int {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Name == office {
			return i
		}
	}
	return -1
}

// coalesce merges adjacent same-name events and clamps any overlap left by
// span flooring, restoring the timeline invariants.
func coalesce(events []Event) []Event {
	var out []Event
	for _, event := range events {
		if len(out) > 0 {
			previous := &out[len(out)-1]
			if event.Start.Before(previous.End) {
				event.Start = previous.End
				if event.End.Before(event.Start) {
					event.End = event.Start
				}
			}
			if previous.Name == event.Name {
				previous.Members = concat(previous.Members, event.Members)
				if event.End.After(previous.End) {
					previous.End = event.End
				}
				continue
			}
		}
		out = append(out, event)
	}
	return out
}

func (m *Merger) clock(t time.Time) int {
	local := t.In(m.zone)
	return local.Hour()*60 + local.Minute()
}

func (m *Merger) trace(stage string, events []Event) {
	if !m.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	m.logger.Debug("Merge stage finished", "stage", stage, "events", len(events))
	for _, event := range events {
		m.logger.Debug("Timeline event",
			"name", event.Name,
			"start", event.Start.In(m.zone).Format("15:04:05"),
			"end", event.End.In(m.zone).Format("15:04:05"),
			"samples", event.Count())
	}
}

func equalTimelines(a, b []Event) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || !a[i].Start.Equal(b[i].Start) ||
			!a[i].End.Equal(b[i].End) || a[i].Count() != b[i].Count() {
			return false
		}
	}
	return true
}

// concat joins member lists into a fresh slice, leaving the inputs untouched.
func concat(lists ...[]string) []string {
	var total int
	for _, list := range lists {
		total += len(list)
	}
	out := make([]string, 0, total)
	for _, list := range lists {
		out = append(out, list...)
	}
	return out
}
