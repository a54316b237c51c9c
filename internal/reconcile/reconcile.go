// Package reconcile diffs a reconstructed day timeline against the calendar
// events already recorded for that day, deciding which events to keep, move
// or create.
package reconcile

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/carrieskye/calendar/internal/geo"
	"github.com/carrieskye/calendar/internal/location"
	"github.com/carrieskye/calendar/internal/models"
	"github.com/carrieskye/calendar/internal/timeline"
)

// DefaultSummary is the title given to events created from unmatched stays.
const DefaultSummary = "New event"

// Match pairs an existing calendar event with the reconstructed stay it was
// matched to.
type Match struct {
	Calendar models.Event
	Stay     timeline.Event
}

// Result describes the outcome of reconciling one day.
type Result struct {
	Matched   []Match          // calendar events whose times were rewritten
	Created   []models.Event   // new events proposed for unmatched stays
	Untouched []models.Event   // calendar events with no plausible stay
	Skipped   []timeline.Event // stays too short, at home, or unknown
}

// UnknownPlaceError reports a stay whose label is missing from the registry.
// The timeline and the registry disagree; the day must not be written.
type UnknownPlaceError struct {
	Label string
}

func (e *UnknownPlaceError) Error() string {
	return fmt.Sprintf("timeline references unregistered place %q", e.Label)
}

// Reconciler matches reconstructed stays against calendar events.
type Reconciler struct {
	registry *geo.Registry
	minStay  time.Duration
	logger   *slog.Logger
}

// NewReconciler creates a Reconciler. Stays shorter than minStay never become
// calendar events.
func NewReconciler(registry *geo.Registry, minStay time.Duration, logger *slog.Logger) *Reconciler {
	return &Reconciler{registry: registry, minStay: minStay, logger: logger}
}

// Reconcile matches each calendar event to the closest-in-time stay at the
// same place, greedily and one-to-one: once a stay is claimed it leaves the
// pool. Matched calendar events get the stay's times; leftover stays that are
// long enough, not at home and at a known place become new events.
func (r *Reconciler) Reconcile(stays []timeline.Event, calendarEvents []models.Event) (Result, error) {
	for _, stay := range stays {
		if stay.Name == location.Unknown {
			continue
		}
		if _, ok := r.registry.Get(stay.Name); !ok {
			return Result{}, &UnknownPlaceError{Label: stay.Name}
		}
	}

	var result Result
	pool := make([]timeline.Event, len(stays))
	copy(pool, stays)

	for _, calendarEvent := range calendarEvents {
		index := r.closestStay(calendarEvent, pool)
		if index < 0 {
			result.Untouched = append(result.Untouched, calendarEvent)
			continue
		}

		stay := pool[index]
		pool = append(pool[:index], pool[index+1:]...)

		place, _ := r.registry.Get(stay.Name)
		updated := calendarEvent
		updated.Start = models.EventTime{Time: stay.Start, TimeZone: place.TimeZone}
		updated.End = models.EventTime{Time: stay.End, TimeZone: place.TimeZone}
		result.Matched = append(result.Matched, Match{Calendar: updated, Stay: stay})

		r.logger.Debug("Matched calendar event to stay",
			"summary", calendarEvent.Summary, "place", stay.Name,
			"start", stay.Start, "end", stay.End)
	}

	for _, stay := range pool {
		event, ok := r.eventForStay(stay)
		if !ok {
			result.Skipped = append(result.Skipped, stay)
			continue
		}
		result.Created = append(result.Created, event)
	}

	return result, nil
}

// closestStay returns the index of the pool stay with the lowest time-offset
// score among those at the calendar event's place, or -1. Home stays never
// match: home visits are not calendar material.
func (r *Reconciler) closestStay(calendarEvent models.Event, pool []timeline.Event) int {
	best := -1
	var bestOffset time.Duration
	for i, stay := range pool {
		if stay.Name == location.Unknown {
			continue
		}
		place, ok := r.registry.Get(stay.Name)
		if !ok || place.Category == geo.CategoryHome || place.Address != calendarEvent.Location {
			continue
		}
		offset := timeOffset(stay, calendarEvent)
		if best < 0 || offset < bestOffset {
			best, bestOffset = i, offset
		}
	}
	return best
}

// timeOffset scores how far a stay sits from a calendar event: the larger of
// the start and end offsets.
func timeOffset(stay timeline.Event, calendarEvent models.Event) time.Duration {
	startDiff := stay.Start.Sub(calendarEvent.Start.Time).Abs()
	endDiff := stay.End.Sub(calendarEvent.End.Time).Abs()
	return max(startDiff, endDiff)
}

// eventForStay builds the proposed calendar event for an unmatched stay, or
// reports that the stay is not calendar-worthy.
func (r *Reconciler) eventForStay(stay timeline.Event) (models.Event, bool) {
	if stay.Duration() < r.minStay {
		return models.Event{}, false
	}
	if stay.Name == location.Unknown {
		r.logger.Info("Unmatched stay at unknown place",
			"start", stay.Start, "end", stay.End)
		return models.Event{}, false
	}
	place, _ := r.registry.Get(stay.Name)
	if place.Category == geo.CategoryHome {
		return models.Event{}, false
	}

	return models.Event{
		Summary:     DefaultSummary,
		Location:    place.Address,
		Description: stay.Name,
		Start:       models.EventTime{Time: stay.Start, TimeZone: place.TimeZone},
		End:         models.EventTime{Time: stay.End, TimeZone: place.TimeZone},
	}, true
}
