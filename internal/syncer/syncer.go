// Package syncer drives the daily pipeline: raw position samples in, calendar
// events out.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carrieskye/calendar/internal/location"
	"github.com/carrieskye/calendar/internal/models"
	"github.com/carrieskye/calendar/internal/reconcile"
	"github.com/carrieskye/calendar/internal/timeline"
)

// maxCalendarResults bounds a single day's event listing.
const maxCalendarResults = 100

// Calendar is the slice of the calendar API the syncer needs.
type Calendar interface {
	Events(ctx context.Context, calendarID string, start, end time.Time, maxResults int64) ([]models.Event, error)
	CreateEvent(ctx context.Context, calendarID string, event models.Event) error
	UpdateEvent(ctx context.Context, calendarID, eventID string, event models.Event) error
}

// Mirror republishes events to a second calendar, e.g. over CalDAV.
type Mirror interface {
	Publish(ctx context.Context, event models.Event) error
}

// Syncer reconstructs where the owner was on a given day and reconciles the
// result with their calendar.
type Syncer struct {
	logger       *slog.Logger
	source       location.Source
	labeler      location.Labeler
	merger       *timeline.Merger
	reconciler   *reconcile.Reconciler
	calendar     Calendar
	calendarID   string
	mirror       Mirror // may be nil
	zone         *time.Location
	dayStartHour int
	dryRun       bool
}

// Options configures a Syncer.
type Options struct {
	Source       location.Source
	Labeler      location.Labeler
	Merger       *timeline.Merger
	Reconciler   *reconcile.Reconciler
	Calendar     Calendar
	CalendarID   string
	Mirror       Mirror
	Zone         *time.Location
	DayStartHour int
	DryRun       bool
}

// NewSyncer creates a Syncer from its parts.
func NewSyncer(logger *slog.Logger, opts Options) *Syncer {
	return &Syncer{
		logger:       logger,
		source:       opts.Source,
		labeler:      opts.Labeler,
		merger:       opts.Merger,
		reconciler:   opts.Reconciler,
		calendar:     opts.Calendar,
		calendarID:   opts.CalendarID,
		mirror:       opts.Mirror,
		zone:         opts.Zone,
		dayStartHour: opts.DayStartHour,
		dryRun:       opts.DryRun,
	}
}

// SyncRange runs SyncDay for every day in [from, to], isolating failures so
// one bad day does not stop the rest.
func (s *Syncer) SyncRange(ctx context.Context, owner string, from, to time.Time) error {
	var failed int
	var days int
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		days++
		if err := s.SyncDay(ctx, owner, day); err != nil {
			failed++
			s.logger.Error("Failed to sync day", "owner", owner, "day", day.Format("2006-01-02"), "error", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d days failed to sync", failed, days)
	}
	return nil
}

// SyncDay reconstructs one day for one owner and writes the outcome to their
// calendar. A day runs from the configured day-start hour to the same hour the
// next morning, so late nights stay with the day they belong to.
func (s *Syncer) SyncDay(ctx context.Context, owner string, day time.Time) error {
	start := time.Date(day.Year(), day.Month(), day.Day(), s.dayStartHour, 0, 0, 0, s.zone)
	end := start.Add(24 * time.Hour)

	s.logger.Info("Syncing day", "owner", owner, "start", start, "end", end)

	samples, err := s.source.Samples(ctx, start, end, owner)
	if err != nil {
		var empty *location.EmptyWindowError
		if errors.As(err, &empty) {
			s.logger.Info("No position samples for day, skipping", "owner", owner, "day", day.Format("2006-01-02"))
			return nil
		}
		return fmt.Errorf("fetching samples: %w", err)
	}

	labeled := location.Label(samples, s.labeler)
	stays := s.merger.Run(timeline.Group(labeled))
	s.logger.Debug("Reconstructed timeline", "samples", len(samples), "stays", len(stays))

	calendarEvents, err := s.calendar.Events(ctx, s.calendarID, start, end, maxCalendarResults)
	if err != nil {
		return fmt.Errorf("fetching calendar events: %w", err)
	}

	result, err := s.reconciler.Reconcile(stays, calendarEvents)
	if err != nil {
		return fmt.Errorf("reconciling day: %w", err)
	}

	return s.apply(ctx, result)
}

// apply writes a reconciliation result to the calendar. Each event is written
// independently; a failure on one does not block the others.
func (s *Syncer) apply(ctx context.Context, result reconcile.Result) error {
	var failed int

	for _, match := range result.Matched {
		if s.dryRun {
			s.logger.Info("[DRY RUN] Would update event",
				"summary", match.Calendar.Summary, "start", match.Stay.Start, "end", match.Stay.End)
			continue
		}
		if err := s.calendar.UpdateEvent(ctx, s.calendarID, match.Calendar.ID, match.Calendar); err != nil {
			failed++
			s.logger.Error("Failed to update event", "summary", match.Calendar.Summary, "error", err)
			continue
		}
		s.publish(ctx, match.Calendar)
	}

	for _, event := range result.Created {
		if s.dryRun {
			s.logger.Info("[DRY RUN] Would create event",
				"summary", event.Summary, "place", event.Description, "start", event.Start.Time)
			continue
		}
		if err := s.calendar.CreateEvent(ctx, s.calendarID, event); err != nil {
			failed++
			s.logger.Error("Failed to create event", "summary", event.Summary, "error", err)
			continue
		}
		s.publish(ctx, event)
	}

	s.logger.Info("Applied reconciliation",
		"matched", len(result.Matched), "created", len(result.Created),
		"untouched", len(result.Untouched), "skipped", len(result.Skipped))

	if failed > 0 {
		return fmt.Errorf("%d calendar writes failed", failed)
	}
	return nil
}

// publish mirrors an event when a mirror is configured. Mirror failures are
// logged, not fatal: the primary calendar already has the event.
func (s *Syncer) publish(ctx context.Context, event models.Event) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to mirror event", "summary", event.Summary, "error", err)
	}
}
