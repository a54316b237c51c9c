package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carrieskye/calendar/internal/geo"
	"github.com/carrieskye/calendar/internal/media"
	"github.com/carrieskye/calendar/internal/trakt"
)

// History is the slice of the watch-history API the media syncer needs.
type History interface {
	History(ctx context.Context, start, end time.Time) ([]trakt.HistoryItem, error)
}

// MediaSyncer turns watch history into calendar events, one per sitting.
type MediaSyncer struct {
	logger     *slog.Logger
	history    History
	runtimes   media.Runtimes
	calendar   Calendar
	calendarID string
	place      geo.Place
	gap        time.Duration
	dryRun     bool
}

// MediaOptions configures a MediaSyncer.
type MediaOptions struct {
	History    History
	Runtimes   media.Runtimes
	Calendar   Calendar
	CalendarID string
	Place      geo.Place
	Gap        time.Duration
	DryRun     bool
}

// NewMediaSyncer creates a MediaSyncer from its parts.
func NewMediaSyncer(logger *slog.Logger, opts MediaOptions) *MediaSyncer {
	return &MediaSyncer{
		logger:     logger,
		history:    opts.History,
		runtimes:   opts.Runtimes,
		calendar:   opts.Calendar,
		calendarID: opts.CalendarID,
		place:      opts.Place,
		gap:        opts.Gap,
		dryRun:     opts.DryRun,
	}
}

// Sync fetches the watch history for the window, groups plays into sittings
// and creates one calendar event per sitting.
func (m *MediaSyncer) Sync(ctx context.Context, start, end time.Time) error {
	items, err := m.history.History(ctx, start, end)
	if err != nil {
		return fmt.Errorf("fetching watch history: %w", err)
	}
	if len(items) == 0 {
		m.logger.Info("No watch history in window", "start", start, "end", end)
		return nil
	}

	watches, err := media.FromHistory(ctx, items, m.runtimes)
	if err != nil {
		return fmt.Errorf("resolving runtimes: %w", err)
	}

	groups := media.GroupWatches(watches, m.gap)
	m.logger.Info("Grouped watch history", "plays", len(watches), "sittings", len(groups))

	var failed int
	for _, group := range groups {
		event := media.BuildEvent(group, m.place)
		if m.dryRun {
			m.logger.Info("[DRY RUN] Would create watch event",
				"summary", event.Summary, "start", event.Start.Time, "end", event.End.Time)
			continue
		}
		if err := m.calendar.CreateEvent(ctx, m.calendarID, event); err != nil {
			failed++
			m.logger.Error("Failed to create watch event", "summary", event.Summary, "error", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d watch events failed to create", failed)
	}
	return nil
}
