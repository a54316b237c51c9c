package reconcile

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/carrieskye/calendar/internal/geo"
	"github.com/carrieskye/calendar/internal/models"
	"github.com/carrieskye/calendar/internal/timeline"
)

func testBox(lat, lon float64) geo.Box {
	const dLat = 0.00045
	dLon := dLat / math.Cos(lat*math.Pi/180)
	return geo.Box{
		BottomLeft:  geo.Point{Lat: lat - dLat, Lon: lon - dLon},
		TopLeft:     geo.Point{Lat: lat + dLat, Lon: lon - dLon},
		TopRight:    geo.Point{Lat: lat + dLat, Lon: lon + dLon},
		BottomRight: geo.Point{Lat: lat - dLat, Lon: lon + dLon},
	}
}

func testRegistry(t *testing.T) *geo.Registry {
	t.Helper()
	places := []geo.Place{
		{Label: "office", Category: "work", Address: "1 Fitzalan Rd, Cardiff", TimeZone: "Europe/London", Box: testBox(51.48, -3.17)},
		{Label: "home", Category: "home", Address: "2 Severn Grove, Cardiff", TimeZone: "Europe/London", Box: testBox(51.49, -3.19)},
		{Label: "gym", Category: "sport", Address: "3 Wood St, Cardiff", TimeZone: "Europe/London", Box: testBox(51.47, -3.18)},
	}
	data, err := json.Marshal(places)
	if err != nil {
		t.Fatalf("failed to marshal places: %v", err)
	}
	path := filepath.Join(t.TempDir(), "places.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write registry: %v", err)
	}
	registry, err := geo.LoadRegistry(path)
	if err != nil {
		t.Fatalf("failed to load registry: %v", err)
	}
	return registry
}

func testReconciler(t *testing.T) *Reconciler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewReconciler(testRegistry(t), 30*time.Minute, logger)
}

func stay(name string, startHour, startMin, endHour, endMin int) timeline.Event {
	return timeline.Event{
		Name:    name,
		Members: []string{name},
		Start:   time.Date(2026, 3, 16, startHour, startMin, 0, 0, time.UTC),
		End:     time.Date(2026, 3, 16, endHour, endMin, 0, 0, time.UTC),
	}
}

func calEvent(summary, location string, startHour, startMin, endHour, endMin int) models.Event {
	return models.Event{
		ID:       summary,
		Summary:  summary,
		Location: location,
		Start:    models.EventTime{Time: time.Date(2026, 3, 16, startHour, startMin, 0, 0, time.UTC), TimeZone: "Europe/London"},
		End:      models.EventTime{Time: time.Date(2026, 3, 16, endHour, endMin, 0, 0, time.UTC), TimeZone: "Europe/London"},
	}
}

func TestReconcileMatchesLowestOffset(t *testing.T) {
	stays := []timeline.Event{
		stay("office", 9, 1, 9, 7),
		stay("office", 14, 0, 14, 10),
	}
	calendarEvents := []models.Event{
		calEvent("Standup", "1 Fitzalan Rd, Cardiff", 9, 0, 9, 5),
	}

	result, err := testReconciler(t).Reconcile(stays, calendarEvents)
	if err != nil {
		t.Fatalf("Reconcile() failed: %v", err)
	}

	if len(result.Matched) != 1 {
		t.Fatalf("got %d matches, expected 1", len(result.Matched))
	}
	match := result.Matched[0]
	if !match.Stay.Start.Equal(stays[0].Start) {
		t.Errorf("matched the wrong stay: %+v", match.Stay)
	}
	if !match.Calendar.Start.Time.Equal(stays[0].Start) || !match.Calendar.End.Time.Equal(stays[0].End) {
		t.Errorf("calendar event times not rewritten: %+v", match.Calendar)
	}

	// The distant stay stays in the pool; too short to become an event though.
	if len(result.Created) != 0 {
		t.Errorf("unexpected created events: %+v", result.Created)
	}
	if len(result.Skipped) != 1 {
		t.Errorf("expected the 10-minute stay skipped, got %+v", result.Skipped)
	}
}

func TestReconcileMatchingIsInjective(t *testing.T) {
	stays := []timeline.Event{
		stay("office", 9, 0, 10, 0),
	}
	calendarEvents := []models.Event{
		calEvent("Meeting A", "1 Fitzalan Rd, Cardiff", 9, 0, 9, 30),
		calEvent("Meeting B", "1 Fitzalan Rd, Cardiff", 9, 30, 10, 0),
	}

	result, err := testReconciler(t).Reconcile(stays, calendarEvents)
	if err != nil {
		t.Fatalf("Reconcile() failed: %v", err)
	}

	if len(result.Matched) != 1 {
		t.Fatalf("one stay can match only one calendar event, got %d matches", len(result.Matched))
	}
	if len(result.Untouched) != 1 {
		t.Errorf("expected the second calendar event untouched, got %+v", result.Untouched)
	}
}

func TestReconcileCreatesEventsForLeftoverStays(t *testing.T) {
	stays := []timeline.Event{
		stay("gym", 18, 0, 19, 15),
	}

	result, err := testReconciler(t).Reconcile(stays, nil)
	if err != nil {
		t.Fatalf("Reconcile() failed: %v", err)
	}

	if len(result.Created) != 1 {
		t.Fatalf("got %d created events, expected 1", len(result.Created))
	}
	created := result.Created[0]
	if created.Summary != DefaultSummary {
		t.Errorf("summary = %q, expected %q", created.Summary, DefaultSummary)
	}
	if created.Location != "3 Wood St, Cardiff" {
		t.Errorf("location = %q, expected the place address", created.Location)
	}
	if created.Description != "gym" {
		t.Errorf("description = %q, expected the place label", created.Description)
	}
}

func TestReconcileSkipsShortHomeAndUnknownStays(t *testing.T) {
	stays := []timeline.Event{
		stay("office", 9, 0, 9, 20),    // under 30 minutes
		stay("home", 19, 0, 23, 0),     // home stays are never logged
		stay("unknown", 12, 0, 13, 30), // unknown place
	}

	result, err := testReconciler(t).Reconcile(stays, nil)
	if err != nil {
		t.Fatalf("Reconcile() failed: %v", err)
	}
	if len(result.Created) != 0 {
		t.Errorf("expected nothing created, got %+v", result.Created)
	}
	if len(result.Skipped) != 3 {
		t.Errorf("expected all three stays skipped, got %d", len(result.Skipped))
	}
}

func TestReconcileHomeNeverMatches(t *testing.T) {
	stays := []timeline.Event{
		stay("home", 9, 0, 10, 0),
	}
	calendarEvents := []models.Event{
		calEvent("Call", "2 Severn Grove, Cardiff", 9, 0, 10, 0),
	}

	result, err := testReconciler(t).Reconcile(stays, calendarEvents)
	if err != nil {
		t.Fatalf("Reconcile() failed: %v", err)
	}
	if len(result.Matched) != 0 {
		t.Errorf("home stay matched a calendar event: %+v", result.Matched)
	}
	if len(result.Untouched) != 1 {
		t.Errorf("expected the calendar event untouched, got %+v", result.Untouched)
	}
}

func TestReconcileUnregisteredPlaceIsFatal(t *testing.T) {
	stays := []timeline.Event{
		stay("atlantis", 9, 0, 10, 0),
	}

	_, err := testReconciler(t).Reconcile(stays, nil)
	var unknownErr *UnknownPlaceError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected *UnknownPlaceError, got %v", err)
	}
	if unknownErr.Label != "atlantis" {
		t.Errorf("error names %q, expected atlantis", unknownErr.Label)
	}
}
