package geo

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func testRegistry(t *testing.T, places []Place) *Registry {
	t.Helper()

	data, err := json.Marshal(places)
	if err != nil {
		t.Fatalf("failed to marshal test places: %v", err)
	}
	path := filepath.Join(t.TempDir(), "places.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write test registry: %v", err)
	}

	registry, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("failed to load test registry: %v", err)
	}
	return registry
}

func TestResolveAnchor(t *testing.T) {
	registry := testRegistry(t, []Place{
		{Label: "office", Category: "work", TimeZone: "Europe/London", Box: testBox(51.48, -3.17)},
		{Label: "home", Category: "home", TimeZone: "Europe/London", Box: testBox(51.49, -3.18)},
	})
	resolver := NewResolver(registry)

	// A sample at a place's diagonal intersection always resolves to that place.
	for _, place := range registry.Places() {
		label, ok := resolver.Resolve(place.Box.Intersection(), 10)
		if !ok || label != place.Label {
			t.Errorf("Resolve(anchor of %q) = %q, %v", place.Label, label, ok)
		}
	}
}

func TestResolveNoMatch(t *testing.T) {
	registry := testRegistry(t, []Place{
		{Label: "office", Category: "work", TimeZone: "Europe/London", Box: testBox(51.48, -3.17)},
	})
	resolver := NewResolver(registry)

	if label, ok := resolver.Resolve(Point{Lat: 50.85, Lon: 4.35}, 20); ok {
		t.Errorf("expected no match for a sample 300km away, got %q", label)
	}
}

func TestResolveOverlapNearestAnchorWins(t *testing.T) {
	// Two overlapping footprints with anchors ~55m apart.
	registry := testRegistry(t, []Place{
		{Label: "office", Category: "work", TimeZone: "Europe/London", Box: testBox(51.48, -3.17)},
		{Label: "hub", Category: "transport", TimeZone: "Europe/London", Box: testBox(51.4805, -3.17)},
	})
	resolver := NewResolver(registry)

	tests := []struct {
		name     string
		point    Point
		expected string
	}{
		{name: "nearer office anchor", point: Point{Lat: 51.4799, Lon: -3.17}, expected: "office"},
		{name: "nearer hub anchor", point: Point{Lat: 51.4806, Lon: -3.17}, expected: "hub"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, ok := resolver.Resolve(tt.point, 30)
			if !ok {
				t.Fatal("expected a match in the overlap zone")
			}
			if label != tt.expected {
				t.Errorf("Resolve() = %q, expected %q", label, tt.expected)
			}
		})
	}
}

func TestResolveAccuracyMonotonic(t *testing.T) {
	registry := testRegistry(t, []Place{
		{Label: "office", Category: "work", TimeZone: "Europe/London", Box: testBox(51.48, -3.17)},
	})
	resolver := NewResolver(registry)

	// ~20m outside the footprint.
	point := Point{Lat: 51.48063, Lon: -3.17}

	matched := false
	for accuracy := 5.0; accuracy <= 150; accuracy += 5 {
		_, ok := resolver.Resolve(point, accuracy)
		if matched && !ok {
			t.Fatalf("sample matched at lower accuracy but not at %.0fm", accuracy)
		}
		matched = matched || ok
	}
	if !matched {
		t.Error("sample never matched despite generous accuracy")
	}
}

func TestResolvePreFilterKeepsCoarseSamples(t *testing.T) {
	place := Place{Label: "office", Category: "work", TimeZone: "Europe/London", Box: testBox(51.48, -3.17)}
	registry := testRegistry(t, []Place{place})
	resolver := NewResolver(registry)

	// A kilometer-grade fix: the buffered footprint reaches several km out, so
	// a sample 6km from the anchor can still sit inside it. The candidate
	// pre-filter must not drop it.
	const accuracy = 5000.0
	anchor := place.Box.Intersection()
	sample := anchor.Destination(anchor.Bearing(place.Box.TopRight), 6)

	if !place.Box.Extend(accuracy).Contains(sample) {
		t.Fatal("expected the buffered footprint to contain the sample")
	}
	label, ok := resolver.Resolve(sample, accuracy)
	if !ok || label != "office" {
		t.Errorf("Resolve() = %q, %v; a sample inside the buffered footprint must match", label, ok)
	}
}

func TestRegistryRejectsDegeneratePolygon(t *testing.T) {
	valid := testBox(51.48, -3.17)
	broken := Box{
		BottomLeft:  valid.BottomLeft,
		TopLeft:     valid.TopRight,
		TopRight:    valid.TopLeft,
		BottomRight: valid.BottomRight,
	}

	data, err := json.Marshal([]Place{{Label: "twisted", Box: broken}})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "places.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	if _, err := LoadRegistry(path); err == nil {
		t.Error("expected LoadRegistry to reject a self-intersecting quadrilateral")
	}
}

func TestRegistryAddPersists(t *testing.T) {
	registry := testRegistry(t, []Place{
		{Label: "office", Category: "work", TimeZone: "Europe/London", Box: testBox(51.48, -3.17)},
	})

	place := Place{Label: "gym", Category: "sport", TimeZone: "Europe/London", Box: testBox(51.47, -3.16)}
	if err := registry.Add(place); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	reloaded, err := LoadRegistry(registry.path)
	if err != nil {
		t.Fatalf("failed to reload registry: %v", err)
	}
	if reloaded.Len() != 2 {
		t.Fatalf("reloaded registry has %d places, expected 2", reloaded.Len())
	}
	if _, ok := reloaded.Get("gym"); !ok {
		t.Error("added place missing after reload")
	}
}
