package location

import (
	"testing"
	"time"

	"github.com/carrieskye/calendar/internal/geo"
)

// gridLabeler labels samples by their latitude band, ignoring accuracy.
type gridLabeler struct {
	bands map[string][2]float64
}

func (g *gridLabeler) Resolve(p geo.Point, _ float64) (string, bool) {
	for label, band := range g.bands {
		if p.Lat >= band[0] && p.Lat < band[1] {
			return label, true
		}
	}
	return "", false
}

func at(minute int) time.Time {
	return time.Date(2026, 3, 14, 8, minute, 0, 0, time.UTC)
}

func sampleAt(minute int, lat float64) Sample {
	return Sample{Time: at(minute), Lat: lat, Lon: -3.17, Accuracy: 10}
}

func testLabeler() *gridLabeler {
	return &gridLabeler{bands: map[string][2]float64{
		"office": {51.0, 52.0},
		"home":   {50.0, 51.0},
	}}
}

func TestLabelSortsAndResolves(t *testing.T) {
	samples := []Sample{
		sampleAt(10, 51.5),
		sampleAt(0, 51.5),
		sampleAt(5, 51.5),
	}

	labeled := Label(samples, testLabeler())
	if len(labeled) != 3 {
		t.Fatalf("got %d samples, expected 3", len(labeled))
	}
	for i := 1; i < len(labeled); i++ {
		if labeled[i].Time.Before(labeled[i-1].Time) {
			t.Fatal("labeled samples not in chronological order")
		}
	}
	for _, sample := range labeled {
		if sample.Label != "office" {
			t.Errorf("label = %q, expected office", sample.Label)
		}
	}
}

func TestLabelDropsDuplicateTimestamps(t *testing.T) {
	dup := sampleAt(5, 50.5)
	samples := []Sample{
		sampleAt(0, 51.5),
		sampleAt(5, 51.5), // kept: first occurrence wins
		dup,
		sampleAt(10, 51.5),
		sampleAt(15, 51.5),
	}

	labeled := Label(samples, testLabeler())
	if len(labeled) != 4 {
		t.Fatalf("got %d samples, expected 4", len(labeled))
	}
	for _, sample := range labeled {
		if sample.Label == "home" {
			t.Error("duplicate-timestamp sample survived")
		}
	}
}

func TestLabelUnknownOutsideAllPlaces(t *testing.T) {
	samples := []Sample{
		sampleAt(0, 10.0),
		sampleAt(5, 10.0),
		sampleAt(10, 10.0),
	}

	labeled := Label(samples, testLabeler())
	for _, sample := range labeled {
		if sample.Label != Unknown {
			t.Errorf("label = %q, expected %q", sample.Label, Unknown)
		}
	}
}

func TestLabelDropsIsolatedLabels(t *testing.T) {
	samples := []Sample{
		sampleAt(0, 51.5),
		sampleAt(2, 51.5),
		sampleAt(4, 50.5), // isolated home reading in an office run
		sampleAt(6, 51.5),
		sampleAt(8, 51.5),
	}

	labeled := Label(samples, testLabeler())
	if len(labeled) != 4 {
		t.Fatalf("got %d samples, expected 4", len(labeled))
	}
	for _, sample := range labeled {
		if sample.Label == "home" {
			t.Error("isolated label survived the noise filter")
		}
	}
}

func TestLabelKeepsSupportedMinorityRun(t *testing.T) {
	samples := []Sample{
		sampleAt(0, 51.5),
		sampleAt(2, 51.5),
		sampleAt(4, 50.5),
		sampleAt(6, 50.5), // two home samples support each other
		sampleAt(8, 51.5),
		sampleAt(10, 51.5),
	}

	labeled := Label(samples, testLabeler())
	home := 0
	for _, sample := range labeled {
		if sample.Label == "home" {
			home++
		}
	}
	if home != 2 {
		t.Errorf("got %d home samples, expected the supported pair to survive", home)
	}
}
