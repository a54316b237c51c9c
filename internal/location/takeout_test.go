package location

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTakeoutDay(t *testing.T, dir string, day time.Time, records string) {
	t.Helper()
	path := filepath.Join(dir,
		fmt.Sprintf("%04d", day.Year()),
		fmt.Sprintf("%02d", int(day.Month())),
		fmt.Sprintf("%02d.json", day.Day()))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(records), 0o644); err != nil {
		t.Fatal(err)
	}
}

func takeoutRecordJSON(at time.Time, latE7, lonE7 int64, accuracy int) string {
	return fmt.Sprintf(`{"timestampMs":"%d","latitudeE7":%d,"longitudeE7":%d,"accuracy":%d}`,
		at.UnixMilli(), latE7, lonE7, accuracy)
}

func TestTakeoutDropsCoarseFixes(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	writeTakeoutDay(t, dir, day, "["+
		takeoutRecordJSON(day.Add(9*time.Hour), 514800000, -31700000, 10)+","+
		takeoutRecordJSON(day.Add(10*time.Hour), 514800000, -31700000, 1500)+","+
		takeoutRecordJSON(day.Add(11*time.Hour), 514800000, -31700000, 15)+
		"]")

	source := &Takeout{Dir: dir}
	samples, err := source.Samples(context.Background(), day, day.Add(24*time.Hour), "carrie")
	if err != nil {
		t.Fatalf("Samples() error = %v", err)
	}

	// The 1500m cell fix carries no place information and must not reach
	// the resolver.
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2 (coarse fix dropped)", len(samples))
	}
	for _, sample := range samples {
		if sample.Accuracy >= DefaultMaxAccuracyMeters {
			t.Errorf("sample with accuracy %.0fm survived the cutoff", sample.Accuracy)
		}
	}
}

func TestTakeoutCustomAccuracyCutoff(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	writeTakeoutDay(t, dir, day, "["+
		takeoutRecordJSON(day.Add(9*time.Hour), 514800000, -31700000, 40)+
		"]")

	strict := &Takeout{Dir: dir, MaxAccuracy: 30}
	_, err := strict.Samples(context.Background(), day, day.Add(24*time.Hour), "carrie")
	var empty *EmptyWindowError
	if !errors.As(err, &empty) {
		t.Fatalf("expected an empty window under the 30m cutoff, got %v", err)
	}

	loose := &Takeout{Dir: dir, MaxAccuracy: 50}
	samples, err := loose.Samples(context.Background(), day, day.Add(24*time.Hour), "carrie")
	if err != nil {
		t.Fatalf("Samples() error = %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1 under the 50m cutoff", len(samples))
	}
}

func TestTakeoutWindowEdges(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	writeTakeoutDay(t, dir, day, "["+
		takeoutRecordJSON(day.Add(3*time.Hour), 514800000, -31700000, 10)+","+
		takeoutRecordJSON(day.Add(9*time.Hour), 514800000, -31700000, 10)+
		"]")

	source := &Takeout{Dir: dir}
	// The window starts at 04:00; the 03:00 record belongs to the previous day.
	samples, err := source.Samples(context.Background(), day.Add(4*time.Hour), day.Add(28*time.Hour), "carrie")
	if err != nil {
		t.Fatalf("Samples() error = %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1 inside the window", len(samples))
	}
}
