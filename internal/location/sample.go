package location

import (
	"context"
	"fmt"
	"time"

	"github.com/carrieskye/calendar/internal/geo"
)

// Unknown is the label assigned to samples outside every registered place.
const Unknown = "unknown"

// Sample is one raw location ping from a tracker.
type Sample struct {
	Time     time.Time
	Lat      float64
	Lon      float64
	Accuracy float64 // reported GPS accuracy in meters
	PlaceID  string  // place id recorded by the source, usually empty
}

// Point returns the sample's position.
func (s Sample) Point() geo.Point {
	return geo.Point{Lat: s.Lat, Lon: s.Lon}
}

// Labeled is a sample with a resolved place label.
type Labeled struct {
	Sample
	Label string
}

// Source produces raw samples for a time window, ordered by timestamp.
type Source interface {
	Samples(ctx context.Context, start, end time.Time, owner string) ([]Sample, error)
}

// EmptyWindowError reports a window with no samples. One empty day must not
// abort a date-range run, so callers match on this type and skip the day.
type EmptyWindowError struct {
	Start time.Time
	End   time.Time
	Owner string
}

func (e *EmptyWindowError) Error() string {
	return fmt.Sprintf("no location samples for %s between %s and %s",
		e.Owner, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}
