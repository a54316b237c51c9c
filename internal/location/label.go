package location

import (
	"sort"

	"github.com/carrieskye/calendar/internal/geo"
)

// neighbourWindow is the number of samples inspected on each side when
// filtering isolated labels.
const neighbourWindow = 4

// Labeler assigns a place label to a position. *geo.Resolver satisfies it.
type Labeler interface {
	Resolve(p geo.Point, accuracyMeters float64) (string, bool)
}

// Label turns raw samples into a chronological labeled sequence: samples are
// sorted, duplicate timestamps dropped, every sample resolved against the
// registry, and isolated labels discarded as noise.
func Label(samples []Sample, labeler Labeler) []Labeled {
	ordered := make([]Sample, len(samples))
	copy(ordered, samples)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Time.Before(ordered[j].Time)
	})
	ordered = dropDuplicateTimestamps(ordered)

	labeled := make([]Labeled, 0, len(ordered))
	for _, sample := range ordered {
		label, ok := labeler.Resolve(sample.Point(), sample.Accuracy)
		if !ok {
			label = Unknown
		}
		labeled = append(labeled, Labeled{Sample: sample, Label: label})
	}

	return dropIsolatedLabels(labeled)
}

// dropDuplicateTimestamps keeps the first sample for every timestamp.
// Duplicates are sensor artifacts.
func dropDuplicateTimestamps(samples []Sample) []Sample {
	out := samples[:0]
	for i, sample := range samples {
		if i > 0 && sample.Time.Equal(samples[i-1].Time) {
			continue
		}
		out = append(out, sample)
	}
	return out
}

// dropIsolatedLabels removes samples whose label has no support among their
// temporal neighbours. This only removes total outliers; minority runs with
// at least one supporting neighbour survive for the merge passes to handle.
func dropIsolatedLabels(samples []Labeled) []Labeled {
	out := make([]Labeled, 0, len(samples))
	for i, sample := range samples {
		lo := max(0, i-neighbourWindow)
		hi := min(len(samples), i+neighbourWindow+1)

		support := 0
		for _, neighbour := range samples[lo:hi] {
			if neighbour.Label == sample.Label {
				support++
			}
		}
		// The window includes the sample itself.
		if support > 1 {
			out = append(out, sample)
		}
	}
	return out
}
