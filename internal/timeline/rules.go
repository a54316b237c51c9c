package timeline

import "time"

// Rules configures the merge passes. The office/commute heuristics were
// originally tuned to one person's routine, so every boundary and threshold
// is a tunable here rather than a constant.
type Rules struct {
	// Office is the label that drives work-day detection and the commute
	// cleanup pass.
	Office string

	// TransitHub is the label of the commute place next to the office whose
	// appearances around office hours are treated as commute noise.
	TransitHub string

	// DayStartHour is the local hour at which a tracked day begins.
	DayStartHour int

	// NoonHour and AfternoonHour bound the midday window used by the
	// work-day and lunch heuristics.
	NoonHour      int
	AfternoonHour int

	// MergeGap is the maximum gap across which two same-name events are
	// bridged when a low-confidence event sits between them.
	MergeGap time.Duration

	// MinEvent is the duration below which an event is absorbed into its
	// temporal context on non-work days.
	MinEvent time.Duration

	// MinSpan is the floor applied to a collapsed lunch-break span.
	MinSpan time.Duration

	// MaxPasses bounds the fixed-point merge loop.
	MaxPasses int
}

// DefaultRules returns the thresholds the pipeline was tuned with.
func DefaultRules() Rules {
	return Rules{
		DayStartHour:  4,
		NoonHour:      12,
		AfternoonHour: 14,
		MergeGap:      30 * time.Minute,
		MinEvent:      5 * time.Minute,
		MinSpan:       30 * time.Minute,
		MaxPasses:     5,
	}
}
