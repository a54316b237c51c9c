package geo

import "math"

// preFilterSlackMeters pads the resolver's candidate bound so the pre-filter
// can never exclude a place whose buffered footprint contains the sample.
const preFilterSlackMeters = 500

// Resolver assigns samples to registered places by buffered containment.
type Resolver struct {
	registry *Registry
}

// NewResolver creates a Resolver over the given registry.
func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve returns the label of the place whose footprint, grown by the
// sample's accuracy, contains the point. When several footprints match, the
// place whose diagonal intersection is nearest wins. The second return value
// is false when no place matches.
func (r *Resolver) Resolve(p Point, accuracyMeters float64) (string, bool) {
	var matches []Place
	for _, place := range r.registry.Places() {
		anchor := place.Box.Intersection()
		// The full diagonal covers skewed quadrilaterals whose anchor sits far
		// off-center, and each corner moves out by sqrt(2)*accuracy when the
		// footprint is buffered.
		bound := place.Box.MaxDiagonal() + math.Sqrt2*accuracyMeters + preFilterSlackMeters
		if p.Distance(anchor) > bound {
			continue
		}
		if place.Box.Extend(accuracyMeters).Contains(p) {
			matches = append(matches, place)
		}
	}

	switch len(matches) {
	case 0:
		return "", false
	case 1:
		return matches[0].Label, true
	}

	// Overlapping footprints: nearest anchor wins. The anchor is the diagonal
	// intersection, a deliberate simplification over true overlap area.
	closest := matches[0]
	closestDist := p.Distance(closest.Box.Intersection())
	for _, place := range matches[1:] {
		if d := p.Distance(place.Box.Intersection()); d < closestDist {
			closest, closestDist = place, d
		}
	}
	return closest.Label, true
}
