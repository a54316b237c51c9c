package geo

import (
	"fmt"
	"math"
)

// Box is an arbitrarily oriented quadrilateral footprint. Corners are named
// for the usual orientation but no axis alignment is assumed.
type Box struct {
	BottomLeft  Point `json:"bottom_left"`
	TopLeft     Point `json:"top_left"`
	TopRight    Point `json:"top_right"`
	BottomRight Point `json:"bottom_right"`
}

// InvalidBoxError reports a quadrilateral that cannot be used for containment
// testing. Raised at registry load time, never during resolution.
type InvalidBoxError struct {
	Label  string
	Reason string
}

func (e *InvalidBoxError) Error() string {
	return fmt.Sprintf("invalid bounding box for %q: %s", e.Label, e.Reason)
}

// corners returns the corners in winding order.
func (b Box) corners() [4]Point {
	return [4]Point{b.BottomLeft, b.TopLeft, b.TopRight, b.BottomRight}
}

// Validate rejects degenerate quadrilaterals: repeated corners, diagonals
// that cannot intersect, and non-convex shapes. The even-odd containment
// rule is only well defined for simple polygons.
func (b Box) Validate(label string) error {
	pts := b.corners()
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if pts[i] == pts[j] {
				return &InvalidBoxError{Label: label, Reason: "repeated corner"}
			}
		}
	}

	if _, err := b.intersection(); err != nil {
		return &InvalidBoxError{Label: label, Reason: err.Error()}
	}

	// Convexity: the cross product of consecutive edges must not change sign.
	var sign float64
	for i := range pts {
		a, b2, c := pts[i], pts[(i+1)%4], pts[(i+2)%4]
		cross := (b2.Lat-a.Lat)*(c.Lon-b2.Lon) - (b2.Lon-a.Lon)*(c.Lat-b2.Lat)
		if cross == 0 {
			return &InvalidBoxError{Label: label, Reason: "collinear corners"}
		}
		if sign == 0 {
			sign = cross
		} else if sign*cross < 0 {
			return &InvalidBoxError{Label: label, Reason: "not convex"}
		}
	}
	return nil
}

// Intersection returns the point where the two diagonals cross. It anchors
// disambiguation between overlapping places; it is not a centroid.
func (b Box) Intersection() Point {
	p, err := b.intersection()
	if err != nil {
		// Validate catches this at load time.
		return b.BottomLeft
	}
	return p
}

func (b Box) intersection() (Point, error) {
	m1, b1, err := lineThrough(b.TopRight, b.BottomLeft)
	if err != nil {
		return Point{}, err
	}
	m2, b2, err := lineThrough(b.BottomRight, b.TopLeft)
	if err != nil {
		return Point{}, err
	}
	if m1 == m2 {
		return Point{}, fmt.Errorf("parallel diagonals")
	}

	x := (b2 - b1) / (m1 - m2)
	y := x*m1 + b1
	return Point{Lat: x, Lon: y}, nil
}

// lineThrough returns slope and intercept of the line through p and q,
// treating latitude as x and longitude as y.
func lineThrough(p, q Point) (m, b float64, err error) {
	if p.Lat == q.Lat {
		return 0, 0, fmt.Errorf("diagonal with zero latitude span")
	}
	m = (q.Lon - p.Lon) / (q.Lat - p.Lat)
	b = -(q.Lat * m) + q.Lon
	return m, b, nil
}

// Contains reports whether p falls inside the quadrilateral, using the
// even-odd crossing rule over the four edges.
func (b Box) Contains(p Point) bool {
	polygon := []Point{b.BottomLeft, b.TopLeft, b.TopRight, b.BottomRight, b.BottomLeft}

	odd := false
	for i := 0; i < len(polygon); i++ {
		j := (i + 1) % len(polygon)
		lat1, lon1 := polygon[i].Lat, polygon[i].Lon
		lat2, lon2 := polygon[j].Lat, polygon[j].Lon
		if (lat1 < p.Lat && lat2 >= p.Lat) || (lat2 < p.Lat && lat1 >= p.Lat) {
			if lon1+(p.Lat-lat1)/(lat2-lat1)*(lon2-lon1) < p.Lon {
				odd = !odd
			}
		}
	}
	return odd
}

// Extend grows the quadrilateral outward to absorb GPS error: every corner is
// pushed along the bisector of its two adjacent edges by sqrt(2·d²) km, where
// d = accuracy/1000. Larger accuracy never yields a smaller box.
func (b Box) Extend(accuracyMeters float64) Box {
	d := accuracyMeters / 1000

	return Box{
		BottomLeft:  extendCorner(b.BottomLeft, b.TopLeft, b.BottomRight, d),
		TopLeft:     extendCorner(b.TopLeft, b.TopRight, b.BottomLeft, d),
		TopRight:    extendCorner(b.TopRight, b.BottomRight, b.TopLeft, d),
		BottomRight: extendCorner(b.BottomRight, b.BottomLeft, b.TopRight, d),
	}
}

// extendCorner pushes target away from the polygon along the bisector of the
// bearings towards its two neighbouring corners.
func extendCorner(target, side1, side2 Point, d float64) Point {
	b1 := awayBearing(target, side1)
	b2 := awayBearing(target, side2)
	if b2 < b1 {
		b2 += 360
	}
	bearing := b1 + (b2-b1)/2

	return target.Destination(bearing, math.Sqrt(2*d*d))
}

func awayBearing(target, neighbour Point) float64 {
	if neighbour.Lon < target.Lon {
		return neighbour.Bearing(target)
	}
	return target.Bearing(neighbour) + 180
}

// MaxDiagonal returns the longer diagonal in meters, used to bound the
// resolver's candidate pre-filter.
func (b Box) MaxDiagonal() float64 {
	return math.Max(
		b.BottomLeft.Distance(b.TopRight),
		b.TopLeft.Distance(b.BottomRight))
}
