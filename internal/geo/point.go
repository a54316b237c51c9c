package geo

import "math"

// earthRadiusKm is the mean Earth radius used for all spherical calculations.
const earthRadiusKm = 6371.0

// Point is a position in decimal degrees.
type Point struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Distance returns the great-circle distance between p and q in meters.
func (p Point) Distance(q Point) float64 {
	phi1 := radians(p.Lat)
	phi2 := radians(q.Lat)
	dPhi := radians(q.Lat - p.Lat)
	dLambda := radians(q.Lon - p.Lon)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * 1000 * c
}

// Bearing returns the initial bearing from p to q in degrees.
func (p Point) Bearing(q Point) float64 {
	phi1 := radians(p.Lat)
	phi2 := radians(q.Lat)
	dLambda := radians(math.Abs(p.Lon - q.Lon))

	x := math.Cos(phi2) * math.Sin(dLambda)
	y := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)

	return degrees(math.Atan2(x, y))
}

// Destination returns the point reached by travelling km kilometers from p
// along the given initial bearing in degrees.
func (p Point) Destination(bearing, km float64) Point {
	delta := km / earthRadiusKm
	theta := radians(bearing)
	phi1 := radians(p.Lat)
	lambda1 := radians(p.Lon)

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) +
		math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2))

	return Point{Lat: degrees(phi2), Lon: degrees(lambda2)}
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
