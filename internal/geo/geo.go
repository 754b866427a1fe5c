// Package geo provides the pure geodesic math used by tracking, the vector
// store and the radar renderer. All functions are side-effect free; malformed
// coordinates (NaN, out of range) propagate as NaN results and must be
// validated by callers.
package geo

import "math"

// Conversion constants for aviation calculations.
const (
	EarthRadiusM = 6371000.0 // Mean Earth radius in meters

	MetersPerNM  = 1852.0  // Meters per nautical mile
	FeetPerMeter = 3.28084 // Feet per meter
	KmPerNM      = 1.852   // Kilometers per nautical mile
)

// Point is a geographic coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RadarPosition is a normalized 2D display coordinate. Both axes run 0-100
// for a square viewport, with the range circle centered at (50, 50) and
// bearing 0 pointing at the top of the scope.
type RadarPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DistanceMeters returns the great-circle distance between two points using
// the haversine formula.
func DistanceMeters(p1, p2 Point) float64 {
	rad := math.Pi / 180.0

	lat1 := p1.Lat * rad
	lat2 := p2.Lat * rad
	dlat := (p2.Lat - p1.Lat) * rad
	dlon := (p2.Lon - p1.Lon) * rad

	a := math.Pow(math.Sin(dlat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dlon/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusM * c
}

// BearingDegrees returns the initial bearing from p1 to p2, normalized to
// [0, 360). 0 = North, 90 = East.
func BearingDegrees(p1, p2 Point) float64 {
	rad := math.Pi / 180.0

	lat1 := p1.Lat * rad
	lat2 := p2.Lat * rad
	dlon := (p2.Lon - p1.Lon) * rad

	y := math.Sin(dlon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dlon)
	bearing := math.Atan2(y, x) * 180.0 / math.Pi

	return math.Mod(bearing+360.0, 360.0)
}

// ToRadarPosition projects a geographic point onto the radar scope relative
// to the given center and range. Points beyond the range land outside the
// [0,100] square; callers decide whether to clip.
func ToRadarPosition(p, center Point, rangeNM float64) RadarPosition {
	distNM := DistanceMeters(center, p) / 1000.0 / KmPerNM
	bearing := BearingDegrees(center, p)

	// Bearing 0 renders straight up, so rotate the polar angle by -90.
	angleRad := (bearing - 90.0) * math.Pi / 180.0
	r := distNM / rangeNM * 50.0

	return RadarPosition{
		X: 50.0 + r*math.Cos(angleRad),
		Y: 50.0 + r*math.Sin(angleRad),
	}
}

// MetersToNM converts meters to nautical miles.
func MetersToNM(meters float64) float64 {
	return meters / MetersPerNM
}

// NMToMeters converts nautical miles to meters.
func NMToMeters(nm float64) float64 {
	return nm * MetersPerNM
}

// MetersToFeet converts meters to feet.
func MetersToFeet(meters float64) float64 {
	return meters * FeetPerMeter
}

// FeetToMeters converts feet to meters.
func FeetToMeters(feet float64) float64 {
	return feet / FeetPerMeter
}
