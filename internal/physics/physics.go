// Package physics holds heading and magnetic-field math for runway
// alignment scoring.
package physics

import (
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// HeadingDiff returns the smallest angular difference between two headings
// in degrees, in [0, 180].
func HeadingDiff(a, b float64) float64 {
	diff := math.Abs(a - b)
	if diff > 180 {
		diff = 360 - diff
	}
	return diff
}

// NormalizeHeading wraps a heading into [0, 360).
func NormalizeHeading(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// CalculateMagneticVariation calculates the magnetic declination for a given
// position and time. Returns declination in degrees (+East, -West).
func CalculateMagneticVariation(lat, lon, altFt float64, date time.Time) float64 {
	altM := altFt * 0.3048

	loc := egm96.NewLocationGeodetic(lat, lon, altM)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		// Return 0 for safety if calculation fails
		return 0.0
	}

	return mag.D()
}

// TrueToMagnetic converts a true heading to a magnetic heading at the given
// position using the WMM declination.
func TrueToMagnetic(trueHeading, lat, lon, altFt float64, date time.Time) float64 {
	return NormalizeHeading(trueHeading - CalculateMagneticVariation(lat, lon, altFt, date))
}
