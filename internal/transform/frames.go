// Package transform turns the inertial positions of the ephemeris into
// Earth-fixed and geodetic coordinates.
//
// OEM positions are given in EME2000 (J2000). The rotation to Earth-fixed
// uses GMST only, treating J2000 as TEME and ignoring precession since
// J2000, nutation and polar motion. That puts the ground track off by a few
// tenths of a degree in longitude, which is fine for describing where the
// station is but not for pointing anything at it.
package transform

import (
	"math"

	"github.com/star/isstracker/internal/oem"
)

// Plausible orbital radius range for an Earth satellite, in km.
const (
	minRadiusKm = 6200.0
	maxRadiusKm = 50000.0
)

// Magnitude returns |r|.
func Magnitude(r oem.Vector3) float64 {
	return math.Sqrt(r.X*r.X + r.Y*r.Y + r.Z*r.Z)
}

// ValidRadius reports whether a position in km is finite and lies between
// the Earth's surface and a high orbit.
func ValidRadius(r oem.Vector3) bool {
	for _, c := range [3]float64{r.X, r.Y, r.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	mag := Magnitude(r)
	return mag >= minRadiusKm && mag <= maxRadiusKm
}
