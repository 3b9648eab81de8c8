package transform

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/star/isstracker/internal/oem"
)

// GroundPoint is a geodetic position on the WGS-84 ellipsoid.
type GroundPoint struct {
	LatDeg float64 `json:"latitude"`
	LonDeg float64 `json:"longitude"`
	AltKm  float64 `json:"altitude_km"`
}

// SubSatellitePoint returns the WGS-84 geodetic point beneath an inertial
// position (km) at instant t, rotating by GMST(t) before the conversion.
func SubSatellitePoint(pos oem.Vector3, t time.Time) (GroundPoint, error) {
	if !ValidRadius(pos) {
		return GroundPoint{}, fmt.Errorf("position radius %.1f km is not a plausible orbit", Magnitude(pos))
	}

	alt, _, ll := satellite.ECIToLLA(satellite.Vector3{X: pos.X, Y: pos.Y, Z: pos.Z}, GMST(t))
	return GroundPoint{
		LatDeg: ll.Latitude * 180.0 / math.Pi,
		LonDeg: NormalizeLongitude(ll.Longitude * 180.0 / math.Pi),
		AltKm:  alt,
	}, nil
}

// NormalizeLongitude wraps a longitude in degrees into [-180, 180].
func NormalizeLongitude(deg float64) float64 {
	deg = math.Mod(deg, 360)
	switch {
	case deg > 180:
		deg -= 360
	case deg < -180:
		deg += 360
	}
	return deg
}
