package transform

import (
	"math"

	"github.com/star/isstracker/internal/oem"
)

// Independent rotation and geodetic conversion used to check
// SubSatellitePoint, which goes through go-satellite.

// WGS-84 ellipsoid parameters, in km.
const (
	wgs84A  = 6378.137              // semi-major axis
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// inertialToECEF rotates an inertial position (km) about the Z axis by the
// given GMST angle (radians).
func inertialToECEF(r oem.Vector3, gmst float64) oem.Vector3 {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)
	return oem.Vector3{
		X: r.X*cosG + r.Y*sinG,
		Y: -r.X*sinG + r.Y*cosG,
		Z: r.Z,
	}
}

// ecefToGeodetic converts an Earth-fixed position in km to geodetic
// coordinates using Bowring's iteration. Converges in 2-3 iterations for
// Earth orbits.
func ecefToGeodetic(r oem.Vector3) GroundPoint {
	lon := math.Atan2(r.Y, r.X)
	p := math.Sqrt(r.X*r.X + r.Y*r.Y)

	lat := math.Atan2(r.Z, p*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(r.Z+wgs84E2*n*sinLat, p)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - n
	} else {
		alt = math.Abs(r.Z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return GroundPoint{
		LatDeg: lat * 180.0 / math.Pi,
		LonDeg: lon * 180.0 / math.Pi,
		AltKm:  alt,
	}
}
