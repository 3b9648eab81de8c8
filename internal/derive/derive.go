// Package derive computes speed and location from a single state vector in
// the dataset's active unit system.
package derive

import (
	"context"
	"math"
	"time"

	"github.com/star/isstracker/internal/dataset"
	"github.com/star/isstracker/internal/geocode"
	"github.com/star/isstracker/internal/oem"
	"github.com/star/isstracker/internal/transform"
	"github.com/star/isstracker/internal/units"
)

// Geolocation fallbacks reported in place of an address.
const (
	GeoUnavailable = "Geolocation service is currently unavailable"
	GeoOcean       = "The ISS is currently above an ocean; unable to identify geolocation"
)

// longitudeOffsetDeg is the empirical offset applied on top of the hour-angle
// correction.
const longitudeOffsetDeg = 32.0

// Geocoder resolves coordinates to a place. ok is false when the point has no
// address (open water).
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (place geocode.Place, ok bool, err error)
}

// Quantity is a value tagged with its unit label.
type Quantity struct {
	Value float64 `json:"value"`
	Units string  `json:"units"`
}

// Location is where the station is at one epoch.
type Location struct {
	Latitude    float64                `json:"latitude"`
	Longitude   float64                `json:"longitude"`
	Altitude    Quantity               `json:"altitude"`
	Geolocation any                    `json:"geolocation"` // geocode.Place or a fallback string
	GroundPoint *transform.GroundPoint `json:"ground_point,omitempty"`
}

// Speed returns the magnitude of the velocity vector.
func Speed(v oem.StateVector, sys units.System) (Quantity, error) {
	if !sys.Valid() {
		return Quantity{}, dataset.ErrNoData
	}
	vel := v.Velocity
	return Quantity{
		Value: math.Sqrt(vel.X*vel.X + vel.Y*vel.Y + vel.Z*vel.Z),
		Units: sys.SpeedLabel(),
	}, nil
}

// Coordinates returns latitude, longitude (degrees) and altitude above the
// mean Earth radius for v.
//
// Longitude subtracts the hour angle of the epoch's UTC hour and minute from
// the inertial right ascension and adds a fixed offset, then wraps into
// [-180, 180].
func Coordinates(v oem.StateVector, sys units.System) (lat, lon float64, alt Quantity, err error) {
	if !sys.Valid() {
		return 0, 0, Quantity{}, dataset.ErrNoData
	}
	t, err := v.Instant()
	if err != nil {
		return 0, 0, Quantity{}, err
	}

	p := v.Position
	lat = degrees(math.Atan2(p.Z, math.Sqrt(p.X*p.X+p.Y*p.Y)))
	lon = degrees(math.Atan2(p.Y, p.X)) - hourAngleDeg(t) + longitudeOffsetDeg
	lon = transform.NormalizeLongitude(lon)

	alt = Quantity{
		Value: transform.Magnitude(p) - sys.EarthRadius(),
		Units: sys.DistanceLabel(),
	}
	return lat, lon, alt, nil
}

func hourAngleDeg(t time.Time) float64 {
	return (float64(t.Hour()-12) + float64(t.Minute())/60) * 15
}

// Locate builds the full Location for v, asking geocoder for the place under
// the computed coordinates. A geocoder error never fails the call; it is
// reported as GeoUnavailable.
func Locate(ctx context.Context, v oem.StateVector, sys units.System, geocoder Geocoder) (Location, error) {
	lat, lon, alt, err := Coordinates(v, sys)
	if err != nil {
		return Location{}, err
	}

	loc := Location{
		Latitude:    lat,
		Longitude:   lon,
		Altitude:    alt,
		Geolocation: Geolocate(ctx, geocoder, lat, lon),
	}
	if gp, ok := GroundPoint(v, sys); ok {
		loc.GroundPoint = &gp
	}
	return loc, nil
}

// Geolocate returns the place at lat/lon, or one of the fallback strings.
func Geolocate(ctx context.Context, geocoder Geocoder, lat, lon float64) any {
	if geocoder == nil {
		return GeoUnavailable
	}
	place, ok, err := geocoder.Reverse(ctx, lat, lon)
	switch {
	case err != nil:
		return GeoUnavailable
	case !ok:
		return GeoOcean
	default:
		return place
	}
}

// GroundPoint returns the WGS-84 sub-satellite point of v. Positions in
// miles are converted to km first. ok is false when v has no usable epoch
// or an implausible radius.
func GroundPoint(v oem.StateVector, sys units.System) (transform.GroundPoint, bool) {
	if !sys.Valid() {
		return transform.GroundPoint{}, false
	}
	t, err := v.Instant()
	if err != nil {
		return transform.GroundPoint{}, false
	}
	k := sys.ToKm()
	posKm := oem.Vector3{X: v.Position.X * k, Y: v.Position.Y * k, Z: v.Position.Z * k}
	gp, err := transform.SubSatellitePoint(posKm, t)
	if err != nil {
		return transform.GroundPoint{}, false
	}
	return gp, true
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
