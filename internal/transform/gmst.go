package transform

import (
	"math"
	"time"
)

// j2000 is the Julian Date of the J2000.0 epoch (January 1, 2000, 12:00:00 TT).
const j2000 = 2451545.0

// OmegaEarth is Earth's rotation rate in rad/s (IAU value).
const OmegaEarth = 7.292115146706979e-5

// JulianDate converts a UTC instant to a Julian Date, keeping sub-second precision.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())
	dayFrac := (float64(t.Hour()) +
		float64(t.Minute())/60.0 +
		(float64(t.Second())+float64(t.Nanosecond())/1e9)/3600.0) / 24.0

	// January and February count as months 13 and 14 of the previous year.
	if m <= 2 {
		y--
		m += 12
	}

	a := math.Floor(y / 100)
	b := 2 - a + math.Floor(a/4)

	return math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + b - 1524.5 + dayFrac
}

// GMST returns Greenwich Mean Sidereal Time in radians, in [0, 2π), using the
// IAU-82 model (Vallado Eq 3-47):
//
//	θ_GMST = 67310.54841 + (876600h + 8640184.812866)*T + 0.093104*T² - 6.2e-6*T³
//
// where T is Julian centuries of UT1 from J2000.0 and θ is in seconds of time.
// UT1 is taken as UTC.
func GMST(t time.Time) float64 {
	tu := (JulianDate(t) - j2000) / 36525.0

	// 876600h = 3155760000 s.
	sec := 67310.54841 +
		(3155760000.0+8640184.812866)*tu +
		0.093104*tu*tu -
		6.2e-6*tu*tu*tu

	sec = math.Mod(sec, 86400.0)
	if sec < 0 {
		sec += 86400.0
	}
	return sec / 86400.0 * 2.0 * math.Pi
}
