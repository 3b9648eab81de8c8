package derive

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/isstracker/internal/dataset"
	"github.com/star/isstracker/internal/geocode"
	"github.com/star/isstracker/internal/oem"
	"github.com/star/isstracker/internal/units"
)

type stubGeocoder struct {
	place   geocode.Place
	ok      bool
	err     error
	lat     float64
	lon     float64
	invoked bool
}

func (s *stubGeocoder) Reverse(_ context.Context, lat, lon float64) (geocode.Place, bool, error) {
	s.invoked = true
	s.lat, s.lon = lat, lon
	return s.place, s.ok, s.err
}

func mustVector(t *testing.T, epoch string, pos, vel oem.Vector3) oem.StateVector {
	t.Helper()
	ts, err := oem.ParseEpoch(epoch)
	require.NoError(t, err)
	return oem.StateVector{Epoch: epoch, Time: ts, Position: pos, Velocity: vel}
}

func firstSample(t *testing.T) oem.StateVector {
	return mustVector(t, "2023-02-15T12:00:00.000",
		oem.Vector3{X: -2826.053166991644, Y: 3828.524071855386, Z: 4816.530283947100},
		oem.Vector3{X: -5.484, Y: -4.914, Z: -2.671},
	)
}

func TestSpeed(t *testing.T) {
	v := firstSample(t)

	q, err := Speed(v, units.SI)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(5.484*5.484+4.914*4.914+2.671*2.671), q.Value, 1e-12)
	assert.InDelta(t, 7.833, q.Value, 1e-3)
	assert.Equal(t, "km/s", q.Units)

	q, err = Speed(v, units.USCS)
	require.NoError(t, err)
	assert.Equal(t, "mi/s", q.Units)
}

func TestSpeedCleared(t *testing.T) {
	_, err := Speed(firstSample(t), units.None)
	assert.ErrorIs(t, err, dataset.ErrNoData)
}

func TestCoordinates(t *testing.T) {
	tests := []struct {
		name     string
		vector   oem.StateVector
		sys      units.System
		lat, lon float64
		alt      float64
		altUnits string
	}{
		{
			name:     "noon epoch",
			vector:   firstSample(t),
			sys:      units.SI,
			lat:      45.3467035129036,
			lon:      158.43316161315772,
			alt:      399.7560174340342,
			altUnits: "km",
		},
		{
			// 12:36 subtracts 9 degrees of hour angle.
			name: "two-digit minute",
			vector: mustVector(t, "2023-02-15T12:36:00.000",
				oem.Vector3{X: -1820.791432027253, Y: -4056.259655306842, Z: -5103.036340547317},
				oem.Vector3{}),
			sys:      units.SI,
			lat:      -48.93496757765597,
			lon:      -91.17456496214444,
			alt:      math.Sqrt(1820.791432027253*1820.791432027253+4056.259655306842*4056.259655306842+5103.036340547317*5103.036340547317) - 6371,
			altUnits: "km",
		},
		{
			// 23:00 subtracts 165 degrees; 158.4 - 165 wraps to negative.
			name: "late hour",
			vector: mustVector(t, "2023-02-15T23:00:00.000",
				oem.Vector3{X: -2826.053166991644, Y: 3828.524071855386, Z: 4816.530283947100},
				oem.Vector3{}),
			sys:      units.SI,
			lat:      45.3467035129036,
			lon:      158.43316161315772 - 165,
			alt:      399.7560174340342,
			altUnits: "km",
		},
		{
			// 01:00 adds 165 degrees and wraps past 180.
			name: "early hour wraps",
			vector: mustVector(t, "2023-02-15T01:00:00.000",
				oem.Vector3{X: -2826.053166991644, Y: 3828.524071855386, Z: 4816.530283947100},
				oem.Vector3{}),
			sys:      units.SI,
			lat:      45.3467035129036,
			lon:      158.43316161315772 + 165 - 360,
			alt:      399.7560174340342,
			altUnits: "km",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat, lon, alt, err := Coordinates(tt.vector, tt.sys)
			require.NoError(t, err)
			assert.InDelta(t, tt.lat, lat, 1e-9)
			assert.InDelta(t, tt.lon, lon, 1e-9)
			assert.InDelta(t, tt.alt, alt.Value, 1e-9)
			assert.Equal(t, tt.altUnits, alt.Units)
			assert.GreaterOrEqual(t, lon, -180.0)
			assert.LessOrEqual(t, lon, 180.0)
		})
	}
}

func TestCoordinatesUSCS(t *testing.T) {
	v := firstSample(t)
	p := v.Position
	v.Position = oem.Vector3{X: p.X * units.KmToMi, Y: p.Y * units.KmToMi, Z: p.Z * units.KmToMi}

	lat, lon, alt, err := Coordinates(v, units.USCS)
	require.NoError(t, err)
	assert.InDelta(t, 45.3467035129036, lat, 1e-9)
	assert.InDelta(t, 158.43316161315772, lon, 1e-9)
	assert.Equal(t, "mi", alt.Units)
	assert.InDelta(t, 6770.756017434034*units.KmToMi-3958.8, alt.Value, 1e-6)
}

func TestLocateGeolocation(t *testing.T) {
	place := geocode.Place{"country": "Japan", "country_code": "jp"}
	tests := []struct {
		name string
		geo  *stubGeocoder
		want any
	}{
		{"place", &stubGeocoder{place: place, ok: true}, place},
		{"ocean", &stubGeocoder{}, GeoOcean},
		{"timeout", &stubGeocoder{err: context.DeadlineExceeded}, GeoUnavailable},
		{"other failure", &stubGeocoder{err: errors.New("connection refused")}, GeoUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := Locate(context.Background(), firstSample(t), units.SI, tt.geo)
			require.NoError(t, err)
			assert.Equal(t, tt.want, loc.Geolocation)
			assert.True(t, tt.geo.invoked)
			assert.InDelta(t, loc.Latitude, tt.geo.lat, 1e-12)
			assert.InDelta(t, loc.Longitude, tt.geo.lon, 1e-12)
		})
	}
}

func TestLocateNilGeocoder(t *testing.T) {
	loc, err := Locate(context.Background(), firstSample(t), units.SI, nil)
	require.NoError(t, err)
	assert.Equal(t, GeoUnavailable, loc.Geolocation)
}

func TestLocateCleared(t *testing.T) {
	geo := &stubGeocoder{}
	_, err := Locate(context.Background(), firstSample(t), units.None, geo)
	assert.ErrorIs(t, err, dataset.ErrNoData)
	assert.False(t, geo.invoked)
}

func TestGroundPoint(t *testing.T) {
	v := firstSample(t)

	si, ok := GroundPoint(v, units.SI)
	require.True(t, ok)
	assert.InDelta(t, 400, si.AltKm, 50)
	assert.Greater(t, si.LatDeg, 40.0)
	assert.Less(t, si.LatDeg, 50.0)

	// the same position in miles lands on the same point
	p := v.Position
	v.Position = oem.Vector3{X: p.X * units.KmToMi, Y: p.Y * units.KmToMi, Z: p.Z * units.KmToMi}
	us, ok := GroundPoint(v, units.USCS)
	require.True(t, ok)
	assert.InDelta(t, si.LatDeg, us.LatDeg, 1e-9)
	assert.InDelta(t, si.LonDeg, us.LonDeg, 1e-9)
	assert.InDelta(t, si.AltKm, us.AltKm, 1e-6)
}

func TestGroundPointRejects(t *testing.T) {
	_, ok := GroundPoint(firstSample(t), units.None)
	assert.False(t, ok)

	bad := oem.StateVector{Epoch: "garbage", Position: oem.Vector3{X: 6800}}
	_, ok = GroundPoint(bad, units.SI)
	assert.False(t, ok)

	low := oem.StateVector{Time: time.Date(2023, 2, 15, 12, 0, 0, 0, time.UTC), Position: oem.Vector3{X: 10}}
	_, ok = GroundPoint(low, units.SI)
	assert.False(t, ok)
}
