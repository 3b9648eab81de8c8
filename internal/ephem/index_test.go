package ephem

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/isstracker/internal/oem"
)

var base = time.Date(2023, 2, 15, 12, 0, 0, 0, time.UTC)

const step = 240 * time.Second

func makeRecords(n int) []oem.StateVector {
	records := make([]oem.StateVector, n)
	for i := range records {
		t := base.Add(time.Duration(i) * step)
		records[i] = oem.StateVector{
			Epoch:    t.Format("2006-01-02T15:04:05") + ".000",
			Time:     t,
			Position: oem.Vector3{X: float64(i)},
		}
	}
	return records
}

func TestNearestExactHits(t *testing.T) {
	for _, n := range []int{1, 2, 3, 10, 101} {
		records := makeRecords(n)
		for i := range records {
			m, ok := Nearest(records, records[i].Time)
			require.True(t, ok)
			assert.Equal(t, i, m.Index, "n=%d", n)
			assert.Equal(t, 0.0, m.Gap)
		}
	}
}

func TestNearestBetweenRecords(t *testing.T) {
	records := makeRecords(10)

	tests := []struct {
		name      string
		target    time.Time
		wantIndex int
		wantGap   float64
	}{
		{"just after 3", base.Add(3*step + 10*time.Second), 3, -10},
		{"just before 4", base.Add(4*step - 10*time.Second), 4, 10},
		{"just after 0", base.Add(30 * time.Second), 0, -30},
		{"just before 9", base.Add(9*step - time.Second), 9, 1},
		{"before first", base.Add(-time.Hour), 0, 3600},
		{"after last", base.Add(9*step + time.Hour), 9, -3600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := Nearest(records, tt.target)
			require.True(t, ok)
			assert.Equal(t, tt.wantIndex, m.Index)
			assert.InDelta(t, tt.wantGap, m.Gap, 1e-9)
		})
	}
}

func TestNearestAlwaysClosest(t *testing.T) {
	records := makeRecords(37)
	for s := -300; s < 37*240+300; s += 7 {
		target := base.Add(time.Duration(s) * time.Second)
		m, ok := Nearest(records, target)
		require.True(t, ok)

		best := math.Inf(1)
		for _, r := range records {
			best = math.Min(best, math.Abs(r.Time.Sub(target).Seconds()))
		}
		assert.Equal(t, best, math.Abs(m.Gap), "target offset %ds", s)
	}
}

func TestNearestEmpty(t *testing.T) {
	m, ok := Nearest(nil, base)
	assert.False(t, ok)
	assert.Equal(t, Match{}, m)

	ix := New(nil, nil)
	_, ok = ix.NearestNow()
	assert.False(t, ok)
	_, ok = ix.Exact("2023-02-15T12:00:00.000")
	assert.False(t, ok)
}

func TestNearestDecodesEpochStrings(t *testing.T) {
	records := makeRecords(5)
	for i := range records {
		records[i].Time = time.Time{}
	}
	m, ok := Nearest(records, base.Add(2*step))
	require.True(t, ok)
	assert.Equal(t, 2, m.Index)
}

func TestNearestNowIsStable(t *testing.T) {
	records := makeRecords(10)
	now := base.Add(5*step + 17*time.Second)
	ix := New(records, func() time.Time {
		now = now.Add(300 * time.Millisecond)
		return now
	})

	m1, _ := ix.NearestNow()
	m2, _ := ix.NearestNow()
	m3, _ := ix.NearestNow()

	assert.Less(t, math.Abs(m1.Gap-m3.Gap), 1.0)
	assert.Less(t, math.Abs(m2.Gap-m3.Gap), 1.0)
	assert.Less(t, math.Abs(m1.Gap-m2.Gap), 1.0)
	assert.Equal(t, m1.Index, m3.Index)
}

func TestNearestNowWallClock(t *testing.T) {
	ix := New(makeRecords(10), nil)
	m1, ok := ix.NearestNow()
	require.True(t, ok)
	m2, _ := ix.NearestNow()
	assert.Less(t, math.Abs(m1.Gap-m2.Gap), 1.0)
	assert.Equal(t, 9, m1.Index, "records are in the past, so the last one is nearest")
	assert.Negative(t, m1.Gap)
}

func TestExact(t *testing.T) {
	ix := New(makeRecords(10), nil)

	v, ok := ix.Exact("2023-02-15T12:08:00.000")
	require.True(t, ok)
	assert.Equal(t, 2.0, v.Position.X)

	_, ok = ix.Exact("2023-02-15T12:09:00.000")
	assert.False(t, ok, "between samples is a miss")

	_, ok = ix.Exact("2031-01-01T00:00:00.000")
	assert.False(t, ok)

	_, ok = ix.Exact("garbage")
	assert.False(t, ok)
}

func TestIndexLen(t *testing.T) {
	assert.Equal(t, 4, New(makeRecords(4), nil).Len())
}
