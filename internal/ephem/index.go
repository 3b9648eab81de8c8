// Package ephem resolves state vectors by time over an epoch-ordered dataset.
//
// Records must be sorted ascending by epoch; the feed guarantees it and the
// binary search depends on it.
package ephem

import (
	"math"
	"time"

	"github.com/star/isstracker/internal/oem"
)

// Tolerance is how close two instants must be to count as the same epoch.
const Tolerance = time.Millisecond

// Match is the record nearest a target instant.
type Match struct {
	Vector oem.StateVector
	Index  int
	// Gap is record time minus target time in seconds. Negative means the
	// record lies in the past relative to the target.
	Gap float64
}

// Nearest binary-searches records for the epoch closest to target. It reports
// false only when records is empty.
//
// The search narrows on the decoded midpoint until it hits the target within
// Tolerance or the bracket collapses. On collapse the midpoint is compared
// with its immediate neighbours, since the last narrowing step may have
// stepped over the closer one. A midpoint whose epoch cannot be decoded ends
// the search on that midpoint with a NaN gap.
func Nearest(records []oem.StateVector, target time.Time) (Match, bool) {
	if len(records) == 0 {
		return Match{}, false
	}

	low, high := 0, len(records)-1
	for {
		mid := low + (high-low)/2
		epoch, err := records[mid].Instant()
		if err != nil {
			return Match{Vector: records[mid], Index: mid, Gap: math.NaN()}, true
		}
		diff := epoch.Sub(target)
		if abs(diff) <= Tolerance {
			return Match{Vector: records[mid], Index: mid, Gap: diff.Seconds()}, true
		}
		if low >= high {
			return closest(records, mid, diff, target), true
		}

		if diff < 0 {
			low = mid + 1
		} else {
			high = mid - 1
		}
	}
}

func closest(records []oem.StateVector, mid int, diff time.Duration, target time.Time) Match {
	best, bestDiff := mid, diff
	for _, i := range [2]int{mid - 1, mid + 1} {
		if i < 0 || i >= len(records) {
			continue
		}
		epoch, err := records[i].Instant()
		if err != nil {
			continue
		}
		if d := epoch.Sub(target); abs(d) < abs(bestDiff) {
			best, bestDiff = i, d
		}
	}
	return Match{Vector: records[best], Index: best, Gap: bestDiff.Seconds()}
}

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// Clock returns the current instant.
type Clock func() time.Time

// Index answers time-based lookups over one immutable record slice.
type Index struct {
	records []oem.StateVector
	now     Clock
}

// New builds an Index over records. A nil clock means time.Now.
func New(records []oem.StateVector, now Clock) *Index {
	if now == nil {
		now = time.Now
	}
	return &Index{records: records, now: now}
}

// Len returns the number of indexed records.
func (ix *Index) Len() int {
	return len(ix.records)
}

// Nearest returns the record closest to target.
func (ix *Index) Nearest(target time.Time) (Match, bool) {
	return Nearest(ix.records, target)
}

// NearestNow returns the record closest to the current instant.
func (ix *Index) NearestNow() (Match, bool) {
	return Nearest(ix.records, ix.now())
}

// Exact returns the record whose epoch equals the requested one within
// Tolerance. An undecodable epoch or an epoch with no record is a miss.
func (ix *Index) Exact(epoch string) (oem.StateVector, bool) {
	target, err := oem.ParseEpoch(epoch)
	if err != nil {
		return oem.StateVector{}, false
	}
	m, ok := ix.Nearest(target)
	if !ok {
		return oem.StateVector{}, false
	}
	got, err := m.Vector.Instant()
	if err != nil || abs(got.Sub(target)) > Tolerance {
		return oem.StateVector{}, false
	}
	return m.Vector, true
}
