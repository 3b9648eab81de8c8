package oem

import (
	"fmt"
	"strings"
	"time"
)

// Vector3 is a Cartesian triple in the feed's frame (EME2000).
type Vector3 struct {
	X, Y, Z float64
}

// StateVector is one sample of the spacecraft's motion at an instant.
// Position is in km or mi and velocity in km/s or mi/s, depending on the
// unit system of the dataset that holds it.
type StateVector struct {
	Epoch    string
	Time     time.Time
	Position Vector3
	Velocity Vector3
}

// Instant returns the decoded epoch, decoding Epoch when Time was never set.
func (v StateVector) Instant() (time.Time, error) {
	if !v.Time.IsZero() {
		return v.Time, nil
	}
	return ParseEpoch(v.Epoch)
}

// Feed is a fully parsed OEM message.
type Feed struct {
	Header   map[string]string
	Metadata map[string]string
	Comments []string
	Vectors  []StateVector
}

var epochLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-002T15:04:05", // CCSDS day-of-year form
}

// ParseEpoch converts an OEM epoch such as "2023-02-15T12:00:00.000" or
// "2024-074T12:00:00.000Z" to a UTC instant. The fractional/zone suffix is
// dropped, so only whole seconds are kept.
func ParseEpoch(s string) (time.Time, error) {
	raw := strings.TrimSpace(s)
	trimmed := strings.TrimSuffix(raw, "Z")
	if i := strings.LastIndexByte(trimmed, '.'); i > strings.IndexByte(trimmed, 'T') {
		trimmed = trimmed[:i]
	}
	if len(trimmed) < len("2006-002T15:04:05") {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", raw)
	}

	for _, layout := range epochLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid epoch %q", raw)
}
