// Package units converts the motion fields of state vectors between the
// metric (SI) and US customary (USCS) systems.
package units

import (
	"errors"
	"fmt"
	"math"

	"github.com/star/isstracker/internal/oem"
)

// System is the unit system a dataset is expressed in.
type System string

const (
	SI   System = "SI"
	USCS System = "USCS"
	// None marks a cleared dataset; unit-dependent operations must refuse it.
	None System = ""
)

// KmToMi is the number of miles in one kilometre.
const KmToMi = 0.6213711922

// ErrInvalidUnitToken is returned for a unit request that is neither SI nor USCS.
var ErrInvalidUnitToken = errors.New("only 'SI' and 'USCS' units are supported")

// ErrMissingUnitToken is returned when no unit system was requested at all.
var ErrMissingUnitToken = fmt.Errorf("%w: the 'units' query parameter is required", ErrInvalidUnitToken)

// ParseSystem validates a requested unit system token.
func ParseSystem(token string) (System, error) {
	switch System(token) {
	case SI, USCS:
		return System(token), nil
	case None:
		return None, ErrMissingUnitToken
	default:
		return None, fmt.Errorf("%w: got %q", ErrInvalidUnitToken, token)
	}
}

// Valid reports whether s is a concrete unit system.
func (s System) Valid() bool {
	return s == SI || s == USCS
}

// DistanceLabel is the unit of position components and altitude.
func (s System) DistanceLabel() string {
	if s == USCS {
		return "mi"
	}
	return "km"
}

// SpeedLabel is the unit of velocity components and speed.
func (s System) SpeedLabel() string {
	if s == USCS {
		return "mi/s"
	}
	return "km/s"
}

// EarthRadius is the mean Earth radius in the system's distance unit.
func (s System) EarthRadius() float64 {
	if s == USCS {
		return 3958.8
	}
	return 6371
}

// ToKm returns the factor that takes a distance in s to kilometres.
func (s System) ToKm() float64 {
	if s == USCS {
		return 1 / KmToMi
	}
	return 1
}

// factor returns the scalar that takes values in from to values in to.
func factor(from, to System) float64 {
	switch {
	case from == SI && to == USCS:
		return KmToMi
	case from == USCS && to == SI:
		return 1 / KmToMi
	default:
		return 1
	}
}

// Result describes the outcome of a Toggle.
type Result struct {
	From    System
	To      System
	Changed bool
}

// Toggle converts records from one system to the other in place. Asking for
// the active system is a no-op that still succeeds.
func Toggle(records []oem.StateVector, from, to System) (Result, error) {
	if !to.Valid() {
		return Result{From: from, To: to}, fmt.Errorf("%w: got %q", ErrInvalidUnitToken, to)
	}
	if from == to {
		return Result{From: from, To: to}, nil
	}
	if !from.Valid() {
		return Result{From: from, To: to}, fmt.Errorf("%w: dataset has no active unit system", ErrInvalidUnitToken)
	}

	spec, err := NewSpec(Conversion{Factor: factor(from, to), Fields: MotionFields})
	if err != nil {
		return Result{From: from, To: to}, err
	}
	if _, err := Apply(records, spec); err != nil {
		return Result{From: from, To: to}, err
	}
	return Result{From: from, To: to, Changed: true}, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
