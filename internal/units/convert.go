package units

import (
	"fmt"
	"strings"

	"github.com/star/isstracker/internal/oem"
)

// Field names one numeric component of a state vector.
type Field int

const (
	X Field = iota
	Y
	Z
	XDot
	YDot
	ZDot
)

var fieldNames = [...]string{"X", "Y", "Z", "X_Dot", "Y_Dot", "Z_Dot"}

// MotionFields are all six position and velocity components.
var MotionFields = fieldNames[:]

func (f Field) String() string {
	if f < X || f > ZDot {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldNames[f]
}

// ParseField maps a feed column name to a Field.
func ParseField(name string) (Field, error) {
	for i, n := range fieldNames {
		if strings.EqualFold(n, name) {
			return Field(i), nil
		}
	}
	return 0, &ConversionError{Record: -1, Field: name, Reason: "unknown field"}
}

// ref returns a pointer to the component f of v.
func (f Field) ref(v *oem.StateVector) *float64 {
	switch f {
	case X:
		return &v.Position.X
	case Y:
		return &v.Position.Y
	case Z:
		return &v.Position.Z
	case XDot:
		return &v.Velocity.X
	case YDot:
		return &v.Velocity.Y
	case ZDot:
		return &v.Velocity.Z
	}
	return nil
}

// ConversionError reports a field that could not be converted. Record is the
// index of the offending record, or -1 when raised while building a Spec.
type ConversionError struct {
	Record int
	Field  string
	Reason string
}

func (e *ConversionError) Error() string {
	if e.Record < 0 {
		return fmt.Sprintf("conversion error: field %q: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("conversion error: record %d, field %q: %s", e.Record, e.Field, e.Reason)
}

// Conversion applies Factor to every field named in Fields.
type Conversion struct {
	Factor float64
	Fields []string
}

type step struct {
	factor float64
	fields []Field
}

// Spec is a validated set of conversions.
type Spec struct {
	steps []step
}

// NewSpec validates every field name and factor up front.
func NewSpec(conversions ...Conversion) (Spec, error) {
	var spec Spec
	for _, c := range conversions {
		if !finite(c.Factor) {
			return Spec{}, &ConversionError{Record: -1, Field: strings.Join(c.Fields, ","), Reason: fmt.Sprintf("non-numeric factor %v", c.Factor)}
		}
		s := step{factor: c.Factor}
		for _, name := range c.Fields {
			f, err := ParseField(name)
			if err != nil {
				return Spec{}, err
			}
			s.fields = append(s.fields, f)
		}
		spec.steps = append(spec.steps, s)
	}
	return spec, nil
}

// Apply multiplies every field named in spec by its factor, for every record,
// in place, and returns records. Calling it twice multiplies twice.
//
// A non-finite stored value or result aborts with a *ConversionError; records
// before the offending one have already been rewritten, so callers that need
// all-or-nothing must apply to a copy.
func Apply(records []oem.StateVector, spec Spec) ([]oem.StateVector, error) {
	for i := range records {
		rec := &records[i]
		for _, s := range spec.steps {
			for _, f := range s.fields {
				p := f.ref(rec)
				if p == nil {
					return records, &ConversionError{Record: i, Field: f.String(), Reason: "unknown field"}
				}
				if !finite(*p) {
					return records, &ConversionError{Record: i, Field: f.String(), Reason: fmt.Sprintf("non-numeric value %v", *p)}
				}
				*p *= s.factor
			}
		}
	}
	return records, nil
}
