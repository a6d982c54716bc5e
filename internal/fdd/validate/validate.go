// Package validate checks that input signals carry the data a fault rule
// assumes before the rule looks at them.
package validate

import (
	"math"

	"github.com/okieraised/ahu-fdd/internal/cerrors"
	"github.com/okieraised/ahu-fdd/internal/fdd/frame"
	"github.com/spf13/cast"
)

// Numeric fails with NotNumeric when any cell of s could not be read as a
// float at ingestion.
func Numeric(s frame.Series, role string) error {
	if s.Invalid > 0 {
		return cerrors.NotNumeric(role)
	}
	return nil
}

// Fraction is Numeric plus a check that no value exceeds 1.0. NaN cells are
// missing data, not range violations.
func Fraction(s frame.Series, role string) error {
	if err := Numeric(s, role); err != nil {
		return err
	}
	for _, v := range s.Values {
		if v > 1.0 {
			return cerrors.OutOfUnitRange(role)
		}
	}
	return nil
}

// Scalar coerces a configured parameter and applies the Fraction checks to
// it.
func Scalar(v any, name string) (float64, error) {
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) {
		return 0, cerrors.NotNumeric(name).WithCause(err)
	}
	if f > 1.0 {
		return 0, cerrors.OutOfUnitRange(name)
	}
	return f, nil
}

// Normalize rescales a 0 to 100 percent signal into a fraction. Series that
// already fit in 0.0 to 1.0 are returned unchanged. It is offered to callers
// whose data arrives in percent; rules never call it.
func Normalize(s frame.Series) frame.Series {
	if m := s.Max(); math.IsNaN(m) || m <= 1.0 {
		return s
	}
	out := frame.Series{Name: s.Name, Invalid: s.Invalid, Values: make([]float64, len(s.Values))}
	for i, v := range s.Values {
		out.Values[i] = v / 100.0
	}
	return out
}
