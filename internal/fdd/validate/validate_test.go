package validate

import (
	"math"
	"testing"

	"github.com/okieraised/ahu-fdd/internal/cerrors"
	"github.com/okieraised/ahu-fdd/internal/fdd/frame"
	"github.com/stretchr/testify/assert"
)

func TestFraction(t *testing.T) {
	tests := []struct {
		name   string
		series frame.Series
		code   string
	}{
		{name: "ok", series: frame.Series{Name: "econ", Values: []float64{0, 0.5, 1.0}}},
		{name: "nan is missing data", series: frame.Series{Name: "econ", Values: []float64{math.NaN(), 0.2}}},
		{name: "percent", series: frame.Series{Name: "econ", Values: []float64{0, 50, 100}}, code: cerrors.ErrOutOfUnitRange.Code},
		{name: "non numeric cell", series: frame.Series{Name: "econ", Values: []float64{math.NaN()}, Invalid: 1}, code: cerrors.ErrNotNumeric.Code},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Fraction(tt.series, "economizer_sig")
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, cerrors.IsCode(err, tt.code), "got %v", err)
			assert.Contains(t, err.Error(), "economizer_sig")
		})
	}
}

func TestNumeric_AllowsLargeValues(t *testing.T) {
	assert.NoError(t, Numeric(frame.Series{Values: []float64{72.5, 1500}}, "oat"))
}

func TestScalar(t *testing.T) {
	v, err := Scalar("0.2", "AHU_MIN_OA_DPR")
	assert.NoError(t, err)
	assert.InDelta(t, 0.2, v, 1e-12)

	_, err = Scalar(20, "AHU_MIN_OA_DPR")
	assert.True(t, cerrors.Is(err, cerrors.ErrOutOfUnitRange))

	_, err = Scalar("twenty", "AHU_MIN_OA_DPR")
	assert.True(t, cerrors.Is(err, cerrors.ErrNotNumeric))
}

func TestNormalize(t *testing.T) {
	out := Normalize(frame.Series{Name: "vfd", Values: []float64{0, 50, 100, math.NaN()}})
	assert.Equal(t, 0.5, out.Values[1])
	assert.Equal(t, 1.0, out.Values[2])
	assert.True(t, math.IsNaN(out.Values[3]))

	same := frame.Series{Name: "vfd", Values: []float64{0.1, 0.9}}
	assert.Equal(t, same, Normalize(same))
}
