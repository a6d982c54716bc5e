package rules

import (
	"math"

	"github.com/okieraised/ahu-fdd/internal/fdd/columns"
	"github.com/okieraised/ahu-fdd/internal/fdd/frame"
)

// Effectiveness is the sensible effectiveness of an energy recovery wheel:
// the share of the outdoor to exhaust temperature difference recovered into
// the outdoor air stream. It is NaN when both entering temperatures match.
func Effectiveness(oatEnter, oatLeave, eatEnter float64) float64 {
	d := eatEnter - oatEnter
	if d == 0 {
		return math.NaN()
	}
	return (oatLeave - oatEnter) / d
}

// FC16 flags an energy recovery ventilator whose effectiveness falls outside
// the expected band for the season.
type FC16 struct {
	base
	deltaMin               float64
	oatLow, oatHigh        float64
	minHeating, maxHeating Fraction
	minCooling, maxCooling Fraction
}

func NewFC16(t Thresholds) (*FC16, error) {
	b, err := newBase(t, "fc16", "fc16_flag")
	if err != nil {
		return nil, err
	}
	r := &FC16{
		base:       b,
		minHeating: t.Fraction(KeyERVEffMinHeating),
		maxHeating: t.Fraction(KeyERVEffMaxHeating),
		minCooling: t.Fraction(KeyERVEffMinCooling),
		maxCooling: t.Fraction(KeyERVEffMaxCooling),
	}
	if r.deltaMin, err = t.Margin(KeyOATRATDeltaMin); err != nil {
		return nil, err
	}
	if r.oatLow, err = t.Float(KeyOATLowThreshold); err != nil {
		return nil, err
	}
	if r.oatHigh, err = t.Float(KeyOATHighThreshold); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FC16) RequiredRoles() []string {
	return []string{columns.ERVOATEnter, columns.ERVOATLeave, columns.ERVEATEnter, columns.SupplyVFDSpeed}
}

func (r *FC16) Describe() Description {
	return Description{
		ID:          r.id,
		Name:        "Energy recovery effectiveness out of range",
		Equation:    "eff = (ERV_OAT_LEAVE - ERV_OAT_ENTER) / (ERV_EAT_ENTER - ERV_OAT_ENTER) outside [eff_min, eff_max]",
		Description: "The heat wheel recovers too little or implausibly much energy for the outdoor conditions.",
		Roles:       r.RequiredRoles(),
	}
}

func (r *FC16) Apply(view frame.View) (*FlagSeries, error) {
	in, err := load(view, r.RequiredRoles())
	if err != nil {
		return nil, err
	}
	var bounds [4]float64
	for i, f := range []Fraction{r.minHeating, r.maxHeating, r.minCooling, r.maxCooling} {
		if bounds[i], err = f.Value(); err != nil {
			return nil, err
		}
	}
	minH, maxH, minC, maxC := bounds[0], bounds[1], bounds[2], bounds[3]

	oatIn, oatOut, eat := in[columns.ERVOATEnter], in[columns.ERVOATLeave], in[columns.ERVEATEnter]
	vfd := in[columns.SupplyVFDSpeed]
	n := view.Len()

	eff := make([]float64, n)
	for i := range eff {
		eff[i] = Effectiveness(oatIn[i], oatOut[i], eat[i])
	}
	heating := func(i int) bool { return oatIn[i] < r.oatLow }
	cooling := func(i int) bool { return oatIn[i] > r.oatHigh }
	deltaOK := func(i int) bool { return math.Abs(oatIn[i]-eat[i]) >= r.deltaMin }
	outOfBand := func(i int) bool {
		switch {
		case heating(i):
			return eff[i] < minH || eff[i] > maxH
		case cooling(i):
			return eff[i] < minC || eff[i] > maxC
		default:
			return false
		}
	}

	combined := evaluate(n, [][]float64{oatIn, oatOut, eat, vfd}, func(i int) bool {
		return fanRunning(vfd[i]) && deltaOK(i) && outOfBand(i)
	})
	return r.flag(view, combined, map[string][]float64{
		"effectiveness": eff,
		"heating_mode":  check(n, heating),
		"cooling_mode":  check(n, cooling),
		"delta_check":   check(n, deltaOK),
	}), nil
}
