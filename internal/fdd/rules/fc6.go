package rules

import (
	"math"

	"github.com/okieraised/ahu-fdd/internal/fdd/columns"
	"github.com/okieraised/ahu-fdd/internal/fdd/frame"
)

// PercentOA estimates the outdoor air fraction from the mixing temperatures.
// Negative estimates are clamped to 0. Equal outdoor and return temperatures
// leave the fraction undefined and yield NaN.
func PercentOA(mat, rat, oat float64) float64 {
	d := oat - rat
	if d == 0 {
		return math.NaN()
	}
	return math.Max((mat-rat)/d, 0)
}

// FC6 flags an outdoor air fraction that departs from the design minimum
// while the damper sits at its minimum position.
type FC6 struct {
	base
	airflowErr     float64
	oatRatDeltaMin float64
	minOACFM       float64
	minOA          Fraction
}

func NewFC6(t Thresholds) (*FC6, error) {
	b, err := newBase(t, "fc6", "fc6_flag")
	if err != nil {
		return nil, err
	}
	r := &FC6{base: b, minOA: t.Fraction(KeyMinOADamper)}
	err = t.margins([]string{KeyAirflowErr, KeyOATRATDeltaMin, KeyMinOACFMDesign}, &r.airflowErr, &r.oatRatDeltaMin, &r.minOACFM)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FC6) RequiredRoles() []string {
	return []string{
		columns.SupplyAirVolume, columns.MAT, columns.OAT, columns.RAT,
		columns.SupplyVFDSpeed, columns.EconomizerSignal, columns.HeatingSignal, columns.CoolingSignal,
	}
}

func (r *FC6) Describe() Description {
	return Description{
		ID:          r.id,
		Name:        "Outdoor air fraction off design minimum",
		Equation:    "|RAT - OAT| >= dT_min and |%OA_calc - %OA_min| > eF",
		Description: "The outdoor air fraction derived from mixing temperatures differs from the design minimum airflow fraction.",
		Roles:       r.RequiredRoles(),
	}
}

func (r *FC6) Apply(view frame.View) (*FlagSeries, error) {
	in, err := load(view, r.RequiredRoles())
	if err != nil {
		return nil, err
	}
	minOA, err := r.minOA.Value()
	if err != nil {
		return nil, err
	}

	vol, mat, oat, rat := in[columns.SupplyAirVolume], in[columns.MAT], in[columns.OAT], in[columns.RAT]
	vfd, econ := in[columns.SupplyVFDSpeed], in[columns.EconomizerSignal]
	heat, cool := in[columns.HeatingSignal], in[columns.CoolingSignal]
	n := view.Len()

	pctCalc := make([]float64, n)
	pctMin := make([]float64, n)
	for i := range pctCalc {
		pctCalc[i] = PercentOA(mat[i], rat[i], oat[i])
		pctMin[i] = math.NaN()
		if vol[i] > 0 {
			pctMin[i] = r.minOACFM / vol[i]
		}
	}

	deltaOK := func(i int) bool { return math.Abs(rat[i]-oat[i]) >= r.oatRatDeltaMin }
	airflowOff := func(i int) bool { return math.Abs(pctCalc[i]-pctMin[i]) > r.airflowErr }
	gate := func(i int) bool {
		return fanRunning(vfd[i]) && atMinOA(econ[i], minOA) && (heatingActive(heat[i]) || coolingActive(cool[i]))
	}

	cols := [][]float64{vol, mat, oat, rat, vfd, econ, heat, cool}
	combined := make([]float64, n)
	for i := range combined {
		switch {
		case anyNaN(i, cols):
			combined[i] = math.NaN()
		case !gate(i) || !deltaOK(i):
			combined[i] = 0
		case math.IsNaN(pctMin[i]) || math.IsNaN(pctCalc[i]):
			combined[i] = math.NaN()
		default:
			combined[i] = b2f(airflowOff(i))
		}
	}
	return r.flag(view, combined, map[string][]float64{
		"percent_oa_calc": pctCalc,
		"percent_oa_min":  pctMin,
		"delta_check":     check(n, deltaOK),
		"mode_check":      check(n, gate),
	}), nil
}
