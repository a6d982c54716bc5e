package rules

import (
	"math"

	"github.com/okieraised/ahu-fdd/internal/fdd/columns"
	"github.com/okieraised/ahu-fdd/internal/fdd/frame"
)

// mixing holds the margins shared by the mixed air bound checks.
type mixing struct {
	base
	mixErr, returnErr, outdoorErr float64
}

func newMixing(t Thresholds, id string) (mixing, error) {
	b, err := newBase(t, id, id+"_flag")
	if err != nil {
		return mixing{}, err
	}
	m := mixing{base: b}
	err = t.margins([]string{KeyMixErr, KeyReturnErr, KeyOutdoorErr}, &m.mixErr, &m.returnErr, &m.outdoorErr)
	return m, err
}

func (m mixing) RequiredRoles() []string {
	return []string{columns.MAT, columns.RAT, columns.OAT, columns.SupplyVFDSpeed}
}

func (m mixing) apply(view frame.View, cond func(mat, rat, oat float64) bool) (*FlagSeries, error) {
	in, err := load(view, m.RequiredRoles())
	if err != nil {
		return nil, err
	}
	mat, rat, oat, vfd := in[columns.MAT], in[columns.RAT], in[columns.OAT], in[columns.SupplyVFDSpeed]
	n := view.Len()
	bound := func(i int) bool { return cond(mat[i], rat[i], oat[i]) }
	combined := evaluate(n, [][]float64{mat, rat, oat, vfd}, func(i int) bool {
		return fanRunning(vfd[i]) && bound(i)
	})
	return m.flag(view, combined, map[string][]float64{
		"temperature_check": check(n, bound),
		"fan_check":         check(n, func(i int) bool { return fanRunning(vfd[i]) }),
	}), nil
}

// FC2 flags a mixed air temperature below both the return and outdoor air
// temperatures.
type FC2 struct{ mixing }

func NewFC2(t Thresholds) (*FC2, error) {
	m, err := newMixing(t, "fc2")
	if err != nil {
		return nil, err
	}
	return &FC2{m}, nil
}

func (r *FC2) Describe() Description {
	return Description{
		ID:          r.id,
		Name:        "Mixed air too low",
		Equation:    "MAT + eMAT < min(RAT - eRAT, OAT - eOAT)",
		Description: "Mixed air temperature is colder than both return and outdoor air.",
		Roles:       r.RequiredRoles(),
	}
}

func (r *FC2) Apply(view frame.View) (*FlagSeries, error) {
	return r.apply(view, func(mat, rat, oat float64) bool {
		return mat+r.mixErr < math.Min(rat-r.returnErr, oat-r.outdoorErr)
	})
}

// FC3 flags a mixed air temperature above both the return and outdoor air
// temperatures.
type FC3 struct{ mixing }

func NewFC3(t Thresholds) (*FC3, error) {
	m, err := newMixing(t, "fc3")
	if err != nil {
		return nil, err
	}
	return &FC3{m}, nil
}

func (r *FC3) Describe() Description {
	return Description{
		ID:          r.id,
		Name:        "Mixed air too high",
		Equation:    "MAT - eMAT > max(RAT + eRAT, OAT + eOAT)",
		Description: "Mixed air temperature is warmer than both return and outdoor air.",
		Roles:       r.RequiredRoles(),
	}
}

func (r *FC3) Apply(view frame.View) (*FlagSeries, error) {
	return r.apply(view, func(mat, rat, oat float64) bool {
		return mat-r.mixErr > math.Max(rat+r.returnErr, oat+r.outdoorErr)
	})
}
