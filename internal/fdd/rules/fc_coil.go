package rules

import (
	"math"

	"github.com/okieraised/ahu-fdd/internal/fdd/columns"
	"github.com/okieraised/ahu-fdd/internal/fdd/frame"
)

// coilRule compares the air temperature across one coil while that coil
// should be inactive.
type coilRule struct {
	base
	enterErr, leaveErr, deltaTFan float64
	minOA                         Fraction
	enter, leave                  string
	extra                         []string
}

func newCoilRule(t Thresholds, id, enter, leave string, extra ...string) (coilRule, error) {
	b, err := newBase(t, id, id+"_flag")
	if err != nil {
		return coilRule{}, err
	}
	c := coilRule{base: b, minOA: t.Fraction(KeyMinOADamper), enter: enter, leave: leave, extra: extra}
	err = t.margins([]string{KeyCoilEnterErr, KeyCoilLeaveErr, KeyDeltaTSupplyFan}, &c.enterErr, &c.leaveErr, &c.deltaTFan)
	return c, err
}

func (c coilRule) RequiredRoles() []string {
	return append([]string{c.enter, c.leave}, c.extra...)
}

// apply flags rows where drop(enter, leave) reaches the quadrature error plus
// fan heat while gate holds.
func (c coilRule) apply(view frame.View, drop func(enter, leave float64) float64, gate func(in signals, i int, minOA float64) bool) (*FlagSeries, error) {
	in, err := load(view, c.RequiredRoles())
	if err != nil {
		return nil, err
	}
	minOA, err := c.minOA.Value()
	if err != nil {
		return nil, err
	}

	enter, leave := in[c.enter], in[c.leave]
	limit := math.Hypot(c.enterErr, c.leaveErr) + c.deltaTFan
	n := view.Len()

	cols := make([][]float64, 0, len(in))
	for _, role := range c.RequiredRoles() {
		cols = append(cols, in[role])
	}
	temp := func(i int) bool { return drop(enter[i], leave[i]) >= limit }
	mode := func(i int) bool { return gate(in, i, minOA) }
	combined := evaluate(n, cols, func(i int) bool { return mode(i) && temp(i) })
	return c.flag(view, combined, map[string][]float64{
		"temperature_check": check(n, temp),
		"mode_check":        check(n, mode),
	}), nil
}

// FC14 flags a temperature drop across an inactive cooling coil.
type FC14 struct{ coilRule }

func NewFC14(t Thresholds) (*FC14, error) {
	c, err := newCoilRule(t, "fc14", columns.ClgCoilEnterTemp, columns.ClgCoilLeaveTemp,
		columns.EconomizerSignal, columns.CoolingSignal, columns.HeatingSignal, columns.SupplyVFDSpeed)
	if err != nil {
		return nil, err
	}
	return &FC14{c}, nil
}

func (r *FC14) Describe() Description {
	return Description{
		ID:          r.id,
		Name:        "Temperature drop across inactive cooling coil",
		Equation:    "CLG_ENTER - CLG_LEAVE >= sqrt(eENTER^2 + eLEAVE^2) + delta_t_supply_fan",
		Description: "Air cools across the cooling coil while the coil is not commanded, pointing at a leaking valve.",
		Roles:       r.RequiredRoles(),
	}
}

func (r *FC14) Apply(view frame.View) (*FlagSeries, error) {
	return r.apply(view,
		func(enter, leave float64) float64 { return enter - leave },
		func(in signals, i int, minOA float64) bool {
			econ, cool := in[columns.EconomizerSignal][i], in[columns.CoolingSignal][i]
			heat, vfd := in[columns.HeatingSignal][i], in[columns.SupplyVFDSpeed][i]
			return (economizing(econ, minOA) && coolingOff(cool)) ||
				(heatingActive(heat) && fanRunning(vfd))
		})
}

// FC15 flags a temperature rise across an inactive heating coil.
type FC15 struct{ coilRule }

func NewFC15(t Thresholds) (*FC15, error) {
	c, err := newCoilRule(t, "fc15", columns.HtgCoilEnterTemp, columns.HtgCoilLeaveTemp,
		columns.EconomizerSignal, columns.CoolingSignal)
	if err != nil {
		return nil, err
	}
	return &FC15{c}, nil
}

func (r *FC15) Describe() Description {
	return Description{
		ID:          r.id,
		Name:        "Temperature rise across inactive heating coil",
		Equation:    "HTG_LEAVE - HTG_ENTER >= sqrt(eENTER^2 + eLEAVE^2) + delta_t_supply_fan",
		Description: "Air warms across the heating coil while the coil is not commanded, pointing at a leaking valve.",
		Roles:       r.RequiredRoles(),
	}
}

func (r *FC15) Apply(view frame.View) (*FlagSeries, error) {
	return r.apply(view,
		func(enter, leave float64) float64 { return leave - enter },
		func(in signals, i int, minOA float64) bool {
			econ, cool := in[columns.EconomizerSignal][i], in[columns.CoolingSignal][i]
			return (economizing(econ, minOA) && coolingOff(cool)) ||
				mechCooling(econ, cool, minOA)
		})
}
