package rules

import (
	"math"

	"github.com/okieraised/ahu-fdd/internal/fdd/columns"
	"github.com/okieraised/ahu-fdd/internal/fdd/frame"
)

// econRule carries the parameters of the economizer mode checks FC8 to FC11.
type econRule struct {
	base
	mixErr, supplyErr, outdoorErr, deltaTFan float64
	minOA                                    Fraction
	roles                                    []string
}

func newEconRule(t Thresholds, id string, roles ...string) (econRule, error) {
	b, err := newBase(t, id, id+"_flag")
	if err != nil {
		return econRule{}, err
	}
	e := econRule{base: b, minOA: t.Fraction(KeyMinOADamper), roles: roles}
	err = t.margins(
		[]string{KeyMixErr, KeySupplyErr, KeyOutdoorErr, KeyDeltaTSupplyFan},
		&e.mixErr, &e.supplyErr, &e.outdoorErr, &e.deltaTFan,
	)
	return e, err
}

func (e econRule) RequiredRoles() []string {
	return append([]string(nil), e.roles...)
}

// apply evaluates cond under gate. a and b name the two temperature roles.
func (e econRule) apply(
	view frame.View,
	a, b string,
	cond func(x, y float64) bool,
	gate func(econ, cool, minOA float64) bool,
) (*FlagSeries, error) {
	in, err := load(view, e.RequiredRoles())
	if err != nil {
		return nil, err
	}
	minOA, err := e.minOA.Value()
	if err != nil {
		return nil, err
	}
	x, y := in[a], in[b]
	econ, cool := in[columns.EconomizerSignal], in[columns.CoolingSignal]
	n := view.Len()

	temp := func(i int) bool { return cond(x[i], y[i]) }
	mode := func(i int) bool { return gate(econ[i], cool[i], minOA) }
	combined := evaluate(n, [][]float64{x, y, econ, cool}, func(i int) bool {
		return mode(i) && temp(i)
	})
	return e.flag(view, combined, map[string][]float64{
		"temperature_check": check(n, temp),
		"mode_check":        check(n, mode),
	}), nil
}

func freeCooling(econ, cool, minOA float64) bool {
	return economizing(econ, minOA) && coolingOff(cool)
}

func economizerPlusMech(econ, cool, _ float64) bool {
	return coolingActive(cool) && economizerFull(econ)
}

// FC8 flags a supply air temperature that drifts from mixed air while the
// unit cools with outdoor air only.
type FC8 struct{ econRule }

func NewFC8(t Thresholds) (*FC8, error) {
	e, err := newEconRule(t, "fc8", columns.MAT, columns.SAT, columns.EconomizerSignal, columns.CoolingSignal)
	if err != nil {
		return nil, err
	}
	return &FC8{e}, nil
}

func (r *FC8) Describe() Description {
	return Description{
		ID:          r.id,
		Name:        "Supply and mixed air mismatch in economizer mode",
		Equation:    "|SAT - delta_t_supply_fan - MAT| > sqrt(eSAT^2 + eMAT^2)",
		Description: "Supply air should track mixed air plus fan heat while economizing without mechanical cooling.",
		Roles:       r.RequiredRoles(),
	}
}

func (r *FC8) Apply(view frame.View) (*FlagSeries, error) {
	limit := math.Hypot(r.supplyErr, r.mixErr)
	return r.apply(view, columns.SAT, columns.MAT, func(sat, mat float64) bool {
		return math.Abs(sat-r.deltaTFan-mat) > limit
	}, freeCooling)
}

// FC9 flags an outdoor air temperature too warm for economizer-only cooling.
type FC9 struct{ econRule }

func NewFC9(t Thresholds) (*FC9, error) {
	e, err := newEconRule(t, "fc9", columns.SATSetpoint, columns.OAT, columns.CoolingSignal, columns.EconomizerSignal)
	if err != nil {
		return nil, err
	}
	return &FC9{e}, nil
}

func (r *FC9) Describe() Description {
	return Description{
		ID:          r.id,
		Name:        "Outdoor air too warm for free cooling",
		Equation:    "OAT - eOAT > SATSP - delta_t_supply_fan + eSAT",
		Description: "Outdoor air is too warm to meet the supply setpoint without mechanical cooling.",
		Roles:       r.RequiredRoles(),
	}
}

func (r *FC9) Apply(view frame.View) (*FlagSeries, error) {
	return r.apply(view, columns.OAT, columns.SATSetpoint, func(oat, satsp float64) bool {
		return oat-r.outdoorErr > satsp-r.deltaTFan+r.supplyErr
	}, freeCooling)
}

// FC10 flags mixed and outdoor air temperatures that disagree with the
// outdoor damper fully open.
type FC10 struct{ econRule }

func NewFC10(t Thresholds) (*FC10, error) {
	e, err := newEconRule(t, "fc10", columns.OAT, columns.MAT, columns.CoolingSignal, columns.EconomizerSignal)
	if err != nil {
		return nil, err
	}
	return &FC10{e}, nil
}

func (r *FC10) Describe() Description {
	return Description{
		ID:          r.id,
		Name:        "Outdoor and mixed air mismatch at full economizer",
		Equation:    "|MAT - OAT| > sqrt(eMAT^2 + eOAT^2)",
		Description: "With the damper fully open and mechanical cooling on, mixed air should equal outdoor air.",
		Roles:       r.RequiredRoles(),
	}
}

func (r *FC10) Apply(view frame.View) (*FlagSeries, error) {
	limit := math.Hypot(r.mixErr, r.outdoorErr)
	return r.apply(view, columns.MAT, columns.OAT, func(mat, oat float64) bool {
		return math.Abs(mat-oat) > limit
	}, economizerPlusMech)
}

// FC11 flags an outdoor air temperature too cold for economizer plus
// mechanical cooling.
type FC11 struct{ econRule }

func NewFC11(t Thresholds) (*FC11, error) {
	e, err := newEconRule(t, "fc11", columns.SATSetpoint, columns.OAT, columns.CoolingSignal, columns.EconomizerSignal)
	if err != nil {
		return nil, err
	}
	return &FC11{e}, nil
}

func (r *FC11) Describe() Description {
	return Description{
		ID:          r.id,
		Name:        "Outdoor air too cold for mechanical cooling",
		Equation:    "OAT + eOAT < SATSP - delta_t_supply_fan - eSAT",
		Description: "Outdoor air is cold enough to cool alone but mechanical cooling runs with the damper fully open.",
		Roles:       r.RequiredRoles(),
	}
}

func (r *FC11) Apply(view frame.View) (*FlagSeries, error) {
	return r.apply(view, columns.OAT, columns.SATSetpoint, func(oat, satsp float64) bool {
		return oat+r.outdoorErr < satsp-r.deltaTFan-r.supplyErr
	}, economizerPlusMech)
}

// FC12 flags a supply air temperature above mixed air while mechanical
// cooling runs.
type FC12 struct{ econRule }

func NewFC12(t Thresholds) (*FC12, error) {
	e, err := newEconRule(t, "fc12", columns.SAT, columns.MAT, columns.CoolingSignal, columns.EconomizerSignal)
	if err != nil {
		return nil, err
	}
	return &FC12{e}, nil
}

func (r *FC12) Describe() Description {
	return Description{
		ID:          r.id,
		Name:        "Supply air too warm in mechanical cooling",
		Equation:    "SAT - eSAT - delta_t_supply_fan >= MAT + eMAT",
		Description: "Supply air is warmer than mixed air while the cooling coil is commanded.",
		Roles:       r.RequiredRoles(),
	}
}

func (r *FC12) Apply(view frame.View) (*FlagSeries, error) {
	return r.apply(view, columns.SAT, columns.MAT, func(sat, mat float64) bool {
		return sat-r.supplyErr-r.deltaTFan >= mat+r.mixErr
	}, mechCooling)
}

// FC13 flags a supply air temperature above setpoint while mechanical
// cooling runs.
type FC13 struct{ econRule }

func NewFC13(t Thresholds) (*FC13, error) {
	e, err := newEconRule(t, "fc13", columns.SAT, columns.SATSetpoint, columns.CoolingSignal, columns.EconomizerSignal)
	if err != nil {
		return nil, err
	}
	return &FC13{e}, nil
}

func (r *FC13) Describe() Description {
	return Description{
		ID:          r.id,
		Name:        "Supply air above setpoint in mechanical cooling",
		Equation:    "SAT > SATSP + eSAT",
		Description: "Supply air stays above setpoint while the cooling coil is commanded.",
		Roles:       r.RequiredRoles(),
	}
}

func (r *FC13) Apply(view frame.View) (*FlagSeries, error) {
	return r.apply(view, columns.SAT, columns.SATSetpoint, func(sat, satsp float64) bool {
		return sat > satsp+r.supplyErr
	}, mechCooling)
}

// mechCooling is cooling with the damper at minimum or fully open.
func mechCooling(econ, cool, minOA float64) bool {
	return coolingActive(cool) && (atMinOA(econ, minOA) || economizerFull(econ))
}
