package rules

import (
	"github.com/okieraised/ahu-fdd/internal/fdd/columns"
	"github.com/okieraised/ahu-fdd/internal/fdd/frame"
)

// FC5 flags a supply air temperature that fails to rise above mixed air
// while the heating valve is open.
type FC5 struct {
	base
	mixErr, supplyErr, deltaTFan float64
}

func NewFC5(t Thresholds) (*FC5, error) {
	b, err := newBase(t, "fc5", "fc5_flag")
	if err != nil {
		return nil, err
	}
	r := &FC5{base: b}
	if err = t.margins([]string{KeyMixErr, KeySupplyErr, KeyDeltaTSupplyFan}, &r.mixErr, &r.supplyErr, &r.deltaTFan); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FC5) RequiredRoles() []string {
	return []string{columns.MAT, columns.SAT, columns.HeatingSignal, columns.SupplyVFDSpeed}
}

func (r *FC5) Describe() Description {
	return Description{
		ID:          r.id,
		Name:        "Supply air too low in heating",
		Equation:    "SAT + eSAT <= MAT - eMAT + delta_t_supply_fan",
		Description: "Supply air temperature does not rise across the heating coil while heating is commanded.",
		Roles:       r.RequiredRoles(),
	}
}

func (r *FC5) Apply(view frame.View) (*FlagSeries, error) {
	in, err := load(view, r.RequiredRoles())
	if err != nil {
		return nil, err
	}
	mat, sat := in[columns.MAT], in[columns.SAT]
	heat, vfd := in[columns.HeatingSignal], in[columns.SupplyVFDSpeed]
	n := view.Len()

	noRise := func(i int) bool { return sat[i]+r.supplyErr <= mat[i]-r.mixErr+r.deltaTFan }
	heating := func(i int) bool { return heatingActive(heat[i]) && fanRunning(vfd[i]) }
	combined := evaluate(n, [][]float64{mat, sat, heat, vfd}, func(i int) bool {
		return heating(i) && noRise(i)
	})
	return r.flag(view, combined, map[string][]float64{
		"temperature_check": check(n, noRise),
		"mode_check":        check(n, heating),
	}), nil
}

// FC7 flags a supply air temperature below setpoint with the heating valve
// fully open.
type FC7 struct {
	base
	supplyErr float64
}

func NewFC7(t Thresholds) (*FC7, error) {
	b, err := newBase(t, "fc7", "fc7_flag")
	if err != nil {
		return nil, err
	}
	r := &FC7{base: b}
	if r.supplyErr, err = t.Margin(KeySupplyErr); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FC7) RequiredRoles() []string {
	return []string{columns.SAT, columns.SATSetpoint, columns.HeatingSignal, columns.SupplyVFDSpeed}
}

func (r *FC7) Describe() Description {
	return Description{
		ID:          r.id,
		Name:        "Supply air below setpoint at full heating",
		Equation:    "SAT < SATSP - eSAT and HTG >= 0.99",
		Description: "Supply air temperature stays under setpoint with the heating coil valve fully open.",
		Roles:       r.RequiredRoles(),
	}
}

func (r *FC7) Apply(view frame.View) (*FlagSeries, error) {
	in, err := load(view, r.RequiredRoles())
	if err != nil {
		return nil, err
	}
	sat, satsp := in[columns.SAT], in[columns.SATSetpoint]
	heat, vfd := in[columns.HeatingSignal], in[columns.SupplyVFDSpeed]
	n := view.Len()

	belowSP := func(i int) bool { return sat[i] < satsp[i]-r.supplyErr }
	fullHeat := func(i int) bool { return heat[i] >= heatingFull && fanRunning(vfd[i]) }
	combined := evaluate(n, [][]float64{sat, satsp, heat, vfd}, func(i int) bool {
		return belowSP(i) && fullHeat(i)
	})
	return r.flag(view, combined, map[string][]float64{
		"temperature_check": check(n, belowSP),
		"heating_check":     check(n, fullHeat),
	}), nil
}
