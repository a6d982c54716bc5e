package rules

import (
	"github.com/okieraised/ahu-fdd/internal/fdd/columns"
	"github.com/okieraised/ahu-fdd/internal/fdd/frame"
)

// FC1 flags a duct static pressure below setpoint while the supply fan is
// at or near full speed.
type FC1 struct {
	base
	ductStaticErr float64
	vfdMax        Fraction
	vfdErr        Fraction
}

func NewFC1(t Thresholds) (*FC1, error) {
	b, err := newBase(t, "fc1", "fc1_flag")
	if err != nil {
		return nil, err
	}
	r := &FC1{base: b, vfdMax: t.Fraction(KeyVFDSpeedMax), vfdErr: t.Fraction(KeyVFDSpeedErr)}
	if r.ductStaticErr, err = t.Margin(KeyDuctStaticErr); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FC1) RequiredRoles() []string {
	return []string{columns.DuctStatic, columns.DuctStaticSetpoint, columns.SupplyVFDSpeed}
}

func (r *FC1) Describe() Description {
	return Description{
		ID:          r.id,
		Name:        "Low duct static at full fan speed",
		Equation:    "DSP < DPSP - eDSP and VFDSPD >= VFDSPD_max - eVFDSPD",
		Description: "Duct static pressure is too low with the supply fan at full speed.",
		Roles:       r.RequiredRoles(),
	}
}

func (r *FC1) Apply(view frame.View) (*FlagSeries, error) {
	in, err := load(view, r.RequiredRoles())
	if err != nil {
		return nil, err
	}
	vfdMax, err := r.vfdMax.Value()
	if err != nil {
		return nil, err
	}
	vfdErr, err := r.vfdErr.Value()
	if err != nil {
		return nil, err
	}

	dsp, sp, vfd := in[columns.DuctStatic], in[columns.DuctStaticSetpoint], in[columns.SupplyVFDSpeed]
	n := view.Len()
	staticLow := func(i int) bool { return dsp[i] < sp[i]-r.ductStaticErr }
	fanMax := func(i int) bool { return vfd[i] >= vfdMax-vfdErr }

	combined := evaluate(n, [][]float64{dsp, sp, vfd}, func(i int) bool {
		return staticLow(i) && fanMax(i)
	})
	return r.flag(view, combined, map[string][]float64{
		"static_check": check(n, staticLow),
		"fan_check":    check(n, fanMax),
	}), nil
}
