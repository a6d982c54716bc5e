package rules

import (
	"math"

	"github.com/okieraised/ahu-fdd/internal/fdd/columns"
	"github.com/okieraised/ahu-fdd/internal/fdd/frame"
	"github.com/okieraised/ahu-fdd/internal/fdd/opstate"
)

// FC4 flags control hunting: too many entries into one operating state
// within a clock hour. It is the only rule that looks across rows; the
// hourly verdict is copied to every row of that hour.
type FC4 struct {
	base
	deltaOSMax float64
	minOA      Fraction
}

func NewFC4(t Thresholds) (*FC4, error) {
	b, err := newBase(t, "fc4", "fc4_flag")
	if err != nil {
		return nil, err
	}
	// hunting is judged per hour, never over consecutive rows
	b.window = 1
	r := &FC4{base: b, minOA: t.Fraction(KeyMinOADamper)}
	if r.deltaOSMax, err = t.Margin(KeyDeltaOSMax); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FC4) RequiredRoles() []string {
	return []string{columns.EconomizerSignal, columns.SupplyVFDSpeed, columns.HeatingSignal, columns.CoolingSignal}
}

func (r *FC4) Describe() Description {
	return Description{
		ID:          r.id,
		Name:        "Operating state hunting",
		Equation:    "entries into any operating state per hour > DELTA_OS_MAX",
		Description: "The unit changes between heating, economizer and mechanical cooling modes too often.",
		Roles:       r.RequiredRoles(),
	}
}

func (r *FC4) Apply(view frame.View) (*FlagSeries, error) {
	in, err := load(view, r.RequiredRoles())
	if err != nil {
		return nil, err
	}
	minOA, err := r.minOA.Value()
	if err != nil {
		return nil, err
	}

	econ, vfd := in[columns.EconomizerSignal], in[columns.SupplyVFDSpeed]
	heat, cool := in[columns.HeatingSignal], in[columns.CoolingSignal]
	n := view.Len()
	index := view.Index()

	states := make([]opstate.State, n)
	for i := range states {
		states[i] = opstate.Classify(opstate.Sample{
			Heating:    heat[i],
			Cooling:    cool[i],
			Economizer: econ[i],
			FanSpeed:   vfd[i],
		}, minOA)
	}
	hours, bucket := opstate.CountTransitions(index, states)

	diag := map[string][]float64{"state": make([]float64, n)}
	for _, s := range opstate.States {
		diag[s.String()+"_entries"] = make([]float64, n)
	}
	cols := [][]float64{econ, vfd, heat, cool}
	combined := make([]float64, n)
	for i := range combined {
		h := hours[bucket[i]]
		diag["state"][i] = float64(states[i])
		for _, s := range opstate.States {
			diag[s.String()+"_entries"][i] = float64(h.Counts[s])
		}
		if anyNaN(i, cols) {
			combined[i] = math.NaN()
			continue
		}
		combined[i] = b2f(float64(h.Max()) > r.deltaOSMax)
	}
	return r.flag(view, combined, diag), nil
}
