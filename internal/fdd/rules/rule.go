// Package rules holds the ASHRAE G36 air handler fault conditions. Every rule
// is a pure function of a frame view: it reads the roles it declares, checks
// them and returns a flag aligned to the frame index.
package rules

import (
	"math"
	"time"

	"github.com/okieraised/ahu-fdd/internal/cerrors"
	"github.com/okieraised/ahu-fdd/internal/fdd/columns"
	"github.com/okieraised/ahu-fdd/internal/fdd/frame"
	"github.com/okieraised/ahu-fdd/internal/fdd/validate"
)

type FaultRule interface {
	ID() string
	RequiredRoles() []string
	Apply(view frame.View) (*FlagSeries, error)
}

// Describer is implemented by rules that publish a catalogue entry.
type Describer interface {
	Describe() Description
}

type Description struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Equation    string   `json:"equation"`
	Description string   `json:"description"`
	Roles       []string `json:"roles"`
}

// FlagSeries holds 1 (fault), 0 (no fault) or NaN (undetermined) per row.
// Diagnostics carries the intermediate checks a rule computed, keyed by name.
type FlagSeries struct {
	RuleID      string               `json:"rule_id"`
	Name        string               `json:"name"`
	Index       []time.Time          `json:"index"`
	Values      []float64            `json:"values"`
	Diagnostics map[string][]float64 `json:"diagnostics,omitempty"`
}

// Flagged counts rows equal to 1.
func (f *FlagSeries) Flagged() int {
	n := 0
	for _, v := range f.Values {
		if v == 1 {
			n++
		}
	}
	return n
}

// Undetermined counts NaN rows.
func (f *FlagSeries) Undetermined() int {
	n := 0
	for _, v := range f.Values {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Series converts the flag into a frame column.
func (f *FlagSeries) Series() frame.Series {
	return frame.Series{Name: f.Name, Values: f.Values}
}

// signals is the validated input of one Apply call.
type signals map[string][]float64

// load fetches and validates roles. Fraction roles get the 0.0 to 1.0 check,
// every other role only the numeric check.
func load(view frame.View, roles []string) (signals, error) {
	if missing := view.Missing(roles...); len(missing) > 0 {
		return nil, cerrors.UnresolvedRole(missing...)
	}
	out := make(signals, len(roles))
	for _, role := range roles {
		s, _ := view.Role(role)
		verify := validate.Numeric
		if columns.IsUnit(role) {
			verify = validate.Fraction
		}
		if err := verify(s, role); err != nil {
			return nil, err
		}
		out[role] = s.Values
	}
	return out, nil
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func anyNaN(i int, cols [][]float64) bool {
	for _, c := range cols {
		if math.IsNaN(c[i]) {
			return true
		}
	}
	return false
}

// evaluate runs cond on every row. Rows where any of cols is NaN yield NaN.
func evaluate(n int, cols [][]float64, cond func(i int) bool) []float64 {
	out := make([]float64, n)
	for i := range out {
		if anyNaN(i, cols) {
			out[i] = math.NaN()
			continue
		}
		out[i] = b2f(cond(i))
	}
	return out
}

// check is evaluate without NaN propagation, for diagnostics.
func check(n int, cond func(i int) bool) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = b2f(cond(i))
	}
	return out
}

// consecutive flags row i only when the window rows ending at i are all 1.
// NaN anywhere in the window yields NaN. The first window-1 rows are 0.
func consecutive(combined []float64, window int) []float64 {
	if window <= 1 {
		return combined
	}
	out := make([]float64, len(combined))
	run := 0
	lastNaN := -1
	for i, v := range combined {
		switch {
		case math.IsNaN(v):
			run = 0
			lastNaN = i
		case v == 1:
			run++
		default:
			run = 0
		}
		switch {
		case i < window-1:
			out[i] = 0
		case lastNaN > i-window:
			out[i] = math.NaN()
		default:
			out[i] = b2f(run >= window)
		}
	}
	return out
}

// base carries the options every rule shares.
type base struct {
	id     string
	name   string
	window int
}

func (b base) ID() string { return b.id }

func (b base) flag(view frame.View, combined []float64, diag map[string][]float64) *FlagSeries {
	if diag != nil {
		diag["combined_check"] = combined
	}
	return &FlagSeries{
		RuleID:      b.id,
		Name:        b.name,
		Index:       view.Index(),
		Values:      consecutive(combined, b.window),
		Diagnostics: diag,
	}
}
