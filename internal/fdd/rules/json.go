package rules

import (
	"encoding/json"
	"math"
	"time"
)

// nullable encodes NaN as null; encoding/json rejects NaN.
type nullable []float64

func (n nullable) MarshalJSON() ([]byte, error) {
	out := make([]*float64, len(n))
	for i := range n {
		if !math.IsNaN(n[i]) && !math.IsInf(n[i], 0) {
			out[i] = &n[i]
		}
	}
	return json.Marshal(out)
}

func (f FlagSeries) MarshalJSON() ([]byte, error) {
	var diag map[string]nullable
	if len(f.Diagnostics) > 0 {
		diag = make(map[string]nullable, len(f.Diagnostics))
		for k, v := range f.Diagnostics {
			diag[k] = v
		}
	}
	return json.Marshal(struct {
		RuleID      string              `json:"rule_id"`
		Name        string              `json:"name"`
		Index       []time.Time         `json:"index"`
		Values      nullable            `json:"values"`
		Diagnostics map[string]nullable `json:"diagnostics,omitempty"`
	}{f.RuleID, f.Name, f.Index, f.Values, diag})
}
