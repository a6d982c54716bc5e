package runner

import (
	"runtime"
	"time"

	"github.com/okieraised/ahu-fdd/internal/fdd/frame"
	"github.com/okieraised/ahu-fdd/internal/fdd/rules"
	"github.com/okieraised/ahu-fdd/internal/fdd/summary"
)

const (
	DefaultResampleWindow    = 5 * time.Minute
	DefaultResampleThreshold = time.Minute
)

// Resample smooths fast data with a trailing rolling mean. It only applies
// when the median sampling interval is at or below Threshold.
type Resample struct {
	Enabled   bool
	Window    time.Duration
	Threshold time.Duration
}

type Options struct {
	RunID    string
	SiteID   string
	Selected []string
	Excluded []string

	// Troubleshoot keeps each rule's intermediate checks in the flag.
	Troubleshoot bool
	Resample     Resample
	// DropNaN removes rows with a missing value in any mapped column.
	DropNaN bool
	Workers int

	ConstantSATSetpoint *float64
	MotorEpsilon        float64
}

func DefaultOptions() Options {
	return Options{
		Resample: Resample{
			Enabled:   true,
			Window:    DefaultResampleWindow,
			Threshold: DefaultResampleThreshold,
		},
		Workers:      runtime.NumCPU(),
		MotorEpsilon: summary.DefaultMotorEpsilon,
	}
}

type Status string

const (
	StatusEvaluated Status = "evaluated"
	StatusSkipped   Status = "skipped"
)

// Outcome is the result of one rule. Skipped outcomes carry the error code
// and reason and no flag.
type Outcome struct {
	RuleID        string                `json:"rule_id"`
	Status        Status                `json:"status"`
	Code          string                `json:"code,omitempty"`
	Reason        string                `json:"reason,omitempty"`
	Duration      time.Duration         `json:"duration_ns"`
	Flag          *rules.FlagSeries     `json:"flag,omitempty"`
	Summary       *summary.FaultSummary `json:"summary,omitempty"`
	FlagTrueMeans map[string]float64    `json:"flag_true_means,omitempty"`
}

func (o Outcome) flagged() int {
	if o.Flag == nil {
		return 0
	}
	return o.Flag.Flagged()
}

type Report struct {
	RunID       string    `json:"run_id"`
	SiteID      string    `json:"site_id,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Rows        int       `json:"rows"`
	DroppedRows int       `json:"dropped_rows,omitempty"`
	Resampled   bool      `json:"resampled"`
	Outcomes    []Outcome `json:"outcomes"`

	// Frame is the evaluated input with one flag column per evaluated rule.
	Frame *frame.Frame `json:"-"`
}

// Outcome returns the outcome of one rule.
func (r *Report) Outcome(id string) (Outcome, bool) {
	id = rules.NormalizeID(id)
	for _, o := range r.Outcomes {
		if o.RuleID == id {
			return o, true
		}
	}
	return Outcome{}, false
}

func (r *Report) Evaluated() []Outcome { return r.filter(StatusEvaluated) }

func (r *Report) Skipped() []Outcome { return r.filter(StatusSkipped) }

func (r *Report) filter(s Status) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == s {
			out = append(out, o)
		}
	}
	return out
}

// WithoutSeries returns a copy of the report whose outcomes drop their flag
// series, keeping summaries only.
func (r *Report) WithoutSeries() *Report {
	c := *r
	c.Outcomes = make([]Outcome, len(r.Outcomes))
	for i, o := range r.Outcomes {
		o.Flag = nil
		c.Outcomes[i] = o
	}
	return &c
}
