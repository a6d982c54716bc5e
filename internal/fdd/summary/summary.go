// Package summary turns a flag series into elapsed-time statistics.
package summary

import (
	"math"
	"time"
)

const DefaultMotorEpsilon = 0.01

// FaultSummary weights every sample by the time elapsed since the previous
// one. NaN flags count as elapsed time without a fault.
type FaultSummary struct {
	TotalDays         float64 `json:"total_days"`
	TotalHours        float64 `json:"total_hours"`
	HoursActive       float64 `json:"hours_fault_mode"`
	PercentTrue       float64 `json:"percent_true"`
	PercentFalse      float64 `json:"percent_false"`
	MotorRuntimeHours float64 `json:"hours_motor_runtime"`
	FlaggedSamples    int     `json:"flagged_samples"`
	HourOfDay         [24]int `json:"flagged_by_hour_of_day"`
}

type Options struct {
	Motor        []float64
	MotorEpsilon float64
}

type Option func(*Options)

// WithMotor sets the fan speed signal used for motor runtime.
func WithMotor(values []float64) Option {
	return func(o *Options) { o.Motor = values }
}

func WithMotorEpsilon(eps float64) Option {
	return func(o *Options) { o.MotorEpsilon = eps }
}

// Elapsed returns the forward difference of index; the first sample gets 0.
func Elapsed(index []time.Time) []time.Duration {
	out := make([]time.Duration, len(index))
	for i := 1; i < len(index); i++ {
		out[i] = index[i].Sub(index[i-1])
	}
	return out
}

// Summarize computes the time-weighted statistics of flag over index.
func Summarize(index []time.Time, flag []float64, opts ...Option) FaultSummary {
	o := Options{MotorEpsilon: DefaultMotorEpsilon}
	for _, fn := range opts {
		fn(&o)
	}

	var (
		total, active, motor time.Duration
		s                    FaultSummary
	)
	for i, d := range Elapsed(index) {
		total += d
		if i < len(flag) && flag[i] == 1 {
			active += d
			s.FlaggedSamples++
			s.HourOfDay[index[i].Hour()]++
		}
		if i < len(o.Motor) && o.Motor[i] > o.MotorEpsilon {
			motor += d
		}
	}

	s.TotalHours = total.Hours()
	s.TotalDays = s.TotalHours / 24
	s.HoursActive = active.Hours()
	s.MotorRuntimeHours = motor.Hours()
	if total > 0 {
		s.PercentTrue = round(float64(active) / float64(total) * 100)
	}
	s.PercentFalse = round(100 - s.PercentTrue)
	return s
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}

// FlagTrueMeans returns, for each column, the mean of its finite values on
// rows where flag is 1. Columns with no such value map to NaN.
func FlagTrueMeans(flag []float64, cols map[string][]float64) map[string]float64 {
	out := make(map[string]float64, len(cols))
	for name, vals := range cols {
		var (
			sum float64
			n   int
		)
		for i, v := range vals {
			if i >= len(flag) || flag[i] != 1 || math.IsNaN(v) {
				continue
			}
			sum += v
			n++
		}
		if n == 0 {
			out[name] = math.NaN()
			continue
		}
		out[name] = sum / float64(n)
	}
	return out
}
