// Package opstate classifies air handler samples into ASHRAE G36 operating
// states and counts how often each state is entered per clock hour.
package opstate

import (
	"math"
	"time"
)

type State int

const (
	None State = iota
	Heating
	EconOnly
	EconPlusMech
	MechOnly
)

// States lists the four classified states in mode order.
var States = [...]State{Heating, EconOnly, EconPlusMech, MechOnly}

func (s State) String() string {
	switch s {
	case Heating:
		return "heating"
	case EconOnly:
		return "econ_only"
	case EconPlusMech:
		return "econ_plus_mech"
	case MechOnly:
		return "mech_only"
	default:
		return "none"
	}
}

// Sample is one instant of the four control signals, each a fraction.
type Sample struct {
	Heating    float64
	Cooling    float64
	Economizer float64
	FanSpeed   float64
}

func (s Sample) hasNaN() bool {
	return math.IsNaN(s.Heating) || math.IsNaN(s.Cooling) || math.IsNaN(s.Economizer) || math.IsNaN(s.FanSpeed)
}

// Classify maps a sample to its operating state. minOA is the minimum
// outdoor air damper position. Samples with the fan off, with NaN signals or
// with no matching state are None.
func Classify(s Sample, minOA float64) State {
	if s.hasNaN() || s.FanSpeed <= 0 {
		return None
	}
	switch {
	case s.Heating > 0 && s.Cooling == 0 && s.Economizer == minOA:
		return Heating
	case s.Heating == 0 && s.Cooling == 0 && s.Economizer > minOA:
		return EconOnly
	case s.Heating == 0 && s.Cooling > 0 && s.Economizer > minOA:
		return EconPlusMech
	case s.Heating == 0 && s.Cooling > 0 && s.Economizer == minOA:
		return MechOnly
	default:
		return None
	}
}

// HourCount holds the entries into each state during one clock hour.
type HourCount struct {
	Start  time.Time
	Counts map[State]int
}

// Max returns the largest per-state count of the hour.
func (h HourCount) Max() int {
	m := 0
	for _, c := range h.Counts {
		if c > m {
			m = c
		}
	}
	return m
}

// ByName returns the counts keyed by state name, for reports.
func (h HourCount) ByName() map[string]int {
	out := make(map[string]int, len(States))
	for _, s := range States {
		out[s.String()] = h.Counts[s]
	}
	return out
}

// Counter counts rising edges per state inside clock-hour buckets. Samples
// must arrive in time order. Each bucket starts with every state inactive, so
// a state already active at the first sample of an hour counts once.
type Counter struct {
	current *HourCount
	prev    State
	done    []HourCount
}

func NewCounter() *Counter {
	return &Counter{}
}

// hourOf truncates t to the start of its hour in t's own location.
func hourOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// Process adds one classified sample. It returns the bucket that was closed
// when t falls into a new hour.
func (c *Counter) Process(t time.Time, s State) (HourCount, bool) {
	var (
		closed HourCount
		rolled bool
	)
	h := hourOf(t)
	if c.current == nil || !c.current.Start.Equal(h) {
		if c.current != nil {
			closed, rolled = *c.current, true
			c.done = append(c.done, closed)
		}
		c.current = &HourCount{Start: h, Counts: make(map[State]int, len(States))}
		c.prev = None
	}
	if s != None && s != c.prev {
		c.current.Counts[s]++
	}
	c.prev = s
	return closed, rolled
}

// Flush closes the open bucket and returns every bucket seen so far.
func (c *Counter) Flush() []HourCount {
	if c.current != nil {
		c.done = append(c.done, *c.current)
		c.current = nil
	}
	out := c.done
	c.done = nil
	return out
}

// CountTransitions classifies a whole series and returns the per-hour counts
// together with the bucket index of every sample.
func CountTransitions(index []time.Time, states []State) ([]HourCount, []int) {
	c := NewCounter()
	bucket := make([]int, len(index))
	n := -1
	for i, t := range index {
		if _, rolled := c.Process(t, states[i]); rolled || i == 0 {
			n++
		}
		bucket[i] = n
	}
	return c.Flush(), bucket
}
