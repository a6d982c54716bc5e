package frame

import (
	"math"
	"slices"
	"sort"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrLengthMismatch = errors.New("column length does not match index length")
	ErrUnorderedIndex = errors.New("timestamps must be strictly increasing")
	ErrEmptyName      = errors.New("column name must not be empty")
)

// Series is one named numeric column. Invalid counts cells that could not be
// read as a float at ingestion; those cells hold NaN.
type Series struct {
	Name    string    `json:"name"`
	Values  []float64 `json:"values"`
	Invalid int       `json:"invalid,omitempty"`
}

// Len returns the number of samples in the series.
func (s Series) Len() int { return len(s.Values) }

// Max returns the largest non-NaN value, or NaN when there is none.
func (s Series) Max() float64 {
	m := math.NaN()
	for _, v := range s.Values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(m) || v > m {
			m = v
		}
	}
	return m
}

// Frame is an immutable, time-indexed table of float columns.
type Frame struct {
	index   []time.Time
	columns map[string]Series
	order   []string
}

// New builds a frame. Every column must be as long as the index and the
// index must be strictly increasing. Inputs are copied.
func New(index []time.Time, columns ...Series) (*Frame, error) {
	for i := 1; i < len(index); i++ {
		if !index[i].After(index[i-1]) {
			return nil, errors.Wrapf(ErrUnorderedIndex, "at row %d (%s)", i, index[i].Format(time.RFC3339))
		}
	}

	f := &Frame{
		index:   slices.Clone(index),
		columns: make(map[string]Series, len(columns)),
	}
	for _, c := range columns {
		if err := f.put(c); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *Frame) put(c Series) error {
	if c.Name == "" {
		return ErrEmptyName
	}
	if len(c.Values) != len(f.index) {
		return errors.Wrapf(ErrLengthMismatch, "column %q has %d values, index has %d", c.Name, len(c.Values), len(f.index))
	}
	if _, ok := f.columns[c.Name]; !ok {
		f.order = append(f.order, c.Name)
	}
	f.columns[c.Name] = Series{Name: c.Name, Values: slices.Clone(c.Values), Invalid: c.Invalid}
	return nil
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.index) }

// Index returns a copy of the timestamps.
func (f *Frame) Index() []time.Time { return slices.Clone(f.index) }

// Columns returns the column names in insertion order.
func (f *Frame) Columns() []string { return slices.Clone(f.order) }

// Has reports whether the named column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.columns[name]
	return ok
}

// Column returns a copy of the named column.
func (f *Frame) Column(name string) (Series, bool) {
	c, ok := f.columns[name]
	if !ok {
		return Series{}, false
	}
	c.Values = slices.Clone(c.Values)
	return c, true
}

// With returns a new frame holding every column of f plus cols. A column in
// cols replaces an existing column with the same name.
func (f *Frame) With(cols ...Series) (*Frame, error) {
	out := f.shallow()
	for _, c := range cols {
		if err := out.put(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Select returns a frame restricted to the named columns. Unknown names are
// ignored.
func (f *Frame) Select(names ...string) *Frame {
	out := &Frame{index: f.index, columns: make(map[string]Series, len(names))}
	for _, n := range names {
		if c, ok := f.columns[n]; ok {
			if _, dup := out.columns[n]; dup {
				continue
			}
			out.columns[n] = c
			out.order = append(out.order, n)
		}
	}
	return out
}

// DropNaN removes every row where any of the given columns is NaN. With no
// names all columns are checked.
func (f *Frame) DropNaN(names ...string) *Frame {
	if len(names) == 0 {
		names = f.order
	}
	keep := make([]int, 0, len(f.index))
	for i := range f.index {
		ok := true
		for _, n := range names {
			c, found := f.columns[n]
			if found && math.IsNaN(c.Values[i]) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, i)
		}
	}
	return f.rows(keep)
}

func (f *Frame) rows(keep []int) *Frame {
	out := &Frame{
		index:   make([]time.Time, len(keep)),
		columns: make(map[string]Series, len(f.columns)),
		order:   slices.Clone(f.order),
	}
	for j, i := range keep {
		out.index[j] = f.index[i]
	}
	for name, c := range f.columns {
		vals := make([]float64, len(keep))
		for j, i := range keep {
			vals[j] = c.Values[i]
		}
		out.columns[name] = Series{Name: name, Values: vals, Invalid: c.Invalid}
	}
	return out
}

func (f *Frame) shallow() *Frame {
	out := &Frame{
		index:   f.index,
		columns: make(map[string]Series, len(f.columns)),
		order:   slices.Clone(f.order),
	}
	for k, v := range f.columns {
		out.columns[k] = v
	}
	return out
}

// MedianInterval returns the median spacing between consecutive rows, or 0
// for frames with fewer than two rows.
func (f *Frame) MedianInterval() time.Duration {
	if len(f.index) < 2 {
		return 0
	}
	deltas := make([]time.Duration, 0, len(f.index)-1)
	for i := 1; i < len(f.index); i++ {
		deltas = append(deltas, f.index[i].Sub(f.index[i-1]))
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i] < deltas[j] })
	mid := len(deltas) / 2
	if len(deltas)%2 == 1 {
		return deltas[mid]
	}
	return (deltas[mid-1] + deltas[mid]) / 2
}

// RollingMean smooths every column with a trailing time window (t-window, t].
// NaN cells are ignored; a window with no finite value yields NaN.
func (f *Frame) RollingMean(window time.Duration) *Frame {
	if window <= 0 {
		return f.shallow()
	}
	out := &Frame{
		index:   f.index,
		columns: make(map[string]Series, len(f.columns)),
		order:   slices.Clone(f.order),
	}
	for name, c := range f.columns {
		out.columns[name] = Series{Name: name, Values: rollingMean(f.index, c.Values, window), Invalid: c.Invalid}
	}
	return out
}

// rollingMean keeps a compensated running sum and the window's min and max.
// A window holding one repeated value returns that value exactly.
func rollingMean(index []time.Time, values []float64, window time.Duration) []float64 {
	res := make([]float64, len(values))
	var (
		acc    neumaier
		count  int
		start  int
		lo, hi []int
	)
	for i := range values {
		if v := values[i]; !math.IsNaN(v) {
			acc.add(v)
			count++
			for len(lo) > 0 && values[lo[len(lo)-1]] >= v {
				lo = lo[:len(lo)-1]
			}
			lo = append(lo, i)
			for len(hi) > 0 && values[hi[len(hi)-1]] <= v {
				hi = hi[:len(hi)-1]
			}
			hi = append(hi, i)
		}
		for start <= i && !index[start].After(index[i].Add(-window)) {
			if v := values[start]; !math.IsNaN(v) {
				acc.add(-v)
				count--
			}
			start++
		}
		for len(lo) > 0 && lo[0] < start {
			lo = lo[1:]
		}
		for len(hi) > 0 && hi[0] < start {
			hi = hi[1:]
		}
		switch {
		case count == 0:
			acc = neumaier{}
			res[i] = math.NaN()
		case values[lo[0]] == values[hi[0]]:
			res[i] = values[lo[0]]
		default:
			res[i] = acc.total() / float64(count)
		}
	}
	return res
}

type neumaier struct{ sum, c float64 }

func (n *neumaier) add(v float64) {
	t := n.sum + v
	if math.Abs(n.sum) >= math.Abs(v) {
		n.c += (n.sum - t) + v
	} else {
		n.c += (v - t) + n.sum
	}
	n.sum = t
}

func (n neumaier) total() float64 { return n.sum + n.c }
