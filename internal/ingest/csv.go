// Package ingest turns trend logs into frames.
package ingest

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/okieraised/ahu-fdd/internal/cerrors"
	"github.com/okieraised/ahu-fdd/internal/fdd/frame"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// DefaultIndexColumn is the timestamp header looked up first.
const DefaultIndexColumn = "Date"

type Options struct {
	IndexColumn string
	Location    *time.Location
	Comma       rune
}

type Option func(*Options)

func WithIndexColumn(name string) Option {
	return func(o *Options) { o.IndexColumn = name }
}

// WithLocation sets the zone used for timestamps that carry no offset.
func WithLocation(loc *time.Location) Option {
	return func(o *Options) { o.Location = loc }
}

func WithComma(r rune) Option {
	return func(o *Options) { o.Comma = r }
}

// Stats describes what ReadCSV had to repair.
type Stats struct {
	Rows       int  `json:"rows"`
	Duplicates int  `json:"duplicates"`
	Reordered  bool `json:"reordered"`
}

type row struct {
	ts     time.Time
	values []float64
	bad    []bool
}

// ReadCSV reads a header row followed by one row per timestamp. The index is
// the IndexColumn when present, otherwise the first column. Empty, "nan" and
// "null" cells become NaN. Any other cell that is not a number also becomes
// NaN and is counted in the column's Invalid total. Rows are sorted by time
// and later duplicates of a timestamp are dropped.
func ReadCSV(r io.Reader, opts ...Option) (*frame.Frame, Stats, error) {
	o := Options{IndexColumn: DefaultIndexColumn, Location: time.UTC, Comma: ','}
	for _, fn := range opts {
		fn(&o)
	}

	reader := csv.NewReader(r)
	reader.Comma = o.Comma
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, Stats{}, cerrors.ErrInvalidDataset.WithMessage("csv has no header")
	}
	if err != nil {
		return nil, Stats{}, errors.Wrap(err, "read csv header")
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(headers[i], "\ufeff"))
	}

	tsCol := 0
	for i, h := range headers {
		if strings.EqualFold(h, o.IndexColumn) {
			tsCol = i
			break
		}
	}

	var rows []row
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, Stats{}, errors.Wrapf(err, "read csv line %d", line)
		}
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}
		if tsCol >= len(record) {
			return nil, Stats{}, cerrors.ErrInvalidDataset.WithMessage("line %d has no timestamp", line)
		}
		ts, err := cast.ToTimeInDefaultLocationE(strings.TrimSpace(record[tsCol]), o.Location)
		if err != nil {
			return nil, Stats{}, cerrors.ErrInvalidDataset.WithMessage("line %d: unparsable timestamp %q", line, record[tsCol]).WithCause(err)
		}

		rw := row{ts: ts, values: make([]float64, len(headers)), bad: make([]bool, len(headers))}
		for i := range headers {
			if i == tsCol {
				continue
			}
			cell := ""
			if i < len(record) {
				cell = record[i]
			}
			rw.values[i], rw.bad[i] = parseCell(cell)
		}
		rows = append(rows, rw)
	}

	stats := Stats{}
	if !sort.SliceIsSorted(rows, func(i, j int) bool { return rows[i].ts.Before(rows[j].ts) }) {
		stats.Reordered = true
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].ts.Before(rows[j].ts) })
	}
	deduped := rows[:0]
	for _, rw := range rows {
		if n := len(deduped); n > 0 && rw.ts.Equal(deduped[n-1].ts) {
			stats.Duplicates++
			continue
		}
		deduped = append(deduped, rw)
	}
	rows = deduped
	stats.Rows = len(rows)

	index := make([]time.Time, len(rows))
	for i, rw := range rows {
		index[i] = rw.ts
	}
	cols := make([]frame.Series, 0, len(headers)-1)
	for c, name := range headers {
		if c == tsCol || name == "" {
			continue
		}
		s := frame.Series{Name: name, Values: make([]float64, len(rows))}
		for i, rw := range rows {
			s.Values[i] = rw.values[c]
			if rw.bad[c] {
				s.Invalid++
			}
		}
		cols = append(cols, s)
	}

	f, err := frame.New(index, cols...)
	if err != nil {
		return nil, stats, cerrors.ErrInvalidDataset.WithMessage("%s", err.Error()).WithCause(err)
	}
	return f, stats, nil
}

// parseCell returns the value and whether the cell was garbage.
func parseCell(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	switch strings.ToLower(s) {
	case "", "nan", "null", "none", "na", "n/a":
		return math.NaN(), false
	}
	v, err := cast.ToFloat64E(s)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN(), true
	}
	return v, false
}

// ReadFile opens path and reads it with ReadCSV.
func ReadFile(path string, opts ...Option) (*frame.Frame, Stats, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, errors.Wrapf(err, "open %s", path)
	}
	defer fh.Close()
	return ReadCSV(fh, opts...)
}
