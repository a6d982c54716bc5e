package utilities

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// ParseDuration reads a configured duration. Strings go through
// time.ParseDuration unless they are a bare integer; bare integers and other
// numbers are seconds; time.Duration values pass through.
func ParseDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case string:
		in := strings.TrimSpace(d)
		if in == "" {
			return 0, errors.New("empty duration")
		}
		if secs, err := cast.ToInt64E(in); err == nil {
			return time.Duration(secs) * time.Second, nil
		}
		out, err := time.ParseDuration(in)
		return out, errors.Wrapf(err, "parse duration %q", d)
	}
	secs, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, errors.Wrapf(err, "parse duration %v", v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// PositiveDuration is ParseDuration that also rejects zero and negative values.
func PositiveDuration(v any) (time.Duration, error) {
	d, err := ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.Errorf("duration %v must be positive", v)
	}
	return d, nil
}
