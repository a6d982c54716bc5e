package rules

import (
	"math"
	"strings"

	"github.com/okieraised/ahu-fdd/internal/cerrors"
	"github.com/okieraised/ahu-fdd/internal/fdd/validate"
	"github.com/spf13/cast"
)

// Threshold keys as they appear in configuration.
const (
	KeyDuctStaticErr     = "DUCT_STATIC_INCHES_ERR_THRES"
	KeyVFDSpeedMax       = "VFD_SPEED_PERCENT_MAX"
	KeyVFDSpeedErr       = "VFD_SPEED_PERCENT_ERR_THRES"
	KeyMixErr            = "MIX_DEGF_ERR_THRES"
	KeyReturnErr         = "RETURN_DEGF_ERR_THRES"
	KeyOutdoorErr        = "OUTDOOR_DEGF_ERR_THRES"
	KeySupplyErr         = "SUPPLY_DEGF_ERR_THRES"
	KeyCoilEnterErr      = "COIL_TEMP_ENTER_ERR_THRES"
	KeyCoilLeaveErr      = "COIL_TEMP_LEAVE_ERR_THRES"
	KeyDeltaTSupplyFan   = "DELTA_T_SUPPLY_FAN"
	KeyDeltaOSMax        = "DELTA_OS_MAX"
	KeyMinOADamper       = "AHU_MIN_OA_DPR"
	KeyMinOACFMDesign    = "AHU_MIN_OA_CFM_DESIGN"
	KeyAirflowErr        = "AIRFLOW_ERR_THRES"
	KeyOATRATDeltaMin    = "OAT_RAT_DELTA_MIN"
	KeyERVEffMinHeating  = "ERV_EFFICIENCY_MIN_HEATING"
	KeyERVEffMaxHeating  = "ERV_EFFICIENCY_MAX_HEATING"
	KeyERVEffMinCooling  = "ERV_EFFICIENCY_MIN_COOLING"
	KeyERVEffMaxCooling  = "ERV_EFFICIENCY_MAX_COOLING"
	KeyOATLowThreshold   = "OAT_LOW_THRESHOLD"
	KeyOATHighThreshold  = "OAT_HIGH_THRESHOLD"
	KeyTroubleshoot      = "TROUBLESHOOT_MODE"
	KeyRollingWindowSize = "ROLLING_WINDOW_SIZE"
)

// Defaults are the G36 values used when configuration leaves a key out.
func Defaults() map[string]any {
	return map[string]any{
		KeyDuctStaticErr:     0.1,
		KeyVFDSpeedMax:       0.99,
		KeyVFDSpeedErr:       0.05,
		KeyMixErr:            2.0,
		KeyReturnErr:         2.0,
		KeyOutdoorErr:        5.0,
		KeySupplyErr:         2.0,
		KeyCoilEnterErr:      2.0,
		KeyCoilLeaveErr:      2.0,
		KeyDeltaTSupplyFan:   2.0,
		KeyDeltaOSMax:        7,
		KeyMinOADamper:       0.20,
		KeyMinOACFMDesign:    2500.0,
		KeyAirflowErr:        0.3,
		KeyOATRATDeltaMin:    10.0,
		KeyERVEffMinHeating:  0.65,
		KeyERVEffMaxHeating:  0.8,
		KeyERVEffMinCooling:  0.45,
		KeyERVEffMaxCooling:  0.6,
		KeyOATLowThreshold:   32.0,
		KeyOATHighThreshold:  80.0,
		KeyTroubleshoot:      false,
		KeyRollingWindowSize: 1,
	}
}

// Thresholds is the raw rule configuration. Rules read typed parameters out
// of it once, at construction.
type Thresholds struct {
	raw map[string]any
}

// ThresholdsFromMap overlays m on Defaults. Keys are matched case-insensitively.
func ThresholdsFromMap(m map[string]any) Thresholds {
	raw := Defaults()
	for k, v := range m {
		raw[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return Thresholds{raw: raw}
}

// Raw returns the configured value for key.
func (t Thresholds) Raw(key string) any {
	if t.raw == nil {
		return Defaults()[key]
	}
	return t.raw[key]
}

// Float coerces key to a finite float.
func (t Thresholds) Float(key string) (float64, error) {
	v := t.Raw(key)
	if v == nil {
		return 0, cerrors.InvalidThreshold(key, "missing")
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, cerrors.InvalidThreshold(key, "not a number").WithCause(err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, cerrors.InvalidThreshold(key, "not finite")
	}
	return f, nil
}

// Margin is Float restricted to values >= 0. Error margins and deadbands use
// it.
func (t Thresholds) Margin(key string) (float64, error) {
	f, err := t.Float(key)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return 0, cerrors.InvalidThreshold(key, "must not be negative")
	}
	return f, nil
}

// Bool coerces key to a bool; unparsable values read as false.
func (t Thresholds) Bool(key string) bool {
	return cast.ToBool(t.Raw(key))
}

// Window returns the rolling window size, at least 1.
func (t Thresholds) Window() (int, error) {
	n, err := cast.ToIntE(t.Raw(KeyRollingWindowSize))
	if err != nil {
		return 0, cerrors.InvalidThreshold(KeyRollingWindowSize, "not an integer").WithCause(err)
	}
	if n < 1 {
		return 0, cerrors.InvalidThreshold(KeyRollingWindowSize, "must be at least 1")
	}
	return n, nil
}

// Troubleshoot reports whether rules should keep their intermediate checks.
func (t Thresholds) Troubleshoot() bool {
	return t.Bool(KeyTroubleshoot)
}

// Fraction is a configured value that must be a 0.0 to 1.0 fraction. It is
// checked when a rule runs, so a bad value skips the rules that use it rather
// than failing the whole configuration.
type Fraction struct {
	Key string
	raw any
}

func (t Thresholds) Fraction(key string) Fraction {
	return Fraction{Key: key, raw: t.Raw(key)}
}

// Value validates and returns the fraction.
func (f Fraction) Value() (float64, error) {
	return validate.Scalar(f.raw, f.Key)
}

// margins reads several Margin keys into dst in order.
func (t Thresholds) margins(keys []string, dst ...*float64) error {
	for i, k := range keys {
		v, err := t.Margin(k)
		if err != nil {
			return err
		}
		*dst[i] = v
	}
	return nil
}
