package columns

import (
	"slices"
	"strings"
)

// Signal roles. A role is the logical meaning of a column, independent of how
// a building automation system names its points.
const (
	OAT                = "oat"
	RAT                = "rat"
	MAT                = "mat"
	SAT                = "sat"
	SATSetpoint        = "satsp"
	DuctStatic         = "duct_static"
	DuctStaticSetpoint = "duct_static_setpoint"
	SupplyVFDSpeed     = "supply_vfd_speed"
	HeatingSignal      = "heating_sig"
	CoolingSignal      = "cooling_sig"
	EconomizerSignal   = "economizer_sig"
	SupplyAirVolume    = "supply_air_volume"
	ClgCoilEnterTemp   = "clg_coil_enter_temp"
	ClgCoilLeaveTemp   = "clg_coil_leave_temp"
	HtgCoilEnterTemp   = "htg_coil_enter_temp"
	HtgCoilLeaveTemp   = "htg_coil_leave_temp"
	ERVOATEnter        = "erv_oat_enter"
	ERVOATLeave        = "erv_oat_leave"
	ERVEATEnter        = "erv_eat_enter"
)

// Roles lists every known role.
var Roles = []string{
	OAT, RAT, MAT, SAT, SATSetpoint,
	DuctStatic, DuctStaticSetpoint, SupplyVFDSpeed,
	HeatingSignal, CoolingSignal, EconomizerSignal,
	SupplyAirVolume,
	ClgCoilEnterTemp, ClgCoilLeaveTemp, HtgCoilEnterTemp, HtgCoilLeaveTemp,
	ERVOATEnter, ERVOATLeave, ERVEATEnter,
}

// UnitRoles are the roles whose values must be fractions between 0.0 and 1.0.
var UnitRoles = []string{SupplyVFDSpeed, HeatingSignal, CoolingSignal, EconomizerSignal}

// aliases maps the legacy upper-case configuration names onto roles.
var aliases = map[string]string{
	"OAT_COL":                        OAT,
	"OUTSIDE_AIR_TEMP_COL":           OAT,
	"RAT_COL":                        RAT,
	"RETURN_AIR_TEMP_COL":            RAT,
	"MAT_COL":                        MAT,
	"MIX_AIR_TEMP_COL":               MAT,
	"SAT_COL":                        SAT,
	"SUPPLY_AIR_TEMP_COL":            SAT,
	"SAT_SETPOINT_COL":               SATSetpoint,
	"SUPPLY_AIR_TEMP_SETPOINT_COL":   SATSetpoint,
	"DUCT_STATIC_COL":                DuctStatic,
	"DUCT_STATIC_SETPOINT_COL":       DuctStaticSetpoint,
	"SUPPLY_VFD_SPEED_COL":           SupplyVFDSpeed,
	"HEATING_SIG_COL":                HeatingSignal,
	"HEAT_VALVE_COMMAND_COL":         HeatingSignal,
	"COOLING_SIG_COL":                CoolingSignal,
	"COOL_VALVE_COMMAND_COL":         CoolingSignal,
	"ECONOMIZER_SIG_COL":             EconomizerSignal,
	"OUTSIDE_AIR_DAMPER_COMMAND_COL": EconomizerSignal,
	"SUPPLY_FAN_AIR_VOLUME_COL":      SupplyAirVolume,
	"CLG_COIL_ENTER_TEMP_COL":        ClgCoilEnterTemp,
	"CLG_COIL_LEAVE_TEMP_COL":        ClgCoilLeaveTemp,
	"HTG_COIL_ENTER_TEMP_COL":        HtgCoilEnterTemp,
	"HTG_COIL_LEAVE_TEMP_COL":        HtgCoilLeaveTemp,
	"ERV_OAT_ENTER_COL":              ERVOATEnter,
	"ERV_OAT_LEAVING_COL":            ERVOATLeave,
	"ERV_EAT_ENTER_COL":              ERVEATEnter,
}

// Known reports whether role is one of Roles.
func Known(role string) bool {
	return slices.Contains(Roles, role)
}

// IsUnit reports whether role carries a 0.0 to 1.0 fraction.
func IsUnit(role string) bool {
	return slices.Contains(UnitRoles, role)
}

// Canonical maps a configured key to its role. It accepts the role itself in
// any case and the legacy *_COL names.
func Canonical(key string) (string, bool) {
	k := strings.TrimSpace(key)
	if r, ok := aliases[strings.ToUpper(k)]; ok {
		return r, true
	}
	r := strings.ToLower(k)
	return r, Known(r)
}

// ColumnMap binds roles to the column names of one dataset.
type ColumnMap map[string]string

// Resolve returns the column bound to role. An empty binding is unresolved.
func Resolve(role string, m ColumnMap) (string, bool) {
	c, ok := m[role]
	if !ok || c == "" {
		return "", false
	}
	return c, true
}

// FromConfig builds a ColumnMap from raw configuration. Unknown keys and
// non-string values are returned separately so callers can log them.
func FromConfig(raw map[string]any) (ColumnMap, []string) {
	m := make(ColumnMap, len(raw))
	var ignored []string
	for k, v := range raw {
		role, ok := Canonical(k)
		col, isString := v.(string)
		if !ok || !isString {
			ignored = append(ignored, k)
			continue
		}
		if col = strings.TrimSpace(col); col != "" {
			m[role] = col
		}
	}
	slices.Sort(ignored)
	return m, ignored
}

// Merge returns a copy of m overlaid with the non-empty bindings of other.
func (m ColumnMap) Merge(other ColumnMap) ColumnMap {
	out := make(ColumnMap, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Unresolved returns the roles in roles that m does not bind, in input order.
func (m ColumnMap) Unresolved(roles []string) []string {
	var out []string
	for _, r := range roles {
		if _, ok := Resolve(r, m); !ok {
			out = append(out, r)
		}
	}
	return out
}
