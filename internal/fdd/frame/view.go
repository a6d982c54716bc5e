package frame

import (
	"slices"
	"time"
)

// View exposes a frame through logical signal roles instead of raw column
// names. The zero value has no rows and no roles.
type View struct {
	frame *Frame
	roles map[string]string
}

// NewView binds roles to the columns of f. Roles mapped to an empty name are
// treated as unmapped.
func NewView(f *Frame, roles map[string]string) View {
	bound := make(map[string]string, len(roles))
	for role, col := range roles {
		if col != "" {
			bound[role] = col
		}
	}
	return View{frame: f, roles: bound}
}

// Len returns the number of rows behind the view.
func (v View) Len() int {
	if v.frame == nil {
		return 0
	}
	return v.frame.Len()
}

// Index returns a copy of the timestamps behind the view.
func (v View) Index() []time.Time {
	if v.frame == nil {
		return nil
	}
	return v.frame.Index()
}

// Column returns the column name bound to role.
func (v View) Column(role string) (string, bool) {
	c, ok := v.roles[role]
	return c, ok
}

// Role returns the series bound to role. It reports false when the role is
// unmapped or its column is absent from the frame.
func (v View) Role(role string) (Series, bool) {
	if v.frame == nil {
		return Series{}, false
	}
	col, ok := v.roles[role]
	if !ok {
		return Series{}, false
	}
	return v.frame.Column(col)
}

// Missing returns the roles that Role would not resolve, in input order.
func (v View) Missing(roles ...string) []string {
	var out []string
	for _, r := range roles {
		col, ok := v.roles[r]
		if !ok || v.frame == nil || !v.frame.Has(col) {
			out = append(out, r)
		}
	}
	return out
}

// Roles returns the bound role names sorted.
func (v View) Roles() []string {
	out := make([]string, 0, len(v.roles))
	for r := range v.roles {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}
