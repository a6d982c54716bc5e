package rules

import (
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/okieraised/ahu-fdd/internal/cerrors"
)

// Registry maps normalized rule ids to rules and keeps registration order.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]FaultRule
	order []string
}

func New() *Registry {
	return &Registry{rules: map[string]FaultRule{}}
}

// builtins constructs every shipped fault condition in evaluation order.
var builtins = []func(Thresholds) (FaultRule, error){
	func(t Thresholds) (FaultRule, error) { return NewFC1(t) },
	func(t Thresholds) (FaultRule, error) { return NewFC2(t) },
	func(t Thresholds) (FaultRule, error) { return NewFC3(t) },
	func(t Thresholds) (FaultRule, error) { return NewFC4(t) },
	func(t Thresholds) (FaultRule, error) { return NewFC5(t) },
	func(t Thresholds) (FaultRule, error) { return NewFC6(t) },
	func(t Thresholds) (FaultRule, error) { return NewFC7(t) },
	func(t Thresholds) (FaultRule, error) { return NewFC8(t) },
	func(t Thresholds) (FaultRule, error) { return NewFC9(t) },
	func(t Thresholds) (FaultRule, error) { return NewFC10(t) },
	func(t Thresholds) (FaultRule, error) { return NewFC11(t) },
	func(t Thresholds) (FaultRule, error) { return NewFC12(t) },
	func(t Thresholds) (FaultRule, error) { return NewFC13(t) },
	func(t Thresholds) (FaultRule, error) { return NewFC14(t) },
	func(t Thresholds) (FaultRule, error) { return NewFC15(t) },
	func(t Thresholds) (FaultRule, error) { return NewFC16(t) },
}

// NewRegistry builds every shipped rule from t. A threshold that cannot be
// used fails construction with InvalidThreshold before any rule runs.
func NewRegistry(t Thresholds) (*Registry, error) {
	r := New()
	for _, build := range builtins {
		rule, err := build(t)
		if err != nil {
			return nil, err
		}
		r.Register(rule)
	}
	return r, nil
}

// Register adds or replaces a rule under its normalized id.
func (r *Registry) Register(rule FaultRule) {
	id := NormalizeID(rule.ID())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[id]; !ok {
		r.order = append(r.order, id)
	}
	r.rules[id] = rule
}

// Get returns a rule by id in any accepted spelling.
func (r *Registry) Get(id string) (FaultRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rule, ok := r.rules[NormalizeID(id)]; ok {
		return rule, nil
	}
	return nil, cerrors.ErrUnknownRule.WithMessage("fault rule %q is not registered", id)
}

// IDs returns the registered ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Describe returns the catalogue entries of every rule that publishes one.
func (r *Registry) Describe() []Description {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Description, 0, len(r.order))
	for _, id := range r.order {
		if d, ok := r.rules[id].(Describer); ok {
			out = append(out, d.Describe())
		}
	}
	return out
}

// RunSelected returns the rules to evaluate, in registration order. An empty
// ids list selects every rule. Excluded ids win over selected ones. Unknown
// ids are ignored.
func (r *Registry) RunSelected(ids, excluded []string) []FaultRule {
	skip := make(map[string]struct{}, len(excluded))
	for _, id := range excluded {
		skip[NormalizeID(id)] = struct{}{}
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[NormalizeID(id)] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]FaultRule, 0, len(r.order))
	for _, id := range r.order {
		if _, ok := skip[id]; ok {
			continue
		}
		if len(want) > 0 {
			if _, ok := want[id]; !ok {
				continue
			}
		}
		out = append(out, r.rules[id])
	}
	return out
}

// NormalizeID folds "FC6", "fc6", "fc_6" and "6" into "fc6". Ids that do not
// carry a number are lower-cased and trimmed.
func NormalizeID(id string) string {
	s := strings.ToLower(strings.TrimSpace(id))
	num := strings.TrimLeft(strings.TrimPrefix(s, "fc"), "_- ")
	if n, err := strconv.Atoi(num); err == nil && n >= 0 {
		return "fc" + strconv.Itoa(n)
	}
	return s
}
