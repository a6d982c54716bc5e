package columns

import (
	"context"
	"testing"

	"github.com/okieraised/ahu-fdd/internal/infrastructure/local_cache"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	m := ColumnMap{OAT: "OA-T", RAT: ""}

	col, ok := Resolve(OAT, m)
	assert.True(t, ok)
	assert.Equal(t, "OA-T", col)

	_, ok = Resolve(RAT, m)
	assert.False(t, ok)

	_, ok = Resolve(MAT, m)
	assert.False(t, ok)
}

func TestFromConfig(t *testing.T) {
	m, ignored := FromConfig(map[string]any{
		"OAT":                  "OA-T",
		"mix_air_temp_col":     "MA-T",
		"supply_vfd_speed":     " SF-O ",
		"satsp":                "",
		"not_a_role":           "X",
		"rat":                  42,
		"ERV_OAT_LEAVING_COL":  "ERV-OUT",
		"DUCT_STATIC_SETPOINT": "DSP-SP",
	})

	assert.Equal(t, ColumnMap{
		OAT:                "OA-T",
		MAT:                "MA-T",
		SupplyVFDSpeed:     "SF-O",
		ERVOATLeave:        "ERV-OUT",
		DuctStaticSetpoint: "DSP-SP",
	}, m)
	assert.Equal(t, []string{"not_a_role", "rat"}, ignored)
}

func TestColumnMap_MergeAndUnresolved(t *testing.T) {
	base := ColumnMap{OAT: "a", RAT: "b"}
	merged := base.Merge(ColumnMap{RAT: "c", MAT: "", SAT: "d"})

	assert.Equal(t, ColumnMap{OAT: "a", RAT: "c", SAT: "d"}, merged)
	assert.Equal(t, ColumnMap{OAT: "a", RAT: "b"}, base)
	assert.Equal(t, []string{MAT}, merged.Unresolved([]string{OAT, MAT, SAT}))
}

func TestIsUnit(t *testing.T) {
	assert.True(t, IsUnit(EconomizerSignal))
	assert.False(t, IsUnit(OAT))
}

type countingResolver struct {
	labels map[string]string
	calls  int
}

func (c *countingResolver) Lookup(_ context.Context, role string) (string, error) {
	c.calls++
	if l, ok := c.labels[role]; ok {
		return l, nil
	}
	return "", ErrNoLabel
}

func TestCachedResolver(t *testing.T) {
	cache, err := local_cache.Build()
	assert.NoError(t, err)

	next := &countingResolver{labels: map[string]string{OAT: "AHU1:OA-T"}}
	r := NewCachedResolver("site-a", next, cache, 0)

	label, err := r.Lookup(context.Background(), OAT)
	assert.NoError(t, err)
	assert.Equal(t, "AHU1:OA-T", label)
	cache.Wait()

	label, err = r.Lookup(context.Background(), OAT)
	assert.NoError(t, err)
	assert.Equal(t, "AHU1:OA-T", label)
	assert.Equal(t, 1, next.calls)

	_, err = r.Lookup(context.Background(), RAT)
	assert.ErrorIs(t, err, ErrNoLabel)
}

type failingResolver struct{}

func (failingResolver) Lookup(context.Context, string) (string, error) {
	return "", errors.New("model offline")
}

func TestFromResolver(t *testing.T) {
	m, err := FromResolver(context.Background(), StaticResolver{OAT: "OA-T", SAT: "SA-T"}, []string{OAT, RAT, SAT})
	assert.NoError(t, err)
	assert.Equal(t, ColumnMap{OAT: "OA-T", SAT: "SA-T"}, m)

	_, err = FromResolver(context.Background(), failingResolver{}, []string{OAT})
	assert.Error(t, err)
}
