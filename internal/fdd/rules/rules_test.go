package rules

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/okieraised/ahu-fdd/internal/cerrors"
	"github.com/okieraised/ahu-fdd/internal/fdd/columns"
	"github.com/okieraised/ahu-fdd/internal/fdd/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

// viewOf builds a view whose columns are named after their roles with an
// AHU1 prefix, sampled every step.
func viewOf(t *testing.T, step time.Duration, cols map[string][]float64) frame.View {
	t.Helper()
	n := -1
	series := make([]frame.Series, 0, len(cols))
	cm := columns.ColumnMap{}
	for role, vals := range cols {
		if n >= 0 {
			require.Len(t, vals, n, role)
		}
		n = len(vals)
		name := "AHU1:" + role
		series = append(series, frame.Series{Name: name, Values: vals})
		cm[role] = name
	}
	index := make([]time.Time, n)
	for i := range index {
		index[i] = start.Add(time.Duration(i) * step)
	}
	f, err := frame.New(index, series...)
	require.NoError(t, err)
	return frame.NewView(f, cm)
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func defaults() Thresholds { return ThresholdsFromMap(nil) }

func TestFC1_Scenario(t *testing.T) {
	r, err := NewFC1(ThresholdsFromMap(map[string]any{
		KeyDuctStaticErr: 0.1,
		KeyVFDSpeedMax:   0.99,
		KeyVFDSpeedErr:   0.05,
	}))
	require.NoError(t, err)

	view := viewOf(t, time.Minute, map[string][]float64{
		columns.DuctStatic:         {0.5, 0.95, 0.5, math.NaN()},
		columns.DuctStaticSetpoint: {1.0, 1.0, 1.0, 1.0},
		columns.SupplyVFDSpeed:     {0.97, 0.97, 0.5, 0.97},
	})
	flag, err := r.Apply(view)
	require.NoError(t, err)

	assert.Equal(t, "fc1", flag.RuleID)
	assert.Equal(t, 1.0, flag.Values[0])
	assert.Equal(t, 0.0, flag.Values[1])
	assert.Equal(t, 0.0, flag.Values[2])
	assert.True(t, math.IsNaN(flag.Values[3]))
	assert.Len(t, flag.Index, 4)
	assert.Equal(t, 1, flag.Flagged())
	assert.Equal(t, 1, flag.Undetermined())
	assert.Contains(t, flag.Diagnostics, "static_check")
}

func TestFC1_FractionParamOutOfRange(t *testing.T) {
	r, err := NewFC1(ThresholdsFromMap(map[string]any{KeyVFDSpeedMax: 99}))
	require.NoError(t, err)

	view := viewOf(t, time.Minute, map[string][]float64{
		columns.DuctStatic:         {0.5},
		columns.DuctStaticSetpoint: {1.0},
		columns.SupplyVFDSpeed:     {0.97},
	})
	_, err = r.Apply(view)
	assert.True(t, cerrors.Is(err, cerrors.ErrOutOfUnitRange))
}

func TestFC2FC3_Scenario(t *testing.T) {
	view := viewOf(t, time.Minute, map[string][]float64{
		columns.MAT:            {50},
		columns.RAT:            {70},
		columns.OAT:            {20},
		columns.SupplyVFDSpeed: {1},
	})
	fc2, _ := NewFC2(defaults())
	fc3, _ := NewFC3(defaults())

	f2, err := fc2.Apply(view)
	require.NoError(t, err)
	f3, err := fc3.Apply(view)
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, f2.Values)
	assert.Equal(t, []float64{0}, f3.Values)
}

func TestFC2FC3_NeverBothSet(t *testing.T) {
	var mat, rat, oat []float64
	for m := 30.0; m <= 90; m += 7 {
		for r := 40.0; r <= 80; r += 10 {
			for o := 0.0; o <= 100; o += 12 {
				mat, rat, oat = append(mat, m), append(rat, r), append(oat, o)
			}
		}
	}
	view := viewOf(t, time.Minute, map[string][]float64{
		columns.MAT:            mat,
		columns.RAT:            rat,
		columns.OAT:            oat,
		columns.SupplyVFDSpeed: repeat(0.6, len(mat)),
	})
	fc2, _ := NewFC2(defaults())
	fc3, _ := NewFC3(defaults())
	f2, _ := fc2.Apply(view)
	f3, _ := fc3.Apply(view)

	fired := 0
	for i := range f2.Values {
		assert.False(t, f2.Values[i] == 1 && f3.Values[i] == 1, "row %d", i)
		if f2.Values[i] == 1 || f3.Values[i] == 1 {
			fired++
		}
	}
	assert.Positive(t, fired)
}

func TestFC2_FanOff(t *testing.T) {
	view := viewOf(t, time.Minute, map[string][]float64{
		columns.MAT:            {30},
		columns.RAT:            {70},
		columns.OAT:            {60},
		columns.SupplyVFDSpeed: {0},
	})
	fc2, _ := NewFC2(defaults())
	f, err := fc2.Apply(view)
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, f.Values)
}

func TestFC4_Hunting(t *testing.T) {
	// the first hour of 5-minute samples alternates heating and mechanical cooling
	var heat, cool, econ []float64
	for i := 0; i < 24; i++ {
		if i%2 == 0 {
			heat, cool = append(heat, 0.5), append(cool, 0)
		} else {
			heat, cool = append(heat, 0), append(cool, 0.5)
		}
		econ = append(econ, 0.2)
	}
	// the second hour stays in mechanical cooling
	for i := 12; i < 24; i++ {
		heat[i], cool[i] = 0, 0.5
	}
	view := viewOf(t, 5*time.Minute, map[string][]float64{
		columns.HeatingSignal:    heat,
		columns.CoolingSignal:    cool,
		columns.EconomizerSignal: econ,
		columns.SupplyVFDSpeed:   repeat(0.7, 24),
	})

	r, err := NewFC4(ThresholdsFromMap(map[string]any{KeyDeltaOSMax: 5}))
	require.NoError(t, err)
	f, err := r.Apply(view)
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		assert.Equal(t, 1.0, f.Values[i], "row %d", i)
	}
	for i := 12; i < 24; i++ {
		assert.Equal(t, 0.0, f.Values[i], "row %d", i)
	}
	assert.Equal(t, 6.0, f.Diagnostics["heating_entries"][0])
	assert.Equal(t, 1.0, f.Diagnostics["mech_only_entries"][12])
}

func TestFC4_IgnoresRollingWindow(t *testing.T) {
	r, err := NewFC4(ThresholdsFromMap(map[string]any{KeyRollingWindowSize: 5}))
	require.NoError(t, err)
	assert.Equal(t, 1, r.window)
}

func TestFC5_HeatingNoRise(t *testing.T) {
	view := viewOf(t, time.Minute, map[string][]float64{
		columns.MAT:            {55, 55, 55},
		columns.SAT:            {50, 70, 50},
		columns.HeatingSignal:  {0.6, 0.6, 0},
		columns.SupplyVFDSpeed: {0.5, 0.5, 0.5},
	})
	r, _ := NewFC5(defaults())
	f, err := r.Apply(view)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0}, f.Values)
}

func TestPercentOA(t *testing.T) {
	assert.InDelta(t, 0.6, PercentOA(60, 75, 50), 1e-12)
	assert.Equal(t, 0.0, PercentOA(80, 75, 50))
	assert.True(t, math.IsNaN(PercentOA(60, 70, 70)))
}

func TestFC6_AirflowOffDesign(t *testing.T) {
	view := viewOf(t, time.Minute, map[string][]float64{
		columns.SupplyAirVolume:  {10000, 10000, 10000, 10000, 0},
		columns.MAT:              {60, 72, 60, 60, 60},
		columns.RAT:              {75, 75, 75, 75, 75},
		columns.OAT:              {50, 50, 70, 50, 50},
		columns.SupplyVFDSpeed:   {0.6, 0.6, 0.6, 0.6, 0.6},
		columns.EconomizerSignal: {0.2, 0.2, 0.2, 0.5, 0.2},
		columns.HeatingSignal:    {0.4, 0.4, 0.4, 0.4, 0.4},
		columns.CoolingSignal:    {0, 0, 0, 0, 0},
	})
	r, err := NewFC6(defaults())
	require.NoError(t, err)
	f, err := r.Apply(view)
	require.NoError(t, err)

	// 0.6 vs 0.25 design minimum
	assert.Equal(t, 1.0, f.Values[0])
	// 0.12 vs 0.25
	assert.Equal(t, 0.0, f.Values[1])
	// |rat - oat| under the deadband
	assert.Equal(t, 0.0, f.Values[2])
	// damper above minimum
	assert.Equal(t, 0.0, f.Values[3])
	// no airflow reading to derive the design fraction from
	assert.True(t, math.IsNaN(f.Values[4]))
	assert.InDelta(t, 0.25, f.Diagnostics["percent_oa_min"][0], 1e-12)
}

func TestFC7_FullHeatBelowSetpoint(t *testing.T) {
	view := viewOf(t, time.Minute, map[string][]float64{
		columns.SAT:            {50, 50, 56},
		columns.SATSetpoint:    {55, 55, 55},
		columns.HeatingSignal:  {0.99, 0.98, 1},
		columns.SupplyVFDSpeed: {0.5, 0.5, 0.5},
	})
	r, _ := NewFC7(defaults())
	f, err := r.Apply(view)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0}, f.Values)
}

func TestEconomizerRules(t *testing.T) {
	tests := []struct {
		name string
		rule func() (FaultRule, error)
		cols map[string][]float64
		want []float64
	}{
		{
			name: "fc8 free cooling mismatch",
			rule: func() (FaultRule, error) { return NewFC8(defaults()) },
			cols: map[string][]float64{
				columns.MAT:              {60, 60, 60},
				columns.SAT:              {70, 62, 70},
				columns.EconomizerSignal: {0.6, 0.6, 0.6},
				columns.CoolingSignal:    {0, 0, 0.5},
			},
			want: []float64{1, 0, 0},
		},
		{
			name: "fc9 outdoor too warm",
			rule: func() (FaultRule, error) { return NewFC9(defaults()) },
			cols: map[string][]float64{
				columns.OAT:              {70, 55},
				columns.SATSetpoint:      {55, 55},
				columns.EconomizerSignal: {0.6, 0.6},
				columns.CoolingSignal:    {0, 0},
			},
			want: []float64{1, 0},
		},
		{
			name: "fc10 mixed differs from outdoor at full damper",
			rule: func() (FaultRule, error) { return NewFC10(defaults()) },
			cols: map[string][]float64{
				columns.OAT:              {80, 80, 80},
				columns.MAT:              {70, 79, 70},
				columns.EconomizerSignal: {0.95, 0.95, 0.85},
				columns.CoolingSignal:    {0.4, 0.4, 0.4},
			},
			want: []float64{1, 0, 0},
		},
		{
			name: "fc11 outdoor too cold",
			rule: func() (FaultRule, error) { return NewFC11(defaults()) },
			cols: map[string][]float64{
				columns.OAT:              {40, 60},
				columns.SATSetpoint:      {55, 55},
				columns.EconomizerSignal: {1, 1},
				columns.CoolingSignal:    {0.4, 0.4},
			},
			want: []float64{1, 0},
		},
		{
			name: "fc12 supply warmer than mixed",
			rule: func() (FaultRule, error) { return NewFC12(defaults()) },
			cols: map[string][]float64{
				columns.SAT:              {70, 55, 70},
				columns.MAT:              {60, 60, 60},
				columns.EconomizerSignal: {0.2, 0.2, 0.5},
				columns.CoolingSignal:    {0.5, 0.5, 0.5},
			},
			want: []float64{1, 0, 0},
		},
		{
			name: "fc13 supply above setpoint",
			rule: func() (FaultRule, error) { return NewFC13(defaults()) },
			cols: map[string][]float64{
				columns.SAT:              {60, 56, 60},
				columns.SATSetpoint:      {55, 55, 55},
				columns.EconomizerSignal: {1, 1, 1},
				columns.CoolingSignal:    {0.5, 0.5, 0},
			},
			want: []float64{1, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := tt.rule()
			require.NoError(t, err)
			f, err := r.Apply(viewOf(t, time.Minute, tt.cols))
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Values)
		})
	}
}

func TestCoilRules(t *testing.T) {
	fc14, err := NewFC14(defaults())
	require.NoError(t, err)
	f, err := fc14.Apply(viewOf(t, time.Minute, map[string][]float64{
		columns.ClgCoilEnterTemp: {70, 70, 70},
		columns.ClgCoilLeaveTemp: {60, 69, 60},
		columns.EconomizerSignal: {0.6, 0.6, 0.2},
		columns.CoolingSignal:    {0, 0, 0.5},
		columns.HeatingSignal:    {0, 0, 0},
		columns.SupplyVFDSpeed:   {0.5, 0.5, 0.5},
	}))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0}, f.Values)

	fc15, err := NewFC15(defaults())
	require.NoError(t, err)
	f, err = fc15.Apply(viewOf(t, time.Minute, map[string][]float64{
		columns.HtgCoilEnterTemp: {55, 55, 55},
		columns.HtgCoilLeaveTemp: {65, 56, 65},
		columns.EconomizerSignal: {0.2, 0.2, 0.5},
		columns.CoolingSignal:    {0.5, 0.5, 0.5},
	}))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0}, f.Values)
}

func TestFC16_Effectiveness(t *testing.T) {
	assert.InDelta(t, 0.75, Effectiveness(20, 50, 60), 1e-12)
	assert.True(t, math.IsNaN(Effectiveness(60, 50, 60)))

	r, err := NewFC16(defaults())
	require.NoError(t, err)
	f, err := r.Apply(viewOf(t, time.Minute, map[string][]float64{
		columns.ERVOATEnter:    {20, 20, 90, 50},
		columns.ERVOATLeave:    {30, 50, 80, 55},
		columns.ERVEATEnter:    {60, 60, 72, 70},
		columns.SupplyVFDSpeed: {0.5, 0.5, 0.5, 0.5},
	}))
	require.NoError(t, err)
	// 0.25 in heating, 0.75 in heating, 0.56 in cooling, neither season
	assert.Equal(t, []float64{1, 0, 0, 0}, f.Values)
}

func TestApply_NotNumericAndUnresolved(t *testing.T) {
	idx := []time.Time{start}
	f, err := frame.New(idx,
		frame.Series{Name: "MA", Values: []float64{math.NaN()}, Invalid: 1},
		frame.Series{Name: "RA", Values: []float64{70}},
		frame.Series{Name: "OA", Values: []float64{50}},
		frame.Series{Name: "SF", Values: []float64{0.5}},
	)
	require.NoError(t, err)

	fc2, _ := NewFC2(defaults())
	_, err = fc2.Apply(frame.NewView(f, columns.ColumnMap{
		columns.MAT: "MA", columns.RAT: "RA", columns.OAT: "OA", columns.SupplyVFDSpeed: "SF",
	}))
	assert.True(t, cerrors.Is(err, cerrors.ErrNotNumeric))

	_, err = fc2.Apply(frame.NewView(f, columns.ColumnMap{columns.MAT: "MA"}))
	assert.True(t, cerrors.Is(err, cerrors.ErrUnresolvedRole))
	assert.Contains(t, err.Error(), columns.OAT)
}

func TestApply_PercentSignalRejected(t *testing.T) {
	fc2, _ := NewFC2(defaults())
	_, err := fc2.Apply(viewOf(t, time.Minute, map[string][]float64{
		columns.MAT:            {50},
		columns.RAT:            {70},
		columns.OAT:            {20},
		columns.SupplyVFDSpeed: {85},
	}))
	assert.True(t, cerrors.Is(err, cerrors.ErrOutOfUnitRange))
}

func TestConsecutive(t *testing.T) {
	nan := math.NaN()
	out := consecutive([]float64{1, 1, 1, 0, 1, 1, 1, nan, 1, 1, 1}, 3)
	want := []float64{0, 0, 1, 0, 0, 0, 1, nan, nan, nan, 1}
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(out[i]), "row %d", i)
			continue
		}
		assert.Equal(t, want[i], out[i], "row %d", i)
	}

	in := []float64{1, 0, 1}
	assert.Equal(t, in, consecutive(in, 1))
}

func TestRollingWindow_AppliedToFlag(t *testing.T) {
	r, err := NewFC13(ThresholdsFromMap(map[string]any{KeyRollingWindowSize: 2}))
	require.NoError(t, err)
	f, err := r.Apply(viewOf(t, time.Minute, map[string][]float64{
		columns.SAT:              {60, 60, 50, 60, 60},
		columns.SATSetpoint:      {55, 55, 55, 55, 55},
		columns.EconomizerSignal: {1, 1, 1, 1, 1},
		columns.CoolingSignal:    {0.5, 0.5, 0.5, 0.5, 0.5},
	}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0, 0, 1}, f.Values)
	assert.Equal(t, []float64{1, 1, 0, 1, 1}, f.Diagnostics["combined_check"])
}

func TestApply_Deterministic(t *testing.T) {
	cols := map[string][]float64{
		columns.MAT:            {50, 30, 95, math.NaN()},
		columns.RAT:            {70, 70, 70, 70},
		columns.OAT:            {20, 60, 60, 60},
		columns.SupplyVFDSpeed: {0.5, 0.5, 0.5, 0.5},
	}
	view := viewOf(t, time.Minute, cols)
	fc3, _ := NewFC3(defaults())
	a, _ := fc3.Apply(view)
	b, _ := fc3.Apply(view)
	for i := range a.Values {
		assert.Equal(t, math.Float64bits(a.Values[i]), math.Float64bits(b.Values[i]))
	}
}

func TestFlagSeries_MarshalJSON(t *testing.T) {
	f := FlagSeries{
		RuleID: "fc1",
		Name:   "fc1_flag",
		Index:  []time.Time{start, start.Add(time.Minute)},
		Values: []float64{1, math.NaN()},
	}
	b, err := json.Marshal(&f)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"values":[1,null]`)
	assert.NotContains(t, string(b), "diagnostics")
}
