package runner

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/okieraised/ahu-fdd/internal/cerrors"
	"github.com/okieraised/ahu-fdd/internal/fdd/columns"
	"github.com/okieraised/ahu-fdd/internal/fdd/frame"
	"github.com/okieraised/ahu-fdd/internal/fdd/rules"
	"github.com/okieraised/ahu-fdd/internal/infrastructure/log"
	"github.com/okieraised/ahu-fdd/internal/infrastructure/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

// mixingFrame has what FC2, FC3 and FC1 need and nothing else.
func mixingFrame(t *testing.T, step time.Duration) (*frame.Frame, columns.ColumnMap) {
	t.Helper()
	n := 12
	idx := make([]time.Time, n)
	mat, rat, oat, vfd, dsp, dspSP := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	for i := range idx {
		idx[i] = t0.Add(time.Duration(i) * step)
		mat[i], rat[i], oat[i], vfd[i] = 55, 72, 60, 0.98
		dsp[i], dspSP[i] = 0.5, 1.0
	}
	mat[3] = 40
	f, err := frame.New(idx,
		frame.Series{Name: "MA-T", Values: mat},
		frame.Series{Name: "RA-T", Values: rat},
		frame.Series{Name: "OA-T", Values: oat},
		frame.Series{Name: "SF-O", Values: vfd},
		frame.Series{Name: "DSP", Values: dsp},
		frame.Series{Name: "DSP-SP", Values: dspSP},
	)
	require.NoError(t, err)
	return f, columns.ColumnMap{
		columns.MAT:                "MA-T",
		columns.RAT:                "RA-T",
		columns.OAT:                "OA-T",
		columns.SupplyVFDSpeed:     "SF-O",
		columns.DuctStatic:         "DSP",
		columns.DuctStaticSetpoint: "DSP-SP",
	}
}

func newRunner(t *testing.T, th map[string]any, opts ...Option) *Runner {
	t.Helper()
	reg, err := rules.NewRegistry(rules.ThresholdsFromMap(th))
	require.NoError(t, err)
	opts = append([]Option{WithLogger(log.NewNop())}, opts...)
	return New(reg, opts...)
}

func TestRun_SkipsUnresolvedRulesOnly(t *testing.T) {
	f, cm := mixingFrame(t, 15*time.Minute)
	r := newRunner(t, nil)

	report, err := r.Run(context.Background(), f, cm, Options{RunID: "run-1", SiteID: "site-a"})
	require.NoError(t, err)

	assert.Equal(t, "run-1", report.RunID)
	assert.Len(t, report.Outcomes, 16)
	assert.Len(t, report.Evaluated(), 3)

	fc2, ok := report.Outcome("FC2")
	require.True(t, ok)
	assert.Equal(t, StatusEvaluated, fc2.Status)
	assert.Equal(t, 1, fc2.Flag.Flagged())
	assert.Equal(t, 1, fc2.Summary.FlaggedSamples)
	assert.InDelta(t, 40.0, fc2.FlagTrueMeans[columns.MAT], 1e-9)

	fc1, _ := report.Outcome("fc1")
	assert.Equal(t, 12, fc1.Flag.Flagged())

	fc6, _ := report.Outcome("fc6")
	assert.Equal(t, StatusSkipped, fc6.Status)
	assert.Equal(t, cerrors.ErrUnresolvedRole.Code, fc6.Code)
	assert.Contains(t, fc6.Reason, columns.SupplyAirVolume)
	assert.Nil(t, fc6.Flag)

	assert.True(t, report.Frame.Has("fc2_flag"))
	assert.False(t, report.Frame.Has("fc6_flag"))
	assert.False(t, report.Resampled)
	assert.Nil(t, fc2.Flag.Diagnostics)
}

func TestRun_ValidationFailureIsIsolated(t *testing.T) {
	f, cm := mixingFrame(t, 15*time.Minute)
	vfd, _ := f.Column("SF-O")
	vfd.Values[0] = 98
	f, err := f.With(vfd)
	require.NoError(t, err)

	report, err := newRunner(t, nil).Run(context.Background(), f, cm, Options{Selected: []string{"1", "2", "3"}})
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 3)
	for _, o := range report.Outcomes {
		assert.Equal(t, StatusSkipped, o.Status, o.RuleID)
		assert.Equal(t, cerrors.ErrOutOfUnitRange.Code, o.Code)
	}
}

func TestRun_ExcludedAndTroubleshoot(t *testing.T) {
	f, cm := mixingFrame(t, 15*time.Minute)
	report, err := newRunner(t, nil).Run(context.Background(), f, cm, Options{
		Excluded:     []string{"fc1", "FC3"},
		Troubleshoot: true,
	})
	require.NoError(t, err)

	_, ok := report.Outcome("fc1")
	assert.False(t, ok)
	fc2, ok := report.Outcome("fc2")
	require.True(t, ok)
	assert.Contains(t, fc2.Flag.Diagnostics, "combined_check")
	assert.NotEmpty(t, report.RunID)
}

func TestRun_Resample(t *testing.T) {
	fast, cm := mixingFrame(t, 30*time.Second)
	opts := DefaultOptions()
	opts.Selected = []string{"fc2"}

	report, err := newRunner(t, nil).Run(context.Background(), fast, cm, opts)
	require.NoError(t, err)
	assert.True(t, report.Resampled)
	mat, _ := report.Frame.Column("MA-T")
	assert.Equal(t, 55.0, mat.Values[0])
	assert.Less(t, mat.Values[3], 55.0)
	assert.Greater(t, mat.Values[3], 40.0)

	slow, cm := mixingFrame(t, 5*time.Minute)
	report, err = newRunner(t, nil).Run(context.Background(), slow, cm, opts)
	require.NoError(t, err)
	assert.False(t, report.Resampled)
	mat, _ = report.Frame.Column("MA-T")
	assert.Equal(t, 40.0, mat.Values[3])
}

func TestRun_ResampleKeepsMinOAGate(t *testing.T) {
	n := 1800
	idx := make([]time.Time, n)
	sat, satsp, clg, econ := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	for i := range idx {
		idx[i] = t0.Add(time.Duration(i) * time.Second)
		sat[i], satsp[i], clg[i], econ[i] = 70, 55, 0.5, 0.2
	}
	f, err := frame.New(idx,
		frame.Series{Name: "SA-T", Values: sat},
		frame.Series{Name: "SA-SP", Values: satsp},
		frame.Series{Name: "CLG", Values: clg},
		frame.Series{Name: "ECON", Values: econ},
	)
	require.NoError(t, err)
	cm := columns.ColumnMap{
		columns.SAT:              "SA-T",
		columns.SATSetpoint:      "SA-SP",
		columns.CoolingSignal:    "CLG",
		columns.EconomizerSignal: "ECON",
	}

	raw := DefaultOptions()
	raw.Selected = []string{"fc13"}
	raw.Resample.Enabled = false
	smoothed := DefaultOptions()
	smoothed.Selected = []string{"fc13"}

	r := newRunner(t, nil)
	rawReport, err := r.Run(context.Background(), f, cm, raw)
	require.NoError(t, err)
	smoothReport, err := r.Run(context.Background(), f, cm, smoothed)
	require.NoError(t, err)
	require.True(t, smoothReport.Resampled)

	dpr, _ := smoothReport.Frame.Column("ECON")
	for i, v := range dpr.Values {
		require.Equal(t, 0.2, v, "row %d", i)
	}
	rawFC13, ok := rawReport.Outcome("fc13")
	require.True(t, ok)
	smoothFC13, ok := smoothReport.Outcome("fc13")
	require.True(t, ok)
	require.Equal(t, StatusEvaluated, smoothFC13.Status, smoothFC13.Reason)
	assert.Equal(t, n, rawFC13.Flag.Flagged())
	assert.Equal(t, rawFC13.Flag.Flagged(), smoothFC13.Flag.Flagged())
}

func TestRun_ConstantSATSetpoint(t *testing.T) {
	n := 4
	idx := make([]time.Time, n)
	for i := range idx {
		idx[i] = t0.Add(time.Duration(i) * 15 * time.Minute)
	}
	f, err := frame.New(idx,
		frame.Series{Name: "SA-T", Values: []float64{50, 50, 60, 60}},
		frame.Series{Name: "HTG", Values: []float64{1, 1, 1, 0}},
		frame.Series{Name: "SF", Values: []float64{0.5, 0.5, 0.5, 0.5}},
	)
	require.NoError(t, err)
	cm := columns.ColumnMap{columns.SAT: "SA-T", columns.HeatingSignal: "HTG", columns.SupplyVFDSpeed: "SF"}

	sp := 55.0
	report, err := newRunner(t, nil).Run(context.Background(), f, cm, Options{
		Selected:            []string{"fc7"},
		ConstantSATSetpoint: &sp,
	})
	require.NoError(t, err)
	fc7, _ := report.Outcome("fc7")
	require.Equal(t, StatusEvaluated, fc7.Status, fc7.Reason)
	assert.Equal(t, []float64{1, 1, 0, 0}, fc7.Flag.Values)
	assert.True(t, report.Frame.Has(ConstantSATSetpointColumn))
}

func TestRun_DropNaN(t *testing.T) {
	f, cm := mixingFrame(t, 15*time.Minute)
	oat, _ := f.Column("OA-T")
	oat.Values[5] = math.NaN()
	f, _ = f.With(oat)

	report, err := newRunner(t, nil).Run(context.Background(), f, cm, Options{Selected: []string{"fc2"}, DropNaN: true})
	require.NoError(t, err)
	assert.Equal(t, 11, report.Rows)
	assert.Equal(t, 1, report.DroppedRows)
}

func TestRun_Deterministic(t *testing.T) {
	f, cm := mixingFrame(t, 15*time.Minute)
	r := newRunner(t, nil)
	a, err := r.Run(context.Background(), f, cm, Options{Workers: 4})
	require.NoError(t, err)
	b, err := r.Run(context.Background(), f, cm, Options{Workers: 1})
	require.NoError(t, err)

	for i := range a.Outcomes {
		assert.Equal(t, a.Outcomes[i].RuleID, b.Outcomes[i].RuleID)
		if a.Outcomes[i].Flag == nil {
			assert.Nil(t, b.Outcomes[i].Flag)
			continue
		}
		for j, v := range a.Outcomes[i].Flag.Values {
			assert.Equal(t, math.Float64bits(v), math.Float64bits(b.Outcomes[i].Flag.Values[j]))
		}
	}
}

func TestRun_CancelledContext(t *testing.T) {
	f, cm := mixingFrame(t, 15*time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newRunner(t, nil).Run(ctx, f, cm, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_EmptyFrame(t *testing.T) {
	f, err := frame.New(nil)
	require.NoError(t, err)
	_, err = newRunner(t, nil).Run(context.Background(), f, nil, Options{})
	assert.True(t, cerrors.Is(err, cerrors.ErrInvalidDataset))
}

func TestRun_RecordsMetrics(t *testing.T) {
	m := metrics.New()
	f, cm := mixingFrame(t, 15*time.Minute)
	_, err := newRunner(t, nil, WithMetrics(m)).Run(context.Background(), f, cm, Options{SiteID: "site-a"})
	require.NoError(t, err)

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)
	found := false
	for _, fam := range families {
		if fam.GetName() == "fdd_runs_total" {
			found = true
			assert.Equal(t, 1.0, fam.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}

func TestReport_WithoutSeries(t *testing.T) {
	f, cm := mixingFrame(t, 15*time.Minute)
	report, err := newRunner(t, nil).Run(context.Background(), f, cm, Options{Selected: []string{"fc2"}})
	require.NoError(t, err)

	slim := report.WithoutSeries()
	assert.Nil(t, slim.Outcomes[0].Flag)
	assert.NotNil(t, slim.Outcomes[0].Summary)
	assert.NotNil(t, report.Outcomes[0].Flag)
}
