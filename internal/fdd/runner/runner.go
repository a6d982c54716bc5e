package runner

import (
	"context"
	"math"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/okieraised/ahu-fdd/internal/cerrors"
	"github.com/okieraised/ahu-fdd/internal/fdd/columns"
	"github.com/okieraised/ahu-fdd/internal/fdd/frame"
	"github.com/okieraised/ahu-fdd/internal/fdd/rules"
	"github.com/okieraised/ahu-fdd/internal/fdd/summary"
	"github.com/okieraised/ahu-fdd/internal/infrastructure/log"
	"github.com/okieraised/ahu-fdd/internal/infrastructure/metrics"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ConstantSATSetpointColumn names the column synthesized from a fixed supply
// air temperature setpoint.
const ConstantSATSetpointColumn = "satsp_constant"

type Runner struct {
	registry *rules.Registry
	logger   *log.Logger
	tracer   trace.Tracer
	metrics  *metrics.Recorder
}

type Option func(*Runner)

func WithLogger(l *log.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Runner) { r.metrics = m }
}

func New(registry *rules.Registry, opts ...Option) *Runner {
	r := &Runner{registry: registry}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.Default().Named("fdd-runner")
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer("fdd-runner")
	}
	return r
}

// Run evaluates the selected rules against f. Rule failures never abort the
// run: they come back as skipped outcomes. Only a cancelled context or an
// unusable frame returns an error.
func (r *Runner) Run(ctx context.Context, f *frame.Frame, cm columns.ColumnMap, opts Options) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f == nil || f.Len() == 0 {
		return nil, cerrors.ErrInvalidDataset.WithMessage("dataset has no rows")
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.MotorEpsilon <= 0 {
		opts.MotorEpsilon = summary.DefaultMotorEpsilon
	}

	ctx, span := r.tracer.Start(ctx, "fdd-run", trace.WithAttributes(
		attribute.String("run_id", opts.RunID),
		attribute.String("site_id", opts.SiteID),
	))
	defer span.End()

	lg := r.logger.ForRun(opts.RunID, opts.SiteID)
	report := &Report{RunID: opts.RunID, SiteID: opts.SiteID, StartedAt: time.Now().UTC()}

	f, cm, err := r.prepare(f, cm, opts, report)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	report.Rows = f.Len()

	view := frame.NewView(f, cm)
	var motor []float64
	if s, ok := view.Role(columns.SupplyVFDSpeed); ok {
		motor = s.Values
	}

	selected := r.registry.RunSelected(opts.Selected, opts.Excluded)
	outcomes := make([]Outcome, len(selected))

	g := new(errgroup.Group)
	g.SetLimit(opts.Workers)
	for i, rule := range selected {
		if missing := view.Missing(rule.RequiredRoles()...); len(missing) > 0 {
			outcomes[i] = skipped(rule.ID(), cerrors.UnresolvedRole(missing...), 0)
			continue
		}
		g.Go(func() error {
			outcomes[i] = r.evaluate(ctx, rule, view, motor, opts)
			return nil
		})
	}
	_ = g.Wait()

	flags := make([]frame.Series, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Flag != nil {
			flags = append(flags, o.Flag.Series())
		}
		if o.Status == StatusSkipped {
			lg.Warn("fault rule skipped",
				zap.String("rule_id", o.RuleID),
				zap.String("code", o.Code),
				zap.String("reason", o.Reason),
			)
		}
		r.metrics.ObserveRule(o.RuleID, string(o.Status), o.Duration, o.flagged())
	}
	merged, err := f.With(flags...)
	if err != nil {
		return nil, errors.Wrap(err, "merge flag columns")
	}

	report.Frame = merged
	report.Outcomes = outcomes
	report.FinishedAt = time.Now().UTC()
	r.metrics.ObserveRun(opts.SiteID, report.Rows)

	span.SetAttributes(
		attribute.Int("rows", report.Rows),
		attribute.Int("evaluated", len(report.Evaluated())),
		attribute.Int("skipped", len(report.Skipped())),
	)
	lg.Info("fault detection run finished",
		zap.Int("rows", report.Rows),
		zap.Bool("resampled", report.Resampled),
		zap.Int("evaluated", len(report.Evaluated())),
		zap.Int("skipped", len(report.Skipped())),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

// prepare applies the constant setpoint, NaN cleaning and resampling options.
func (r *Runner) prepare(f *frame.Frame, cm columns.ColumnMap, opts Options, report *Report) (*frame.Frame, columns.ColumnMap, error) {
	cm = columns.ColumnMap{}.Merge(cm)

	if opts.ConstantSATSetpoint != nil {
		col, ok := columns.Resolve(columns.SATSetpoint, cm)
		if !ok || !f.Has(col) {
			vals := make([]float64, f.Len())
			for i := range vals {
				vals[i] = *opts.ConstantSATSetpoint
			}
			var err error
			f, err = f.With(frame.Series{Name: ConstantSATSetpointColumn, Values: vals})
			if err != nil {
				return nil, nil, errors.Wrap(err, "synthesize constant supply air setpoint")
			}
			cm[columns.SATSetpoint] = ConstantSATSetpointColumn
		}
	}

	if opts.DropNaN {
		mapped := make([]string, 0, len(cm))
		for _, col := range cm {
			if f.Has(col) {
				mapped = append(mapped, col)
			}
		}
		before := f.Len()
		f = f.DropNaN(mapped...)
		report.DroppedRows = before - f.Len()
		if f.Len() == 0 {
			return nil, nil, cerrors.ErrInvalidDataset.WithMessage("no rows left after dropping missing values")
		}
	}

	if rs := opts.Resample; rs.Enabled && rs.Window > 0 && f.Len() > 1 && f.MedianInterval() <= rs.Threshold {
		f = f.RollingMean(rs.Window)
		report.Resampled = true
	}
	return f, cm, nil
}

func (r *Runner) evaluate(ctx context.Context, rule rules.FaultRule, view frame.View, motor []float64, opts Options) (out Outcome) {
	_, span := r.tracer.Start(ctx, "fdd-rule", trace.WithAttributes(attribute.String("rule_id", rule.ID())))
	defer span.End()

	started := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err := cerrors.ErrGenericInternalServer.WithMessage("rule %s panicked: %v", rule.ID(), rec)
			out = skipped(rule.ID(), err, time.Since(started))
		}
		if out.Status == StatusSkipped {
			span.SetStatus(codes.Error, out.Reason)
		}
	}()

	flag, err := rule.Apply(view)
	if err != nil {
		span.RecordError(err)
		return skipped(rule.ID(), err, time.Since(started))
	}

	sum := summary.Summarize(flag.Index, flag.Values,
		summary.WithMotor(motor),
		summary.WithMotorEpsilon(opts.MotorEpsilon),
	)
	inputs := make(map[string][]float64, len(rule.RequiredRoles()))
	for _, role := range rule.RequiredRoles() {
		if s, ok := view.Role(role); ok {
			inputs[role] = s.Values
		}
	}
	means := make(map[string]float64, len(inputs))
	for role, m := range summary.FlagTrueMeans(flag.Values, inputs) {
		if !math.IsNaN(m) {
			means[role] = m
		}
	}
	if !opts.Troubleshoot {
		flag.Diagnostics = nil
	}
	span.SetAttributes(attribute.Int("flagged", flag.Flagged()))

	return Outcome{
		RuleID:        rule.ID(),
		Status:        StatusEvaluated,
		Duration:      time.Since(started),
		Flag:          flag,
		Summary:       &sum,
		FlagTrueMeans: means,
	}
}

func skipped(id string, err error, d time.Duration) Outcome {
	return Outcome{
		RuleID:   id,
		Status:   StatusSkipped,
		Code:     cerrors.CodeOf(err),
		Reason:   cerrors.MessageOf(err),
		Duration: d,
	}
}
