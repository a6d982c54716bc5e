package restful

import (
	"context"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/ahu-fdd/internal/api_response"
	"github.com/okieraised/ahu-fdd/internal/cerrors"
	"github.com/okieraised/ahu-fdd/internal/constants"
	"github.com/okieraised/ahu-fdd/internal/fdd/columns"
	"github.com/okieraised/ahu-fdd/internal/fdd/frame"
	"github.com/okieraised/ahu-fdd/internal/fdd/rules"
	"github.com/okieraised/ahu-fdd/internal/fdd/runner"
	"github.com/okieraised/ahu-fdd/internal/infrastructure/log"
	"github.com/okieraised/ahu-fdd/internal/ingest"
	"github.com/okieraised/ahu-fdd/internal/sink"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type IFDDService interface {
	Run(ctx *gin.Context, input *RunInput) (*api_response.BaseOutput, *cerrors.AppError)
	Rules(ctx *gin.Context, input *RulesInput) (*api_response.BaseOutput, *cerrors.AppError)
}

type FDDService struct {
	logger    *log.Logger
	registry  *rules.Registry
	runner    *runner.Runner
	columns   columns.ColumnMap
	defaults  runner.Options
	publisher sink.Publisher
	objects   ingest.ObjectGetter
	ingestOps []ingest.Option
}

func WithFDDRegistry(r *rules.Registry) func(*FDDService) {
	return func(svc *FDDService) { svc.registry = r }
}

func WithFDDRunner(r *runner.Runner) func(*FDDService) {
	return func(svc *FDDService) { svc.runner = r }
}

// WithFDDColumns sets the site column map used when a request brings none.
func WithFDDColumns(cm columns.ColumnMap) func(*FDDService) {
	return func(svc *FDDService) { svc.columns = cm }
}

// WithFDDDefaults sets the run options requests start from.
func WithFDDDefaults(opts runner.Options) func(*FDDService) {
	return func(svc *FDDService) { svc.defaults = opts }
}

func WithFDDPublisher(p sink.Publisher) func(*FDDService) {
	return func(svc *FDDService) { svc.publisher = p }
}

func WithFDDObjectStore(g ingest.ObjectGetter) func(*FDDService) {
	return func(svc *FDDService) { svc.objects = g }
}

func WithFDDIngestOptions(opts ...ingest.Option) func(*FDDService) {
	return func(svc *FDDService) { svc.ingestOps = opts }
}

func NewFDDService(options ...func(*FDDService)) *FDDService {
	svc := &FDDService{defaults: runner.DefaultOptions()}
	for _, opt := range options {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = log.MustNewECSLogger()
	}
	if svc.registry == nil {
		reg, err := rules.NewRegistry(rules.ThresholdsFromMap(nil))
		if err != nil {
			panic(err)
		}
		svc.registry = reg
	}
	if svc.runner == nil {
		svc.runner = runner.New(svc.registry, runner.WithLogger(svc.logger.Named("fdd-runner")))
	}
	return svc
}

// S3Object points at a trend log in object storage.
type S3Object struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

type RunInput struct {
	TracerCtx context.Context
	Tracer    trace.Tracer

	// Exactly one of Upload and Object is set.
	Upload io.Reader
	Object *S3Object

	SiteID        string
	Rules         []string
	Exclude       []string
	Troubleshoot  *bool
	IncludeSeries bool
	Columns       map[string]string
}

type RulesInput struct {
	TracerCtx context.Context
	Tracer    trace.Tracer
	RuleID    string
}

type RunOutput struct {
	Report *runner.Report `json:"report"`
	Ingest ingest.Stats   `json:"ingest"`
}

func (svc *FDDService) Run(ctx *gin.Context, input *RunInput) (*api_response.BaseOutput, *cerrors.AppError) {
	rootCtx, span := input.Tracer.Start(input.TracerCtx, "fdd-run-handler")
	defer span.End()

	lg := svc.logger.With(
		zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
		zap.String("site_id", input.SiteID),
	)

	_, cSpan := input.Tracer.Start(rootCtx, "load-dataset")
	f, stats, err := svc.load(rootCtx, input)
	cSpan.End()
	if err != nil {
		lg.Error("failed to load dataset", zap.Error(err))
		return nil, toAppError(err)
	}

	cm, ignored := columns.FromConfig(toAny(input.Columns))
	if len(ignored) > 0 {
		lg.Warn("ignoring unknown column roles", zap.Strings("roles", ignored))
	}
	cm = columns.ColumnMap{}.Merge(svc.columns).Merge(cm)

	opts := svc.defaults
	opts.RunID = ctx.GetString(constants.APIFieldRequestID)
	if input.SiteID != "" {
		opts.SiteID = input.SiteID
	}
	opts.Selected = input.Rules
	opts.Excluded = append(append([]string{}, svc.defaults.Excluded...), input.Exclude...)
	if input.Troubleshoot != nil {
		opts.Troubleshoot = *input.Troubleshoot
	}

	report, err := svc.Execute(rootCtx, f, cm, opts)
	if err != nil {
		lg.Error("fault detection run failed", zap.Error(err))
		return nil, toAppError(err)
	}
	span.SetAttributes(attribute.Int("rows", report.Rows))

	out := RunOutput{Report: report, Ingest: stats}
	if !input.IncludeSeries {
		out.Report = report.WithoutSeries()
	}
	return &api_response.BaseOutput{
		Code:    cerrors.OK.Code,
		Message: cerrors.OK.Message,
		Data:    out,
		Count:   len(report.Outcomes),
	}, nil
}

// Execute runs the rules on f and hands the report to the publisher. A
// publish failure is logged and does not fail the run.
func (svc *FDDService) Execute(ctx context.Context, f *frame.Frame, cm columns.ColumnMap, opts runner.Options) (*runner.Report, error) {
	report, err := svc.runner.Run(ctx, f, cm, opts)
	if err != nil {
		return nil, err
	}
	if svc.publisher != nil {
		if pErr := svc.publisher.Publish(ctx, report); pErr != nil {
			svc.logger.Error("failed to publish report",
				zap.String("run_id", report.RunID),
				zap.Error(pErr),
			)
		}
	}
	return report, nil
}

func (svc *FDDService) Rules(ctx *gin.Context, input *RulesInput) (*api_response.BaseOutput, *cerrors.AppError) {
	_, span := input.Tracer.Start(input.TracerCtx, "fdd-rules-handler")
	defer span.End()

	if input.RuleID == "" {
		catalogue := svc.registry.Describe()
		return &api_response.BaseOutput{
			Code:    cerrors.OK.Code,
			Message: cerrors.OK.Message,
			Data:    catalogue,
			Count:   len(catalogue),
		}, nil
	}

	rule, err := svc.registry.Get(input.RuleID)
	if err != nil {
		return nil, toAppError(err)
	}
	var data any = rules.Description{ID: rule.ID(), Roles: rule.RequiredRoles()}
	if d, ok := rule.(rules.Describer); ok {
		data = d.Describe()
	}
	return &api_response.BaseOutput{
		Code:    cerrors.OK.Code,
		Message: cerrors.OK.Message,
		Data:    data,
	}, nil
}

func (svc *FDDService) load(ctx context.Context, input *RunInput) (*frame.Frame, ingest.Stats, error) {
	switch {
	case input.Upload != nil:
		return ingest.ReadCSV(input.Upload, svc.ingestOps...)
	case input.Object != nil:
		if svc.objects == nil {
			return nil, ingest.Stats{}, cerrors.ErrGenericBadRequest.WithMessage("object storage is not enabled")
		}
		if input.Object.Bucket == "" || input.Object.Key == "" {
			return nil, ingest.Stats{}, cerrors.ErrGenericBadRequest.WithMessage("s3 bucket and key are required")
		}
		return ingest.FromS3(ctx, svc.objects, input.Object.Bucket, input.Object.Key, svc.ingestOps...)
	default:
		return nil, ingest.Stats{}, cerrors.ErrGenericBadRequest.WithMessage("a csv upload or an s3 object is required")
	}
}

func toAppError(err error) *cerrors.AppError {
	var appErr *cerrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return cerrors.ErrGenericRequestTimedOut
	}
	return cerrors.ErrGenericInternalServer.WithCause(err)
}

func toAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[strings.TrimSpace(k)] = v
	}
	return out
}
