package restful

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/ahu-fdd/internal/cerrors"
	"github.com/okieraised/ahu-fdd/internal/constants"
	"github.com/okieraised/ahu-fdd/internal/infrastructure/log"
	"github.com/okieraised/ahu-fdd/internal/infrastructure/tracer_client"
	"github.com/okieraised/ahu-fdd/internal/server/rest_server/services/v1/restful"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultMaxUploadBytes = int64(constants.AgentDefaultMaxUploadMB) << 20
	uploadFormField       = "file"
	columnsFormField      = "columns"
)

type FDDRouter struct {
	svc            restful.IFDDService
	logger         *log.Logger
	tracer         trace.Tracer
	maxUploadBytes int64
}

func WithMaxUploadBytes(n int64) func(*FDDRouter) {
	return func(r *FDDRouter) { r.maxUploadBytes = n }
}

func NewFDDRouter(svc restful.IFDDService, options ...func(*FDDRouter)) *FDDRouter {
	r := &FDDRouter{
		svc:            svc,
		logger:         log.MustNewECSLogger(),
		tracer:         tracer_client.Tracer("fdd"),
		maxUploadBytes: defaultMaxUploadBytes,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *FDDRouter) Routes(engine *gin.RouterGroup) {
	routes := engine.Group("/fdd")
	routes.POST("/runs", r.run)
	routes.GET("/rules", r.rules)
	routes.GET("/rules/:id", r.rules)
}

// runRequest is the JSON body of a run that reads its dataset from S3.
type runRequest struct {
	S3            *restful.S3Object `json:"s3"`
	SiteID        string            `json:"site_id"`
	Rules         []string          `json:"rules"`
	Exclude       []string          `json:"exclude"`
	Troubleshoot  *bool             `json:"troubleshoot"`
	IncludeSeries bool              `json:"include_series"`
	Columns       map[string]string `json:"columns"`
}

func (r *FDDRouter) run(ctx *gin.Context) {
	rootCtx, span := r.tracer.Start(ctx.Request.Context(), ctx.Request.URL.Path, trace.WithAttributes(
		attribute.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
	))
	defer span.End()

	lg := r.logger.With(
		zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
	)
	lg.Info("Received new fault detection run request")

	input, appErr := r.bindRun(ctx)
	if appErr != nil {
		lg.Warn("rejected fault detection run request", zap.String("reason", appErr.Message))
		respond(ctx, nil, appErr)
		return
	}
	if c, ok := input.Upload.(io.Closer); ok {
		defer c.Close()
	}
	input.TracerCtx = rootCtx
	input.Tracer = r.tracer

	result, appErr := r.svc.Run(ctx, input)
	if appErr != nil {
		lg.Error(appErr.Error())
	} else {
		lg.Info("Fault detection run completed", zap.Int("rules", result.Count))
	}
	respond(ctx, result, appErr)
}

// badBody maps a body read failure, reporting an oversized body as such.
func badBody(err error, msg string, a ...any) *cerrors.AppError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return cerrors.ErrPayloadTooLarge.WithMessage("request body exceeds %d bytes", tooLarge.Limit).WithCause(err)
	}
	return cerrors.ErrGenericBadRequest.WithMessage(msg, a...).WithCause(err)
}

// bindRun reads the request. The caller closes input.Upload when it is an
// io.Closer.
func (r *FDDRouter) bindRun(ctx *gin.Context) (input *restful.RunInput, appErr *cerrors.AppError) {
	input = &restful.RunInput{}
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, r.maxUploadBytes)

	switch ct := ctx.ContentType(); {
	case ct == constants.ContentTypeCSV:
		input.Upload = ctx.Request.Body
	case strings.HasPrefix(ct, constants.ContentTypeMultipart):
		fh, err := ctx.FormFile(uploadFormField)
		if err != nil {
			return nil, badBody(err, "multipart field %q is required", uploadFormField)
		}
		file, err := fh.Open()
		if err != nil {
			return nil, cerrors.ErrGenericBadRequest.WithMessage("cannot open upload").WithCause(err)
		}
		defer func() {
			if appErr != nil {
				_ = file.Close()
			}
		}()
		input.Upload = file
		if raw := ctx.PostForm(columnsFormField); raw != "" {
			if err := json.Unmarshal([]byte(raw), &input.Columns); err != nil {
				return nil, cerrors.ErrGenericBadRequest.WithMessage("form field %q must be a JSON object of role to column", columnsFormField).WithCause(err)
			}
		}
	default:
		var body runRequest
		if err := ctx.ShouldBindJSON(&body); err != nil {
			return nil, badBody(err, "invalid run request body")
		}
		input.Object = body.S3
		input.SiteID = body.SiteID
		input.Rules = body.Rules
		input.Exclude = body.Exclude
		input.Troubleshoot = body.Troubleshoot
		input.IncludeSeries = body.IncludeSeries
		input.Columns = body.Columns
	}

	if v := ctx.Query("site_id"); v != "" {
		input.SiteID = v
	}
	input.Rules = append(input.Rules, splitList(ctx.Query("rules"))...)
	input.Exclude = append(input.Exclude, splitList(ctx.Query("exclude"))...)
	if v := ctx.Query("troubleshoot"); v != "" {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return nil, cerrors.ErrGenericBadRequest.WithMessage("troubleshoot must be a boolean")
		}
		input.Troubleshoot = &b
	}
	if v := ctx.Query("include_series"); v != "" {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return nil, cerrors.ErrGenericBadRequest.WithMessage("include_series must be a boolean")
		}
		input.IncludeSeries = b
	}
	return input, nil
}

func (r *FDDRouter) rules(ctx *gin.Context) {
	rootCtx, span := r.tracer.Start(ctx.Request.Context(), ctx.Request.URL.Path)
	defer span.End()

	result, appErr := r.svc.Rules(ctx, &restful.RulesInput{
		TracerCtx: rootCtx,
		Tracer:    r.tracer,
		RuleID:    ctx.Param("id"),
	})
	respond(ctx, result, appErr)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
