package tracer_client

import (
	"context"
	"sync"
	"time"

	"github.com/okieraised/ahu-fdd/internal/config"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

const defaultServiceName = "ahu-fdd"

var (
	mu sync.Mutex
	tp *sdktrace.TracerProvider
)

// Options configures NewTracerClient.
type Options struct {
	Endpoint    string
	Insecure    bool
	ServiceName string
	Namespace   string
	SampleRatio float64
	Timeout     time.Duration
}

type Option func(*Options)

func WithEndpoint(ep string) Option {
	return func(o *Options) { o.Endpoint = ep }
}

func WithInsecure(insecure bool) Option {
	return func(o *Options) { o.Insecure = insecure }
}

func WithServiceName(name string) Option {
	return func(o *Options) { o.ServiceName = name }
}

func WithNamespace(ns string) Option {
	return func(o *Options) { o.Namespace = ns }
}

// WithSampleRatio sets the root sampling ratio in [0, 1].
func WithSampleRatio(r float64) Option {
	return func(o *Options) { o.SampleRatio = r }
}

func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// OptionsFromConfig reads the tracing.* keys.
func OptionsFromConfig() []Option {
	opts := []Option{
		WithEndpoint(viper.GetString(config.TracingEndpoint)),
		WithInsecure(viper.GetBool(config.TracingInsecure)),
		WithServiceName(viper.GetString(config.TracingServiceName)),
		WithNamespace(viper.GetString(config.TracingNamespace)),
	}
	if viper.IsSet(config.TracingSampleRatio) {
		opts = append(opts, WithSampleRatio(viper.GetFloat64(config.TracingSampleRatio)))
	}
	return opts
}

func buildOptions(opts ...Option) (Options, error) {
	opt := Options{SampleRatio: 1.0}
	for _, o := range opts {
		o(&opt)
	}
	if opt.Endpoint == "" {
		return opt, errors.New("tracing endpoint is required")
	}
	if opt.SampleRatio < 0 || opt.SampleRatio > 1 {
		return opt, errors.Errorf("tracing sample ratio %v outside [0, 1]", opt.SampleRatio)
	}
	if opt.ServiceName == "" {
		opt.ServiceName = defaultServiceName
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 10 * time.Second
	}
	return opt, nil
}

// NewTracerClient installs a global OTLP/gRPC tracer provider and returns its
// shutdown func. A second call while a provider is installed is a no-op.
func NewTracerClient(opts ...Option) (func(ctx context.Context) error, error) {
	opt, err := buildOptions(opts...)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	if tp != nil {
		return Shutdown, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), opt.Timeout)
	defer cancel()

	grpcOpts := []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{PermitWithoutStream: true}),
	}
	if opt.Insecure {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	traceClient := otlptracegrpc.NewClient(
		otlptracegrpc.WithEndpoint(opt.Endpoint),
		otlptracegrpc.WithDialOption(grpcOpts...),
	)

	exp, err := otlptrace.New(ctx, traceClient)
	if err != nil {
		return nil, errors.Wrap(err, "create otlp trace exporter")
	}

	attrs := []resource.Option{
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(semconv.ServiceName(opt.ServiceName)),
	}
	if opt.Namespace != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.K8SNamespaceName(opt.Namespace)))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return nil, errors.Wrap(err, "create resource")
	}

	tp = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opt.SampleRatio))),
		sdktrace.WithBatcher(
			exp,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithExportTimeout(10*time.Second),
		),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)
	return Shutdown, nil
}

func Provider() *sdktrace.TracerProvider {
	mu.Lock()
	defer mu.Unlock()
	return tp
}

// Tracer falls back to the global (noop unless installed) provider.
func Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if p := Provider(); p != nil {
		return p.Tracer(name, opts...)
	}
	return otel.Tracer(name, opts...)
}

func Shutdown(ctx context.Context) error {
	mu.Lock()
	p := tp
	tp = nil
	mu.Unlock()
	if p == nil {
		return nil
	}
	return errors.Wrap(p.Shutdown(ctx), "shutdown tracer provider")
}
