package restful

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/ahu-fdd/internal/api_response"
	"github.com/okieraised/ahu-fdd/internal/cerrors"
	"github.com/okieraised/ahu-fdd/internal/constants"
	"github.com/okieraised/ahu-fdd/internal/fdd/rules"
	"github.com/okieraised/ahu-fdd/internal/infrastructure/log"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type IHealthcheckService interface {
	Healthcheck(ctx *gin.Context, input *HealthcheckInput) (*api_response.BaseOutput, *cerrors.AppError)
}

type HealthcheckService struct {
	logger    *log.Logger
	registry  *rules.Registry
	sinks     []string
	startedAt time.Time
}

func WithHealthcheckRegistry(r *rules.Registry) func(*HealthcheckService) {
	return func(svc *HealthcheckService) { svc.registry = r }
}

// WithHealthcheckSinks lists the enabled report sinks by name.
func WithHealthcheckSinks(names ...string) func(*HealthcheckService) {
	return func(svc *HealthcheckService) { svc.sinks = names }
}

func NewHealthcheckService(options ...func(*HealthcheckService)) *HealthcheckService {
	svc := &HealthcheckService{startedAt: time.Now()}
	for _, opt := range options {
		opt(svc)
	}
	logger := log.MustNewECSLogger()
	svc.logger = logger
	return svc
}

type HealthcheckInput struct {
	TracerCtx context.Context
	Tracer    trace.Tracer
}

type HealthcheckOutput struct {
	Engine EngineInfo `json:"engine"`
	Host   HostInfo   `json:"host"`
	Memory MemoryInfo `json:"memory"`
	CPU    CPUInfo    `json:"cpu"`
}

type EngineInfo struct {
	Rules         []string `json:"rules"`
	Sinks         []string `json:"sinks"`
	UptimeSeconds int64    `json:"uptime_seconds"`
}

type MemoryInfo struct {
	Total       uint64  `json:"total"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
}

type HostInfo struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	KernelVersion   string `json:"kernel_version"`
	Arch            string `json:"arch"`
	HostID          string `json:"host_id"`
}

type CPUInfo struct {
	ModelName    string `json:"model_name"`
	LogicalCores int    `json:"logical_cores"`
}

func (svc *HealthcheckService) Healthcheck(ctx *gin.Context, input *HealthcheckInput) (*api_response.BaseOutput, *cerrors.AppError) {
	rootCtx, span := input.Tracer.Start(input.TracerCtx, "healthcheck-handler")
	defer span.End()

	lg := svc.logger.With(
		zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
	)

	engine := EngineInfo{
		Sinks:         append([]string{}, svc.sinks...),
		UptimeSeconds: int64(time.Since(svc.startedAt).Seconds()),
	}
	if svc.registry != nil {
		engine.Rules = svc.registry.IDs()
	}

	_, cSpan := input.Tracer.Start(rootCtx, "get-host-info")
	hostStat, err := host.InfoWithContext(rootCtx)
	cSpan.End()
	if err != nil {
		lg.Error(errors.Wrap(err, "failed to get host info").Error())
		return nil, cerrors.ErrGenericInternalServer
	}

	_, cSpan = input.Tracer.Start(rootCtx, "get-memory-info")
	memoryInfo, err := mem.VirtualMemoryWithContext(rootCtx)
	cSpan.End()
	if err != nil {
		lg.Error(errors.Wrap(err, "failed to get memory info").Error())
		return nil, cerrors.ErrGenericInternalServer
	}

	_, cSpan = input.Tracer.Start(rootCtx, "get-cpu-info")
	cpuInfo := CPUInfo{}
	if stats, cErr := cpu.InfoWithContext(rootCtx); cErr == nil && len(stats) > 0 {
		cpuInfo.ModelName = stats[0].ModelName
	}
	logicalCores, err := cpu.CountsWithContext(rootCtx, true)
	cSpan.End()
	if err != nil {
		lg.Error(errors.Wrap(err, "failed to get cpu info").Error())
		return nil, cerrors.ErrGenericInternalServer
	}
	cpuInfo.LogicalCores = logicalCores

	return &api_response.BaseOutput{
		Code:    cerrors.OK.Code,
		Message: cerrors.OK.Message,
		Data: HealthcheckOutput{
			Engine: engine,
			Host: HostInfo{
				Hostname:        hostStat.Hostname,
				OS:              hostStat.OS,
				Platform:        hostStat.Platform,
				PlatformVersion: hostStat.PlatformVersion,
				KernelVersion:   hostStat.KernelVersion,
				Arch:            hostStat.KernelArch,
				HostID:          hostStat.HostID,
			},
			Memory: MemoryInfo{
				Total:       memoryInfo.Total,
				Free:        memoryInfo.Free,
				UsedPercent: memoryInfo.UsedPercent,
			},
			CPU: cpuInfo,
		},
	}, nil
}
