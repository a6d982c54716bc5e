package grpc_server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/okieraised/ahu-fdd/internal/config"
	"github.com/okieraised/ahu-fdd/internal/constants"
	"github.com/okieraised/ahu-fdd/internal/infrastructure/log"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
)

// RuleEngineService is the health service name the engine reports under.
const RuleEngineService = "ahu.fdd.RuleEngine"

func getGRPCPort() int {
	port := viper.GetInt(config.AgentGRPCPort)
	if port <= 0 {
		return constants.AgentDefaultGRPCPort
	}
	return port
}

// interceptorLogger adapts the zap logger to the middleware logging API.
func interceptorLogger(l *log.Logger) logging.Logger {
	return logging.LoggerFunc(func(_ context.Context, lvl logging.Level, msg string, fields ...any) {
		zf := make([]zap.Field, 0, len(fields)/2)
		for i := 0; i+1 < len(fields); i += 2 {
			zf = append(zf, zap.Any(fmt.Sprint(fields[i]), fields[i+1]))
		}
		switch lvl {
		case logging.LevelDebug:
			l.Debug(msg, zf...)
		case logging.LevelWarn:
			l.Warn(msg, zf...)
		case logging.LevelError:
			l.Error(msg, zf...)
		default:
			l.Info(msg, zf...)
		}
	})
}

func tlsOption() (grpc.ServerOption, error) {
	cert, err := tls.LoadX509KeyPair(viper.GetString(config.AgentTLSCertFile), viper.GetString(config.AgentTLSKeyFile))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load server cert file")
	}
	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if caFile := viper.GetString(config.AgentTLSClientCAFile); caFile != "" {
		caBytes, err := os.ReadFile(caFile)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read client CA file")
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, errors.Errorf("no certificates found in client CA file %s", caFile)
		}
		tlsCfg.ClientCAs = pool
		tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return grpc.Creds(credentials.NewTLS(tlsCfg)), nil
}

// NewServer builds the gRPC server with the health service registered. The
// engine service starts NOT_SERVING; callers flip it once rules are loaded.
func NewServer(logger *log.Logger, extra ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	onPanic := grpc_recovery.WithRecoveryHandler(func(p any) error {
		logger.Error("panic recovered", zap.Any("panic", p))
		return status.Error(codes.Internal, "internal server error")
	})
	logOpts := []logging.Option{logging.WithLogOnEvents(logging.FinishCall)}

	serverOpts := append([]grpc.ServerOption{
		grpc.MaxRecvMsgSize(4 << 20),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     5 * time.Minute,
			MaxConnectionAge:      2 * time.Hour,
			MaxConnectionAgeGrace: 30 * time.Second,
			Time:                  2 * time.Minute,
			Timeout:               20 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             1 * time.Minute,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(
			grpc_recovery.UnaryServerInterceptor(onPanic),
			logging.UnaryServerInterceptor(interceptorLogger(logger), logOpts...),
		),
		grpc.ChainStreamInterceptor(
			grpc_recovery.StreamServerInterceptor(onPanic),
			logging.StreamServerInterceptor(interceptorLogger(logger), logOpts...),
		),
	}, extra...)

	srv := grpc.NewServer(serverOpts...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(RuleEngineService, healthpb.HealthCheckResponse_NOT_SERVING)
	return srv, hs
}

// NewGRPCServer serves health checks until ctx is done, then graceful-stops.
// ready is called with the health server before serving starts.
func NewGRPCServer(ctx context.Context, ready func(hs *health.Server)) error {
	logger := log.Default().Named("grpc")
	logger.Info("Initializing gRPC server")

	var extra []grpc.ServerOption
	if viper.GetString(config.AgentTLSCertFile) != "" && viper.GetString(config.AgentTLSKeyFile) != "" {
		opt, err := tlsOption()
		if err != nil {
			return err
		}
		extra = append(extra, opt)
	}

	lis, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", getGRPCPort()))
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}

	grpcServer, hs := NewServer(logger, extra...)
	if ready != nil {
		ready(hs)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting gRPC server", zap.String("addr", lis.Addr().String()))
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down gRPC server")
		hs.Shutdown()
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()

		// hard stop if graceful takes too long
		t := time.NewTimer(3 * time.Second)
		defer t.Stop()
		select {
		case <-stopped:
		case <-t.C:
			logger.Info("Graceful stop timed out, forcing shutdown")
			grpcServer.Stop()
		}
		return nil
	case err = <-errCh:
		return errors.Wrap(err, "failed to start gRPC server")
	}
}
