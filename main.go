package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/okieraised/ahu-fdd/internal/agent"
	"github.com/okieraised/ahu-fdd/internal/config"
	"github.com/okieraised/ahu-fdd/internal/constants"
	"github.com/okieraised/ahu-fdd/internal/fdd/runner"
	"github.com/okieraised/ahu-fdd/internal/infrastructure/local_cache"
	"github.com/okieraised/ahu-fdd/internal/infrastructure/log"
	"github.com/okieraised/ahu-fdd/internal/infrastructure/metrics"
	"github.com/okieraised/ahu-fdd/internal/infrastructure/mqtt_client"
	"github.com/okieraised/ahu-fdd/internal/infrastructure/s3_client"
	"github.com/okieraised/ahu-fdd/internal/infrastructure/tracer_client"
	"github.com/okieraised/ahu-fdd/internal/ingest"
	"github.com/okieraised/ahu-fdd/internal/server/grpc_server"
	"github.com/okieraised/ahu-fdd/internal/server/monitoring"
	"github.com/okieraised/ahu-fdd/internal/server/rest_server"
	"github.com/okieraised/ahu-fdd/internal/server/rest_server/routers"
	"github.com/okieraised/ahu-fdd/internal/server/rest_server/services/v1/restful"
	"github.com/okieraised/ahu-fdd/internal/sink"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var once sync.Once

func init() {
	once.Do(func() {
		err := config.Load(".")
		if err != nil {
			panic(fmt.Sprintf("Failed to setup service configuration: %v", err))
		}

		// Init default logger
		err = log.InitDefault()
		if err != nil {
			panic(err)
		}

		if viper.GetBool(config.AgentEnableS3) {
			log.Default().Info("Started initializing client connection to external S3 storage")
			_, err = s3_client.NewS3Client(context.Background(), s3_client.OptionsFromConfig()...)
			if err != nil {
				log.Default().Fatal(fmt.Sprintf("Failed to initialize client connection to external S3 storage: %v", err))
			}
			log.Default().Info("Finished initializing client connection to external S3 storage")
		}

		// Initialize MQTT client if enabled
		if viper.GetBool(config.AgentEnableMQTT) {
			log.Default().Info("Started initializing client connection to MQTT broker")
			_, err = mqtt_client.NewMQTTClient(
				viper.GetString(config.MqttEndpoint),
				viper.GetString(config.MqttClientId),
				mqtt_client.WithLogger(log.Default().Named("mqtt")),
			)
			if err != nil {
				log.Default().Fatal(fmt.Sprintf("Failed to initialize client connection to MQTT broker: %v", err))
			}
			log.Default().Info("Finished initializing client connection to MQTT broker")
		}

		// Initialize OTEL tracer if enabled
		if viper.GetBool(config.AgentEnableTracing) {
			log.Default().Info("Started initializing OTEL tracer")
			_, err = tracer_client.NewTracerClient(tracer_client.OptionsFromConfig()...)
			if err != nil {
				log.Default().Fatal(fmt.Sprintf("Failed to initialize OTEL tracer: %v", err))
			}
			log.Default().Info("Finished initializing OTEL tracer")
		}

		// Initialize local cache
		log.Default().Info("Started initializing local cache")
		cacheOpts, err := local_cache.OptionsFromConfig()
		if err != nil {
			log.Default().Fatal(fmt.Sprintf("Failed to read local cache config: %v", err))
		}
		cacheOpts = append([]local_cache.Option{local_cache.WithMaxCost(10_000), local_cache.WithLogger(log.Default())}, cacheOpts...)
		err = local_cache.NewLocalCache(cacheOpts...)
		if err != nil {
			log.Default().Fatal(fmt.Sprintf("Failed to initialize local cache: %v", err))
		}
		log.Default().Info("Finished initializing local cache")
		log.Default().Info("Finished initializing connection to external services")
	})
}

func objectStore() ingest.ObjectGetter {
	if c := s3_client.Client(); c != nil {
		return c
	}
	return nil
}

func mqttPublisher() sink.MQTTClient {
	if c := mqtt_client.Client(); c != nil {
		return c
	}
	return nil
}

func main() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	defer func() { _ = log.Sync() }()

	parentCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := log.Default().Named("agent")

	registry, err := agent.Registry()
	if err != nil {
		logger.Fatal("Failed to build fault rules", zap.Error(err))
	}
	cm, err := agent.Columns(parentCtx, local_cache.Cache(), logger)
	if err != nil {
		logger.Fatal("Failed to resolve column bindings", zap.Error(err))
	}
	defaults, err := agent.RunDefaults()
	if err != nil {
		logger.Fatal("Failed to read run settings", zap.Error(err))
	}

	var kafkaWriter sink.KafkaWriter
	if viper.GetBool(config.AgentEnableKafka) {
		kafkaWriter = agent.NewKafkaWriter()
		if kafkaWriter == nil {
			logger.Fatal("Kafka is enabled but no brokers are configured")
		}
	}
	sinks := agent.NewSinks(mqttPublisher(), kafkaWriter)
	defer func() {
		if cErr := sinks.Publisher.Close(); cErr != nil {
			logger.Warn("Failed to close report sinks", zap.Error(cErr))
		}
		mqtt_client.Disconnect(250)
		sCtx, sCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer sCancel()
		_ = tracer_client.Shutdown(sCtx)
	}()

	recorder := metrics.Default()
	fddSvc := restful.NewFDDService(
		restful.WithFDDRegistry(registry),
		restful.WithFDDRunner(runner.New(registry, runner.WithMetrics(recorder))),
		restful.WithFDDColumns(cm),
		restful.WithFDDDefaults(defaults),
		restful.WithFDDPublisher(sinks.Publisher),
		restful.WithFDDObjectStore(objectStore()),
		restful.WithFDDIngestOptions(agent.IngestOptions()...),
	)
	logger.Info("Fault rules ready",
		zap.Strings("rules", registry.IDs()),
		zap.Int("bound_roles", len(cm)),
		zap.Strings("sinks", sinks.Names),
	)

	g, ctx := errgroup.WithContext(parentCtx)

	// Init profiling
	g.Go(func() error {
		if viper.GetBool(config.AgentEnableMonitoring) {
			mErr := monitoring.NewMonitoringServer(ctx, recorder.Handler())
			if mErr != nil {
				return mErr
			}
		}

		return ctx.Err()
	})

	// Init gRPC health endpoint
	if viper.GetBool(config.AgentEnableGRPC) {
		g.Go(func() error {
			gErr := grpc_server.NewGRPCServer(ctx, func(hs *health.Server) {
				hs.SetServingStatus(grpc_server.RuleEngineService, healthpb.HealthCheckResponse_SERVING)
			})
			if gErr != nil {
				return gErr
			}
			return ctx.Err()
		})
	}

	// Init HTTP server
	g.Go(func() error {
		// app state
		appState := routers.NewAppState()
		appState.SetMetricsHandler(recorder.Handler())

		// v1 restful svc
		v1RestState := routers.NewV1RestState()
		v1RestState.SetFDDService(fddSvc)
		v1RestState.SetHealthcheckService(
			restful.NewHealthcheckService(
				restful.WithHealthcheckRegistry(registry),
				restful.WithHealthcheckSinks(sinks.Names...),
			),
		)
		appState.SetV1RestState(v1RestState)

		rErr := rest_server.NewHTTPServer(ctx, routers.NewRootRouter(appState).InitRouters)
		if rErr != nil {
			return rErr
		}
		return ctx.Err()
	})

	// One-shot batch over the configured dataset
	if viper.GetBool(config.FDDRunOnStart) {
		g.Go(func() error {
			_, bErr := agent.RunOnce(ctx, fddSvc, objectStore(), cm, defaults, logger)
			if bErr != nil {
				logger.Error("Batch run failed", zap.Error(bErr))
			}
			return nil
		})
	}

	select {
	case sig := <-sigCh:
		log.Default().Debug(fmt.Sprintf("Signal received: %v", sig))
		cancel()

		done := make(chan error, 1)
		go func() {
			done <- g.Wait()
		}()

		select {
		case <-done:
			log.Default().Info("All tasks exited, shutting down agent")
			return
		case sig2 := <-sigCh:
			log.Default().Debug(fmt.Sprintf("Second signal received: %v", sig2))
			return
		case <-time.After(constants.GraceWaitPeriod):
			log.Default().Info("Grace period timed out, forcing exit")
			return
		}

	case err = <-func() chan error {
		ch := make(chan error, 1)
		go func() {
			ch <- g.Wait()
		}()
		return ch
	}():
		log.Default().Info(fmt.Sprintf("Services finished early with error: %v", err))
	}
}
