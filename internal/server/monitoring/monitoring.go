package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/arl/statsviz"
	"github.com/okieraised/ahu-fdd/internal/config"
	"github.com/okieraised/ahu-fdd/internal/constants"
	"github.com/okieraised/ahu-fdd/internal/infrastructure/log"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

func getMonitoringPort() int {
	port := viper.GetInt(config.AgentMonitoringPort)
	if port <= 0 {
		return constants.AgentDefaultMonitoringPort
	}
	return port
}

// NewMux serves statsviz under /debug/statsviz and, when metrics is not
// nil, the Prometheus registry under /metrics.
func NewMux(metrics http.Handler) (*http.ServeMux, error) {
	mux := http.NewServeMux()
	if err := statsviz.Register(mux); err != nil {
		return nil, errors.Wrap(err, "register statsviz")
	}
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	return mux, nil
}

func NewMonitoringServer(ctx context.Context, metrics http.Handler) error {
	log.Default().Info("Starting monitoring server")
	mux, err := NewMux(metrics)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", getMonitoringPort()),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if sErr := srv.ListenAndServe(); sErr != nil && !errors.Is(sErr, http.ErrServerClosed) {
			errCh <- sErr
		}
	}()

	select {
	case <-ctx.Done():
		log.Default().Info("Shutting down monitoring server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err = <-errCh:
		log.Default().Error(errors.Wrap(err, "failed to start monitoring server").Error())
		return err
	}
}
