package routers

import (
	"net/http"

	"github.com/okieraised/ahu-fdd/internal/server/rest_server/services/v1/restful"
)

type V1Rest struct {
	healthcheck *restful.HealthcheckService
	fdd         *restful.FDDService
}

func NewV1RestState() *V1Rest {
	return &V1Rest{}
}

func (svc *V1Rest) SetFDDService(fdd *restful.FDDService) {
	svc.fdd = fdd
}

func (svc *V1Rest) GetFDDService() *restful.FDDService {
	return svc.fdd
}

func (svc *V1Rest) SetHealthcheckService(healthcheck *restful.HealthcheckService) {
	svc.healthcheck = healthcheck
}

func (svc *V1Rest) GetHealthcheckService() *restful.HealthcheckService {
	return svc.healthcheck
}

type AppState struct {
	v1Rest  *V1Rest
	metrics http.Handler
}

func NewAppState() *AppState {
	return &AppState{}
}

func (svc *AppState) SetV1RestState(v1Rest *V1Rest) {
	svc.v1Rest = v1Rest
}

func (svc *AppState) GetV1RestState() *V1Rest {
	return svc.v1Rest
}

// SetMetricsHandler sets the handler served on /metrics. Nil disables the route.
func (svc *AppState) SetMetricsHandler(h http.Handler) {
	svc.metrics = h
}

func (svc *AppState) GetMetricsHandler() http.Handler {
	return svc.metrics
}
