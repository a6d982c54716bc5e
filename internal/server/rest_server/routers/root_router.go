package routers

import (
	"github.com/gin-gonic/gin"
	"github.com/okieraised/ahu-fdd/internal/config"
	"github.com/okieraised/ahu-fdd/internal/server/rest_server/routers/v1/restful"
	"github.com/spf13/viper"
)

type RootRouter struct {
	appState *AppState
}

func NewRootRouter(appState *AppState) *RootRouter {
	return &RootRouter{
		appState: appState,
	}
}

func (rr *RootRouter) InitRouters(engine *gin.Engine) {
	rootAPIRouter := engine.Group("/api")
	v1Router := rootAPIRouter.Group("/v1")
	{
		if svc := rr.appState.GetV1RestState().GetFDDService(); svc != nil {
			var opts []func(*restful.FDDRouter)
			if mb := viper.GetInt64(config.AgentHTTPMaxUploadMB); mb > 0 {
				opts = append(opts, restful.WithMaxUploadBytes(mb<<20))
			}
			restful.NewFDDRouter(svc, opts...).Routes(v1Router)
		}

		healthcheckRouter := restful.NewHealthcheckRouter(rr.appState.GetV1RestState().GetHealthcheckService())
		healthcheckRouter.Routes(v1Router)
	}

	if h := rr.appState.GetMetricsHandler(); h != nil {
		engine.GET("/metrics", gin.WrapH(h))
	}
}
