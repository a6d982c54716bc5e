package middlewares

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/ahu-fdd/internal/cerrors"
	"github.com/okieraised/ahu-fdd/internal/constants"
	"github.com/okieraised/ahu-fdd/internal/infrastructure/log"
	"go.uber.org/zap"
)

func RecoveryMW() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Default().Error("recovered from panic",
					zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()),
				)
				abortWith(ctx, cerrors.ErrGenericInternalServer)
			}
		}()
		ctx.Next()
	}
}
