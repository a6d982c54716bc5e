package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/okieraised/ahu-fdd/internal/api_response"
	"github.com/okieraised/ahu-fdd/internal/cerrors"
)

// abortWith stops the chain and writes appErr in the standard envelope.
func abortWith(ctx *gin.Context, appErr *cerrors.AppError) {
	resp := api_response.Error[any](ctx, appErr.Code, appErr.Message)
	ctx.AbortWithStatusJSON(appErr.HTTPStatus, resp)
}
