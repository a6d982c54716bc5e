package restful

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/ahu-fdd/internal/api_response"
	"github.com/okieraised/ahu-fdd/internal/cerrors"
)

// respond writes either the service result or its error in the standard
// envelope.
func respond(ctx *gin.Context, result *api_response.BaseOutput, appErr *cerrors.AppError) {
	if appErr != nil {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		ctx.JSON(status, api_response.Error[any](ctx, appErr.Code, appErr.Message))
		return
	}
	resp := api_response.OK[any](ctx, result.Data).
		WithCode(result.Code).
		WithMessage(result.Message).
		WithCount(result.Count)
	status := result.Status
	if status == 0 {
		status = http.StatusOK
	}
	ctx.JSON(status, resp)
}
