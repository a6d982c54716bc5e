package middlewares

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/ahu-fdd/internal/cerrors"
)

// RequestTimeoutMW puts a deadline on the request context. Handlers that
// honour the context return early; if nothing was written by then the
// client gets a timeout response.
func RequestTimeoutMW(timeoutDuration time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), timeoutDuration)
		defer cancel()
		ctx.Request = ctx.Request.WithContext(reqCtx)

		ctx.Next()

		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && !ctx.Writer.Written() {
			abortWith(ctx, cerrors.ErrGenericRequestTimedOut)
		}
	}
}
