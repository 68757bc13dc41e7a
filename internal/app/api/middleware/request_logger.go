package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/creditledger/pkg/logctx"
)

// RequestLoggerMiddleware attaches a request-scoped logger enriched with
// trace_id and, when the query carries one, user_id to gin.Context and the
// request context.
func RequestLoggerMiddleware(base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetString(GinTraceIDKey)

		reqLogger := base.With("trace_id", traceID)
		ctx := logctx.WithLogger(c.Request.Context(), reqLogger)
		if uid := c.Query("user_id"); uid != "" {
			ctx = logctx.WithUserID(ctx, uid)
		}
		c.Set(logctx.GinLoggerKey, reqLogger)
		c.Request = c.Request.WithContext(ctx)

		if traceID != "" {
			c.Writer.Header().Set(TraceHeader, traceID)
		}

		c.Next()
	}
}
