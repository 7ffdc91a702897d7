package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/callrelay/internal/adapters/http/dto"
	"github.com/jsamuelsen/callrelay/internal/platform/logging"
)

// RecoveryOption configures Recovery.
type RecoveryOption func(*recoveryConfig)

type recoveryConfig struct {
	onPanic func(err any, stack []byte)
}

// WithPanicHook calls fn with every recovered panic and its stack, after logging.
func WithPanicHook(fn func(err any, stack []byte)) RecoveryOption {
	return func(cfg *recoveryConfig) {
		cfg.onPanic = fn
	}
}

// Recovery returns middleware that recovers from panics, logs them with a
// stack trace and answers 500 with the standard error envelope. It must be
// first in the chain.
func Recovery(opts ...RecoveryOption) gin.HandlerFunc {
	var cfg recoveryConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			stack := debug.Stack()
			ctx := c.Request.Context()

			var traceID string
			if span := trace.SpanFromContext(ctx); span.SpanContext().HasTraceID() {
				traceID = span.SpanContext().TraceID().String()
			}

			logging.FromContext(ctx).ErrorContext(ctx, "panic recovered",
				slog.Any("error", r),
				slog.String("stack", string(stack)),
				slog.String("path", c.Request.URL.Path),
				slog.String("method", c.Request.Method),
				slog.String("trace_id", traceID),
			)

			if cfg.onPanic != nil {
				cfg.onPanic(r, stack)
			}

			if c.Writer.Written() {
				c.Abort()
				return
			}

			resp := dto.NewErrorResponse(dto.ErrorCodeInternal, "an internal error occurred").WithTraceID(traceID)
			c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
		}()

		c.Next()
	}
}
