package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/callrelay/internal/platform/logging"
)

// LoggingOptions tunes the request log.
type LoggingOptions struct {
	// SkipPrefixes are path prefixes that are not logged. Health checks under /-/
	// are always skipped.
	SkipPrefixes []string

	// QuietPrefixes are path prefixes whose successful requests are logged at
	// DEBUG instead of INFO. The relay ingress is high volume.
	QuietPrefixes []string
}

// Logging returns middleware that logs each completed request with its
// status and latency. Failures are logged at WARN (4xx) or ERROR (5xx)
// regardless of QuietPrefixes.
func Logging(opts LoggingOptions) gin.HandlerFunc {
	skip := append([]string{"/-/"}, opts.SkipPrefixes...)

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if hasAnyPrefix(path, skip) {
			c.Next()
			return
		}

		start := time.Now()

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		case hasAnyPrefix(path, opts.QuietPrefixes):
			level = slog.LevelDebug
		}

		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("latency", latency),
			slog.Int("bytes", c.Writer.Size()),
		}
		if hook := c.Param("hook"); hook != "" {
			attrs = append(attrs, slog.String("hook", hook))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		logging.FromContext(c.Request.Context()).Log(c.Request.Context(), level, "request completed", attrs...)
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}

	return false
}
