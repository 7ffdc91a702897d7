package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// Deadline returns middleware that bounds the request context by timeout.
// Handlers see the deadline through ctx and are expected to honor it; the
// middleware itself never writes a response.
func Deadline(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
