package http

import (
	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/callrelay/internal/adapters/http/dto"
	"github.com/jsamuelsen/callrelay/internal/adapters/http/handlers"
	"github.com/jsamuelsen/callrelay/internal/adapters/http/middleware"
	"github.com/jsamuelsen/callrelay/internal/platform/config"
	"github.com/jsamuelsen/callrelay/internal/platform/telemetry"
)

// relayPrefix is the path of the engine ingress. Its requests are logged at DEBUG.
const relayPrefix = "/api/v1/relay/"

// RouterConfig contains what SetupRouter wires.
type RouterConfig struct {
	AppConfig    *config.AppConfig
	ServerConfig *config.ServerConfig

	HealthHandler *handlers.HealthHandler
	RelayHandler  *handlers.RelayHandler
	CallsHandler  *handlers.CallsHandler

	// PanicHook is told about every recovered panic. Optional.
	PanicHook func(err any, stack []byte)
}

// SetupRouter configures all routes and middleware on the Gin engine.
// Middleware is applied in the following order (first to last):
//  1. Recovery - catch panics first
//  2. Request ID and Correlation ID
//  3. OpenTelemetry - tracing and metrics
//  4. Logging - request logging (skips /-/)
//  5. Deadline - /api/v1 only
//
// Route groups:
//   - /-/ health checks
//   - /api/v1/relay/:hook engine ingress
//   - /api/v1/{calls,limits,hooks} read-only admin
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	var recoveryOpts []middleware.RecoveryOption
	if cfg.PanicHook != nil {
		recoveryOpts = append(recoveryOpts, middleware.WithPanicHook(cfg.PanicHook))
	}

	engine.Use(
		middleware.Recovery(recoveryOpts...),
		middleware.RequestID(),
		middleware.CorrelationID(),
	)
	engine.Use(telemetry.Middleware(cfg.AppConfig.Name)...)
	engine.Use(middleware.Logging(middleware.LoggingOptions{QuietPrefixes: []string{relayPrefix}}))

	engine.NoRoute(func(c *gin.Context) {
		dto.AbortWithErrorCode(c, dto.ErrorCodeNotFound, "no route for "+c.Request.Method+" "+c.Request.URL.Path)
	})

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterHealthRoutesOnEngine(engine)
	}

	apiV1 := engine.Group("/api/v1")
	if cfg.ServerConfig != nil {
		apiV1.Use(middleware.Deadline(cfg.ServerConfig.RequestTimeout))
	}

	if cfg.RelayHandler != nil {
		cfg.RelayHandler.RegisterRoutes(apiV1)
	}

	if cfg.CallsHandler != nil {
		cfg.CallsHandler.RegisterRoutes(apiV1)
	}
}
