// Package main is the entry point for the call relay.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jsamuelsen/callrelay/internal/adapters/clients"
	"github.com/jsamuelsen/callrelay/internal/adapters/clients/engine"
	"github.com/jsamuelsen/callrelay/internal/adapters/directory"
	"github.com/jsamuelsen/callrelay/internal/adapters/http"
	"github.com/jsamuelsen/callrelay/internal/adapters/http/handlers"
	"github.com/jsamuelsen/callrelay/internal/adapters/mail"
	"github.com/jsamuelsen/callrelay/internal/adapters/staging"
	"github.com/jsamuelsen/callrelay/internal/app"
	"github.com/jsamuelsen/callrelay/internal/app/callstate"
	"github.com/jsamuelsen/callrelay/internal/app/relay"
	"github.com/jsamuelsen/callrelay/internal/platform/config"
	"github.com/jsamuelsen/callrelay/internal/platform/logging"
	"github.com/jsamuelsen/callrelay/internal/platform/telemetry"
	"github.com/jsamuelsen/callrelay/internal/ports"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the relay.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// 1. Determine profile from environment
	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	// 2. Load and validate configuration (fail fast)
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 3. Initialize logging
	logger := logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	logging.SetDefault(logger)

	logger.Info("starting callrelay",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
	)

	// 4. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(ctx); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	healthRegistry := ports.NewHealthRegistry()

	// 5. Open the directory accounts
	dir, err := directory.Open(cfg.Databases, logger)
	if err != nil {
		return fmt.Errorf("opening directory: %w", err)
	}

	defer func() {
		if closeErr := dir.Close(); closeErr != nil {
			logger.Error("directory close error", slog.Any("error", closeErr))
		}
	}()

	if err := dir.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("preparing directory: %w", err)
	}

	for _, checker := range dir.Checkers() {
		if err := healthRegistry.Register(checker); err != nil {
			return fmt.Errorf("registering %s health check: %w", checker.Name(), err)
		}
	}

	// 6. Create the engine client
	httpClient, err := clients.New(&clients.Config{
		BaseURL:     cfg.Engine.BaseURL,
		ServiceName: cfg.Engine.Name,
		Timeout:     cfg.Client.Timeout,
		Retry:       cfg.Client.Retry,
		Circuit:     cfg.Client.CircuitBreaker,
		Transport:   cfg.Client.Transport,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("creating engine client: %w", err)
	}
	clients.WatchCircuit(reg, httpClient)

	eng := engine.New(httpClient, cfg.Engine.Name)
	if err := healthRegistry.Register(eng); err != nil {
		return fmt.Errorf("registering engine health check: %w", err)
	}

	// 7. Create the relay and load the procedures
	rel := relay.New(relay.Config{Logger: logger, Metrics: relay.NewMetrics(reg)})
	handles := relay.NewHandles()
	relay.WatchHandles(reg, handles)

	stores := make(map[string]*callstate.Store)

	if cfg.Fax.Enabled {
		fax, err := newFaxRouting(cfg, dir, logger)
		if err != nil {
			return err
		}

		stores[app.FaxModuleName] = fax.store
		rel.Load(fax.module)
	}

	if cfg.Forward.Enabled {
		store := callstate.NewStore()
		stores[app.ForwardModuleName] = store

		rel.Load(app.NewForwarding(app.ForwardingDeps{
			Store:     store,
			Directory: dir,
			Engine:    eng,
			Logger:    logger,
		}, app.ForwardConfig{
			Account:            cfg.Forward.Account,
			ExecutePriority:    cfg.Forward.Priorities.Execute,
			DisconnectPriority: cfg.Forward.Priorities.Disconnect,
			AnswerPriority:     cfg.Forward.Priorities.Answer,
			UnloadTimeout:      cfg.Relay.UnloadTimeout,
		}))
	}

	for name, store := range stores {
		relay.WatchStore(reg, name, store)
	}

	svc := app.NewService(rel, handles, stores, &app.ServiceConfig{Logger: logger})

	// 8. Create handlers
	buildInfo := handlers.NewBuildInfo(Version, Commit, BuildTime)
	healthHandler := handlers.NewHealthHandler(healthRegistry, buildInfo, reg)

	// 9. Create HTTP server and router
	server := http.New(&cfg.Server, logger)

	http.SetupRouter(server.Engine(), http.RouterConfig{
		AppConfig:     &cfg.App,
		ServerConfig:  &cfg.Server,
		HealthHandler: healthHandler,
		RelayHandler:  handlers.NewRelayHandler(svc),
		CallsHandler:  handlers.NewCallsHandler(svc),
	})

	// 10. Start server (non-blocking)
	serverErr := server.Start()

	// 11. Wait for shutdown signal
	return waitForShutdown(ctx, logger, server, rel, serverErr, cfg.Server.ShutdownTimeout)
}

type faxModule struct {
	module *app.FaxRouting
	store  *callstate.Store
}

func newFaxRouting(cfg *config.Config, dir ports.Directory, logger *slog.Logger) (*faxModule, error) {
	spool, err := staging.New(cfg.Fax.StagingDir)
	if err != nil {
		return nil, fmt.Errorf("preparing fax staging: %w", err)
	}

	delivery := app.NewFaxMailer(app.FaxMailerDeps{
		Converter: mail.NewConverter(cfg.Mail.ConverterPath, cfg.Mail.Timeout),
		Mailer:    mail.NewSendmail(cfg.Mail.SendmailPath, cfg.Mail.Timeout),
		Staging:   spool,
		Executor:  app.NewExecutor(logger),
	})

	store := callstate.NewStore()

	module := app.NewFaxRouting(app.FaxRoutingDeps{
		Store:     store,
		Directory: dir,
		Delivery:  delivery,
		Staging:   spool,
		Logger:    logger,
	}, app.FaxConfig{
		Account:         cfg.Fax.Account,
		EmailFrom:       cfg.Fax.EmailFrom,
		RoutePriority:   cfg.Fax.Priorities.Route,
		HangupPriority:  cfg.Fax.Priorities.Hangup,
		UnloadTimeout:   cfg.Relay.UnloadTimeout,
		DeliveryTimeout: cfg.Mail.Timeout,
	})

	return &faxModule{module: module, store: store}, nil
}

// waitForShutdown blocks until a shutdown signal is received or server error occurs.
// It then drains the HTTP server and unloads the procedures.
func waitForShutdown(
	ctx context.Context,
	logger *slog.Logger,
	server *http.Server,
	rel *relay.Relay,
	serverErr <-chan error,
	shutdownTimeout time.Duration,
) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)

	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	logger.Info("initiating graceful shutdown",
		slog.Duration("timeout", shutdownTimeout),
	)

	// Stop accepting new messages, drain in-flight
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if err := rel.UnloadAll(shutdownCtx); err != nil {
		logger.Warn("procedures still busy at shutdown", slog.Any("error", err))
	}

	logger.Info("shutdown complete")

	return nil
}
