// Package orderd is the public API for embedding the orderd server.
//
// Most deployments run the cmd/orderd binary; programs that need the server
// inside a larger process construct an App instead:
//
//	app, err := orderd.New(
//		orderd.WithDatabaseURL(dsn),
//		orderd.WithPort(9090),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// New connects to the database, applies migrations, and wires the HTTP
// server without starting it; Run serves until the context is cancelled and
// then shuts down gracefully.
package orderd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/copperline/orderd/api"
	"github.com/copperline/orderd/internal/auth"
	"github.com/copperline/orderd/internal/config"
	"github.com/copperline/orderd/internal/ratelimit"
	"github.com/copperline/orderd/internal/server"
	"github.com/copperline/orderd/internal/service/orders"
	"github.com/copperline/orderd/internal/storage"
	"github.com/copperline/orderd/internal/telemetry"
	"github.com/copperline/orderd/migrations"
)

// App is the orderd server lifecycle. Construct with New(), run with Run().
// App has no public fields — use New() options to configure it.
type App struct {
	cfg          config.Config
	logger       *slog.Logger
	version      string
	db           *storage.DB
	srv          *server.Server
	otelShutdown telemetry.Shutdown
	limiters     []ratelimit.Limiter
	redisClient  *redis.Client
}

// New initialises the orderd server. It connects to the database, applies
// migrations, and seeds the initial admin client on an empty database.
// It does NOT start any goroutines or accept HTTP connections — call Run().
func New(opts ...Option) (*App, error) {
	var o resolvedOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("orderd: load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.adminAPIKey != "" {
		cfg.AdminAPIKey = o.adminAPIKey
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	ctx := context.Background()

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("orderd: telemetry: %w", err)
	}

	db, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		_ = otelShutdown(ctx)
		return nil, fmt.Errorf("orderd: storage: %w", err)
	}
	db.RegisterPoolMetrics()

	fail := func(err error) (*App, error) {
		db.Close()
		_ = otelShutdown(ctx)
		return nil, err
	}

	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fail(fmt.Errorf("orderd: migrations: %w", err))
	}
	for _, extra := range o.extraMigrations {
		if err := db.RunMigrations(ctx, extra); err != nil {
			return fail(fmt.Errorf("orderd: extra migrations: %w", err))
		}
	}

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration)
	if err != nil {
		return fail(fmt.Errorf("orderd: auth: %w", err))
	}

	app := &App{
		cfg:          cfg,
		logger:       logger,
		version:      version,
		db:           db,
		otelShutdown: otelShutdown,
	}

	var apiLimiter, authLimiter ratelimit.Limiter
	if cfg.RateLimitPerMinute > 0 {
		if cfg.RedisURL != "" {
			ropts, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				return fail(fmt.Errorf("orderd: redis: %w", err))
			}
			app.redisClient = redis.NewClient(ropts)
			apiLimiter = ratelimit.NewRedisLimiter(app.redisClient, cfg.RateLimitPerMinute, time.Minute)
			authLimiter = ratelimit.NewRedisLimiter(app.redisClient, 20, time.Minute)
		} else {
			apiMem := ratelimit.NewMemoryLimiter(float64(cfg.RateLimitPerMinute)/60.0, cfg.RateLimitPerMinute)
			authMem := ratelimit.NewMemoryLimiter(20.0/60.0, 20)
			app.limiters = append(app.limiters, apiMem, authMem)
			apiLimiter = apiMem
			authLimiter = authMem
		}
	}

	app.srv = server.New(server.Config{
		DB:                  db,
		JWTMgr:              jwtMgr,
		OrderSvc:            orders.New(db, logger),
		Logger:              logger,
		APILimiter:          apiLimiter,
		AuthLimiter:         authLimiter,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         api.OpenAPISpec,
	})

	if err := app.srv.Handlers().SeedAdmin(ctx, cfg.AdminAPIKey); err != nil {
		return fail(fmt.Errorf("orderd: %w", err))
	}

	return app, nil
}

// Handler returns the root HTTP handler, for mounting the API inside another
// server or driving it from tests.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

// Run starts the HTTP server and blocks until ctx is cancelled or the server
// fails, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("orderd starting", "version", a.version, "port", a.cfg.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		_ = a.Shutdown(context.Background())
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown drains in-flight HTTP requests, then closes the database pool,
// rate limiters, and the OTEL providers. Safe to call once.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("orderd shutting down")

	httpCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	shutdownErr := a.srv.Shutdown(httpCtx)

	for _, l := range a.limiters {
		_ = l.Close()
	}
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
	a.db.Close()
	if err := a.otelShutdown(ctx); err != nil && shutdownErr == nil {
		shutdownErr = err
	}

	a.logger.Info("orderd stopped")
	return shutdownErr
}
