package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
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

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("ORDERD_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("orderd starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Connect to database.
	db, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer db.Close()

	// Register connection pool OTEL metrics (after telemetry.Init).
	db.RegisterPoolMetrics()

	// Apply embedded migrations. RunMigrations tracks applied files in
	// schema_migrations and skips duplicates, so errors here indicate real
	// failures (not "already exists").
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	// Create JWT manager.
	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	orderSvc := orders.New(db, logger)

	// Rate limiters: the API budget comes from config, token issuance gets a
	// fixed tight budget keyed by IP. Redis-backed when ORDERD_REDIS_URL is
	// set so limits hold across replicas, in-memory otherwise.
	var apiLimiter, authLimiter ratelimit.Limiter
	if cfg.RateLimitPerMinute > 0 {
		if cfg.RedisURL != "" {
			opts, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			client := redis.NewClient(opts)
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis ping: %w", err)
			}
			defer func() { _ = client.Close() }()

			apiLimiter = ratelimit.NewRedisLimiter(client, cfg.RateLimitPerMinute, time.Minute)
			authLimiter = ratelimit.NewRedisLimiter(client, 20, time.Minute)
			logger.Info("rate limiting: redis", "per_minute", cfg.RateLimitPerMinute)
		} else {
			perMin := cfg.RateLimitPerMinute
			apiMem := ratelimit.NewMemoryLimiter(float64(perMin)/60.0, perMin)
			authMem := ratelimit.NewMemoryLimiter(20.0/60.0, 20)
			defer func() { _ = apiMem.Close() }()
			defer func() { _ = authMem.Close() }()

			apiLimiter = apiMem
			authLimiter = authMem
			logger.Info("rate limiting: memory (in-process token bucket)", "per_minute", perMin)
		}
	} else {
		logger.Info("rate limiting: disabled")
	}

	srv := server.New(server.Config{
		DB:                  db,
		JWTMgr:              jwtMgr,
		OrderSvc:            orderSvc,
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

	// Seed the initial admin client on an empty database.
	if err := srv.Handlers().SeedAdmin(ctx, cfg.AdminAPIKey); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	// Start HTTP server in background.
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("orderd shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	slog.Info("orderd stopped")
	return nil
}
