// Package storage provides the PostgreSQL storage adapter for orderd.
//
// It owns connection pooling (pgxpool), query construction and row shaping
// for orders, payments, and API clients. Business rules live a layer up —
// the adapter never filters or omits fields on their behalf.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// DB wraps a pgxpool.Pool with the query methods for all tables.
type DB struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a new DB with a connection pool and verifies connectivity.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping pool: %w", err)
	}

	return &DB{pool: pool, logger: logger}, nil
}

// Pool returns the underlying connection pool for use by other packages.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping checks connectivity to the database.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// RegisterPoolMetrics exposes pool utilization as OTEL observable gauges.
// Call after telemetry.Init so the gauges land on the real meter provider.
func (db *DB) RegisterPoolMetrics() {
	meter := otel.GetMeterProvider().Meter("orderd/storage")

	totalConns, err1 := meter.Int64ObservableGauge("db.pool.connections",
		metric.WithDescription("Total connections in the pool"))
	idleConns, err2 := meter.Int64ObservableGauge("db.pool.idle_connections",
		metric.WithDescription("Idle connections in the pool"))
	if err1 != nil || err2 != nil {
		db.logger.Warn("storage: pool metrics not registered", "error", fmt.Errorf("%v; %v", err1, err2))
		return
	}

	_, err := meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			stat := db.pool.Stat()
			o.ObserveInt64(totalConns, int64(stat.TotalConns()))
			o.ObserveInt64(idleConns, int64(stat.IdleConns()))
			return nil
		},
		totalConns, idleConns,
	)
	if err != nil {
		db.logger.Warn("storage: pool metrics callback not registered", "error", err)
	}
}
