// Package database contains the logic for establishing
// connections to the PostgreSQL database and handing out
// units of work on them.
//
// It handles:
//   - creating a pgx connection pool (pgxpool) from the resolved DSN
//   - wiring query tracing/logging (pgx tracelog) in the local env
//   - optional New Relic instrumentation (nrpgx5)
//   - the Provider/UnitOfWork contract the record store depends on
//   - running embedded migrations (tern)
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/deppfellow/recordstore/internal/config"
	loggerConfig "github.com/deppfellow/recordstore/internal/logger"
	pgxzero "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/newrelic/go-agent/v3/integrations/nrpgx5"
	"github.com/rs/zerolog"
)

// Database wraps the pgx connection pool and a logger.
type Database struct {
	Pool *pgxpool.Pool
	log  *zerolog.Logger
}

// DatabasePingTimeout is how long startup waits for the first ping.
const DatabasePingTimeout = 10 * time.Second

// New creates a PostgreSQL connection pool with instrumentation.
//
// Behavior:
//   - Parse the DSN resolved by config into a pgxpool config
//   - Apply pool sizing and connection lifetimes
//   - Attach the New Relic tracer if the agent is running
//   - In the local env attach the SQL trace logger
//   - Attach the slow query logger when a threshold is configured
//   - Create the pool, ping it, and return Database
func New(cfg *config.Config, logger *zerolog.Logger, loggerService *loggerConfig.LoggerService) (*Database, error) {
	pgxPoolConfig, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	var tracers []pgx.QueryTracer
	if loggerService.GetApplication() != nil {
		tracers = append(tracers, nrpgx5.NewTracer())
	}

	// Very noisy, so only in local.
	if cfg.Primary.Env == "local" {
		globalLevel := logger.GetLevel()
		pgxLogger := loggerConfig.NewPgxLogger(globalLevel)
		tracers = append(tracers, &tracelog.TraceLog{
			Logger:   pgxzero.NewLogger(pgxLogger),
			LogLevel: tracelog.LogLevel(loggerConfig.GetPgxTraceLogLevel(globalLevel)),
		})
	}

	if threshold := cfg.Observability.Logging.SlowQueryThreshold; threshold > 0 {
		tracers = append(tracers, newSlowQueryTracer(threshold, logger))
	}

	switch len(tracers) {
	case 0:
	case 1:
		pgxPoolConfig.ConnConfig.Tracer = tracers[0]
	default:
		pgxPoolConfig.ConnConfig.Tracer = &multiTracer{tracers: tracers}
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), pgxPoolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	database := NewFromPool(pool, logger)

	// Fail fast at startup if the database is down.
	ctx, cancel := context.WithTimeout(context.Background(), DatabasePingTimeout)
	defer cancel()
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().
		Str("host", cfg.Database.Host).
		Str("database", cfg.Database.Name).
		Int32("max_conns", pgxPoolConfig.MaxConns).
		Msg("connected to the database")

	return database, nil
}

// NewFromPool wraps an existing pool.
func NewFromPool(pool *pgxpool.Pool, logger *zerolog.Logger) *Database {
	return &Database{Pool: pool, log: logger}
}

// poolConfig parses the DSN and applies pool tuning from cfg.
func poolConfig(cfg *config.Config) (*pgxpool.Config, error) {
	pgxPoolConfig, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx pool config: %w", err)
	}

	if cfg.Database.MaxConns > 0 {
		pgxPoolConfig.MaxConns = int32(cfg.Database.MaxConns)
	}
	if cfg.Database.MinConns > 0 {
		pgxPoolConfig.MinConns = int32(cfg.Database.MinConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		pgxPoolConfig.MaxConnLifetime = time.Duration(cfg.Database.ConnMaxLifetime) * time.Second
	}
	if cfg.Database.ConnMaxIdleTime > 0 {
		pgxPoolConfig.MaxConnIdleTime = time.Duration(cfg.Database.ConnMaxIdleTime) * time.Second
	}

	return pgxPoolConfig, nil
}

// Provider returns a session provider that begins units of work on the pool.
func (db *Database) Provider() *PoolProvider {
	return NewPoolProvider(db.Pool)
}

// Close closes the database connection pool.
func (db *Database) Close() error {
	db.log.Info().Msg("closing database connection pool")
	db.Pool.Close()
	return nil
}
