// Package server defines the Server struct that composes the app's main
// dependencies.
//
// It owns the lifecycle of:
//   - configuration
//   - logger + optional New Relic service wrapper
//   - database pool
//   - the repositories built on the pool's session provider
//
// There is no HTTP listener here; callers (the CLI, or an HTTP layer living
// elsewhere) take Repositories from the Server and call into them.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/deppfellow/recordstore/internal/config"
	"github.com/deppfellow/recordstore/internal/database"
	loggerPkg "github.com/deppfellow/recordstore/internal/logger"
	"github.com/deppfellow/recordstore/internal/repository"
	"github.com/rs/zerolog"
)

// healthCheckTimeout bounds a single database ping in HealthCheck.
const healthCheckTimeout = 5 * time.Second

// Server is the application container that holds shared resources.
type Server struct {
	// Config holds all environment/config values for the app.
	Config *config.Config

	// Logger is the application's main structured logger.
	Logger *zerolog.Logger

	// LoggerService optionally holds the New Relic application.
	LoggerService *loggerPkg.LoggerService

	// DB holds the PostgreSQL pool wrapper.
	DB *database.Database

	// Repositories holds one record store per entity.
	Repositories *repository.Repositories
}

// New constructs a Server: it connects the pool (pinging it) and builds the
// repositories on the pool's session provider.
func New(cfg *config.Config, logger *zerolog.Logger, loggerService *loggerPkg.LoggerService) (*Server, error) {
	db, err := database.New(cfg, logger, loggerService)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &Server{
		Config:        cfg,
		Logger:        logger,
		LoggerService: loggerService,
		DB:            db,
		Repositories:  repository.NewRepositories(db.Provider(), logger),
	}, nil
}

// HealthCheck pings the database.
func (s *Server) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	if err := s.DB.Pool.Ping(ctx); err != nil {
		s.Logger.Error().Err(err).Dur("response_time", time.Since(start)).Msg("database health check failed")
		return fmt.Errorf("database health check: %w", err)
	}
	s.Logger.Debug().Dur("response_time", time.Since(start)).Msg("database health check passed")
	return nil
}

// Shutdown releases the server's dependencies: it closes the database pool
// and flushes New Relic.
//
// Closing the pool waits for acquired connections to be released. If ctx ends
// first, Shutdown returns ctx's error and the pool finishes closing in the
// background.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := closeWithin(ctx, s.DB.Close); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	s.LoggerService.Shutdown()
	return nil
}

// closeWithin runs closeFn and waits for it until ctx ends.
func closeWithin(ctx context.Context, closeFn func() error) error {
	closed := make(chan error, 1)
	go func() {
		closed <- closeFn()
	}()

	select {
	case err := <-closed:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
