package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deppfellow/recordstore/internal/database"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newUnreachableServer builds a Server on a lazily connecting pool whose
// address refuses connections.
func newUnreachableServer(t *testing.T) *Server {
	t.Helper()
	pool, err := pgxpool.New(context.Background(), "postgres://app@127.0.0.1:1/records?sslmode=disable&connect_timeout=1")
	require.NoError(t, err)

	logger := zerolog.Nop()
	return &Server{
		Logger: &logger,
		DB:     database.NewFromPool(pool, &logger),
	}
}

func TestServer_HealthCheck(t *testing.T) {
	t.Run("Should fail when the database is unreachable", func(t *testing.T) {
		s := newUnreachableServer(t)
		t.Cleanup(s.DB.Pool.Close)

		err := s.HealthCheck(context.Background())
		assert.ErrorContains(t, err, "database health check")
	})
}

func TestServer_Shutdown(t *testing.T) {
	t.Run("Should close the pool", func(t *testing.T) {
		s := newUnreachableServer(t)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, s.Shutdown(ctx))

		_, err := s.DB.Pool.Acquire(context.Background())
		assert.Error(t, err)
	})
}

func TestCloseWithin(t *testing.T) {
	t.Run("Should return the close result", func(t *testing.T) {
		cause := errors.New("close failed")
		assert.NoError(t, closeWithin(context.Background(), func() error { return nil }))
		assert.ErrorIs(t, closeWithin(context.Background(), func() error { return cause }), cause)
	})

	t.Run("Should give up when the deadline passes", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := closeWithin(ctx, func() error {
			<-release
			return nil
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
