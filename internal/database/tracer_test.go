package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// steppingClock returns each of times in turn.
func steppingClock(times ...time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		t := times[i]
		i++
		return t
	}
}

func TestSlowQueryTracer(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	const sql = "SELECT id FROM users WHERE name = $1"

	run := func(t *testing.T, elapsed time.Duration, queryErr error) []byte {
		t.Helper()
		var buf bytes.Buffer
		logger := zerolog.New(&buf)
		tracer := newSlowQueryTracer(100*time.Millisecond, &logger)
		tracer.now = steppingClock(base, base.Add(elapsed))

		ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: sql})
		tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: queryErr})
		return buf.Bytes()
	}

	t.Run("Should stay quiet below the threshold", func(t *testing.T) {
		assert.Empty(t, run(t, 40*time.Millisecond, nil))
	})

	t.Run("Should stay quiet at exactly the threshold", func(t *testing.T) {
		assert.Empty(t, run(t, 100*time.Millisecond, nil))
	})

	t.Run("Should warn about queries above the threshold", func(t *testing.T) {
		out := run(t, 250*time.Millisecond, errors.New("canceling statement"))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(out, &entry))
		assert.Equal(t, "warn", entry["level"])
		assert.Equal(t, "slow query", entry["message"])
		assert.Equal(t, sql, entry["sql"])
		assert.Equal(t, float64(250), entry["duration"])
		assert.Equal(t, "canceling statement", entry["error"])
	})

	t.Run("Should ignore an end without a matching start", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)
		tracer := newSlowQueryTracer(time.Millisecond, &logger)

		tracer.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})
		assert.Zero(t, buf.Len())
	})
}

func TestMultiTracer(t *testing.T) {
	t.Run("Should pass the context through every tracer", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)
		slow := newSlowQueryTracer(10*time.Millisecond, &logger)
		base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		slow.now = steppingClock(base, base.Add(time.Second))

		mt := &multiTracer{tracers: []pgx.QueryTracer{slow}}
		ctx := mt.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
		mt.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})

		assert.Contains(t, buf.String(), "slow query")
	})
}
