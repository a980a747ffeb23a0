package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/deppfellow/recordstore/internal/config"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("Should write JSON entries with service labels", func(t *testing.T) {
		cfg := config.DefaultObservabilityConfig()
		cfg.Environment = "production"

		var buf bytes.Buffer
		log := newLogger(&buf, &cfg, nil)
		log.Info().Str("table", "users").Msg("inserted")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "inserted", entry["message"])
		assert.Equal(t, "recordstore", entry["service"])
		assert.Equal(t, "production", entry["environment"])
		assert.Equal(t, "users", entry["table"])
	})

	t.Run("Should drop entries below the configured level", func(t *testing.T) {
		cfg := config.DefaultObservabilityConfig()
		cfg.Logging.Level = "warn"

		var buf bytes.Buffer
		log := newLogger(&buf, &cfg, nil)
		log.Info().Msg("hidden")

		assert.Zero(t, buf.Len())
	})
}

func TestLoggerService(t *testing.T) {
	cfg := config.DefaultObservabilityConfig()

	service, err := NewLoggerService(&cfg)
	require.NoError(t, err)
	assert.Nil(t, service.GetApplication())

	var nilService *LoggerService
	assert.Nil(t, nilService.GetApplication())
	service.Shutdown()
}

func TestGetPgxTraceLogLevel(t *testing.T) {
	assert.Equal(t, int(tracelog.LogLevelDebug), GetPgxTraceLogLevel(zerolog.DebugLevel))
	assert.Equal(t, int(tracelog.LogLevelWarn), GetPgxTraceLogLevel(zerolog.WarnLevel))
	assert.Equal(t, int(tracelog.LogLevelError), GetPgxTraceLogLevel(zerolog.FatalLevel))
	assert.Equal(t, int(tracelog.LogLevelNone), GetPgxTraceLogLevel(zerolog.Disabled))
}
