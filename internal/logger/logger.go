// Package logger configures the application's logging,
// monitoring, and observability.
//
// It uses *ZeroLog* for logging and optionally integrates with
// *New Relic*, forwarding logs and traces when a license key is
// configured.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/deppfellow/recordstore/internal/config"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/newrelic/go-agent/v3/integrations/logcontext-v2/zerologWriter"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// LoggerService owns the optional New Relic application.
//
// A nil application means New Relic is disabled; callers check
// GetApplication() before attaching instrumentation.
type LoggerService struct {
	nrApp *newrelic.Application
}

// NewLoggerService starts the New Relic agent when a license key is set.
func NewLoggerService(cfg *config.ObservabilityConfig) (*LoggerService, error) {
	service := &LoggerService{}

	if !cfg.NewRelic.Enabled() {
		return service, nil
	}

	opts := []newrelic.ConfigOption{
		newrelic.ConfigAppName(cfg.ServiceName),
		newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
		newrelic.ConfigAppLogForwardingEnabled(cfg.NewRelic.AppLogForwardingEnabled),
		newrelic.ConfigDistributedTracerEnabled(cfg.NewRelic.DistributedTracingEnabled),
		newrelic.ConfigEnabled(true),
	}
	if cfg.NewRelic.DebugLogging {
		opts = append(opts, newrelic.ConfigDebugLogger(os.Stdout))
	}

	app, err := newrelic.NewApplication(opts...)
	if err != nil {
		return nil, err
	}
	service.nrApp = app

	return service, nil
}

// GetApplication returns the New Relic application, or nil when disabled.
func (s *LoggerService) GetApplication() *newrelic.Application {
	if s == nil {
		return nil
	}
	return s.nrApp
}

// Shutdown flushes pending New Relic data.
func (s *LoggerService) Shutdown() {
	if s.GetApplication() != nil {
		s.nrApp.Shutdown(10 * time.Second)
	}
}

// NewLogger builds the main application logger.
//
// In production (or when format is "json") entries are JSON. Otherwise a
// human-friendly console writer is used. With New Relic log forwarding
// enabled the writer is wrapped so entries are also shipped to the agent.
func NewLogger(cfg *config.ObservabilityConfig, loggerService *LoggerService) zerolog.Logger {
	return newLogger(os.Stdout, cfg, loggerService)
}

func newLogger(out io.Writer, cfg *config.ObservabilityConfig, loggerService *LoggerService) zerolog.Logger {
	level := parseLevel(cfg.GetLogLevel())

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	var writer io.Writer = out
	if cfg.Logging.Format == "console" && !cfg.IsProduction() {
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	if app := loggerService.GetApplication(); app != nil && cfg.NewRelic.AppLogForwardingEnabled {
		writer = zerologWriter.New(writer, app)
	}

	return zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("environment", cfg.Environment).
		Logger()
}

// NewPgxLogger creates a logger dedicated to SQL tracing output.
//
// It always uses the console writer: query tracing is only enabled in the
// local environment where readability matters more than machine parsing.
func NewPgxLogger(level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}).
		Level(level).
		With().
		Timestamp().
		Str("component", "database").
		Logger()
}

// GetPgxTraceLogLevel converts a zerolog level into the matching pgx
// tracelog level.
func GetPgxTraceLogLevel(level zerolog.Level) int {
	switch level {
	case zerolog.TraceLevel:
		return int(tracelog.LogLevelTrace)
	case zerolog.DebugLevel:
		return int(tracelog.LogLevelDebug)
	case zerolog.InfoLevel:
		return int(tracelog.LogLevelInfo)
	case zerolog.WarnLevel:
		return int(tracelog.LogLevelWarn)
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		return int(tracelog.LogLevelError)
	case zerolog.Disabled:
		return int(tracelog.LogLevelNone)
	default:
		return int(tracelog.LogLevelInfo)
	}
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
