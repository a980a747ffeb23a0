// Package main provides the recordstore CLI.
//
// It loads configuration from the environment, applies migrations, and
// exposes the users record store for manual inspection and maintenance.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deppfellow/recordstore/internal/config"
	"github.com/deppfellow/recordstore/internal/errs"
	"github.com/deppfellow/recordstore/internal/logger"
	"github.com/deppfellow/recordstore/internal/server"
	"github.com/deppfellow/recordstore/internal/sqlerr"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// shutdownTimeout bounds how long closing the pool may take on exit.
const shutdownTimeout = 10 * time.Second

// Loaded once by PersistentPreRunE.
var (
	cfg           *config.Config
	log           zerolog.Logger
	loggerService *logger.LoggerService
)

var flagJSON bool

var rootCmd = &cobra.Command{
	Use:           "recordstore",
	Short:         "Inspect and maintain the record store",
	Args:          usageArgs(cobra.NoArgs),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Command groups only print help.
		if cmd.HasSubCommands() {
			return nil
		}

		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return err
		}

		loggerService, err = logger.NewLoggerService(&cfg.Observability)
		if err != nil {
			return fmt.Errorf("starting new relic: %w", err)
		}

		log = logger.NewLogger(&cfg.Observability, loggerService)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(usersCmd)
}

// usageError marks a command line the user has to fix: an unknown flag, a
// malformed flag value or the wrong number of arguments.
type usageError struct {
	err error
}

func (e *usageError) Error() string {
	return e.err.Error()
}

func (e *usageError) Unwrap() error {
	return e.err
}

// usageArgs wraps a cobra argument validator so its failures are usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

// withServer builds the application container, runs fn, and shuts it down.
func withServer(ctx context.Context, fn func(ctx context.Context, s *server.Server) error) error {
	s, err := server.New(cfg, &log, loggerService)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}()
	return fn(ctx, s)
}

// classified reports whether err came from the store or was raised as an
// HTTP-shaped error by a command.
func classified(err error) bool {
	var httpErr *errs.HTTPError
	return errs.KindOf(err) != nil || errors.As(err, &httpErr)
}

// exitCode maps a command error onto the process exit code. Failures the
// caller can fix (usage, bad input, conflicts, missing records) are user
// errors.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		return exitUserError
	}
	if classified(err) && sqlerr.HandleError(err).Status < 500 {
		return exitUserError
	}
	return exitSysError
}

// describeError renders err the way an API client would see it.
func describeError(err error) string {
	if !classified(err) {
		return err.Error()
	}
	httpErr := sqlerr.HandleError(err)
	if httpErr.Status >= 500 {
		return fmt.Sprintf("%s: %v", httpErr.Code, err)
	}
	return fmt.Sprintf("%s: %s", httpErr.Code, httpErr.Message)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(exitCode(err))
	}
}
