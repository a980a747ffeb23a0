package main

import (
	"context"
	"fmt"
	"io"

	"github.com/deppfellow/recordstore/internal/server"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the database is reachable",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServer(cmd.Context(), func(ctx context.Context, s *server.Server) error {
			return runHealth(ctx, s, cmd.OutOrStdout())
		})
	},
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

func runHealth(ctx context.Context, checker healthChecker, w io.Writer) error {
	if err := checker.HealthCheck(ctx); err != nil {
		return err
	}
	fmt.Fprintln(w, "ok")
	return nil
}
