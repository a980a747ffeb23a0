package main

import (
	"github.com/deppfellow/recordstore/internal/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer loggerService.Shutdown()
		return database.Migrate(cmd.Context(), &log, cfg)
	},
}
