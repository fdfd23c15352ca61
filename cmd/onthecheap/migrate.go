package main

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"onthecheap/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or revert the database schema",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		direction := args[0]
		if direction != "up" && direction != "down" {
			return fmt.Errorf("direction must be 'up' or 'down'")
		}
		return withDatabase(cmd.Context(), func(db *sql.DB) error {
			if err := store.Migrate(db, direction); err != nil {
				return err
			}
			log.Info().Str("direction", direction).Msg("migrations applied")
			return nil
		})
	},
}
