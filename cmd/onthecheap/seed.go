package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"onthecheap/internal/seed"
	"onthecheap/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo venue catalogue into an empty database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd.Context(), func(db *sql.DB) error {
			n, err := seed.Apply(cmd.Context(), store.New(db))
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Println("Catalogue already populated, nothing to do")
				return nil
			}
			fmt.Printf("Seeded %d venues\n", n)
			return nil
		})
	},
}
