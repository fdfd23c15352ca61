package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"onthecheap/internal/config"
	"onthecheap/internal/logging"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "onthecheap",
	Short: "OnTheCheap - find restaurant specials that are on right now",
	Long: `OnTheCheap serves the venue specials API: nearby search merged from
the owner-managed catalogue and external providers, the owner portal for
claiming venues and managing specials, and user favorites.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("onthecheap version %s\nCommit: %s\n", Version, Commit))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(claimsCmd)
}
