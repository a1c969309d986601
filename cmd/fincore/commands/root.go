package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "fincore",
	Short: "Financial statement ingestion and analytics",
	Long: `fincore loads vendor financial statement CSVs into PostgreSQL and
answers derived queries over them: price history, technical indicators,
financial health scores, trends and industry rankings.

Usage:
  go run ./cmd/fincore [command]

Examples:
  go run ./cmd/fincore migrate
  go run ./cmd/fincore import --type all
  go run ./cmd/fincore health 600000
  go run ./cmd/fincore api`,
	SilenceUsage: true,
}

// Execute runs the root command. Called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
