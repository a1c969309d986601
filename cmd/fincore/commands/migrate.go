package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/fincore/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Creates the stock master, price, statement and quality snapshot
tables. Safe to run repeatedly.

Example:
  go run ./cmd/fincore migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := store.Migrate(ctx, a.db.Pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	PrintSuccess(fmt.Sprintf("Schema up to date (%d statements)", len(store.Schema())))
	return nil
}
