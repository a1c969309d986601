package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wonny/fincore/internal/ingest"
)

var importPricesCmd = &cobra.Command{
	Use:   "import-prices [file...]",
	Short: "Load daily bars from vendor CSV exports",
	Long: `Upserts daily bars (ts_code, trade_date, open, high, low, close, vol,
amount, change, pct_chg) into stock_daily_data. Rows of stocks missing from
the stock master are skipped; run "import" first to seed it.

Example:
  go run ./cmd/fincore import-prices data/daily_2024.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImportPrices,
}

func init() {
	rootCmd.AddCommand(importPricesCmd)
}

func runImportPrices(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	PrintHeader("Daily Bar Import")
	svc := a.service()
	for _, path := range args {
		res, err := ingest.LoadPricesFile(ctx, a.store, a.store, path, a.log)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		for _, symbol := range res.Symbols {
			if err := svc.InvalidateSymbol(ctx, symbol); err != nil {
				a.log.WithError(err).Warn("cache invalidation failed")
			}
		}
		fmt.Printf("  %s: %d rows, %d saved for %d stocks, %d skipped\n", path, res.Rows, res.Saved, len(res.Symbols), res.Skipped)

		reasons := make([]string, 0, len(res.SkipReasons))
		for r := range res.SkipReasons {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			fmt.Printf("    skipped %-20s %d\n", r, res.SkipReasons[r])
		}
	}

	PrintSuccess("Daily bars loaded")
	return nil
}
