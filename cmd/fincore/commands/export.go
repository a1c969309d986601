package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [symbols...]",
	Short: "Export indicator series to Parquet",
	Long: `Writes one Snappy-compressed Parquet file per stock holding the daily
bars and every indicator channel. Without symbols, every active stock is
exported.

Examples:
  go run ./cmd/fincore export
  go run ./cmd/fincore export 600000 000001 --limit 250 --dir /tmp/out`,
	RunE: runExport,
}

var (
	exportDir     string
	exportWorkers int
	exportLimit   int
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportDir, "dir", "", "output directory (default EXPORT_DIR)")
	exportCmd.Flags().IntVar(&exportWorkers, "workers", 0, "concurrent symbols (default EXPORT_WORKERS)")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "bars per symbol, 0 for all")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ex := a.exporter(exportDir, exportWorkers)
	summary, err := ex.Export(ctx, args, exportLimit)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	PrintHeader("Indicator Export",
		"Written", strconv.Itoa(summary.Written),
		"Skipped", strconv.Itoa(summary.Skipped),
		"Failed", strconv.Itoa(summary.Failed))
	for _, f := range summary.Files {
		if f.Error != "" {
			PrintError(fmt.Sprintf("%s: %s", f.Symbol, f.Error))
		}
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d symbol(s) failed", summary.Failed)
	}
	PrintSuccess(fmt.Sprintf("Export finished in %s", summary.Duration))
	return nil
}
