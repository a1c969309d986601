package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/fincore/internal/contracts"
	"github.com/wonny/fincore/internal/ingest"
	"github.com/wonny/fincore/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import financial statement CSV files",
	Long: `Imports vendor statement exports. Without a file, the stock master is
seeded from the basics file and every configured statement file is loaded
in order: balancesheet, fina_indicator, income, cashflow. A relative file
is resolved under IMPORT_BASE_DIR.

Rows whose stock and report date already exist are skipped unless
--overwrite is given. --dry-run parses and validates against an in-memory
copy of the stock master and writes nothing.

Examples:
  go run ./cmd/fincore import
  go run ./cmd/fincore import --type income
  go run ./cmd/fincore import data/income_2024.csv --type income --overwrite
  go run ./cmd/fincore import --dry-run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

var (
	importType      string
	importChunk     int
	importMaxRows   int
	importOverwrite bool
	importDryRun    bool
)

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importType, "type", ingest.TypeAll, "statement type (all|balancesheet|fina_indicator|income|cashflow)")
	importCmd.Flags().IntVar(&importChunk, "chunk", 0, "rows per persistence chunk (default IMPORT_CHUNK_SIZE)")
	importCmd.Flags().IntVar(&importMaxRows, "max-rows", 0, "row cap per file (default IMPORT_MAX_ROWS)")
	importCmd.Flags().BoolVar(&importOverwrite, "overwrite", false, "update existing rows instead of skipping them")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "validate without writing to the database")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var stocks contracts.StockRepository = a.store
	var statements contracts.StatementRepository = a.store
	if importDryRun {
		mem := store.NewMemory()
		master, err := a.store.List(ctx, "")
		if err != nil {
			return fmt.Errorf("load stock master: %w", err)
		}
		if _, err := mem.InsertIfAbsent(ctx, master); err != nil {
			return err
		}
		stocks, statements = mem, mem
	}

	imp, err := a.importer(stocks, statements)
	if err != nil {
		return err
	}

	req := ingest.Request{
		Type:      importType,
		ChunkSize: importChunk,
		MaxRows:   importMaxRows,
		Overwrite: importOverwrite,
	}
	if req.ChunkSize <= 0 {
		req.ChunkSize = a.cfg.Import.ChunkSize
	}
	if req.MaxRows <= 0 {
		req.MaxRows = a.cfg.Import.MaxRows
	}
	if len(args) == 1 {
		req.File = args[0]
	}

	mode := "write"
	if importDryRun {
		mode = "dry-run"
	} else if importOverwrite {
		mode = "overwrite"
	}
	PrintHeader("Financial Statement Import", "Type", importType, "Mode", mode)

	report, err := imp.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	if report.Basics != nil {
		fmt.Printf("Stock master: %d seen, %d created\n\n", report.Basics.Seen, report.Basics.Created)
	}

	widths := []int{16, 10, 10, 40}
	PrintTableHeader([]string{"TYPE", "PROCESSED", "SKIPPED", "FILE"}, widths)
	failed := 0
	for _, f := range report.Files {
		if f.Failed() {
			failed++
			PrintTableRow([]string{string(f.Type), "-", "-", f.Path + " (" + f.Error + ")"}, widths)
			continue
		}
		PrintTableRow([]string{
			string(f.Type),
			strconv.Itoa(f.Result.Processed),
			strconv.Itoa(f.Result.Skipped),
			f.Path,
		}, widths)
		for reason, n := range f.Result.SkipReasons {
			fmt.Printf("    skipped %-20s %d\n", reason, n)
		}
	}
	PrintSeparator()

	processed, skipped := report.Totals()
	fmt.Printf("Total: %d processed, %d skipped in %s\n", processed, skipped, report.Duration.Round(time.Millisecond))

	if !importDryRun && processed > 0 {
		if err := a.service().InvalidateFinancials(ctx); err != nil {
			a.log.WithError(err).Warn("cache invalidation failed")
		}
	}

	if failed > 0 {
		PrintWarning(fmt.Sprintf("%d file(s) could not be imported", failed))
		return fmt.Errorf("%d file(s) failed", failed)
	}
	PrintSuccess("Import finished")
	return nil
}
