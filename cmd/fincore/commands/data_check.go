package commands

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/wonny/fincore/internal/contracts"
	"github.com/wonny/fincore/internal/store"
)

var dataCheckCmd = &cobra.Command{
	Use:   "data-check",
	Short: "Report table contents and data quality",
	Long: `Prints row counts and date ranges of every table, then runs the
coverage quality gate for today.

Examples:
  go run ./cmd/fincore data-check
  go run ./cmd/fincore data-check --save`,
	RunE: runDataCheck,
}

var dataCheckSave bool

func init() {
	rootCmd.AddCommand(dataCheckCmd)

	dataCheckCmd.Flags().BoolVar(&dataCheckSave, "save", false, "store the quality snapshot")
}

func runDataCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	health, err := a.db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("database health: %w", err)
	}
	PrintHeader("Data Check",
		"Ping", health.ResponseTime.String(),
		"Conns", fmt.Sprintf("%d/%d", health.Stats.TotalConns, health.Stats.MaxConns))

	widths := []int{22, 10, 8, 24}
	PrintTableHeader([]string{"TABLE", "ROWS", "STOCKS", "RANGE"}, widths)
	checkTable(ctx, a.db.Pool, "stock_daily_data", "date", widths)
	for _, t := range contracts.ImportOrder {
		checkTable(ctx, a.db.Pool, t.Table(), "report_date", widths)
	}
	fmt.Println()

	gate := store.NewQualityGate(a.db.Pool, a.cfg.Quality.MinScore)
	now := time.Now()
	snapshot, err := gate.Check(ctx, time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC))
	if err != nil {
		return fmt.Errorf("quality check: %w", err)
	}

	fmt.Printf("  Active stocks %d, with indicators %d\n\n", snapshot.TotalStocks, snapshot.ValidStocks)
	keys := make([]string, 0, len(snapshot.Coverage))
	for k := range snapshot.Coverage {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		PrintKeyValue(k, fmt.Sprintf("%.1f%% (weight %.2f)", snapshot.Coverage[k]*100, store.CoverageWeights[k]), 22)
	}
	if weakest, cov := snapshot.Weakest(); weakest != "" {
		fmt.Printf("\n  Weakest: %s (%.1f%%)\n", weakest, cov*100)
	}
	PrintSeparator()
	msg := fmt.Sprintf("Quality score %.3f (min %.2f)", snapshot.QualityScore, a.cfg.Quality.MinScore)
	if snapshot.Passed {
		PrintSuccess(msg)
	} else {
		PrintWarning(msg)
	}

	if dataCheckSave {
		if err := gate.SaveSnapshot(ctx, snapshot); err != nil {
			return err
		}
		PrintSuccess("Snapshot saved")
	}
	return nil
}

// checkTable prints one row; table and column names come from fixed identifiers
func checkTable(ctx context.Context, pool *pgxpool.Pool, table, dateCol string, widths []int) {
	var rows int64
	var stocks int
	var minDate, maxDate *time.Time

	query := fmt.Sprintf(`SELECT COUNT(*), COUNT(DISTINCT stock_id), MIN(%[2]s), MAX(%[2]s) FROM %[1]s`, table, dateCol)
	if err := pool.QueryRow(ctx, query).Scan(&rows, &stocks, &minDate, &maxDate); err != nil {
		PrintTableRow([]string{table, "error", "-", err.Error()}, widths)
		return
	}

	span := "-"
	if minDate != nil && maxDate != nil {
		span = minDate.Format("2006-01-02") + " ~ " + maxDate.Format("2006-01-02")
	}
	PrintTableRow([]string{table, strconv.FormatInt(rows, 10), strconv.Itoa(stocks), span}, widths)
}
