package commands

import (
	"fmt"
	"strconv"

	"github.com/guregu/null/v6"
	"github.com/spf13/cobra"

	"github.com/wonny/fincore/internal/health"
)

var healthCmd = &cobra.Command{
	Use:   "health [symbol]",
	Short: "Score financial health",
	Long: `Scores the latest indicator record on profitability, solvency,
efficiency and growth (weights 40/30/20/10). The growth-adjusted score
replaces the baseline growth component with one derived from year-over-year
revenue and net income.

Example:
  go run ./cmd/fincore health 600000`,
	Args: cobra.ExactArgs(1),
	RunE: runHealth,
}

var trendCmd = &cobra.Command{
	Use:   "trend [symbol]",
	Short: "Compare the two latest report dates",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrend,
}

var financialsCmd = &cobra.Command{
	Use:   "financials [symbol]",
	Short: "Show combined income, ratio and cash flow figures",
	Long: `Joins income, indicator and cash flow records by report date, with
the quick letter grade, cash flow adequacy and DuPont decomposition.

Example:
  go run ./cmd/fincore financials 600000 --limit 4`,
	Args: cobra.ExactArgs(1),
	RunE: runFinancials,
}

var industryCmd = &cobra.Command{
	Use:   "industry [name]",
	Short: "Rank an industry by one indicator",
	Long: `Ranks the active stocks of an industry by the latest value of an
indicator field (default roe), top 20, with average and median.

Example:
  go run ./cmd/fincore industry Bank --metric netprofit_margin`,
	Args: cobra.ExactArgs(1),
	RunE: runIndustry,
}

var (
	finLimit       int
	industryMetric string
)

func init() {
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(trendCmd)
	rootCmd.AddCommand(financialsCmd)
	rootCmd.AddCommand(industryCmd)

	for _, c := range []*cobra.Command{healthCmd, trendCmd, financialsCmd, industryCmd} {
		c.Flags().BoolVar(&outputJSON, "json", false, "print JSON")
	}
	financialsCmd.Flags().IntVar(&finLimit, "limit", 0, "number of report dates (default 8)")
	industryCmd.Flags().StringVar(&industryMetric, "metric", "roe", "indicator field to rank by")
}

func pct(v null.Float) string {
	if !v.Valid {
		return "-"
	}
	return fmt.Sprintf("%.2f", v.Float64)
}

func printResult(title string, r health.Result) {
	fmt.Printf("  %s: %.1f (%s)\n", title, r.TotalScore, r.Grade)
	PrintKeyValue("profitability", fmt.Sprintf("%.1f", r.Breakdown.Profitability), 14)
	PrintKeyValue("solvency", fmt.Sprintf("%.1f", r.Breakdown.Solvency), 14)
	PrintKeyValue("efficiency", fmt.Sprintf("%.1f", r.Breakdown.Efficiency), 14)
	PrintKeyValue("growth", fmt.Sprintf("%.1f", r.Breakdown.Growth), 14)
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.service().FinancialHealth(ctx, args[0])
	if err != nil {
		return err
	}
	if outputJSON {
		return PrintJSON(report)
	}

	PrintHeader("Financial Health", "Symbol", report.Symbol, "Name", report.Name, "Report", report.Label)
	printResult("Score", report.Score)
	fmt.Println()
	printResult("Growth adjusted", report.Adjusted)
	return nil
}

func runTrend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.service().TrendAnalysis(ctx, args[0])
	if err != nil {
		return err
	}
	if outputJSON {
		return PrintJSON(report)
	}

	PrintHeader("Trend", "Symbol", report.Symbol, "Dates", strconv.Itoa(len(report.FinancialData)))
	if len(report.Trends) == 0 {
		PrintWarning("need at least two report dates")
		return nil
	}
	for _, k := range []string{"revenue", "net_income", "gross_margin", "roe", "debt_ratio"} {
		PrintKeyValue(k, fmt.Sprintf("%+.2f%%", report.Trends[k]), 14)
	}
	return nil
}

func runFinancials(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	rows, err := a.service().CombinedFinancials(ctx, args[0], finLimit)
	if err != nil {
		return err
	}
	if outputJSON {
		return PrintJSON(rows)
	}

	PrintHeader("Financials", "Symbol", args[0], "Dates", strconv.Itoa(len(rows)))
	widths := []int{8, 16, 16, 8, 8, 8, 6, 6}
	PrintTableHeader([]string{"PERIOD", "REVENUE", "NET INCOME", "GM%", "ROE%", "DEBT%", "GRADE", "CFA"}, widths)
	for _, r := range rows {
		grade := "-"
		if r.Quick != nil {
			grade = r.Quick.Grade
		}
		cfa := "-"
		if r.CashFlowAdequacy.Valid {
			cfa = strconv.FormatInt(r.CashFlowAdequacy.Int64, 10)
		}
		PrintTableRow([]string{
			r.Label, pct(r.Revenue), pct(r.NetIncome), pct(r.GrossMargin),
			pct(r.ROE), pct(r.DebtRatio), grade, cfa,
		}, widths)
	}
	return nil
}

func runIndustry(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.service().IndustryComparison(ctx, args[0], industryMetric)
	if err != nil {
		return err
	}
	if outputJSON {
		return PrintJSON(report)
	}

	PrintHeader("Industry Comparison", "Industry", report.Industry, "Metric", report.Metric)
	widths := []int{4, 8, 20, 10, 12}
	PrintTableHeader([]string{"#", "SYMBOL", "NAME", "REPORT", "VALUE"}, widths)
	for i, e := range report.Entries {
		PrintTableRow([]string{
			strconv.Itoa(i + 1), e.Symbol, e.Name, e.ReportDate.Format("2006-01-02"), fmt.Sprintf("%.2f", e.Value),
		}, widths)
	}
	PrintSeparator()
	fmt.Printf("  count %d  average %.2f  median %.2f\n",
		report.Statistics.Count, report.Statistics.Average, report.Statistics.Median)
	return nil
}
