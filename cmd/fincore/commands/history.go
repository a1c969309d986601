package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/fincore/internal/indicators"
)

var historyCmd = &cobra.Command{
	Use:   "history [symbol]",
	Short: "Show price history",
	Long: `Prints daily, weekly or monthly bars, newest first.

Example:
  go run ./cmd/fincore history 600000 --period week --limit 20`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

var indicatorsCmd = &cobra.Command{
	Use:   "indicators [symbol]",
	Short: "Calculate technical indicators",
	Long: `Calculates MA, MACD, RSI, KDJ and Bollinger bands over the price
history and prints the latest values with a summary reading.

Examples:
  go run ./cmd/fincore indicators 600000
  go run ./cmd/fincore indicators 600000 --names macd,rsi --json`,
	Args: cobra.ExactArgs(1),
	RunE: runIndicators,
}

var (
	barPeriod  string
	barLimit   int
	indNames   string
	outputJSON bool
)

func init() {
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(indicatorsCmd)

	for _, c := range []*cobra.Command{historyCmd, indicatorsCmd} {
		c.Flags().StringVar(&barPeriod, "period", "day", "bar period (day|week|month)")
		c.Flags().IntVar(&barLimit, "limit", 0, "number of bars (default 100)")
		c.Flags().BoolVar(&outputJSON, "json", false, "print JSON")
	}
	indicatorsCmd.Flags().StringVar(&indNames, "names", "", "comma separated indicators (default all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	bars, err := a.service().GetHistoricalData(ctx, args[0], barPeriod, barLimit)
	if err != nil {
		return err
	}
	if outputJSON {
		return PrintJSON(bars)
	}

	PrintHeader("Price History", "Symbol", args[0], "Period", barPeriod, "Bars", strconv.Itoa(len(bars)))
	widths := []int{10, 9, 9, 9, 9, 12, 8}
	PrintTableHeader([]string{"DATE", "OPEN", "HIGH", "LOW", "CLOSE", "VOLUME", "CHG%"}, widths)
	for _, b := range bars {
		PrintTableRow([]string{
			b.Date.Format("2006-01-02"),
			fmt.Sprintf("%.2f", b.Open),
			fmt.Sprintf("%.2f", b.High),
			fmt.Sprintf("%.2f", b.Low),
			fmt.Sprintf("%.2f", b.Close),
			strconv.FormatInt(b.Volume, 10),
			fmt.Sprintf("%.2f", b.ChangePercent),
		}, widths)
	}
	return nil
}

func runIndicators(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.service().Indicators(ctx, args[0], barPeriod, indicators.ParseNames(indNames), barLimit)
	if err != nil {
		return err
	}
	if outputJSON {
		return PrintJSON(report)
	}

	res := report.Result
	PrintHeader("Technical Indicators", "Symbol", report.Symbol, "Period", report.Period, "Bars", strconv.Itoa(len(res.Dates)))
	if len(res.Dates) == 0 {
		PrintWarning("no price history")
		return nil
	}
	fmt.Printf("  As of %s\n\n", res.Dates[len(res.Dates)-1])

	for _, p := range indicators.DefaultMAPeriods {
		key := fmt.Sprintf("ma%d", p)
		if s, ok := res.MA[key]; ok {
			PrintKeyValue(key, fmtFloat(indicators.Latest(s).Ptr()), 12)
		}
	}
	if res.MACD != nil {
		PrintKeyValue("macd dif", fmtFloat(indicators.Latest(res.MACD.DIF).Ptr()), 12)
		PrintKeyValue("macd dea", fmtFloat(indicators.Latest(res.MACD.DEA).Ptr()), 12)
		PrintKeyValue("macd", fmtFloat(indicators.Latest(res.MACD.MACD).Ptr()), 12)
	}
	if res.RSI != nil {
		PrintKeyValue("rsi", fmtFloat(indicators.Latest(res.RSI).Ptr()), 12)
	}
	if res.KDJ != nil {
		PrintKeyValue("k / d / j", fmt.Sprintf("%s / %s / %s",
			fmtFloat(indicators.Latest(res.KDJ.K).Ptr()),
			fmtFloat(indicators.Latest(res.KDJ.D).Ptr()),
			fmtFloat(indicators.Latest(res.KDJ.J).Ptr())), 12)
	}
	if res.Boll != nil {
		PrintKeyValue("boll", fmt.Sprintf("%s / %s / %s",
			fmtFloat(indicators.Latest(res.Boll.Upper).Ptr()),
			fmtFloat(indicators.Latest(res.Boll.Middle).Ptr()),
			fmtFloat(indicators.Latest(res.Boll.Lower).Ptr())), 12)
	}

	PrintSeparator()
	PrintKeyValue("ma20 cross", strconv.Itoa(report.Summary.MA20Cross), 12)
	PrintKeyValue("score", fmt.Sprintf("%.2f", report.Summary.Score), 12)
	return nil
}
