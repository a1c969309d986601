package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fincore/internal/contracts"
	"github.com/wonny/fincore/internal/health"
	"github.com/wonny/fincore/internal/store"
	"github.com/wonny/fincore/pkg/config"
	"github.com/wonny/fincore/pkg/logger"
)

type fixture struct {
	mem *store.Memory
	svc *Service
	ids map[string]int64
}

func newFixture(t *testing.T, stocks ...*contracts.Stock) *fixture {
	t.Helper()
	ctx := context.Background()

	mem := store.NewMemory()
	_, err := mem.InsertIfAbsent(ctx, stocks)
	require.NoError(t, err)

	ids := make(map[string]int64)
	for _, s := range stocks {
		st, err := mem.GetBySymbol(ctx, s.Symbol)
		require.NoError(t, err)
		ids[s.Symbol] = st.ID
	}

	svc := NewService(mem, mem, mem, nil, config.CacheConfig{}, logger.Nop())
	return &fixture{mem: mem, svc: svc, ids: ids}
}

func (f *fixture) add(t *testing.T, symbol string, typ contracts.StatementType, date time.Time, fields map[string]string) {
	t.Helper()
	values := make(map[string]decimal.NullDecimal, len(fields))
	for k, v := range fields {
		values[k] = decimal.NewNullDecimal(decimal.RequireFromString(v))
	}
	period := contracts.PeriodQuarter
	if date.Month() == time.December && date.Day() == 31 {
		period = contracts.PeriodAnnual
	}
	_, err := f.mem.InsertBatch(context.Background(), []*contracts.StatementRecord{{
		StockID:      f.ids[symbol],
		Symbol:       symbol,
		Type:         typ,
		ReportDate:   date,
		ReportPeriod: period,
		Fields:       values,
	}}, false)
	require.NoError(t, err)
}

func stock(symbol, industry string) *contracts.Stock {
	return &contracts.Stock{
		Symbol:   symbol,
		TSCode:   symbol + ".SH",
		Name:     "Name " + symbol,
		Market:   contracts.MarketSH,
		Industry: industry,
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dailyBars(from time.Time, closes ...float64) []contracts.PriceBar {
	bars := make([]contracts.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = contracts.PriceBar{
			Date:   from.AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 100,
			Amount: c * 100,
		}
	}
	return bars
}

func TestGetHistoricalData(t *testing.T) {
	f := newFixture(t, stock("600000", "Bank"))
	f.mem.AddPrices(f.ids["600000"], dailyBars(date(2024, 1, 1), 10, 11, 12, 13, 14)...)
	ctx := context.Background()

	bars, err := f.svc.GetHistoricalData(ctx, "600000", "day", 3)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, 14.0, bars[0].Close, "newest first")
	assert.Equal(t, 12.0, bars[2].Close)

	_, err = f.svc.GetHistoricalData(ctx, "999999", "day", 3)
	assert.ErrorIs(t, err, ErrStockNotFound)

	_, err = f.svc.GetHistoricalData(ctx, "600000", "hour", 3)
	assert.ErrorIs(t, err, ErrUnsupportedPeriod)
}

func TestGetHistoricalDataEmpty(t *testing.T) {
	f := newFixture(t, stock("600000", "Bank"))

	bars, err := f.svc.GetHistoricalData(context.Background(), "600000", "", 0)
	require.NoError(t, err)
	assert.NotNil(t, bars)
	assert.Empty(t, bars)
}

func TestAggregateWeekly(t *testing.T) {
	// 2024-01-01 is a Monday; two full weeks plus a Monday
	daily := dailyBars(date(2024, 1, 1), 10, 11, 12, 13, 14, 15, 16, 20, 21, 22, 23, 24, 25, 26, 30)

	weeks := Aggregate(daily, PeriodWeek, 0)
	require.Len(t, weeks, 3)

	assert.Equal(t, date(2024, 1, 15), weeks[0].Date)
	assert.Equal(t, 30.0, weeks[0].Close)

	first := weeks[2]
	assert.Equal(t, date(2024, 1, 7), first.Date)
	assert.Equal(t, 10.0, first.Open)
	assert.Equal(t, 16.0, first.Close)
	assert.Equal(t, 17.0, first.High)
	assert.Equal(t, 9.0, first.Low)
	assert.Equal(t, int64(700), first.Volume)
	assert.Zero(t, first.Change)

	second := weeks[1]
	assert.Equal(t, 10.0, second.Change)
	assert.Equal(t, 62.5, second.ChangePercent)

	assert.Len(t, Aggregate(daily, PeriodWeek, 2), 2)
}

func TestGetHistoricalDataWeeklyOldestBarComplete(t *testing.T) {
	closes := func(n int) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = float64(10 + i)
		}
		return out
	}

	t.Run("window cuts into a week", func(t *testing.T) {
		f := newFixture(t, stock("600000", "Bank"))
		// 2024-01-01 .. 2024-01-29, the 29th is a Monday
		f.mem.AddPrices(f.ids["600000"], dailyBars(date(2024, 1, 1), closes(29)...)...)

		weeks, err := f.svc.GetHistoricalData(context.Background(), "600000", "week", 4)
		require.NoError(t, err)
		require.Len(t, weeks, 4)

		oldest := weeks[3]
		assert.Equal(t, date(2024, 1, 14), oldest.Date)
		assert.Equal(t, 17.0, oldest.Open, "opens on Monday the 8th")
		assert.Equal(t, 24.0, oldest.High)
		assert.Equal(t, 16.0, oldest.Low)
		assert.Equal(t, int64(700), oldest.Volume)
	})

	t.Run("whole history fits", func(t *testing.T) {
		f := newFixture(t, stock("600000", "Bank"))
		f.mem.AddPrices(f.ids["600000"], dailyBars(date(2024, 1, 1), closes(22)...)...)

		weeks, err := f.svc.GetHistoricalData(context.Background(), "600000", "week", 4)
		require.NoError(t, err)
		require.Len(t, weeks, 4)
		assert.Equal(t, 10.0, weeks[3].Open)
		assert.Equal(t, date(2024, 1, 1), weeks[3].Date.AddDate(0, 0, -6))
	})
}

func TestAggregateMonthly(t *testing.T) {
	daily := append(dailyBars(date(2024, 1, 30), 10, 11, 12), dailyBars(date(2024, 3, 1), 20)...)

	months := Aggregate(daily, PeriodMonth, 0)
	require.Len(t, months, 3)
	assert.Equal(t, time.March, months[0].Date.Month())
	assert.Equal(t, time.February, months[1].Date.Month())
	assert.Equal(t, 12.0, months[1].Close)
	assert.Equal(t, 11.0, months[2].Close)
}

func TestParseBarPeriod(t *testing.T) {
	tests := map[string]string{"": PeriodDay, "D": PeriodDay, "weekly": PeriodWeek, " m ": PeriodMonth}
	for in, want := range tests {
		got, err := ParseBarPeriod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
}

func TestIndicators(t *testing.T) {
	f := newFixture(t, stock("600000", "Bank"))
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = float64(10 + i)
	}
	f.mem.AddPrices(f.ids["600000"], dailyBars(date(2024, 1, 1), closes...)...)

	report, err := f.svc.Indicators(context.Background(), "600000", "day", []string{"rsi", "ma"}, 30)
	require.NoError(t, err)
	assert.Equal(t, PeriodDay, report.Period)
	assert.Len(t, report.Result.Dates, 30)
	assert.Equal(t, "2024-01-11", report.Result.Dates[0], "indicators run oldest first")
	require.NotNil(t, report.Summary.RSI)
	assert.Equal(t, 100.0, *report.Summary.RSI)
	assert.Nil(t, report.Result.MACD)
}

func TestGetFinancialData(t *testing.T) {
	f := newFixture(t, stock("600000", "Bank"))
	ctx := context.Background()
	f.add(t, "600000", contracts.StatementIndicator, date(2023, 12, 31), map[string]string{"roe": "0.12"})
	f.add(t, "600000", contracts.StatementIndicator, date(2024, 3, 31), map[string]string{"roe": "0.03"})
	f.add(t, "600000", contracts.StatementIndicator, date(2024, 6, 30), map[string]string{"roe": "0.06"})

	all, err := f.svc.GetFinancialData(ctx, "600000", "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, date(2024, 6, 30), all[0].ReportDate)

	annual, err := f.svc.GetFinancialData(ctx, "600000", "annual", 0)
	require.NoError(t, err)
	require.Len(t, annual, 1)
	roe, ok := annual[0].Field("roe")
	require.True(t, ok)
	assert.Equal(t, 0.12, roe)

	limited, err := f.svc.GetFinancialData(ctx, "600000", "quarter", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = f.svc.GetFinancialData(ctx, "600000", "monthly", 1)
	assert.ErrorIs(t, err, ErrUnsupportedPeriod)
}

func TestFinancialHealth(t *testing.T) {
	f := newFixture(t, stock("600519", "Liquor"), stock("000001", "Bank"))
	ctx := context.Background()

	f.add(t, "600519", contracts.StatementIndicator, date(2023, 12, 31), map[string]string{"roe": "0.01"})
	f.add(t, "600519", contracts.StatementIndicator, date(2024, 3, 31), map[string]string{
		"roe": "0.20", "grossprofit_margin": "0.5", "netprofit_margin": "0.2",
		"debt_to_assets": "0.3", "current_ratio": "2.5", "quick_ratio": "2.0", "roa": "0.10",
	})

	report, err := f.svc.FinancialHealth(ctx, "600519")
	require.NoError(t, err)
	assert.Equal(t, date(2024, 3, 31), report.ReportDate)
	assert.Equal(t, "2024 Q1", report.Label)
	assert.Equal(t, 96.0, report.Score.TotalScore)
	assert.Equal(t, health.GradeExcellent, report.Score.Grade)
	assert.Equal(t, report.Score, report.Adjusted)

	_, err = f.svc.FinancialHealth(ctx, "000001")
	assert.ErrorIs(t, err, ErrNoFinancialData)

	_, err = f.svc.FinancialHealth(ctx, "nope")
	assert.ErrorIs(t, err, ErrStockNotFound)
}

func TestTrendAnalysis(t *testing.T) {
	f := newFixture(t, stock("600000", "Bank"))
	ctx := context.Background()

	f.add(t, "600000", contracts.StatementIncome, date(2023, 12, 31), map[string]string{"revenue": "100", "net_income": "0"})
	f.add(t, "600000", contracts.StatementIncome, date(2024, 3, 31), map[string]string{"revenue": "150", "net_income": "10"})
	f.add(t, "600000", contracts.StatementIndicator, date(2023, 12, 31), map[string]string{"roe": "0.10", "debt_to_assets": "0.5"})
	f.add(t, "600000", contracts.StatementIndicator, date(2024, 3, 31), map[string]string{"roe": "0.05", "debt_to_assets": "0.5"})

	report, err := f.svc.TrendAnalysis(ctx, "600000")
	require.NoError(t, err)
	require.Len(t, report.FinancialData, 2)
	assert.Equal(t, "2024 Q1", report.FinancialData[0].Label)
	assert.Equal(t, "2023 FY", report.FinancialData[1].Label)

	assert.InDelta(t, 50.0, report.Trends["revenue"], 1e-9)
	assert.Equal(t, 100.0, report.Trends["net_income"], "previous zero with positive current")
	assert.InDelta(t, -50.0, report.Trends["roe"], 1e-9)
	assert.Equal(t, 0.0, report.Trends["debt_ratio"])
	assert.Equal(t, 0.0, report.Trends["gross_margin"])
}

func TestTrendAnalysisSingleDate(t *testing.T) {
	f := newFixture(t, stock("600000", "Bank"))
	f.add(t, "600000", contracts.StatementIncome, date(2024, 3, 31), map[string]string{"revenue": "150"})

	report, err := f.svc.TrendAnalysis(context.Background(), "600000")
	require.NoError(t, err)
	assert.Len(t, report.FinancialData, 1)
	assert.Empty(t, report.Trends)
}

func TestIndustryComparison(t *testing.T) {
	f := newFixture(t,
		stock("600001", "Bank"), stock("600002", "Bank"), stock("600003", "Bank"),
		stock("600004", "Bank"), stock("600005", "Steel"),
	)
	ctx := context.Background()
	d := date(2024, 3, 31)

	f.add(t, "600001", contracts.StatementIndicator, d, map[string]string{"roe": "0.10"})
	f.add(t, "600002", contracts.StatementIndicator, d, map[string]string{"roe": "0.30"})
	f.add(t, "600003", contracts.StatementIndicator, d, map[string]string{"roe": "0.20"})
	f.add(t, "600004", contracts.StatementIndicator, d, map[string]string{"eps": "1.5"})
	f.add(t, "600005", contracts.StatementIndicator, d, map[string]string{"roe": "0.90"})

	report, err := f.svc.IndustryComparison(ctx, "Bank", "")
	require.NoError(t, err)
	assert.Equal(t, "roe", report.Metric)
	require.Len(t, report.Entries, 3)
	assert.Equal(t, "600002", report.Entries[0].Symbol)
	assert.Equal(t, "600001", report.Entries[2].Symbol)
	assert.Equal(t, 3, report.Statistics.Count)
	assert.InDelta(t, 0.2, report.Statistics.Average, 1e-9)
	assert.InDelta(t, 0.2, report.Statistics.Median, 1e-9)

	_, err = f.svc.IndustryComparison(ctx, "Bank", "drop table")
	assert.ErrorIs(t, err, ErrUnknownMetric)

	_, err = f.svc.IndustryComparison(ctx, " ", "roe")
	assert.ErrorIs(t, err, ErrIndustryRequired)

	empty, err := f.svc.IndustryComparison(ctx, "Retail", "roe")
	require.NoError(t, err)
	assert.Empty(t, empty.Entries)
	assert.Zero(t, empty.Statistics.Median)
}

func TestInvalidateWithoutCache(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.svc.InvalidateFinancials(context.Background()))
	assert.NoError(t, f.svc.InvalidateSymbol(context.Background(), "600000"))
}
