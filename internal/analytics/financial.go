package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wonny/fincore/internal/contracts"
	"github.com/wonny/fincore/internal/health"
	"github.com/wonny/fincore/internal/ingest"
	"github.com/wonny/fincore/pkg/redis"
)

const (
	industryTop   = 20
	defaultMetric = "roe"
)

// parseReportPeriod maps "", "all" to no filter
func parseReportPeriod(s string) (contracts.ReportPeriod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return "", nil
	case string(contracts.PeriodQuarter):
		return contracts.PeriodQuarter, nil
	case string(contracts.PeriodAnnual):
		return contracts.PeriodAnnual, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedPeriod, s)
}

// GetFinancialData returns the latest indicator records of symbol, newest first.
// period filters by quarter or annual; empty or "all" returns both.
func (s *Service) GetFinancialData(ctx context.Context, symbol, period string, limit int) ([]*contracts.StatementRecord, error) {
	rp, err := parseReportPeriod(period)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit, DefaultFinancialLimit)

	st, err := s.stock(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var records []*contracts.StatementRecord
	key := redis.FinancialKey(st.Symbol, "indicator-"+string(rp), limit)
	err = s.cache.GetOrSet(ctx, key, &records, s.ttl.FinancialTTL, func() (interface{}, error) {
		return s.statements.ListByStock(ctx, st.ID, contracts.StatementIndicator, rp, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("list indicators of %s: %w", st.Symbol, err)
	}
	if records == nil {
		records = []*contracts.StatementRecord{}
	}
	return records, nil
}

// FinancialRow is one report date of the combined statement view
type FinancialRow struct {
	health.Combined
	Label string `json:"period_label"`
}

// CombinedFinancials joins income, indicator and cash flow records of symbol
// by report date, newest first
func (s *Service) CombinedFinancials(ctx context.Context, symbol string, limit int) ([]FinancialRow, error) {
	limit = clampLimit(limit, DefaultFinancialLimit)

	st, err := s.stock(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var rows []FinancialRow
	err = s.cache.GetOrSet(ctx, redis.FinancialKey(st.Symbol, "combined", limit), &rows, s.ttl.FinancialTTL, func() (interface{}, error) {
		return s.combined(ctx, st.ID, limit)
	})
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []FinancialRow{}
	}
	return rows, nil
}

func (s *Service) combined(ctx context.Context, stockID int64, limit int) ([]FinancialRow, error) {
	load := func(t contracts.StatementType) ([]*contracts.StatementRecord, error) {
		records, err := s.statements.ListByStock(ctx, stockID, t, "", limit)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", t, err)
		}
		return records, nil
	}

	income, err := load(contracts.StatementIncome)
	if err != nil {
		return nil, err
	}
	indicator, err := load(contracts.StatementIndicator)
	if err != nil {
		return nil, err
	}
	cashFlow, err := load(contracts.StatementCashFlow)
	if err != nil {
		return nil, err
	}

	combined := health.CombineByDate(income, indicator, cashFlow)
	if len(combined) > limit {
		combined = combined[:limit]
	}

	rows := make([]FinancialRow, len(combined))
	for i, c := range combined {
		rows[i] = FinancialRow{Combined: c, Label: ingest.PeriodLabel(c.ReportDate)}
	}
	return rows, nil
}

// HealthReport is the weighted health score of the latest indicator record
type HealthReport struct {
	Symbol     string          `json:"symbol"`
	Name       string          `json:"name"`
	ReportDate time.Time       `json:"report_date"`
	Label      string          `json:"period_label"`
	Score      health.Result   `json:"health_score"`
	Adjusted   health.Result   `json:"growth_adjusted_score"`
	Snapshot   health.Snapshot `json:"financial_data"`
}

// FinancialHealth scores the latest indicator record of symbol
func (s *Service) FinancialHealth(ctx context.Context, symbol string) (*HealthReport, error) {
	st, err := s.stock(ctx, symbol)
	if err != nil {
		return nil, err
	}

	latest, err := s.statements.Latest(ctx, st.ID, contracts.StatementIndicator)
	if errors.Is(err, contracts.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoFinancialData, st.Symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("latest indicator of %s: %w", st.Symbol, err)
	}

	snapshot := health.SnapshotFromIndicator(latest)
	base, adjusted := s.scorer.Evaluate(st.Symbol, snapshot)

	return &HealthReport{
		Symbol:     st.Symbol,
		Name:       st.Name,
		ReportDate: latest.ReportDate,
		Label:      ingest.PeriodLabel(latest.ReportDate),
		Score:      base,
		Adjusted:   adjusted,
		Snapshot:   snapshot,
	}, nil
}

// TrendReport compares the two latest report dates
type TrendReport struct {
	Symbol        string             `json:"symbol"`
	FinancialData []FinancialRow     `json:"financial_data"`
	Trends        map[string]float64 `json:"trends"`
}

// TrendAnalysis returns the last report dates of symbol and the percentage
// change of key figures between the two most recent. Trends are empty when
// fewer than two report dates exist.
func (s *Service) TrendAnalysis(ctx context.Context, symbol string) (*TrendReport, error) {
	rows, err := s.CombinedFinancials(ctx, symbol, trendWindow)
	if err != nil {
		return nil, err
	}

	report := &TrendReport{
		Symbol:        strings.TrimSpace(symbol),
		FinancialData: rows,
		Trends:        map[string]float64{},
	}
	if len(rows) < 2 {
		return report, nil
	}

	latest, prev := rows[0], rows[1]
	report.Trends = map[string]float64{
		"revenue":      health.Trend(latest.Revenue.ValueOrZero(), prev.Revenue.ValueOrZero()),
		"net_income":   health.Trend(latest.NetIncome.ValueOrZero(), prev.NetIncome.ValueOrZero()),
		"gross_margin": health.Trend(latest.GrossMargin.ValueOrZero(), prev.GrossMargin.ValueOrZero()),
		"roe":          health.Trend(latest.ROE.ValueOrZero(), prev.ROE.ValueOrZero()),
		"debt_ratio":   health.Trend(latest.DebtRatio.ValueOrZero(), prev.DebtRatio.ValueOrZero()),
	}
	return report, nil
}

// IndustryEntry is one stock in an industry ranking
type IndustryEntry struct {
	Symbol     string    `json:"symbol"`
	Name       string    `json:"name"`
	ReportDate time.Time `json:"report_date"`
	Value      float64   `json:"value"`
}

// IndustryStats summarizes the ranked values
type IndustryStats struct {
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
	Count   int     `json:"count"`
}

// IndustryReport ranks the active stocks of an industry by one indicator field
type IndustryReport struct {
	Industry   string          `json:"industry"`
	Metric     string          `json:"metric"`
	Entries    []IndustryEntry `json:"industry_data"`
	Statistics IndustryStats   `json:"statistics"`
}

func validMetric(metric string) bool {
	for _, c := range contracts.IndicatorColumns {
		if c == metric {
			return true
		}
	}
	return false
}

// IndustryComparison ranks the latest indicator value of metric across the
// active stocks of industry, highest first, keeping the top 20. Stocks
// without a value for metric are left out.
func (s *Service) IndustryComparison(ctx context.Context, industry, metric string) (*IndustryReport, error) {
	industry = strings.TrimSpace(industry)
	if industry == "" {
		return nil, ErrIndustryRequired
	}
	metric = strings.ToLower(strings.TrimSpace(metric))
	if metric == "" {
		metric = defaultMetric
	}
	if !validMetric(metric) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}

	stocks, err := s.stocks.List(ctx, contracts.StockActive)
	if err != nil {
		return nil, fmt.Errorf("list stocks: %w", err)
	}

	var entries []IndustryEntry
	for _, st := range stocks {
		if st.Industry != industry {
			continue
		}
		latest, err := s.statements.Latest(ctx, st.ID, contracts.StatementIndicator)
		if errors.Is(err, contracts.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("latest indicator of %s: %w", st.Symbol, err)
		}
		v, ok := latest.Field(metric)
		if !ok {
			continue
		}
		entries = append(entries, IndustryEntry{
			Symbol:     st.Symbol,
			Name:       st.Name,
			ReportDate: latest.ReportDate,
			Value:      v,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Value > entries[j].Value })
	if len(entries) > industryTop {
		entries = entries[:industryTop]
	}

	values := make([]float64, len(entries))
	var sum float64
	for i, e := range entries {
		values[i] = e.Value
		sum += e.Value
	}

	stats := IndustryStats{Median: health.Median(values), Count: len(entries)}
	if len(entries) > 0 {
		stats.Average = sum / float64(len(entries))
	}
	if entries == nil {
		entries = []IndustryEntry{}
	}

	return &IndustryReport{
		Industry:   industry,
		Metric:     metric,
		Entries:    entries,
		Statistics: stats,
	}, nil
}
