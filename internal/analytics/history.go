package analytics

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wonny/fincore/internal/contracts"
	"github.com/wonny/fincore/internal/indicators"
	"github.com/wonny/fincore/pkg/redis"
)

// Bar periods
const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// daysPer is the number of daily bars fetched per aggregated bar
var daysPer = map[string]int{
	PeriodDay:   1,
	PeriodWeek:  5,
	PeriodMonth: 23,
}

// ParseBarPeriod accepts day/week/month and their d/w/m, daily/weekly/monthly forms
func ParseBarPeriod(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "d", "day", "daily":
		return PeriodDay, nil
	case "w", "week", "weekly":
		return PeriodWeek, nil
	case "m", "month", "monthly":
		return PeriodMonth, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedPeriod, s)
}

// GetHistoricalData returns up to limit bars of symbol, newest first.
// Weekly and monthly bars are aggregated from the daily series.
func (s *Service) GetHistoricalData(ctx context.Context, symbol, period string, limit int) ([]contracts.PriceBar, error) {
	period, err := ParseBarPeriod(period)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit, DefaultHistoryLimit)

	st, err := s.stock(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var bars []contracts.PriceBar
	err = s.cache.GetOrSet(ctx, redis.HistoryKey(st.Symbol, period, limit), &bars, s.ttl.HistoryTTL, func() (interface{}, error) {
		if period == PeriodDay {
			daily, err := s.prices.ListRecent(ctx, st.ID, limit)
			if err != nil {
				return nil, fmt.Errorf("list prices of %s: %w", st.Symbol, err)
			}
			return daily, nil
		}

		// one extra period so the oldest returned bar is complete
		fetch := (limit + 1) * daysPer[period]
		daily, err := s.prices.ListRecent(ctx, st.ID, fetch)
		if err != nil {
			return nil, fmt.Errorf("list prices of %s: %w", st.Symbol, err)
		}
		agg := Aggregate(daily, period, 0)
		if len(daily) >= fetch && len(agg) > 0 {
			// the window cut into the oldest bucket
			agg = agg[:len(agg)-1]
		}
		if len(agg) > limit {
			agg = agg[:limit]
		}
		return agg, nil
	})
	if err != nil {
		return nil, err
	}
	if bars == nil {
		bars = []contracts.PriceBar{}
	}
	return bars, nil
}

// bucket returns the first day of the week (Monday) or month containing t
func bucket(t time.Time, period string) time.Time {
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if period == PeriodMonth {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

// Aggregate folds daily bars (any order) into week or month bars, newest first.
// Each bar is dated on its last trading day; change is measured against the
// previous aggregated close. At most limit bars are returned when limit > 0.
func Aggregate(daily []contracts.PriceBar, period string, limit int) []contracts.PriceBar {
	asc := contracts.SortedAscending(daily)

	var out []contracts.PriceBar
	var current time.Time
	for i, d := range asc {
		b := bucket(d.Date, period)
		if i == 0 || !b.Equal(current) {
			current = b
			out = append(out, contracts.PriceBar{
				Date: d.Date, Open: d.Open, High: d.High, Low: d.Low, Close: d.Close,
				Volume: d.Volume, Amount: d.Amount,
			})
			continue
		}
		agg := &out[len(out)-1]
		agg.Date = d.Date
		agg.High = math.Max(agg.High, d.High)
		agg.Low = math.Min(agg.Low, d.Low)
		agg.Close = d.Close
		agg.Volume += d.Volume
		agg.Amount += d.Amount
	}

	for i := 1; i < len(out); i++ {
		prev := out[i-1].Close
		out[i].Change = round2(out[i].Close - prev)
		if prev != 0 {
			out[i].ChangePercent = round2((out[i].Close - prev) / prev * 100)
		}
	}

	// newest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func round2(v float64) float64 {
	return indicators.Round(v, 2)
}

// CalculateTechnicalIndicators runs the selected indicators over bars in any order
func (s *Service) CalculateTechnicalIndicators(bars []contracts.PriceBar, names []string) indicators.Result {
	return indicators.Calculate(bars, names)
}

// IndicatorReport is an indicator set together with its latest-value summary
type IndicatorReport struct {
	Symbol  string             `json:"symbol"`
	Period  string             `json:"period"`
	Result  indicators.Result  `json:"indicators"`
	Summary indicators.Summary `json:"summary"`
}

// Indicators loads history of symbol and computes the named indicators on it
func (s *Service) Indicators(ctx context.Context, symbol, period string, names []string, limit int) (*IndicatorReport, error) {
	bars, err := s.GetHistoricalData(ctx, symbol, period, limit)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		names = indicators.AllNames
	}

	res := s.engine.Calculate(symbol, bars, names)
	p, _ := ParseBarPeriod(period)
	return &IndicatorReport{
		Symbol:  symbol,
		Period:  p,
		Result:  res,
		Summary: indicators.Summarize(bars, res),
	}, nil
}
