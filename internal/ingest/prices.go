package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wonny/fincore/internal/contracts"
	"github.com/wonny/fincore/pkg/logger"
)

// Skip reasons of the daily bar loader
const (
	SkipMissingClose = "missing_close"
	SkipBadDate      = "invalid_trade_date"
)

// PriceResult reports one daily bar load
type PriceResult struct {
	Rows        int            `json:"rows"`
	Saved       int            `json:"saved"`
	Skipped     int            `json:"skipped"`
	Symbols     []string       `json:"symbols"` // stocks with saved bars
	SkipReasons map[string]int `json:"skip_reasons"`
}

func (r *PriceResult) skip(reason string) {
	r.Skipped++
	r.SkipReasons[reason]++
}

func priceField(row map[string]string, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := row[k]; ok {
			d := NormalizeString(v, 4)
			if d.Valid {
				f, _ := d.Decimal.Float64()
				return f, true
			}
		}
	}
	return 0, false
}

// ParsePriceRow maps a vendor daily bar row (ts_code, trade_date, open, high,
// low, close, change, pct_chg, vol, amount) to a bar and its symbol
func ParsePriceRow(row map[string]string) (string, contracts.PriceBar, string) {
	code := strings.TrimSpace(row["ts_code"])
	if code == "" {
		code = strings.TrimSpace(row["symbol"])
	}
	if code == "" {
		return "", contracts.PriceBar{}, SkipMissingField
	}

	date, err := NormalizeReportDate(row["trade_date"])
	if err != nil {
		return "", contracts.PriceBar{}, SkipBadDate
	}

	closePx, ok := priceField(row, "close")
	if !ok {
		return "", contracts.PriceBar{}, SkipMissingClose
	}

	bar := contracts.PriceBar{Date: date, Close: closePx}
	bar.Open, _ = priceField(row, "open")
	bar.High, _ = priceField(row, "high")
	bar.Low, _ = priceField(row, "low")
	bar.Amount, _ = priceField(row, "amount")
	bar.Change, _ = priceField(row, "change")
	bar.ChangePercent, _ = priceField(row, "pct_chg", "change_percent")
	if vol, ok := priceField(row, "vol", "volume"); ok {
		bar.Volume = int64(vol + 0.5)
	}
	return contracts.SymbolFromCode(code), bar, ""
}

// LoadPrices groups rows by stock and saves each stock's bars in one call.
// Rows of unknown stocks are skipped; a write failure aborts the load.
func LoadPrices(ctx context.Context, stocks contracts.StockRepository, prices contracts.PriceWriter, rows []map[string]string, log *logger.Logger) (PriceResult, error) {
	result := PriceResult{Rows: len(rows), SkipReasons: make(map[string]int)}

	bySymbol := make(map[string][]contracts.PriceBar)
	var order []string
	for _, row := range rows {
		symbol, bar, reason := ParsePriceRow(row)
		if reason != "" {
			result.skip(reason)
			continue
		}
		if _, seen := bySymbol[symbol]; !seen {
			order = append(order, symbol)
		}
		bySymbol[symbol] = append(bySymbol[symbol], bar)
	}

	for _, symbol := range order {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		bars := bySymbol[symbol]

		st, err := stocks.GetBySymbol(ctx, symbol)
		if errors.Is(err, contracts.ErrNotFound) {
			for range bars {
				result.skip(SkipUnknownStock)
			}
			continue
		}
		if err != nil {
			return result, fmt.Errorf("lookup %s: %w", symbol, err)
		}

		if err := prices.SavePrices(ctx, st.ID, bars); err != nil {
			return result, fmt.Errorf("save prices of %s: %w", symbol, err)
		}
		result.Saved += len(bars)
		result.Symbols = append(result.Symbols, symbol)
	}

	log.WithFields(map[string]interface{}{
		"rows":    result.Rows,
		"saved":   result.Saved,
		"skipped": result.Skipped,
		"stocks":  len(result.Symbols),
	}).Info("daily bars loaded")
	return result, nil
}

// LoadPricesFile reads a daily bar CSV and loads it with LoadPrices
func LoadPricesFile(ctx context.Context, stocks contracts.StockRepository, prices contracts.PriceWriter, path string, log *logger.Logger) (PriceResult, error) {
	rows, err := readFile(path, 0)
	if err != nil {
		return PriceResult{}, err
	}
	return LoadPrices(ctx, stocks, prices, rows, log.WithField("file", path))
}
