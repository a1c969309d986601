package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/wonny/fincore/internal/contracts"
)

const basicsChunkSize = 1000

// BasicsResult reports the stock master pass
type BasicsResult struct {
	Seen    int `json:"seen"`    // distinct codes found in the source
	Created int `json:"created"` // stocks that did not exist before
}

// StocksFromRows derives stock master entries from the first-seen ts_code of
// each row. Market comes from the code suffix and the display name defaults
// to the bare symbol.
func StocksFromRows(rows []map[string]string) []*contracts.Stock {
	seen := make(map[string]bool)
	var stocks []*contracts.Stock

	for _, row := range rows {
		code := strings.TrimSpace(row["ts_code"])
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true

		symbol := contracts.SymbolFromCode(code)
		stocks = append(stocks, &contracts.Stock{
			Symbol: symbol,
			TSCode: code,
			Name:   symbol,
			Market: contracts.MarketFromCode(code),
			Status: contracts.StockActive,
		})
	}
	return stocks
}

// ImportStockBasics creates missing stocks in chunks. Existing stocks are left untouched.
func ImportStockBasics(ctx context.Context, repo contracts.StockRepository, rows []map[string]string) (BasicsResult, error) {
	stocks := StocksFromRows(rows)
	result := BasicsResult{Seen: len(stocks)}

	for start := 0; start < len(stocks); start += basicsChunkSize {
		end := start + basicsChunkSize
		if end > len(stocks) {
			end = len(stocks)
		}

		created, err := repo.InsertIfAbsent(ctx, stocks[start:end])
		if err != nil {
			return result, fmt.Errorf("insert stocks %d-%d: %w", start, end, err)
		}
		result.Created += created
	}

	return result, nil
}
