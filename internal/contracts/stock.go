package contracts

import (
	"strings"
	"time"
)

// Market is the listing venue of a stock
type Market string

const (
	MarketSH Market = "SH"
	MarketSZ Market = "SZ"
	MarketHK Market = "HK"
	MarketUS Market = "US"
)

// StockStatus is the lifecycle state of a stock. Stocks are never deleted.
type StockStatus string

const (
	StockActive    StockStatus = "active"
	StockDelisted  StockStatus = "delisted"
	StockSuspended StockStatus = "suspended"
)

// knownSuffixes are the exchange-code suffixes stripped to derive a symbol
var knownSuffixes = []string{".SH", ".SZ", ".HK", ".US"}

// Stock is a listed security
// SSOT: Symbol is the natural key
type Stock struct {
	ID        int64       `json:"id"`
	Symbol    string      `json:"symbol"`
	TSCode    string      `json:"ts_code"`
	Name      string      `json:"name"`
	Market    Market      `json:"market"`
	Industry  string      `json:"industry,omitempty"`
	ListDate  *time.Time  `json:"list_date,omitempty"`
	Status    StockStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// SymbolFromCode strips a known market suffix from an exchange code.
// "600000.SH" -> "600000"; codes without a known suffix are returned trimmed.
func SymbolFromCode(code string) string {
	code = strings.TrimSpace(code)
	upper := strings.ToUpper(code)
	for _, suffix := range knownSuffixes {
		if strings.HasSuffix(upper, suffix) {
			return code[:len(code)-len(suffix)]
		}
	}
	return code
}

// MarketFromCode infers the market from the exchange-code suffix.
// Anything that is not .SH, .SZ or .HK is treated as US.
func MarketFromCode(code string) Market {
	upper := strings.ToUpper(strings.TrimSpace(code))
	switch {
	case strings.HasSuffix(upper, ".SH"):
		return MarketSH
	case strings.HasSuffix(upper, ".SZ"):
		return MarketSZ
	case strings.HasSuffix(upper, ".HK"):
		return MarketHK
	default:
		return MarketUS
	}
}
