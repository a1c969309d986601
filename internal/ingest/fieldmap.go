package ingest

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wonny/fincore/internal/contracts"
)

// ErrUnknownStatementType is returned when a row cannot be mapped because
// its statement type is not one of the four canonical shapes
var ErrUnknownStatementType = errors.New("unknown statement type")

const (
	amountScale int32 = 2
	ratioScale  int32 = 4
)

// fieldMapping maps one canonical column to its vendor source column
type fieldMapping struct {
	column string
	source string
	scale  int32
}

var fixedMappings = map[contracts.StatementType][]fieldMapping{
	contracts.StatementIncome: {
		{"revenue", "total_revenue", amountScale},
		{"net_income", "n_income", amountScale},
		{"gross_profit", "gross_profit", amountScale},
		{"gross_margin", "gross_margin", ratioScale},
		{"net_margin", "net_margin", ratioScale},
		{"eps", "eps", ratioScale},
	},
	contracts.StatementBalanceSheet: {
		{"debt_ratio", "debt_to_assets", ratioScale},
		{"current_ratio", "current_ratio", ratioScale},
		{"quick_ratio", "quick_ratio", ratioScale},
	},
	contracts.StatementCashFlow: {
		{"operating_cash_flow", "net_operating_cash_flow", amountScale},
		{"investing_cash_flow", "net_investing_cash_flow", amountScale},
		{"financing_cash_flow", "net_financing_cash_flow", amountScale},
	},
}

// MapFields maps a raw vendor row into the canonical fields of t.
//
// Indicator rows keep only whitelisted columns that are present in raw; the
// other types always return every canonical column, null when the source
// column is missing.
func MapFields(t contracts.StatementType, raw map[string]string) (map[string]decimal.NullDecimal, error) {
	if t == contracts.StatementIndicator {
		out := make(map[string]decimal.NullDecimal)
		for _, name := range contracts.IndicatorColumns {
			if v, ok := raw[name]; ok {
				out[name] = NormalizeString(v, ratioScale)
			}
		}
		return out, nil
	}

	mappings, ok := fixedMappings[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatementType, t)
	}

	out := make(map[string]decimal.NullDecimal, len(mappings))
	for _, m := range mappings {
		v, present := raw[m.source]
		if !present {
			out[m.column] = decimal.NullDecimal{}
			continue
		}
		out[m.column] = NormalizeString(v, m.scale)
	}
	return out, nil
}

// RawPayload preserves the source row verbatim, unrecognized columns included
func RawPayload(raw map[string]string) json.RawMessage {
	data, err := json.Marshal(raw)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}
