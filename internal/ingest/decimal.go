package ingest

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Normalize converts a raw cell into a fixed-scale decimal.
// Empty or malformed input yields an invalid (null) value; it never fails.
// Rounding is half away from zero.
func Normalize(raw any, scale int32) decimal.NullDecimal {
	switch v := raw.(type) {
	case nil:
		return decimal.NullDecimal{}
	case string:
		return NormalizeString(v, scale)
	case []byte:
		return NormalizeString(string(v), scale)
	case json.Number:
		return NormalizeString(v.String(), scale)
	case decimal.Decimal:
		return valid(v, scale)
	case decimal.NullDecimal:
		if !v.Valid {
			return v
		}
		return valid(v.Decimal, scale)
	case *decimal.Decimal:
		if v == nil {
			return decimal.NullDecimal{}
		}
		return valid(*v, scale)
	case float64:
		return fromFloat(v, scale)
	case float32:
		return fromFloat(float64(v), scale)
	case int:
		return valid(decimal.NewFromInt(int64(v)), scale)
	case int8:
		return valid(decimal.NewFromInt(int64(v)), scale)
	case int16:
		return valid(decimal.NewFromInt(int64(v)), scale)
	case int32:
		return valid(decimal.NewFromInt32(v), scale)
	case int64:
		return valid(decimal.NewFromInt(v), scale)
	case uint:
		return valid(decimal.NewFromUint64(uint64(v)), scale)
	case uint32:
		return valid(decimal.NewFromUint64(uint64(v)), scale)
	case uint64:
		return valid(decimal.NewFromUint64(v), scale)
	}
	return decimal.NullDecimal{}
}

// NormalizeString is Normalize for CSV cells.
// Decorated numbers such as "¥1,234.50" are reduced to digits, '.' and '-'
// before parsing.
func NormalizeString(s string, scale int32) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}
	}

	if d, err := decimal.NewFromString(s); err == nil {
		return valid(d, scale)
	}

	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	if cleaned == "" {
		return decimal.NullDecimal{}
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return valid(d, scale)
}

func fromFloat(f float64, scale int32) decimal.NullDecimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.NullDecimal{}
	}
	return valid(decimal.NewFromFloat(f), scale)
}

func valid(d decimal.Decimal, scale int32) decimal.NullDecimal {
	return decimal.NewNullDecimal(d.Round(scale))
}
