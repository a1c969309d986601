package indicators

import (
	"fmt"
	"math"
	"strings"

	"github.com/wonny/fincore/internal/contracts"
	"github.com/wonny/fincore/pkg/logger"
)

// Indicator names accepted by Calculate
const (
	NameMA   = "ma"
	NameMACD = "macd"
	NameRSI  = "rsi"
	NameKDJ  = "kdj"
	NameBoll = "boll"
)

// AllNames lists every supported indicator
var AllNames = []string{NameMA, NameMACD, NameRSI, NameKDJ, NameBoll}

const (
	rsiPeriod   = 14
	bollPeriod  = 20
	bollK       = 2.0
	crossMAKey  = "ma20"
	crossMargin = 0.02
)

func maKey(period int) string {
	return fmt.Sprintf("ma%d", period)
}

// Result holds the requested channels, aligned with Dates (oldest first)
type Result struct {
	Dates []string          `json:"dates"`
	MA    map[string]Series `json:"ma,omitempty"`
	MACD  *MACDResult       `json:"macd,omitempty"`
	RSI   Series            `json:"rsi,omitempty"`
	KDJ   *KDJResult        `json:"kdj,omitempty"`
	Boll  *BollResult       `json:"boll,omitempty"`
}

// ParseNames splits a comma separated list. Empty input selects every indicator.
func ParseNames(s string) []string {
	if strings.TrimSpace(s) == "" {
		return AllNames
	}
	var names []string
	for _, part := range strings.Split(s, ",") {
		if name := strings.ToLower(strings.TrimSpace(part)); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Calculate computes the named indicators. Bars may be given in any date
// order; they are sorted ascending first and the caller's slice is left as is.
// Unknown names are ignored.
func Calculate(bars []contracts.PriceBar, names []string) Result {
	asc := contracts.SortedAscending(bars)
	closes := contracts.Closes(asc)

	res := Result{Dates: make([]string, len(asc))}
	for i, b := range asc {
		res.Dates[i] = b.Date.Format("2006-01-02")
	}

	for _, name := range names {
		switch name {
		case NameMA:
			res.MA = MA(asc)
		case NameMACD:
			m := MACD(closes)
			res.MACD = &m
		case NameRSI:
			res.RSI = RSI(closes, rsiPeriod)
		case NameKDJ:
			k := KDJ(asc)
			res.KDJ = &k
		case NameBoll, "bollinger":
			b := Bollinger(closes, bollPeriod, bollK)
			res.Boll = &b
		}
	}
	return res
}

// Summary condenses the latest values into a single technical reading
type Summary struct {
	RSI       *float64 `json:"rsi,omitempty"`
	MACD      *float64 `json:"macd,omitempty"`
	MA20Cross int      `json:"ma20_cross"` // -1 below, 0 near, 1 above
	Score     float64  `json:"score"`      // -1.0 ~ 1.0
}

// Summarize reads the latest close, RSI, MACD histogram and MA20 of a result.
// Missing channels contribute zero to the score.
func Summarize(bars []contracts.PriceBar, res Result) Summary {
	var s Summary

	if res.RSI != nil {
		s.RSI = Latest(res.RSI).Ptr()
	}
	if res.MACD != nil {
		s.MACD = Latest(res.MACD.MACD).Ptr()
	}

	if ma20 := Latest(res.MA[crossMAKey]); ma20.Valid && ma20.Float64 != 0 && len(bars) > 0 {
		asc := contracts.SortedAscending(bars)
		last := asc[len(asc)-1].Close
		diff := (last - ma20.Float64) / ma20.Float64
		switch {
		case diff > crossMargin:
			s.MA20Cross = 1
		case diff < -crossMargin:
			s.MA20Cross = -1
		}
	}

	s.Score = score(s)
	return s
}

// score weights RSI 40%, MACD 40% and the MA20 cross 20%
func score(s Summary) float64 {
	rsiScore := 0.0
	if s.RSI != nil {
		rsi := *s.RSI
		switch {
		case rsi < 30:
			rsiScore = (30 - rsi) / 30 // oversold
		case rsi > 70:
			rsiScore = (70 - rsi) / 30 // overbought
		default:
			rsiScore = (50 - rsi) / 20
		}
	}

	macdScore := 0.0
	if s.MACD != nil {
		macdScore = math.Tanh(*s.MACD)
	}

	total := rsiScore*0.4 + macdScore*0.4 + float64(s.MA20Cross)*0.2
	return math.Max(-1, math.Min(1, total))
}

// Engine wraps Calculate with logging
// SSOT: technical indicators are computed here only
type Engine struct {
	logger *logger.Logger
}

// NewEngine creates a new indicator engine
func NewEngine(log *logger.Logger) *Engine {
	return &Engine{logger: log}
}

// Calculate computes the named indicators for one stock
func (e *Engine) Calculate(symbol string, bars []contracts.PriceBar, names []string) Result {
	res := Calculate(bars, names)

	e.logger.WithFields(map[string]interface{}{
		"symbol":     symbol,
		"bars":       len(bars),
		"indicators": names,
	}).Debug("Calculated technical indicators")

	return res
}
