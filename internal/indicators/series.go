package indicators

import (
	"math"
	"strconv"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	"github.com/wonny/fincore/internal/contracts"
)

// Series is one indicator channel aligned index-for-index with the input bars.
// Positions without enough history are null.
type Series []null.Float

// FromFloats wraps plain values as a fully defined series
func FromFloats(values []float64) Series {
	out := make(Series, len(values))
	for i, v := range values {
		out[i] = null.FloatFrom(v)
	}
	return out
}

// Latest returns the last defined value of s
func Latest(s Series) null.Float {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].Valid {
			return s[i]
		}
	}
	return null.Float{}
}

func nulls(n int) Series {
	return make(Series, n)
}

// Round rounds v half away from zero at places decimals. v is first reduced
// to 15 significant digits so a float just below a written half (1.005 held
// as 1.00499...) still rounds up.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	d, err := decimal.NewFromString(strconv.FormatFloat(v, 'g', 15, 64))
	if err != nil {
		return v
	}
	return d.Round(places).InexactFloat64()
}

func round2(v float64) float64 {
	return Round(v, 2)
}

// SMA is the trailing arithmetic mean of closes, rounded to 2 decimals.
// Position i is null while i < period-1.
func SMA(closes []float64, period int) Series {
	out := nulls(len(closes))
	if period <= 0 {
		return out
	}

	for i := period - 1; i < len(closes); i++ {
		out[i] = null.FloatFrom(round2(meanOf(closes[i-period+1 : i+1])))
	}
	return out
}

// DefaultMAPeriods are the moving average windows computed by MA
var DefaultMAPeriods = []int{5, 10, 20, 60}

// MA computes SMA of the closes for each period, keyed "ma5", "ma10", ...
func MA(bars []contracts.PriceBar, periods ...int) map[string]Series {
	if len(periods) == 0 {
		periods = DefaultMAPeriods
	}
	closes := contracts.Closes(bars)

	out := make(map[string]Series, len(periods))
	for _, p := range periods {
		out[maKey(p)] = SMA(closes, p)
	}
	return out
}

// EMA seeds from the first defined value and then applies
// ema[i] = v[i]*k + ema[i-1]*(1-k) with k = 2/(period+1).
// Positions before the seed are null; a null after the seed carries the
// previous average forward.
func EMA(values Series, period int) Series {
	out := nulls(len(values))
	if period <= 0 {
		return out
	}
	k := 2.0 / float64(period+1)

	var prev null.Float
	for i, v := range values {
		switch {
		case !prev.Valid && !v.Valid:
			continue
		case !prev.Valid:
			prev = v
		case v.Valid:
			prev = null.FloatFrom(v.Float64*k + prev.Float64*(1-k))
		}
		out[i] = prev
	}
	return out
}

// MACDResult holds the three MACD channels
type MACDResult struct {
	DIF  Series `json:"dif"`
	DEA  Series `json:"dea"`
	MACD Series `json:"macd"`
}

// MACD computes DIF = EMA12 - EMA26, DEA = EMA9(DIF) and MACD = 2*(DIF-DEA)
func MACD(closes []float64) MACDResult {
	values := FromFloats(closes)
	ema12 := EMA(values, 12)
	ema26 := EMA(values, 26)

	n := len(closes)
	dif := nulls(n)
	for i := 0; i < n; i++ {
		if ema12[i].Valid && ema26[i].Valid {
			dif[i] = null.FloatFrom(ema12[i].Float64 - ema26[i].Float64)
		}
	}

	dea := EMA(dif, 9)
	macd := nulls(n)
	for i := 0; i < n; i++ {
		if dif[i].Valid && dea[i].Valid {
			macd[i] = null.FloatFrom(2 * (dif[i].Float64 - dea[i].Float64))
		}
	}

	return MACDResult{DIF: dif, DEA: dea, MACD: macd}
}

// RSI uses simple averages of the trailing period close-to-close moves.
// Null while i < period; 100 when there were no losses; otherwise rounded to 2 decimals.
func RSI(closes []float64, period int) Series {
	out := nulls(len(closes))
	if period <= 0 {
		return out
	}

	for i := period; i < len(closes); i++ {
		var gains, losses float64
		for j := 0; j < period; j++ {
			change := closes[i-j] - closes[i-j-1]
			if change > 0 {
				gains += change
			} else {
				losses -= change
			}
		}

		avgGain := gains / float64(period)
		avgLoss := losses / float64(period)
		if avgLoss == 0 {
			out[i] = null.FloatFrom(100)
			continue
		}
		rs := avgGain / avgLoss
		out[i] = null.FloatFrom(round2(100 - 100/(1+rs)))
	}
	return out
}

const (
	kdjWindow = 9
	kdjSeed   = 50.0
	// flatRSV is used when the window's highest high equals its lowest low
	flatRSV = 0.5
)

// KDJResult holds the K, D and J channels
type KDJResult struct {
	K Series `json:"k"`
	D Series `json:"d"`
	J Series `json:"j"`
}

// KDJ over a 9-bar window. RSV = (C - LL) / (HH - LL); K and D are seeded at 50
// and smoothed with weight 1/3. K, D and J are rounded to 2 decimals and the
// rounded values feed the next step.
func KDJ(bars []contracts.PriceBar) KDJResult {
	n := len(bars)
	res := KDJResult{K: nulls(n), D: nulls(n), J: nulls(n)}

	prevK, prevD := kdjSeed, kdjSeed
	for i := kdjWindow - 1; i < n; i++ {
		hh, ll := bars[i].High, bars[i].Low
		for j := i - kdjWindow + 1; j <= i; j++ {
			hh = math.Max(hh, bars[j].High)
			ll = math.Min(ll, bars[j].Low)
		}

		rsv := flatRSV
		if hh != ll {
			rsv = (bars[i].Close - ll) / (hh - ll)
		}

		k := round2((rsv + 2*prevK) / 3)
		d := round2((k + 2*prevD) / 3)
		res.K[i] = null.FloatFrom(k)
		res.D[i] = null.FloatFrom(d)
		res.J[i] = null.FloatFrom(round2(3*k - 2*d))
		prevK, prevD = k, d
	}
	return res
}

// BollResult holds the band channels
type BollResult struct {
	Upper  Series `json:"upper"`
	Middle Series `json:"middle"`
	Lower  Series `json:"lower"`
}

// Bollinger bands: middle is the trailing mean, bands are middle ± k·σ with the
// population standard deviation. All values rounded to 2 decimals.
func Bollinger(closes []float64, period int, k float64) BollResult {
	n := len(closes)
	res := BollResult{Upper: nulls(n), Middle: nulls(n), Lower: nulls(n)}
	if period <= 0 {
		return res
	}

	for i := period - 1; i < n; i++ {
		window := closes[i-period+1 : i+1]
		mean := meanOf(window)
		std := populationStd(window, mean)

		res.Middle[i] = null.FloatFrom(round2(mean))
		res.Upper[i] = null.FloatFrom(round2(mean + k*std))
		res.Lower[i] = null.FloatFrom(round2(mean - k*std))
	}
	return res
}

func meanOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func populationStd(values []float64, mean float64) float64 {
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(values)))
}
