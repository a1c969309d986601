package health

import (
	"math"
	"sort"

	"github.com/guregu/null/v6"
)

// quickBase is the starting score of the additive quick score
const quickBase = 60

// Letter is the coarse, base-60 additive score shown next to each report date
type Letter struct {
	Score int    `json:"score"`
	Grade string `json:"grade"`
}

func above(v null.Float, threshold float64) bool {
	return v.Valid && v.Float64 > threshold
}

// belowOrMissing treats a missing value as zero
func belowOrMissing(v null.Float, threshold float64) bool {
	return v.ValueOrZero() < threshold
}

// QuickScore adds points to a base of 60 for each ratio beyond its threshold
// and grades the result A+/A/B+/B/C/D at 90/80/70/60/50.
func QuickScore(c Combined) Letter {
	score := quickBase

	// profitability
	if above(c.ROE, 0.15) {
		score += 10
	}
	if above(c.GrossMargin, 0.30) {
		score += 5
	}
	if above(c.NetMargin, 0.10) {
		score += 5
	}

	// solvency
	// an unreported debt ratio counts as debt free
	if belowOrMissing(c.DebtRatio, 0.60) {
		score += 5
	}
	if above(c.CurrentRatio, 1.5) {
		score += 5
	}

	// cash flow
	if above(c.OperatingCashFlow, 0) {
		score += 10
	}

	// growth
	if above(c.RevenueYoY, 0.10) {
		score += 5
	}
	if above(c.NetIncomeYoY, 0.10) {
		score += 5
	}

	// operations
	if above(c.AssetsTurn, 0.5) {
		score += 5
	}
	if above(c.ARTurn, 6) {
		score += 5
	}

	return Letter{Score: score, Grade: LetterGrade(score)}
}

// LetterGrade maps a quick score to A+/A/B+/B/C/D
func LetterGrade(score int) string {
	switch {
	case score >= 90:
		return "A+"
	case score >= 80:
		return "A"
	case score >= 70:
		return "B+"
	case score >= 60:
		return "B"
	case score >= 50:
		return "C"
	default:
		return "D"
	}
}

// CashFlowAdequacy awards 30 for positive operating cash flow, 30 when it
// exceeds net income, 20 for positive free cash flow (operating + investing)
// and 20 when operating cash flow covers interest-bearing debt.
// Null when there is no operating cash flow figure.
func CashFlowAdequacy(ocf, netIncome, icf, ocfToInterestDebt null.Float) null.Int {
	if !ocf.Valid {
		return null.Int{}
	}

	var score int64
	if ocf.Float64 > 0 {
		score += 30
	}
	if netIncome.Valid && ocf.Float64 > netIncome.Float64 {
		score += 30
	}
	if ocf.Float64+icf.ValueOrZero() > 0 {
		score += 20
	}
	if above(ocfToInterestDebt, 1) {
		score += 20
	}
	return null.IntFrom(score)
}

// DuPontView decomposes ROE into margin, turnover and leverage
type DuPontView struct {
	ROE              null.Float `json:"roe"`
	ProfitMargin     null.Float `json:"profit_margin"`
	AssetTurnover    null.Float `json:"asset_turnover"`
	EquityMultiplier null.Float `json:"equity_multiplier"`
	CalculatedROE    float64    `json:"calculated_roe"`
}

// DuPont builds the three-factor view; missing factors count as zero in CalculatedROE
func DuPont(c Combined) DuPontView {
	return DuPontView{
		ROE:              c.ROE,
		ProfitMargin:     c.NetMargin,
		AssetTurnover:    c.AssetsTurn,
		EquityMultiplier: c.EquityMultiplier,
		CalculatedROE:    c.NetMargin.ValueOrZero() * c.AssetsTurn.ValueOrZero() * c.EquityMultiplier.ValueOrZero(),
	}
}

// Trend is the percentage change from previous to current.
// A zero previous value yields 100 for a positive current value, else 0.
func Trend(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return (current - previous) / math.Abs(previous) * 100
}

// Median of values; 0 for an empty slice. The input is not modified.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
