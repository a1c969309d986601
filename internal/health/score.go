package health

import (
	"math"

	"github.com/guregu/null/v6"

	"github.com/wonny/fincore/pkg/logger"
)

// Grades of the weighted score
const (
	GradeExcellent = "excellent"
	GradeGood      = "good"
	GradeAverage   = "average"
	GradePoor      = "poor"
)

const (
	weightProfitability = 0.4
	weightSolvency      = 0.3
	weightEfficiency    = 0.2
	weightGrowth        = 0.1

	// BaselineGrowth is used when no year-over-year context is available
	BaselineGrowth = 60.0
)

// Snapshot is the set of fundamental ratios a score is computed from.
// Ratios are fractions (0.15 = 15%). Null ratios score zero on their line.
type Snapshot struct {
	ROE          null.Float `json:"roe"`
	GrossMargin  null.Float `json:"gross_margin"`
	NetMargin    null.Float `json:"net_margin"`
	DebtRatio    null.Float `json:"debt_ratio"`
	CurrentRatio null.Float `json:"current_ratio"`
	QuickRatio   null.Float `json:"quick_ratio"`
	ROA          null.Float `json:"roa"`
	RevenueYoY   null.Float `json:"revenue_yoy"`
	NetIncomeYoY null.Float `json:"net_income_yoy"`
}

// Breakdown holds the four component scores, each 0..100
type Breakdown struct {
	Profitability float64 `json:"profitability"`
	Solvency      float64 `json:"solvency"`
	Efficiency    float64 `json:"efficiency"`
	Growth        float64 `json:"growth"`
}

// Result is a weighted health score
type Result struct {
	TotalScore float64   `json:"total_score"`
	Breakdown  Breakdown `json:"breakdown"`
	Grade      string    `json:"grade"`
}

// step is one threshold of a step function
type step struct {
	threshold float64
	points    float64
}

// atLeast awards the points of the first step whose threshold v reaches
func atLeast(v null.Float, steps ...step) float64 {
	if !v.Valid {
		return 0
	}
	for _, s := range steps {
		if v.Float64 >= s.threshold {
			return s.points
		}
	}
	return 0
}

// atMost is atLeast for lower-is-better ratios
func atMost(v null.Float, steps ...step) float64 {
	if !v.Valid {
		return 0
	}
	for _, s := range steps {
		if v.Float64 <= s.threshold {
			return s.points
		}
	}
	return 0
}

// Profitability scores ROE, gross margin and net margin, capped at 100
func Profitability(s Snapshot) float64 {
	score := atLeast(s.ROE, step{0.15, 30}, step{0.10, 20}, step{0.05, 10}) +
		atLeast(s.GrossMargin, step{0.4, 30}, step{0.3, 20}, step{0.2, 10}) +
		atLeast(s.NetMargin, step{0.15, 40}, step{0.10, 30}, step{0.05, 20}, step{0, 10})
	return math.Min(score, 100)
}

// Solvency scores debt ratio (lower is better), current and quick ratios, capped at 100
func Solvency(s Snapshot) float64 {
	score := atMost(s.DebtRatio, step{0.4, 40}, step{0.6, 30}, step{0.8, 20}) +
		atLeast(s.CurrentRatio, step{2, 30}, step{1.5, 20}, step{1, 10}) +
		atLeast(s.QuickRatio, step{1.5, 30}, step{1, 20}, step{0.5, 10})
	return math.Min(score, 100)
}

// Efficiency uses ROA as the operating efficiency proxy
func Efficiency(s Snapshot) float64 {
	return atLeast(s.ROA, step{0.08, 100}, step{0.05, 80}, step{0.03, 60}, step{0, 40})
}

// GrowthFromYoY averages the revenue and net income YoY steps.
// Without either figure it returns BaselineGrowth.
func GrowthFromYoY(s Snapshot) float64 {
	steps := []step{{0.2, 100}, {0.1, 80}, {0, 60}, {-0.1, 40}}

	var sum float64
	var n int
	for _, v := range []null.Float{s.RevenueYoY, s.NetIncomeYoY} {
		if !v.Valid {
			continue
		}
		points := atLeast(v, steps...)
		if points == 0 {
			points = 20
		}
		sum += points
		n++
	}
	if n == 0 {
		return BaselineGrowth
	}
	return sum / float64(n)
}

// Score computes the weighted health score with the fixed growth baseline
func Score(s Snapshot) Result {
	return compose(Breakdown{
		Profitability: Profitability(s),
		Solvency:      Solvency(s),
		Efficiency:    Efficiency(s),
		Growth:        BaselineGrowth,
	})
}

// ScoreWithGrowth replaces the growth baseline with the YoY based component
func ScoreWithGrowth(s Snapshot) Result {
	return compose(Breakdown{
		Profitability: Profitability(s),
		Solvency:      Solvency(s),
		Efficiency:    Efficiency(s),
		Growth:        GrowthFromYoY(s),
	})
}

func compose(b Breakdown) Result {
	total := b.Profitability*weightProfitability +
		b.Solvency*weightSolvency +
		b.Efficiency*weightEfficiency +
		b.Growth*weightGrowth

	return Result{
		TotalScore: math.Round(total*10) / 10,
		Breakdown:  b,
		Grade:      Grade(total),
	}
}

// Grade maps a weighted total to excellent/good/average/poor at 85/70/50
func Grade(total float64) string {
	switch {
	case total >= 85:
		return GradeExcellent
	case total >= 70:
		return GradeGood
	case total >= 50:
		return GradeAverage
	default:
		return GradePoor
	}
}

// Scorer wraps the score functions with logging
// SSOT: health scores are computed here only
type Scorer struct {
	logger *logger.Logger
}

// NewScorer creates a new health scorer
func NewScorer(log *logger.Logger) *Scorer {
	return &Scorer{logger: log}
}

// Evaluate returns the baseline score and the growth-adjusted score
func (sc *Scorer) Evaluate(symbol string, s Snapshot) (Result, Result) {
	base := Score(s)
	adjusted := ScoreWithGrowth(s)

	sc.logger.WithFields(map[string]interface{}{
		"symbol":         symbol,
		"total_score":    base.TotalScore,
		"adjusted_score": adjusted.TotalScore,
		"grade":          base.Grade,
	}).Debug("Calculated health score")

	return base, adjusted
}
