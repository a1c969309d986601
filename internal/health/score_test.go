package health

import (
	"testing"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"

	"github.com/wonny/fincore/pkg/logger"
)

func strong() Snapshot {
	return Snapshot{
		ROE:          null.FloatFrom(0.20),
		GrossMargin:  null.FloatFrom(0.5),
		NetMargin:    null.FloatFrom(0.2),
		DebtRatio:    null.FloatFrom(0.3),
		CurrentRatio: null.FloatFrom(2.5),
		QuickRatio:   null.FloatFrom(2.0),
		ROA:          null.FloatFrom(0.10),
	}
}

func TestScoreStrongCompany(t *testing.T) {
	r := Score(strong())

	assert.Equal(t, Breakdown{Profitability: 100, Solvency: 100, Efficiency: 100, Growth: 60}, r.Breakdown)
	assert.Equal(t, 96.0, r.TotalScore)
	assert.Equal(t, GradeExcellent, r.Grade)
}

func TestScoreEmptySnapshot(t *testing.T) {
	r := Score(Snapshot{})

	assert.Equal(t, 0.0, r.Breakdown.Profitability)
	assert.Equal(t, 0.0, r.Breakdown.Solvency)
	assert.Equal(t, 0.0, r.Breakdown.Efficiency)
	assert.Equal(t, 6.0, r.TotalScore)
	assert.Equal(t, GradePoor, r.Grade)
}

func TestProfitability(t *testing.T) {
	tests := []struct {
		name string
		s    Snapshot
		want float64
	}{
		{"all top", Snapshot{ROE: null.FloatFrom(0.15), GrossMargin: null.FloatFrom(0.4), NetMargin: null.FloatFrom(0.15)}, 100},
		{"middle", Snapshot{ROE: null.FloatFrom(0.12), GrossMargin: null.FloatFrom(0.35), NetMargin: null.FloatFrom(0.12)}, 70},
		{"low", Snapshot{ROE: null.FloatFrom(0.06), GrossMargin: null.FloatFrom(0.25), NetMargin: null.FloatFrom(0.01)}, 30},
		{"below every step", Snapshot{ROE: null.FloatFrom(0.01), GrossMargin: null.FloatFrom(0.1), NetMargin: null.FloatFrom(-0.05)}, 0},
		{"net margin only", Snapshot{NetMargin: null.FloatFrom(0)}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Profitability(tt.s))
		})
	}
}

func TestSolvency(t *testing.T) {
	tests := []struct {
		name string
		s    Snapshot
		want float64
	}{
		{"conservative", Snapshot{DebtRatio: null.FloatFrom(0.4), CurrentRatio: null.FloatFrom(2), QuickRatio: null.FloatFrom(1.5)}, 100},
		{"moderate", Snapshot{DebtRatio: null.FloatFrom(0.5), CurrentRatio: null.FloatFrom(1.6), QuickRatio: null.FloatFrom(1.1)}, 70},
		{"leveraged", Snapshot{DebtRatio: null.FloatFrom(0.75), CurrentRatio: null.FloatFrom(1.0), QuickRatio: null.FloatFrom(0.5)}, 40},
		{"distressed", Snapshot{DebtRatio: null.FloatFrom(0.95), CurrentRatio: null.FloatFrom(0.8), QuickRatio: null.FloatFrom(0.3)}, 0},
		{"missing debt ratio", Snapshot{CurrentRatio: null.FloatFrom(3)}, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Solvency(tt.s))
		})
	}
}

func TestEfficiency(t *testing.T) {
	tests := []struct {
		roa  null.Float
		want float64
	}{
		{null.FloatFrom(0.08), 100},
		{null.FloatFrom(0.06), 80},
		{null.FloatFrom(0.03), 60},
		{null.FloatFrom(0), 40},
		{null.FloatFrom(-0.01), 0},
		{null.Float{}, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Efficiency(Snapshot{ROA: tt.roa}), "roa %v", tt.roa)
	}
}

func TestGrowthFromYoY(t *testing.T) {
	assert.Equal(t, BaselineGrowth, GrowthFromYoY(Snapshot{}))
	assert.Equal(t, 100.0, GrowthFromYoY(Snapshot{RevenueYoY: null.FloatFrom(0.25)}))
	assert.Equal(t, 50.0, GrowthFromYoY(Snapshot{RevenueYoY: null.FloatFrom(0.15), NetIncomeYoY: null.FloatFrom(-0.5)}))
	assert.Equal(t, 50.0, GrowthFromYoY(Snapshot{RevenueYoY: null.FloatFrom(0), NetIncomeYoY: null.FloatFrom(-0.05)}))
}

func TestScoreWithGrowth(t *testing.T) {
	s := strong()
	s.RevenueYoY = null.FloatFrom(0.3)
	s.NetIncomeYoY = null.FloatFrom(0.3)

	r := ScoreWithGrowth(s)
	assert.Equal(t, 100.0, r.TotalScore)
	assert.Equal(t, 96.0, Score(s).TotalScore, "baseline score ignores YoY")
}

func TestGrade(t *testing.T) {
	tests := []struct {
		total float64
		want  string
	}{
		{100, GradeExcellent},
		{85, GradeExcellent},
		{84.9, GradeGood},
		{70, GradeGood},
		{69.9, GradeAverage},
		{50, GradeAverage},
		{49.9, GradePoor},
		{0, GradePoor},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Grade(tt.total), "total %v", tt.total)
	}
}

func TestScorerEvaluate(t *testing.T) {
	sc := NewScorer(logger.Nop())
	base, adjusted := sc.Evaluate("600519", strong())

	assert.Equal(t, 96.0, base.TotalScore)
	assert.Equal(t, base, adjusted, "no YoY figures means adjusted equals baseline")
}
