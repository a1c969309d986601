package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/fincore/internal/contracts"
)

// DefaultMinQuality is the score a snapshot needs to pass
const DefaultMinQuality = 0.6

// priceWindow is how far back a price bar still counts as current
const priceWindow = 10 * 24 * time.Hour

// CoverageWeights sum to 1.0
var CoverageWeights = map[string]float64{
	contracts.StatementIndicator.Table():    0.30,
	contracts.StatementIncome.Table():       0.20,
	contracts.StatementBalanceSheet.Table(): 0.15,
	contracts.StatementCashFlow.Table():     0.15,
	"stock_daily_data":                      0.20,
}

// QualityGate measures how much of the active stock master has data loaded
type QualityGate struct {
	db       *pgxpool.Pool
	minScore float64
}

// NewQualityGate creates a gate; a non-positive minScore uses DefaultMinQuality
func NewQualityGate(db *pgxpool.Pool, minScore float64) *QualityGate {
	if minScore <= 0 {
		minScore = DefaultMinQuality
	}
	return &QualityGate{db: db, minScore: minScore}
}

// Check builds a snapshot for date
// SSOT: import to analytics quality check
func (g *QualityGate) Check(ctx context.Context, date time.Time) (*contracts.DataQualitySnapshot, error) {
	snapshot := &contracts.DataQualitySnapshot{
		Date:     date,
		Coverage: make(map[string]float64),
	}

	err := g.db.QueryRow(ctx, `SELECT COUNT(*) FROM stocks WHERE status = 'active'`).Scan(&snapshot.TotalStocks)
	if err != nil {
		return nil, fmt.Errorf("count total stocks: %w", err)
	}

	for _, t := range contracts.ImportOrder {
		cov, err := g.tableCoverage(ctx, t.Table())
		if err != nil {
			return nil, fmt.Errorf("check %s coverage: %w", t.Table(), err)
		}
		snapshot.Coverage[t.Table()] = cov
	}

	priceCov, err := g.priceCoverage(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("check price coverage: %w", err)
	}
	snapshot.Coverage["stock_daily_data"] = priceCov

	err = g.db.QueryRow(ctx, `
		SELECT COUNT(DISTINCT x.stock_id)
		FROM financial_indicators x
		JOIN stocks s ON s.id = x.stock_id
		WHERE s.status = 'active'
	`).Scan(&snapshot.ValidStocks)
	if err != nil {
		return nil, fmt.Errorf("count valid stocks: %w", err)
	}

	snapshot.QualityScore = QualityScore(snapshot.Coverage)
	snapshot.Passed = snapshot.Passes(g.minScore)
	return snapshot, nil
}

func (g *QualityGate) tableCoverage(ctx context.Context, table string) (float64, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(COUNT(DISTINCT x.stock_id)::FLOAT / NULLIF(COUNT(DISTINCT s.id), 0), 0)
		FROM stocks s
		LEFT JOIN %s x ON x.stock_id = s.id
		WHERE s.status = 'active'
	`, table)

	var coverage float64
	if err := g.db.QueryRow(ctx, query).Scan(&coverage); err != nil {
		return 0, err
	}
	return coverage, nil
}

func (g *QualityGate) priceCoverage(ctx context.Context, date time.Time) (float64, error) {
	query := `
		SELECT COALESCE(COUNT(DISTINCT d.stock_id)::FLOAT / NULLIF(COUNT(DISTINCT s.id), 0), 0)
		FROM stocks s
		LEFT JOIN stock_daily_data d ON d.stock_id = s.id
			AND d.date BETWEEN $1 AND $2
		WHERE s.status = 'active'
	`

	var coverage float64
	if err := g.db.QueryRow(ctx, query, date.Add(-priceWindow), date).Scan(&coverage); err != nil {
		return 0, err
	}
	return coverage, nil
}

// QualityScore is the weighted coverage; unknown keys are ignored
func QualityScore(coverage map[string]float64) float64 {
	score := 0.0
	for key, weight := range CoverageWeights {
		if cov, ok := coverage[key]; ok {
			score += cov * weight
		}
	}
	return score
}

// SaveSnapshot upserts a snapshot by date
func (g *QualityGate) SaveSnapshot(ctx context.Context, snapshot *contracts.DataQualitySnapshot) error {
	coverageJSON, err := json.Marshal(snapshot.Coverage)
	if err != nil {
		return fmt.Errorf("marshal coverage: %w", err)
	}

	query := `
		INSERT INTO quality_snapshots (
			snapshot_date, total_stocks, valid_stocks, coverage, quality_score, passed, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (snapshot_date) DO UPDATE SET
			total_stocks = EXCLUDED.total_stocks,
			valid_stocks = EXCLUDED.valid_stocks,
			coverage = EXCLUDED.coverage,
			quality_score = EXCLUDED.quality_score,
			passed = EXCLUDED.passed,
			created_at = NOW()
	`

	_, err = g.db.Exec(ctx, query,
		snapshot.Date,
		snapshot.TotalStocks,
		snapshot.ValidStocks,
		string(coverageJSON),
		snapshot.QualityScore,
		snapshot.Passed,
	)
	if err != nil {
		return fmt.Errorf("insert quality snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent saved snapshot
func (g *QualityGate) LatestSnapshot(ctx context.Context) (*contracts.DataQualitySnapshot, error) {
	query := `
		SELECT snapshot_date, total_stocks, valid_stocks, coverage, quality_score::float8, passed
		FROM quality_snapshots
		ORDER BY snapshot_date DESC
		LIMIT 1
	`

	snapshot := &contracts.DataQualitySnapshot{}
	var coverageJSON []byte
	err := g.db.QueryRow(ctx, query).Scan(
		&snapshot.Date,
		&snapshot.TotalStocks,
		&snapshot.ValidStocks,
		&coverageJSON,
		&snapshot.QualityScore,
		&snapshot.Passed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest quality snapshot: %w", err)
	}

	if err := json.Unmarshal(coverageJSON, &snapshot.Coverage); err != nil {
		return nil, fmt.Errorf("unmarshal coverage: %w", err)
	}
	return snapshot, nil
}
