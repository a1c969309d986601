package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wonny/fincore/internal/contracts"
	"github.com/wonny/fincore/internal/health"
	"github.com/wonny/fincore/internal/indicators"
	"github.com/wonny/fincore/pkg/config"
	"github.com/wonny/fincore/pkg/logger"
	"github.com/wonny/fincore/pkg/redis"
)

var (
	// ErrStockNotFound is returned for symbols missing from the stock master
	ErrStockNotFound = errors.New("stock not found")

	// ErrNoFinancialData is returned when a stock has no statements to score
	ErrNoFinancialData = errors.New("no financial data")

	// ErrUnsupportedPeriod is returned for unknown bar or report periods
	ErrUnsupportedPeriod = errors.New("unsupported period")

	// ErrUnknownMetric is returned for industry metrics outside the indicator whitelist
	ErrUnknownMetric = errors.New("unknown metric")

	ErrIndustryRequired = errors.New("industry is required")
)

const (
	DefaultHistoryLimit   = 100
	DefaultFinancialLimit = 8
	MaxLimit              = 1000

	// trendWindow is how many report dates the trend view returns
	trendWindow = 8
)

// Service answers the derived queries over stored prices and statements
// SSOT: read-side queries go through this service
type Service struct {
	stocks     contracts.StockRepository
	statements contracts.StatementRepository
	prices     contracts.PriceRepository

	cache  *redis.Cache
	ttl    config.CacheConfig
	engine *indicators.Engine
	scorer *health.Scorer
	logger *logger.Logger
}

// NewService wires the repositories. A nil cache disables caching.
func NewService(
	stocks contracts.StockRepository,
	statements contracts.StatementRepository,
	prices contracts.PriceRepository,
	cache *redis.Cache,
	ttl config.CacheConfig,
	log *logger.Logger,
) *Service {
	if cache == nil {
		cache = redis.NewCache(redis.Disabled(), "fincore")
	}
	return &Service{
		stocks:     stocks,
		statements: statements,
		prices:     prices,
		cache:      cache,
		ttl:        ttl,
		engine:     indicators.NewEngine(log),
		scorer:     health.NewScorer(log),
		logger:     log,
	}
}

// stock resolves a symbol, mapping repository misses to ErrStockNotFound
func (s *Service) stock(ctx context.Context, symbol string) (*contracts.Stock, error) {
	symbol = strings.TrimSpace(symbol)
	st, err := s.stocks.GetBySymbol(ctx, symbol)
	if errors.Is(err, contracts.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrStockNotFound, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", symbol, err)
	}
	return st, nil
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// InvalidateFinancials drops cached statement views after an import
func (s *Service) InvalidateFinancials(ctx context.Context) error {
	n, err := s.cache.DeletePattern(ctx, "financial:*")
	if err != nil {
		return fmt.Errorf("invalidate financial cache: %w", err)
	}
	if n > 0 {
		s.logger.WithField("keys", n).Info("Invalidated financial cache")
	}
	return nil
}

// InvalidateSymbol drops every cached view of one stock
func (s *Service) InvalidateSymbol(ctx context.Context, symbol string) error {
	if _, err := s.cache.DeletePattern(ctx, redis.SymbolPattern(symbol)); err != nil {
		return fmt.Errorf("invalidate cache of %s: %w", symbol, err)
	}
	return nil
}
