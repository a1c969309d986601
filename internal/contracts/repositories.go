package contracts

import (
	"context"
	"errors"
)

// SSOT: repository interfaces are defined here only

// ErrNotFound is returned by repositories when a lookup matches nothing
var ErrNotFound = errors.New("not found")

// StockRepository manages the stock master
type StockRepository interface {
	GetBySymbol(ctx context.Context, symbol string) (*Stock, error)
	List(ctx context.Context, status StockStatus) ([]*Stock, error)
	// InsertIfAbsent creates stocks whose symbol is not yet known and
	// returns how many were created.
	InsertIfAbsent(ctx context.Context, stocks []*Stock) (int, error)
}

// StatementRepository manages canonical statement records
type StatementRepository interface {
	// InsertBatch persists records atomically per row. With overwrite=false an
	// existing natural key is left untouched; with overwrite=true it is replaced.
	// The returned slice reports, per record, whether a row was written.
	InsertBatch(ctx context.Context, records []*StatementRecord, overwrite bool) ([]bool, error)
	Latest(ctx context.Context, stockID int64, t StatementType) (*StatementRecord, error)
	// ListByStock returns records newest first. An empty period matches both.
	ListByStock(ctx context.Context, stockID int64, t StatementType, period ReportPeriod, limit int) ([]*StatementRecord, error)
	Count(ctx context.Context, t StatementType) (int, error)
}

// PriceRepository reads daily bars supplied by the external feed
type PriceRepository interface {
	// ListRecent returns up to limit bars, newest first
	ListRecent(ctx context.Context, stockID int64, limit int) ([]PriceBar, error)
}

// PriceWriter stores daily bars; bars on an existing date are replaced
type PriceWriter interface {
	SavePrices(ctx context.Context, stockID int64, bars []PriceBar) error
}
