package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wonny/fincore/internal/contracts"
)

// Memory is an in-process implementation of the repository contracts.
// It backs dry-run imports and tests.
type Memory struct {
	mu         sync.RWMutex
	nextID     int64
	stocks     map[string]*contracts.Stock
	statements map[contracts.StatementType]map[string]*contracts.StatementRecord
	prices     map[int64][]contracts.PriceBar

	// FailInsert, when set, is consulted for every record written by InsertBatch
	FailInsert func(r *contracts.StatementRecord) error
}

var (
	_ contracts.StockRepository     = (*Memory)(nil)
	_ contracts.StatementRepository = (*Memory)(nil)
	_ contracts.PriceRepository     = (*Memory)(nil)
)

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		stocks:     make(map[string]*contracts.Stock),
		statements: make(map[contracts.StatementType]map[string]*contracts.StatementRecord),
		prices:     make(map[int64][]contracts.PriceBar),
	}
}

// GetBySymbol returns contracts.ErrNotFound for unknown symbols
func (m *Memory) GetBySymbol(_ context.Context, symbol string) (*contracts.Stock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.stocks[symbol]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// List returns stocks ordered by symbol. An empty status matches all.
func (m *Memory) List(_ context.Context, status contracts.StockStatus) ([]*contracts.Stock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*contracts.Stock
	for _, s := range m.stocks {
		if status != "" && s.Status != status {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// InsertIfAbsent adds stocks whose symbol is new
func (m *Memory) InsertIfAbsent(_ context.Context, stocks []*contracts.Stock) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	created := 0
	now := time.Now()
	for _, s := range stocks {
		if _, exists := m.stocks[s.Symbol]; exists {
			continue
		}
		m.nextID++
		cp := *s
		cp.ID = m.nextID
		cp.CreatedAt = now
		cp.UpdatedAt = now
		if cp.Status == "" {
			cp.Status = contracts.StockActive
		}
		m.stocks[cp.Symbol] = &cp
		created++
	}
	return created, nil
}

// InsertBatch mirrors the SQL semantics: ON CONFLICT DO NOTHING unless overwrite
func (m *Memory) InsertBatch(_ context.Context, records []*contracts.StatementRecord, overwrite bool) ([]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailInsert != nil {
		for _, r := range records {
			if err := m.FailInsert(r); err != nil {
				return nil, err
			}
		}
	}

	written := make([]bool, len(records))
	for i, r := range records {
		table, ok := m.statements[r.Type]
		if !ok {
			table = make(map[string]*contracts.StatementRecord)
			m.statements[r.Type] = table
		}
		key := r.NaturalKey()
		if _, exists := table[key]; exists && !overwrite {
			continue
		}
		cp := *r
		table[key] = &cp
		written[i] = true
	}
	return written, nil
}

// Latest returns the record with the greatest report date
func (m *Memory) Latest(ctx context.Context, stockID int64, t contracts.StatementType) (*contracts.StatementRecord, error) {
	records, err := m.ListByStock(ctx, stockID, t, "", 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, contracts.ErrNotFound
	}
	return records[0], nil
}

// ListByStock returns records newest first
func (m *Memory) ListByStock(_ context.Context, stockID int64, t contracts.StatementType, period contracts.ReportPeriod, limit int) ([]*contracts.StatementRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*contracts.StatementRecord
	for _, r := range m.statements[t] {
		if r.StockID != stockID {
			continue
		}
		if period != "" && r.ReportPeriod != period {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReportDate.After(out[j].ReportDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count returns the number of records of type t
func (m *Memory) Count(_ context.Context, t contracts.StatementType) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.statements[t]), nil
}

// AddPrices stores bars for a stock, replacing bars on the same date
func (m *Memory) AddPrices(stockID int64, bars ...contracts.PriceBar) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byDate := make(map[time.Time]contracts.PriceBar)
	for _, b := range m.prices[stockID] {
		byDate[b.Date] = b
	}
	for _, b := range bars {
		byDate[b.Date] = b
	}

	merged := make([]contracts.PriceBar, 0, len(byDate))
	for _, b := range byDate {
		merged = append(merged, b)
	}
	m.prices[stockID] = contracts.SortedAscending(merged)
}

// SavePrices implements contracts.PriceWriter
func (m *Memory) SavePrices(_ context.Context, stockID int64, bars []contracts.PriceBar) error {
	m.AddPrices(stockID, bars...)
	return nil
}

// ListRecent returns up to limit bars, newest first
func (m *Memory) ListRecent(_ context.Context, stockID int64, limit int) ([]contracts.PriceBar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bars := m.prices[stockID]
	n := len(bars)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]contracts.PriceBar, 0, n)
	for i := len(bars) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, bars[i])
	}
	return out, nil
}
