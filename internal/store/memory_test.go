package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fincore/internal/contracts"
)

func statement(stockID int64, t contracts.StatementType, date time.Time, roe string) *contracts.StatementRecord {
	return &contracts.StatementRecord{
		StockID:      stockID,
		Type:         t,
		ReportDate:   date,
		ReportPeriod: contracts.PeriodQuarter,
		Fields: map[string]decimal.NullDecimal{
			"roe": decimal.NewNullDecimal(decimal.RequireFromString(roe)),
		},
	}
}

func TestMemoryStocks(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	created, err := m.InsertIfAbsent(ctx, []*contracts.Stock{
		{Symbol: "600000", TSCode: "600000.SH", Name: "A", Market: contracts.MarketSH},
		{Symbol: "000001", TSCode: "000001.SZ", Name: "B", Market: contracts.MarketSZ, Status: contracts.StockSuspended},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = m.InsertIfAbsent(ctx, []*contracts.Stock{{Symbol: "600000", Name: "renamed"}})
	require.NoError(t, err)
	assert.Zero(t, created)

	s, err := m.GetBySymbol(ctx, "600000")
	require.NoError(t, err)
	assert.Equal(t, "A", s.Name)
	assert.Equal(t, contracts.StockActive, s.Status)
	assert.NotZero(t, s.ID)

	_, err = m.GetBySymbol(ctx, "999999")
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	all, err := m.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "000001", all[0].Symbol)

	active, err := m.List(ctx, contracts.StockActive)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestMemoryInsertBatch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	d := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	written, err := m.InsertBatch(ctx, []*contracts.StatementRecord{
		statement(1, contracts.StatementIndicator, d, "0.10"),
	}, false)
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, written)

	// same natural key, no overwrite
	written, err = m.InsertBatch(ctx, []*contracts.StatementRecord{
		statement(1, contracts.StatementIndicator, d, "0.20"),
	}, false)
	require.NoError(t, err)
	assert.Equal(t, []bool{false}, written)

	r, err := m.Latest(ctx, 1, contracts.StatementIndicator)
	require.NoError(t, err)
	v, _ := r.Field("roe")
	assert.Equal(t, 0.10, v)

	written, err = m.InsertBatch(ctx, []*contracts.StatementRecord{
		statement(1, contracts.StatementIndicator, d, "0.20"),
	}, true)
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, written)

	r, err = m.Latest(ctx, 1, contracts.StatementIndicator)
	require.NoError(t, err)
	v, _ = r.Field("roe")
	assert.Equal(t, 0.20, v)

	n, err := m.Count(ctx, contracts.StatementIndicator)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryFailInsert(t *testing.T) {
	m := NewMemory()
	boom := errors.New("boom")
	m.FailInsert = func(*contracts.StatementRecord) error { return boom }

	_, err := m.InsertBatch(context.Background(), []*contracts.StatementRecord{
		statement(1, contracts.StatementIncome, time.Now(), "1"),
	}, false)
	assert.ErrorIs(t, err, boom)

	n, _ := m.Count(context.Background(), contracts.StatementIncome)
	assert.Zero(t, n, "failed batch writes nothing")
}

func TestMemoryListByStock(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	q1 := statement(1, contracts.StatementIncome, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), "1")
	fy := statement(1, contracts.StatementIncome, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), "2")
	fy.ReportPeriod = contracts.PeriodAnnual
	other := statement(2, contracts.StatementIncome, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), "3")

	_, err := m.InsertBatch(ctx, []*contracts.StatementRecord{fy, q1, other}, false)
	require.NoError(t, err)

	records, err := m.ListByStock(ctx, 1, contracts.StatementIncome, "", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].ReportDate.After(records[1].ReportDate))

	annual, err := m.ListByStock(ctx, 1, contracts.StatementIncome, contracts.PeriodAnnual, 0)
	require.NoError(t, err)
	require.Len(t, annual, 1)
	assert.Equal(t, 2023, annual[0].ReportDate.Year())

	limited, err := m.ListByStock(ctx, 1, contracts.StatementIncome, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = m.Latest(ctx, 3, contracts.StatementIncome)
	assert.ErrorIs(t, err, contracts.ErrNotFound)
}

func TestMemoryPrices(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

	m.AddPrices(1,
		contracts.PriceBar{Date: day(3), Close: 3},
		contracts.PriceBar{Date: day(1), Close: 1},
		contracts.PriceBar{Date: day(2), Close: 2},
	)
	m.AddPrices(1, contracts.PriceBar{Date: day(2), Close: 20})

	bars, err := m.ListRecent(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 3.0, bars[0].Close)
	assert.Equal(t, 20.0, bars[1].Close)

	all, err := m.ListRecent(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := m.ListRecent(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
