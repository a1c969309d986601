package store

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fincore/internal/contracts"
	"github.com/wonny/fincore/pkg/config"
	"github.com/wonny/fincore/pkg/database"
)

// openTestStore connects to DATABASE_URL and applies the schema
func openTestStore(t *testing.T) (*Postgres, context.Context) {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" || testing.Short() {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	db, err := database.New(ctx, config.DatabaseConfig{URL: url, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, Migrate(ctx, db.Pool))
	require.NoError(t, Migrate(ctx, db.Pool), "migrate is idempotent")

	return NewPostgres(db.Pool), ctx
}

// uniqueSymbol keeps parallel runs against a shared database apart
func uniqueSymbol() string {
	return "T" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

func TestPostgresRoundTrip(t *testing.T) {
	p, ctx := openTestStore(t)

	symbol := uniqueSymbol()
	created, err := p.InsertIfAbsent(ctx, []*contracts.Stock{{
		Symbol: symbol, TSCode: symbol + ".SH", Name: "Test", Market: contracts.MarketSH,
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	created, err = p.InsertIfAbsent(ctx, []*contracts.Stock{{
		Symbol: symbol, TSCode: symbol + ".SH", Name: "Again", Market: contracts.MarketSH,
	}})
	require.NoError(t, err)
	assert.Zero(t, created)

	stock, err := p.GetBySymbol(ctx, symbol)
	require.NoError(t, err)
	assert.Equal(t, contracts.StockActive, stock.Status)
	assert.Nil(t, stock.ListDate)

	date := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	rec := &contracts.StatementRecord{
		StockID:      stock.ID,
		Type:         contracts.StatementIndicator,
		ReportDate:   date,
		ReportPeriod: contracts.PeriodQuarter,
		Fields: map[string]decimal.NullDecimal{
			"roe": decimal.NewNullDecimal(decimal.RequireFromString("0.1523")),
		},
		RawPayload: []byte(`{"ts_code":"` + symbol + `.SH","roe":"0.1523"}`),
	}

	written, err := p.InsertBatch(ctx, []*contracts.StatementRecord{rec}, false)
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, written)

	written, err = p.InsertBatch(ctx, []*contracts.StatementRecord{rec}, false)
	require.NoError(t, err)
	assert.Equal(t, []bool{false}, written)

	rec.Fields["roe"] = decimal.NewNullDecimal(decimal.RequireFromString("0.2"))
	written, err = p.InsertBatch(ctx, []*contracts.StatementRecord{rec}, true)
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, written)

	got, err := p.Latest(ctx, stock.ID, contracts.StatementIndicator)
	require.NoError(t, err)
	assert.Equal(t, symbol, got.Symbol)
	assert.Equal(t, contracts.PeriodQuarter, got.ReportPeriod)
	assert.Len(t, got.Fields, 1, "null indicator columns are omitted")
	roe, ok := got.Field("roe")
	assert.True(t, ok)
	assert.Equal(t, 0.2, roe)
	assert.Contains(t, string(got.RawPayload), "ts_code")

	_, err = p.Latest(ctx, stock.ID, contracts.StatementIncome)
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	require.NoError(t, p.SavePrices(ctx, stock.ID, []contracts.PriceBar{
		{Date: date, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 1000},
		{Date: date.AddDate(0, 0, 1), Open: 10.5, High: 12, Low: 10, Close: 11.5, Volume: 2000},
	}))
	bars, err := p.ListRecent(ctx, stock.ID, 1)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 11.5, bars[0].Close)

	gate := NewQualityGate(p.Pool(), 0)
	snapshot, err := gate.Check(ctx, date)
	require.NoError(t, err)
	assert.Greater(t, snapshot.TotalStocks, 0)
	assert.GreaterOrEqual(t, snapshot.QualityScore, 0.0)
	assert.LessOrEqual(t, snapshot.QualityScore, 1.0)
	require.NoError(t, gate.SaveSnapshot(ctx, snapshot))
}

func TestStatementFields(t *testing.T) {
	indexOf := func(cols []string, name string) int {
		for i, c := range cols {
			if c == name {
				return i
			}
		}
		t.Fatalf("column %s not found", name)
		return -1
	}

	t.Run("indicator keeps empty source cells as null", func(t *testing.T) {
		cols := contracts.StatementIndicator.Columns()
		values := make([]decimal.NullDecimal, len(cols))
		values[indexOf(cols, "roa")] = decimal.NewNullDecimal(decimal.RequireFromString("0.05"))

		raw := []byte(`{"ts_code":"600000.SH","end_date":"20231231","roe":"","roa":"0.05"}`)
		fields := statementFields(contracts.StatementIndicator, values, raw)

		roe, ok := fields["roe"]
		require.True(t, ok, "roe was in the source row")
		assert.False(t, roe.Valid)
		assert.True(t, fields["roa"].Valid)
		_, ok = fields["eps"]
		assert.False(t, ok, "eps was not in the source row")
		assert.Len(t, fields, 2)
	})

	t.Run("indicator without payload keeps only values", func(t *testing.T) {
		cols := contracts.StatementIndicator.Columns()
		values := make([]decimal.NullDecimal, len(cols))
		values[indexOf(cols, "roe")] = decimal.NewNullDecimal(decimal.RequireFromString("0.1"))

		fields := statementFields(contracts.StatementIndicator, values, []byte("not json"))
		assert.Len(t, fields, 1)
		assert.True(t, fields["roe"].Valid)
	})

	t.Run("fixed schema carries every column", func(t *testing.T) {
		cols := contracts.StatementIncome.Columns()
		values := make([]decimal.NullDecimal, len(cols))

		fields := statementFields(contracts.StatementIncome, values, []byte(`{}`))
		assert.Len(t, fields, len(cols))
		for _, c := range cols {
			_, ok := fields[c]
			assert.True(t, ok, c)
		}
	})
}
