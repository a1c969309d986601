package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wonny/fincore/internal/contracts"
	"github.com/wonny/fincore/pkg/database"
)

// Postgres implements the repository contracts on PostgreSQL
// SSOT: SQL for stocks, statements and prices lives here only
type Postgres struct {
	pool *pgxpool.Pool

	mu      sync.Mutex
	inserts map[string]string // cached INSERT per type and overwrite mode
}

var (
	_ contracts.StockRepository     = (*Postgres)(nil)
	_ contracts.StatementRepository = (*Postgres)(nil)
	_ contracts.PriceRepository     = (*Postgres)(nil)
)

// NewPostgres creates a store on an existing pool
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{
		pool:    pool,
		inserts: make(map[string]string),
	}
}

// Pool returns the underlying database pool
func (p *Postgres) Pool() *pgxpool.Pool {
	return p.pool
}

const stockColumns = `id, symbol, ts_code, name, market, COALESCE(industry, ''), list_date, status, created_at, updated_at`

func scanStock(row pgx.Row) (*contracts.Stock, error) {
	var s contracts.Stock
	var market, status string
	if err := row.Scan(
		&s.ID, &s.Symbol, &s.TSCode, &s.Name, &market, &s.Industry,
		&s.ListDate, &status, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Market = contracts.Market(market)
	s.Status = contracts.StockStatus(status)
	return &s, nil
}

// GetBySymbol returns contracts.ErrNotFound for unknown symbols
func (p *Postgres) GetBySymbol(ctx context.Context, symbol string) (*contracts.Stock, error) {
	query := `SELECT ` + stockColumns + ` FROM stocks WHERE symbol = $1`

	s, err := scanStock(p.pool.QueryRow(ctx, query, symbol))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query stock %s: %w", symbol, err)
	}
	return s, nil
}

// List returns stocks ordered by symbol. An empty status matches all.
func (p *Postgres) List(ctx context.Context, status contracts.StockStatus) ([]*contracts.Stock, error) {
	query := `SELECT ` + stockColumns + ` FROM stocks WHERE ($1 = '' OR status = $1) ORDER BY symbol`

	rows, err := p.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("query stocks: %w", err)
	}
	defer rows.Close()

	var stocks []*contracts.Stock
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		stocks = append(stocks, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return stocks, nil
}

// InsertIfAbsent creates stocks whose symbol and ts_code are both new
func (p *Postgres) InsertIfAbsent(ctx context.Context, stocks []*contracts.Stock) (int, error) {
	if len(stocks) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO stocks (symbol, ts_code, name, market, industry, list_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, NOW(), NOW())
		ON CONFLICT DO NOTHING
	`

	created := 0
	err := database.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, s := range stocks {
			status := s.Status
			if status == "" {
				status = contracts.StockActive
			}
			batch.Queue(query, s.Symbol, s.TSCode, s.Name, string(s.Market), s.Industry, s.ListDate, string(status))
		}

		br := tx.SendBatch(ctx, batch)
		for _, s := range stocks {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return fmt.Errorf("insert stock %s: %w", s.Symbol, err)
			}
			created += int(tag.RowsAffected())
		}
		return br.Close()
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// insertSQL builds the INSERT statement of one statement type
func (p *Postgres) insertSQL(t contracts.StatementType, overwrite bool) string {
	key := fmt.Sprintf("%s:%t", t, overwrite)

	p.mu.Lock()
	defer p.mu.Unlock()
	if q, ok := p.inserts[key]; ok {
		return q
	}

	cols := append([]string{"stock_id", "report_date", "report_period"}, t.Columns()...)
	cols = append(cols, "data")

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s, created_at, updated_at) VALUES (%s, NOW(), NOW())",
		t.Table(), strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	if !overwrite {
		b.WriteString(" ON CONFLICT (stock_id, report_date) DO NOTHING")
	} else {
		sets := make([]string, 0, len(cols))
		for _, c := range cols[2:] {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
		sets = append(sets, "updated_at = NOW()")
		fmt.Fprintf(&b, " ON CONFLICT (stock_id, report_date) DO UPDATE SET %s", strings.Join(sets, ", "))
	}

	q := b.String()
	p.inserts[key] = q
	return q
}

// insertArgs flattens a record into the argument order of insertSQL
func insertArgs(r *contracts.StatementRecord) []any {
	cols := r.Type.Columns()
	args := make([]any, 0, len(cols)+4)
	args = append(args, r.StockID, r.ReportDate, string(r.ReportPeriod))
	for _, c := range cols {
		v, ok := r.Fields[c]
		if !ok || !v.Valid {
			args = append(args, nil)
			continue
		}
		args = append(args, v.Decimal.String())
	}
	if len(r.RawPayload) == 0 {
		args = append(args, nil)
	} else {
		args = append(args, string(r.RawPayload))
	}
	return args
}

// InsertBatch writes the records in one transaction. Any failure rolls back
// the whole batch; callers retry row by row to isolate the bad record.
func (p *Postgres) InsertBatch(ctx context.Context, records []*contracts.StatementRecord, overwrite bool) ([]bool, error) {
	written := make([]bool, len(records))
	if len(records) == 0 {
		return written, nil
	}

	for _, r := range records {
		if !r.Type.Valid() {
			return nil, fmt.Errorf("insert statement: unknown type %q", r.Type)
		}
	}

	err := database.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range records {
			batch.Queue(p.insertSQL(r.Type, overwrite), insertArgs(r)...)
		}

		br := tx.SendBatch(ctx, batch)
		for i, r := range records {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return fmt.Errorf("insert %s: %w", r.NaturalKey(), err)
			}
			written[i] = tag.RowsAffected() > 0
		}
		return br.Close()
	})
	if err != nil {
		return nil, err
	}
	return written, nil
}

func selectSQL(t contracts.StatementType) string {
	cols := make([]string, len(t.Columns()))
	for i, c := range t.Columns() {
		cols[i] = "x." + c
	}
	return fmt.Sprintf(
		"SELECT x.stock_id, s.symbol, x.report_date, x.report_period, %s, x.data FROM %s x JOIN stocks s ON s.id = x.stock_id",
		strings.Join(cols, ", "), t.Table(),
	)
}

func scanStatement(rows pgx.Rows, t contracts.StatementType) (*contracts.StatementRecord, error) {
	cols := t.Columns()
	values := make([]decimal.NullDecimal, len(cols))

	r := &contracts.StatementRecord{Type: t}
	var period string
	var data []byte

	dest := make([]any, 0, len(cols)+5)
	dest = append(dest, &r.StockID, &r.Symbol, &r.ReportDate, &period)
	for i := range values {
		dest = append(dest, &values[i])
	}
	dest = append(dest, &data)

	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}

	r.ReportPeriod = contracts.ReportPeriod(period)
	r.RawPayload = data
	r.Fields = statementFields(t, values, data)
	return r, nil
}

// statementFields rebuilds the field map of a stored row. Fixed-schema types
// carry every column. Indicator records carry a column only when it was in
// the source row, so an empty source cell comes back as a null field and a
// missing one stays absent.
func statementFields(t contracts.StatementType, values []decimal.NullDecimal, raw []byte) map[string]decimal.NullDecimal {
	cols := t.Columns()
	fields := make(map[string]decimal.NullDecimal, len(cols))

	var present map[string]json.RawMessage
	if !t.FixedSchema() && len(raw) > 0 {
		if err := json.Unmarshal(raw, &present); err != nil {
			present = nil
		}
	}

	for i, c := range cols {
		if i >= len(values) {
			break
		}
		if !values[i].Valid && !t.FixedSchema() {
			if _, ok := present[c]; !ok {
				continue
			}
		}
		fields[c] = values[i]
	}
	return fields
}

// Latest returns the record with the greatest report date
func (p *Postgres) Latest(ctx context.Context, stockID int64, t contracts.StatementType) (*contracts.StatementRecord, error) {
	records, err := p.ListByStock(ctx, stockID, t, "", 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, contracts.ErrNotFound
	}
	return records[0], nil
}

// ListByStock returns records newest first. A limit <= 0 returns all.
func (p *Postgres) ListByStock(ctx context.Context, stockID int64, t contracts.StatementType, period contracts.ReportPeriod, limit int) ([]*contracts.StatementRecord, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("list statements: unknown type %q", t)
	}

	query := selectSQL(t) + ` WHERE x.stock_id = $1 AND ($2 = '' OR x.report_period = $2) ORDER BY x.report_date DESC`
	args := []any{stockID, string(period)}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.Table(), err)
	}
	defer rows.Close()

	var out []*contracts.StatementRecord
	for rows.Next() {
		r, err := scanStatement(rows, t)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.Table(), err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of records of type t
func (p *Postgres) Count(ctx context.Context, t contracts.StatementType) (int, error) {
	if !t.Valid() {
		return 0, fmt.Errorf("count statements: unknown type %q", t)
	}

	var n int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+t.Table()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.Table(), err)
	}
	return n, nil
}

// ListRecent returns up to limit bars, newest first. A limit <= 0 returns all.
func (p *Postgres) ListRecent(ctx context.Context, stockID int64, limit int) ([]contracts.PriceBar, error) {
	query := `
		SELECT date, open::float8, high::float8, low::float8, close::float8, volume,
		       COALESCE(amount, 0)::float8, COALESCE(change, 0)::float8, COALESCE(change_percent, 0)::float8
		FROM stock_daily_data
		WHERE stock_id = $1
		ORDER BY date DESC
		LIMIT $2
	`

	var lim any
	if limit > 0 {
		lim = limit
	}

	rows, err := p.pool.Query(ctx, query, stockID, lim)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	var bars []contracts.PriceBar
	for rows.Next() {
		var b contracts.PriceBar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Amount, &b.Change, &b.ChangePercent); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// SavePrices upserts daily bars of one stock
func (p *Postgres) SavePrices(ctx context.Context, stockID int64, bars []contracts.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	query := `
		INSERT INTO stock_daily_data (stock_id, date, open, high, low, close, volume, amount, change, change_percent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (stock_id, date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			amount = EXCLUDED.amount,
			change = EXCLUDED.change,
			change_percent = EXCLUDED.change_percent
	`

	return database.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, b := range bars {
			batch.Queue(query, stockID, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume, b.Amount, b.Change, b.ChangePercent)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert prices for stock %d: %w", stockID, err)
		}
		return nil
	})
}
