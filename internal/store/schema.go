package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/fincore/internal/contracts"
	"github.com/wonny/fincore/pkg/database"
)

// numericType stores every canonical statement field
const numericType = "NUMERIC(20,4)"

const stocksDDL = `
CREATE TABLE IF NOT EXISTS stocks (
	id          BIGSERIAL PRIMARY KEY,
	symbol      VARCHAR(20) NOT NULL UNIQUE,
	ts_code     VARCHAR(20) NOT NULL UNIQUE,
	name        VARCHAR(100) NOT NULL,
	market      VARCHAR(8) NOT NULL,
	industry    VARCHAR(100),
	list_date   DATE,
	status      VARCHAR(16) NOT NULL DEFAULT 'active'
	            CHECK (status IN ('active', 'delisted', 'suspended')),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const pricesDDL = `
CREATE TABLE IF NOT EXISTS stock_daily_data (
	id              BIGSERIAL PRIMARY KEY,
	stock_id        BIGINT NOT NULL REFERENCES stocks(id),
	date            DATE NOT NULL,
	open            NUMERIC(20,4) NOT NULL,
	high            NUMERIC(20,4) NOT NULL,
	low             NUMERIC(20,4) NOT NULL,
	close           NUMERIC(20,4) NOT NULL,
	volume          BIGINT NOT NULL DEFAULT 0,
	amount          NUMERIC(20,4),
	change          NUMERIC(20,4),
	change_percent  NUMERIC(20,4),
	UNIQUE (stock_id, date)
)`

const qualityDDL = `
CREATE TABLE IF NOT EXISTS quality_snapshots (
	snapshot_date  DATE PRIMARY KEY,
	total_stocks   INT NOT NULL,
	valid_stocks   INT NOT NULL,
	coverage       JSONB NOT NULL,
	quality_score  NUMERIC(6,4) NOT NULL,
	passed         BOOLEAN NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// statementDDL builds the table of one statement type from its column list
func statementDDL(t contracts.StatementType) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", t.Table())
	b.WriteString("\tid BIGSERIAL PRIMARY KEY,\n")
	b.WriteString("\tstock_id BIGINT NOT NULL REFERENCES stocks(id),\n")
	b.WriteString("\treport_date DATE NOT NULL,\n")
	b.WriteString("\treport_period VARCHAR(10) NOT NULL CHECK (report_period IN ('quarter', 'annual')),\n")
	for _, col := range t.Columns() {
		fmt.Fprintf(&b, "\t%s %s,\n", col, numericType)
	}
	b.WriteString("\tdata JSONB,\n")
	b.WriteString("\tcreated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),\n")
	b.WriteString("\tupdated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),\n")
	b.WriteString("\tUNIQUE (stock_id, report_date)\n")
	b.WriteString(")")
	return b.String()
}

// Schema returns the DDL statements in dependency order
// SSOT: table definitions live here only
func Schema() []string {
	stmts := []string{stocksDDL, pricesDDL}
	for _, t := range contracts.ImportOrder {
		stmts = append(stmts,
			statementDDL(t),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_report_date ON %s (report_date DESC)", t.Table(), t.Table()),
		)
	}
	return append(stmts, qualityDDL)
}

// Migrate applies the schema in a single transaction. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	return database.WithTx(ctx, pool, func(tx pgx.Tx) error {
		for _, stmt := range Schema() {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
		}
		return nil
	})
}
