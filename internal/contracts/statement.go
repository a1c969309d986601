package contracts

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StatementType is a category of fundamental financial data
type StatementType string

const (
	StatementIncome       StatementType = "income"
	StatementBalanceSheet StatementType = "balance_sheet"
	StatementCashFlow     StatementType = "cash_flow"
	StatementIndicator    StatementType = "indicator"
)

// ImportOrder is the order in which a full import processes statement types
var ImportOrder = []StatementType{
	StatementBalanceSheet,
	StatementIndicator,
	StatementIncome,
	StatementCashFlow,
}

// ParseStatementType accepts canonical names and the vendor file aliases
// (balancesheet, fina_indicator, cashflow).
func ParseStatementType(s string) (StatementType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income":
		return StatementIncome, nil
	case "balance_sheet", "balancesheet":
		return StatementBalanceSheet, nil
	case "cash_flow", "cashflow":
		return StatementCashFlow, nil
	case "indicator", "fina_indicator":
		return StatementIndicator, nil
	}
	return "", fmt.Errorf("unknown statement type %q", s)
}

// Alias returns the vendor file name used for this type
func (t StatementType) Alias() string {
	switch t {
	case StatementBalanceSheet:
		return "balancesheet"
	case StatementCashFlow:
		return "cashflow"
	case StatementIndicator:
		return "fina_indicator"
	}
	return string(t)
}

// Table returns the storage table for this type
func (t StatementType) Table() string {
	switch t {
	case StatementIncome:
		return "income_statements"
	case StatementBalanceSheet:
		return "balance_sheets"
	case StatementCashFlow:
		return "cash_flows"
	case StatementIndicator:
		return "financial_indicators"
	}
	return ""
}

// Valid reports whether t is one of the four known types
func (t StatementType) Valid() bool {
	return t.Table() != ""
}

// Columns returns the canonical numeric fields of this type in storage order
func (t StatementType) Columns() []string {
	switch t {
	case StatementIncome:
		return IncomeColumns
	case StatementBalanceSheet:
		return BalanceSheetColumns
	case StatementCashFlow:
		return CashFlowColumns
	case StatementIndicator:
		return IndicatorColumns
	}
	return nil
}

// FixedSchema reports whether every column is always present on a record.
// Indicator records only carry the fields found in the source row.
func (t StatementType) FixedSchema() bool {
	return t != StatementIndicator
}

// ReportPeriod classifies the coverage window of a statement
type ReportPeriod string

const (
	PeriodQuarter ReportPeriod = "quarter"
	PeriodAnnual  ReportPeriod = "annual"
)

// StatementRecord is one canonical statement row.
// Natural key: (StockID, ReportDate, Type).
type StatementRecord struct {
	StockID      int64                          `json:"stock_id"`
	Symbol       string                         `json:"symbol,omitempty"`
	Type         StatementType                  `json:"type"`
	ReportDate   time.Time                      `json:"report_date"`
	ReportPeriod ReportPeriod                   `json:"report_period"`
	Fields       map[string]decimal.NullDecimal `json:"fields"`
	RawPayload   json.RawMessage                `json:"raw_payload,omitempty"`
}

// Field returns a field value as float64 and whether it is set
func (r *StatementRecord) Field(name string) (float64, bool) {
	v, ok := r.Fields[name]
	if !ok || !v.Valid {
		return 0, false
	}
	return v.Decimal.InexactFloat64(), true
}

// NaturalKey identifies a record without a surrogate id
func (r *StatementRecord) NaturalKey() string {
	return fmt.Sprintf("%s:%d:%s", r.Type, r.StockID, r.ReportDate.Format("2006-01-02"))
}

var (
	IncomeColumns = []string{
		"revenue", "net_income", "gross_profit",
		"gross_margin", "net_margin", "eps",
	}

	BalanceSheetColumns = []string{
		"debt_ratio", "current_ratio", "quick_ratio",
	}

	CashFlowColumns = []string{
		"operating_cash_flow", "investing_cash_flow", "financing_cash_flow",
	}

	// IndicatorColumns is the whitelist of vendor ratio fields kept on indicator records
	IndicatorColumns = []string{
		"eps", "gross_margin", "netprofit_margin", "roe", "roa",
		"current_ratio", "quick_ratio", "debt_to_assets",
		"dt_eps", "total_revenue_ps", "revenue_ps", "capital_rese_ps", "surplus_rese_ps",
		"undist_profit_ps", "extra_item", "profit_dedt", "cash_ratio",
		"ar_turn", "ca_turn", "fa_turn", "assets_turn",
		"op_income", "ebit", "ebitda", "fcff", "fcfe",
		"current_exint", "noncurrent_exint", "interestdebt", "netdebt", "tangible_asset",
		"working_capital", "networking_capital", "invest_capital", "retained_earnings",
		"diluted2_eps", "bps", "ocfps", "retainedps", "cfps", "ebit_ps", "fcff_ps", "fcfe_ps",
		"grossprofit_margin", "cogs_of_sales", "expense_of_sales", "profit_to_gr",
		"saleexp_to_gr", "adminexp_of_gr", "finaexp_of_gr", "impai_ttm", "gc_of_gr",
		"op_of_gr", "ebit_of_gr",
		"roe_waa", "roe_dt", "npta", "roic", "roe_yearly", "roa2_yearly",
		"assets_to_eqt", "dp_assets_to_eqt", "ca_to_assets", "nca_to_assets",
		"tbassets_to_totalassets", "int_to_talcap", "eqt_to_talcapital",
		"currentdebt_to_debt", "longdeb_to_debt", "ocf_to_shortdebt", "debt_to_eqt",
		"eqt_to_debt", "eqt_to_interestdebt", "tangibleasset_to_debt",
		"tangasset_to_intdebt", "tangibleasset_to_netdebt", "ocf_to_debt",
		"turn_days", "roa_yearly", "roa_dp", "fixed_assets", "profit_to_op",
		"q_saleexp_to_gr", "q_gc_to_gr", "q_roe", "q_dt_roe", "q_npta", "q_ocf_to_sales",
		"basic_eps_yoy", "dt_eps_yoy", "cfps_yoy", "op_yoy", "ebt_yoy", "netprofit_yoy",
		"dt_netprofit_yoy", "ocf_yoy", "roe_yoy", "bps_yoy", "assets_yoy", "eqt_yoy",
		"tr_yoy", "or_yoy", "q_sales_yoy", "q_op_qoq", "equity_yoy",
	}
)
