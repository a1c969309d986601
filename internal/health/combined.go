package health

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	"github.com/wonny/fincore/internal/contracts"
)

// Combined merges the income, indicator and cash flow records of one report date
type Combined struct {
	ReportDate   time.Time              `json:"report_date"`
	ReportPeriod contracts.ReportPeriod `json:"report_period"`

	Revenue     null.Float `json:"revenue"`
	NetIncome   null.Float `json:"net_income"`
	GrossProfit null.Float `json:"gross_profit"`

	OperatingCashFlow null.Float `json:"operating_cash_flow"`
	InvestingCashFlow null.Float `json:"investing_cash_flow"`
	FinancingCashFlow null.Float `json:"financing_cash_flow"`

	GrossMargin  null.Float `json:"gross_margin"`
	NetMargin    null.Float `json:"net_margin"`
	ROE          null.Float `json:"roe"`
	ROA          null.Float `json:"roa"`
	DebtRatio    null.Float `json:"debt_ratio"`
	CurrentRatio null.Float `json:"current_ratio"`
	QuickRatio   null.Float `json:"quick_ratio"`
	CashRatio    null.Float `json:"cash_ratio"`
	EPS          null.Float `json:"eps"`

	AssetsTurn null.Float `json:"assets_turn"`
	ARTurn     null.Float `json:"ar_turn"`
	CATurn     null.Float `json:"ca_turn"`
	FATurn     null.Float `json:"fa_turn"`

	RevenueYoY   null.Float `json:"revenue_yoy"`
	NetIncomeYoY null.Float `json:"net_income_yoy"`

	EquityMultiplier  null.Float `json:"equity_multiplier"`
	OCFToInterestDebt null.Float `json:"ocf_to_interestdebt"`

	CashFlowAdequacy null.Int   `json:"cash_flow_adequacy"`
	Quick            *Letter    `json:"financial_health,omitempty"`
	DuPont           DuPontView `json:"dupont"`
}

func field(r *contracts.StatementRecord, names ...string) null.Float {
	if r == nil {
		return null.Float{}
	}
	for _, name := range names {
		if v, ok := r.Field(name); ok {
			return null.FloatFrom(v)
		}
	}
	return null.Float{}
}

// rawField reads a vendor column that is kept only in the raw payload
func rawField(r *contracts.StatementRecord, name string) null.Float {
	if r == nil || len(r.RawPayload) == 0 {
		return null.Float{}
	}
	var raw map[string]string
	if err := json.Unmarshal(r.RawPayload, &raw); err != nil {
		return null.Float{}
	}
	v, ok := raw[name]
	if !ok {
		return null.Float{}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return null.Float{}
	}
	return null.FloatFrom(f)
}

// SnapshotFromIndicator reads the score inputs from an indicator record
func SnapshotFromIndicator(r *contracts.StatementRecord) Snapshot {
	return Snapshot{
		ROE:          field(r, "roe"),
		GrossMargin:  field(r, "grossprofit_margin", "gross_margin"),
		NetMargin:    field(r, "netprofit_margin"),
		DebtRatio:    field(r, "debt_to_assets"),
		CurrentRatio: field(r, "current_ratio"),
		QuickRatio:   field(r, "quick_ratio"),
		ROA:          field(r, "roa"),
		RevenueYoY:   field(r, "or_yoy", "tr_yoy"),
		NetIncomeYoY: field(r, "netprofit_yoy"),
	}
}

// Combine merges the records of one report date; any of them may be nil
func Combine(date time.Time, income, indicator, cashFlow *contracts.StatementRecord) Combined {
	c := Combined{
		ReportDate:   date,
		ReportPeriod: contracts.PeriodAnnual,

		Revenue:     field(income, "revenue"),
		NetIncome:   field(income, "net_income"),
		GrossProfit: field(income, "gross_profit"),

		OperatingCashFlow: field(cashFlow, "operating_cash_flow"),
		InvestingCashFlow: field(cashFlow, "investing_cash_flow"),
		FinancingCashFlow: field(cashFlow, "financing_cash_flow"),

		GrossMargin:  field(indicator, "grossprofit_margin", "gross_margin"),
		NetMargin:    field(indicator, "netprofit_margin"),
		ROE:          field(indicator, "roe"),
		ROA:          field(indicator, "roa"),
		DebtRatio:    field(indicator, "debt_to_assets"),
		CurrentRatio: field(indicator, "current_ratio"),
		QuickRatio:   field(indicator, "quick_ratio"),
		CashRatio:    field(indicator, "cash_ratio"),
		EPS:          field(indicator, "eps"),

		AssetsTurn: field(indicator, "assets_turn"),
		ARTurn:     field(indicator, "ar_turn"),
		CATurn:     field(indicator, "ca_turn"),
		FATurn:     field(indicator, "fa_turn"),

		RevenueYoY:   field(indicator, "or_yoy"),
		NetIncomeYoY: field(indicator, "netprofit_yoy"),

		EquityMultiplier:  field(indicator, "assets_to_eqt"),
		OCFToInterestDebt: rawField(indicator, "ocf_to_interestdebt"),
	}

	for _, r := range []*contracts.StatementRecord{income, indicator, cashFlow} {
		if r != nil {
			c.ReportPeriod = r.ReportPeriod
			break
		}
	}

	c.CashFlowAdequacy = CashFlowAdequacy(c.OperatingCashFlow, c.NetIncome, c.InvestingCashFlow, c.OCFToInterestDebt)
	q := QuickScore(c)
	c.Quick = &q
	c.DuPont = DuPont(c)
	return c
}

// CombineByDate joins records of the three types on report date, newest first
func CombineByDate(income, indicator, cashFlow []*contracts.StatementRecord) []Combined {
	type group struct {
		income, indicator, cashFlow *contracts.StatementRecord
	}
	groups := make(map[time.Time]*group)
	get := func(d time.Time) *group {
		g, ok := groups[d]
		if !ok {
			g = &group{}
			groups[d] = g
		}
		return g
	}

	for _, r := range income {
		get(r.ReportDate).income = r
	}
	for _, r := range indicator {
		get(r.ReportDate).indicator = r
	}
	for _, r := range cashFlow {
		get(r.ReportDate).cashFlow = r
	}

	dates := make([]time.Time, 0, len(groups))
	for d := range groups {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })

	out := make([]Combined, 0, len(dates))
	for _, d := range dates {
		g := groups[d]
		c := Combine(d, g.income, g.indicator, g.cashFlow)
		// rows where every key figure is missing carry no information
		if !c.Revenue.Valid && !c.NetIncome.Valid && !c.ROE.Valid {
			continue
		}
		out = append(out, c)
	}
	return out
}
