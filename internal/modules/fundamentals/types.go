// Package fundamentals defines the per-symbol financial data records the
// screening engine consumes, and the provider boundary that produces them.
package fundamentals

import (
	"time"

	"github.com/steward-labs/steward/internal/domain"
)

// Record holds the point-in-time and trend metrics for one symbol.
//
// Any metric may be absent (the provider did not supply it). Absence is
// modeled with nil pointers and never with sentinel values - a missing
// metric contributes zero weight during scoring instead of corrupting
// the weighted sum.
type Record struct {
	Symbol    string           `json:"symbol" msgpack:"symbol"`
	Name      string           `json:"name" msgpack:"name"`
	Sector    string           `json:"sector" msgpack:"sector"`
	Industry  string           `json:"industry" msgpack:"industry"`
	QuoteType domain.QuoteType `json:"quote_type" msgpack:"quote_type"`
	FetchedAt time.Time        `json:"fetched_at" msgpack:"fetched_at"`

	Price     float64 `json:"price" msgpack:"price"`
	MarketCap float64 `json:"market_cap" msgpack:"market_cap"`

	// Snapshot metrics
	PERatio         *float64 `json:"pe_ratio" msgpack:"pe_ratio"`
	DebtEquity      *float64 `json:"debt_equity" msgpack:"debt_equity"`
	ROE             *float64 `json:"roe" msgpack:"roe"`
	RevenueGrowth   *float64 `json:"revenue_growth" msgpack:"revenue_growth"`
	CurrentRatio    *float64 `json:"current_ratio" msgpack:"current_ratio"`
	FCFYield        *float64 `json:"fcf_yield" msgpack:"fcf_yield"`
	EarningsQuality *float64 `json:"earnings_quality" msgpack:"earnings_quality"`
	PayoutRatio     *float64 `json:"payout_ratio" msgpack:"payout_ratio"`
	OperatingMargin *float64 `json:"operating_margin" msgpack:"operating_margin"`

	// Trend metrics derived from multi-year statements
	ROEConsistency      *float64 `json:"roe_consistency" msgpack:"roe_consistency"`
	ROIC                *float64 `json:"roic" msgpack:"roic"`
	MarginStability     *float64 `json:"margin_stability" msgpack:"margin_stability"`
	EarningsConsistency *float64 `json:"earnings_consistency" msgpack:"earnings_consistency"`
	RevenueCAGR         *float64 `json:"revenue_cagr" msgpack:"revenue_cagr"`
	FCFConsistency      *float64 `json:"fcf_consistency" msgpack:"fcf_consistency"`

	// Supporting fields used by valuation and bubble detection,
	// not part of the scored metric set
	EPS                *float64 `json:"eps" msgpack:"eps"`
	BookValue          *float64 `json:"book_value" msgpack:"book_value"`
	PriceToSales       *float64 `json:"price_to_sales" msgpack:"price_to_sales"`
	TargetMeanPrice    *float64 `json:"target_mean_price" msgpack:"target_mean_price"`
	FiftyTwoWeekChange *float64 `json:"fifty_two_week_change" msgpack:"fifty_two_week_change"`
	DividendYield      *float64 `json:"dividend_yield" msgpack:"dividend_yield"`
}

// Metric returns the value of a scored metric by its rule name.
// The second return reports whether the provider supplied the metric.
func (r *Record) Metric(name string) (float64, bool) {
	var p *float64
	switch name {
	case "pe_ratio":
		p = r.PERatio
	case "debt_equity":
		p = r.DebtEquity
	case "roe":
		p = r.ROE
	case "revenue_growth":
		p = r.RevenueGrowth
	case "current_ratio":
		p = r.CurrentRatio
	case "fcf_yield":
		p = r.FCFYield
	case "earnings_quality":
		p = r.EarningsQuality
	case "payout_ratio":
		p = r.PayoutRatio
	case "operating_margin":
		p = r.OperatingMargin
	case "roe_consistency":
		p = r.ROEConsistency
	case "roic":
		p = r.ROIC
	case "margin_stability":
		p = r.MarginStability
	case "earnings_consistency":
		p = r.EarningsConsistency
	case "revenue_cagr":
		p = r.RevenueCAGR
	case "fcf_consistency":
		p = r.FCFConsistency
	default:
		return 0, false
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// MetricNames lists every metric the scoring rules may reference.
// Criteria validation rejects rules naming anything else.
func MetricNames() []string {
	return []string{
		"pe_ratio",
		"debt_equity",
		"roe",
		"revenue_growth",
		"current_ratio",
		"fcf_yield",
		"earnings_quality",
		"payout_ratio",
		"operating_margin",
		"roe_consistency",
		"roic",
		"margin_stability",
		"earnings_consistency",
		"revenue_cagr",
		"fcf_consistency",
	}
}

// AnnualReport holds one fiscal year of statement lines.
// Absent lines are nil, mirroring Record's optional-metric model.
type AnnualReport struct {
	Revenue         *float64 `json:"revenue" msgpack:"revenue"`
	NetIncome       *float64 `json:"net_income" msgpack:"net_income"`
	OperatingIncome *float64 `json:"operating_income" msgpack:"operating_income"`
	Equity          *float64 `json:"equity" msgpack:"equity"`
	TotalDebt       *float64 `json:"total_debt" msgpack:"total_debt"`
	FreeCashFlow    *float64 `json:"free_cash_flow" msgpack:"free_cash_flow"`
}

// Statements holds multi-year financials for one symbol, newest year first.
type Statements struct {
	Symbol string         `json:"symbol" msgpack:"symbol"`
	Years  []AnnualReport `json:"years" msgpack:"years"`
}

// F is a convenience constructor for optional metric values in tests and
// provider adapters.
func F(v float64) *float64 { return &v }
