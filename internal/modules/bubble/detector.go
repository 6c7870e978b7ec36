package bubble

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/steward-labs/steward/internal/modules/fundamentals"
)

// Default scan list: widely-held momentum names worth watching for froth.
var TrendingSymbols = []string{
	"TSLA", "NVDA", "PLTR", "AMD", "COIN", "HOOD", "MSTR", "RIOT",
	"SQ", "SHOP", "SNOW", "CRWD", "NET", "DDOG", "ZS", "OKTA",
	"RBLX", "U", "ABNB", "DASH", "UBER", "LYFT", "RIVN", "LCID",
}

// RiskLevel classifies how many warning signals a stock tripped.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "HIGH"
	RiskMedium RiskLevel = "MEDIUM"
)

// Signal thresholds.
const (
	extremePE        = 50.0
	speculativePE    = 100.0
	weakGrowth       = 0.20
	largeCapFloor    = 10_000_000_000
	decliningRevenue = -0.05
	hotYearChange    = 0.20
	heavySellingNet  = -5
	highLeverage     = 2.0
	extremePS        = 20.0
	targetOvershoot  = 1.3
	minSignals       = 2
	highRiskSignals  = 3
)

// InsiderActivity summarizes recent insider transactions for one symbol.
type InsiderActivity struct {
	Buys  int    `json:"buys"`
	Sells int    `json:"sells"`
	Brief string `json:"brief"`
}

// Net is buys minus sells. Negative means net selling.
func (a InsiderActivity) Net() int { return a.Buys - a.Sells }

// InsiderSource provides insider transaction data. May be nil on the
// detector, in which case the insider signal is skipped.
type InsiderSource interface {
	InsiderActivity(ctx context.Context, symbol string) (*InsiderActivity, error)
}

// Warning flags a stock as potentially overvalued. This is an avoid list,
// not a shorting signal.
type Warning struct {
	Symbol      string    `json:"symbol"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Signals     []string  `json:"signals"`
	SignalCount int       `json:"signal_count"`
	RiskLevel   RiskLevel `json:"risk_level"`
	Summary     string    `json:"summary"`
}

// Detector scans stocks for bubble characteristics.
type Detector struct {
	provider fundamentals.Provider
	insiders InsiderSource
	log      zerolog.Logger
}

func NewDetector(provider fundamentals.Provider, insiders InsiderSource, log zerolog.Logger) *Detector {
	return &Detector{
		provider: provider,
		insiders: insiders,
		log:      log.With().Str("component", "bubble_detector").Logger(),
	}
}

// Scan analyzes the given symbols, or the trending list when none are
// given, and returns warnings with at least two signals, most dangerous
// first.
func (d *Detector) Scan(ctx context.Context, symbols []string) []Warning {
	if len(symbols) == 0 {
		symbols = TrendingSymbols
	}

	var warnings []Warning
	for _, symbol := range symbols {
		rec, err := d.provider.Lookup(ctx, symbol)
		if err != nil {
			d.log.Debug().Err(err).Str("symbol", symbol).Msg("Skipping bubble analysis")
			continue
		}

		var insider *InsiderActivity
		if d.insiders != nil {
			if activity, err := d.insiders.InsiderActivity(ctx, symbol); err == nil {
				insider = activity
			}
		}

		if warning := Analyze(rec, insider); warning != nil && warning.SignalCount >= minSignals {
			warnings = append(warnings, *warning)
		}
	}

	sort.Slice(warnings, func(i, j int) bool {
		if warnings[i].SignalCount != warnings[j].SignalCount {
			return warnings[i].SignalCount > warnings[j].SignalCount
		}
		return warnings[i].Symbol < warnings[j].Symbol
	})

	d.log.Info().Int("scanned", len(symbols)).Int("warnings", len(warnings)).Msg("Bubble scan completed")
	return warnings
}

// Analyze runs the signal checks against a single record. Pure except for
// the optional insider input. Returns nil when nothing triggered.
func Analyze(rec *fundamentals.Record, insider *InsiderActivity) *Warning {
	if rec == nil {
		return nil
	}

	var signals []string
	pe := rec.PERatio

	if pe != nil && *pe > extremePE {
		growth := 0.0
		if rec.RevenueGrowth != nil {
			growth = *rec.RevenueGrowth
		}
		if growth < weakGrowth {
			signals = append(signals, fmt.Sprintf("P/E of %.0f with only %.0f%% revenue growth", *pe, growth*100))
		}
	}

	if pe != nil && *pe < 0 && rec.MarketCap > largeCapFloor {
		signals = append(signals, fmt.Sprintf("No earnings (negative P/E) with $%.0fB market cap", rec.MarketCap/1e9))
	}

	if pe != nil && *pe > speculativePE {
		signals = append(signals, fmt.Sprintf("Extreme P/E of %.0f, priced for perfection", *pe))
	}

	if rec.RevenueGrowth != nil && rec.FiftyTwoWeekChange != nil {
		if *rec.RevenueGrowth < decliningRevenue && *rec.FiftyTwoWeekChange > hotYearChange {
			signals = append(signals, fmt.Sprintf("Revenue down %.0f%% but stock up %.0f%% over a year",
				-*rec.RevenueGrowth*100, *rec.FiftyTwoWeekChange*100))
		}
	}

	if insider != nil && insider.Net() < heavySellingNet {
		signals = append(signals, fmt.Sprintf("Heavy insider selling: %s", insider.Brief))
	}

	if rec.DebtEquity != nil && *rec.DebtEquity > highLeverage {
		signals = append(signals, fmt.Sprintf("High debt/equity of %.1f", *rec.DebtEquity))
	}

	if rec.PriceToSales != nil && *rec.PriceToSales > extremePS {
		signals = append(signals, fmt.Sprintf("Price/sales of %.0f, extremely speculative", *rec.PriceToSales))
	}

	if rec.TargetMeanPrice != nil && rec.Price > 0 && *rec.TargetMeanPrice > 0 {
		if rec.Price > *rec.TargetMeanPrice*targetOvershoot {
			signals = append(signals, fmt.Sprintf("Price $%.0f is %.0f%% above analyst target $%.0f",
				rec.Price, (rec.Price / *rec.TargetMeanPrice-1)*100, *rec.TargetMeanPrice))
		}
	}

	if len(signals) == 0 {
		return nil
	}

	risk := RiskMedium
	if len(signals) >= highRiskSignals {
		risk = RiskHigh
	}

	summary := fmt.Sprintf("%d warning signals detected.", len(signals))
	if pe != nil && *pe > extremePE {
		summary += " Valuation appears disconnected from fundamentals."
	}
	if insider != nil && insider.Net() < heavySellingNet {
		summary += " Insiders are selling."
	}

	return &Warning{
		Symbol:      rec.Symbol,
		Name:        rec.Name,
		Price:       rec.Price,
		Signals:     signals,
		SignalCount: len(signals),
		RiskLevel:   risk,
		Summary:     summary,
	}
}
