package qualitative

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/steward-labs/steward/internal/domain"
)

// Verdict is the structured form of a qualitative company assessment.
// Produced by parsing analyst text; consumed downstream through the Ratings
// view.
type Verdict struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Sector string `json:"sector"`

	MoatType       string `json:"moat_type"`
	MoatDurability string `json:"moat_durability"`
	MoatRisks      string `json:"moat_risks"`

	CapitalAllocation string   `json:"capital_allocation"`
	InsiderOwnership  *float64 `json:"insider_ownership,omitempty"`
	ManagementSummary string   `json:"management_summary"`

	RecessionResilience string `json:"recession_resilience"`
	ExistentialRisks    string `json:"existential_risks"`
	TenYearOutlook      string `json:"ten_year_outlook"`

	DomesticRevenuePct      *float64 `json:"domestic_revenue_pct,omitempty"`
	InternationalRevenuePct *float64 `json:"international_revenue_pct,omitempty"`
	CurrencyRiskLevel       string   `json:"currency_risk_level"`
	CurrencyConfidence      string   `json:"currency_confidence"`

	FairValueLow     *float64 `json:"fair_value_low,omitempty"`
	FairValueHigh    *float64 `json:"fair_value_high,omitempty"`
	TargetEntryPrice *float64 `json:"target_entry_price,omitempty"`
	CurrentPrice     *float64 `json:"current_price,omitempty"`

	Conviction domain.ConvictionLevel `json:"conviction"`

	Summary               string   `json:"summary"`
	DividendYieldEstimate *float64 `json:"dividend_yield_estimate,omitempty"`
	TotalReturnPotential  string   `json:"total_return_potential"`
	KeyRisks              []string `json:"key_risks"`
	ThesisRisks           []string `json:"thesis_risks"`
	// ThesisBroken is set when the analysis marks one of the
	// thesis-breaking events as having occurred.
	ThesisBroken bool `json:"thesis_broken"`
}

// Ratings is the compact view the tier engine consumes.
type Ratings struct {
	Moat       domain.MoatRating
	Management domain.ManagementRating
	Conviction domain.ConvictionLevel
}

// Ratings folds the detailed assessment into the three closed ratings.
// A strong durable moat maps wide, a moderate one narrow, anything weaker
// none.
func (v *Verdict) Ratings() Ratings {
	var moat domain.MoatRating
	switch v.MoatDurability {
	case "strong":
		moat = domain.MoatWide
	case "moderate":
		moat = domain.MoatNarrow
	default:
		moat = domain.MoatNone
	}

	var mgmt domain.ManagementRating
	switch v.CapitalAllocation {
	case "excellent":
		mgmt = domain.ManagementExcellent
	case "good", "mixed":
		mgmt = domain.ManagementAdequate
	default:
		mgmt = domain.ManagementPoor
	}

	return Ratings{Moat: moat, Management: mgmt, Conviction: v.Conviction}
}

// MidFairValue averages the fair value bounds when both exist.
func (v *Verdict) MidFairValue() *float64 {
	if v.FairValueLow == nil {
		return v.FairValueHigh
	}
	if v.FairValueHigh == nil {
		return v.FairValueLow
	}
	mid := (*v.FairValueLow + *v.FairValueHigh) / 2
	return &mid
}

// TextSource produces the free-form analysis text for a company. Backed by
// an LLM in production, canned text in tests.
type TextSource interface {
	Analysis(ctx context.Context, symbol, name, sector string) (string, error)
}

// Analyzer turns analysis text into verdicts.
type Analyzer struct {
	source TextSource
	log    zerolog.Logger
}

func NewAnalyzer(source TextSource, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		source: source,
		log:    log.With().Str("component", "qualitative").Logger(),
	}
}

// Analyze fetches and parses the assessment for one company.
func (a *Analyzer) Analyze(ctx context.Context, symbol, name, sector string) (*Verdict, error) {
	text, err := a.source.Analysis(ctx, symbol, name, sector)
	if err != nil {
		return nil, err
	}
	verdict := ParseVerdict(symbol, name, sector, text)
	a.log.Debug().
		Str("symbol", symbol).
		Str("moat_durability", verdict.MoatDurability).
		Str("conviction", string(verdict.Conviction)).
		Msg("Parsed qualitative verdict")
	return verdict, nil
}
