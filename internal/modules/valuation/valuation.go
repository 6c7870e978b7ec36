// Package valuation aggregates fair value estimates from external sources
// and simple formulas. It does not attempt full intrinsic value models; it
// combines analyst targets with conservative multiples.
package valuation

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/steward-labs/steward/internal/modules/fundamentals"
)

// Market-average P/E used by the conservative multiple estimate.
const fairPE = 15.0

// Graham's constant: a fair P/E of 15 times a fair price-to-book of 1.5.
const grahamFactor = 22.5

// Estimate is one fair value opinion from one source.
type Estimate struct {
	Source      string    `json:"source"`
	FairValue   float64   `json:"fair_value"`
	Methodology string    `json:"methodology"`
	Confidence  string    `json:"confidence"`
	Date        time.Time `json:"date"`
}

// Aggregated combines all estimates for one symbol.
type Aggregated struct {
	Symbol       string     `json:"symbol"`
	CurrentPrice float64    `json:"current_price"`
	Estimates    []Estimate `json:"estimates"`
}

// AverageFairValue is the plain mean across sources, nil without any.
func (a *Aggregated) AverageFairValue() *float64 {
	if len(a.Estimates) == 0 {
		return nil
	}
	var sum float64
	for _, e := range a.Estimates {
		sum += e.FairValue
	}
	avg := sum / float64(len(a.Estimates))
	return &avg
}

// MarginOfSafety is (fair value - price) / fair value. Positive means
// undervalued.
func (a *Aggregated) MarginOfSafety() *float64 {
	avg := a.AverageFairValue()
	if avg == nil || *avg == 0 {
		return nil
	}
	mos := (*avg - a.CurrentPrice) / *avg
	return &mos
}

// UpsidePotential is (fair value - price) / price.
func (a *Aggregated) UpsidePotential() *float64 {
	avg := a.AverageFairValue()
	if avg == nil || a.CurrentPrice == 0 {
		return nil
	}
	upside := (*avg - a.CurrentPrice) / a.CurrentPrice
	return &upside
}

// TargetSource supplies an external analyst consensus price target.
type TargetSource interface {
	PriceTarget(ctx context.Context, symbol string) (float64, error)
}

// Aggregator collects estimates per symbol. The external target source is
// optional.
type Aggregator struct {
	provider fundamentals.Provider
	targets  TargetSource
	log      zerolog.Logger
}

func NewAggregator(provider fundamentals.Provider, targets TargetSource, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		provider: provider,
		targets:  targets,
		log:      log.With().Str("component", "valuation").Logger(),
	}
}

// Valuation aggregates all available estimates for a symbol.
func (g *Aggregator) Valuation(ctx context.Context, symbol string) (*Aggregated, error) {
	rec, err := g.provider.Lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return g.ValuationFromRecord(ctx, rec), nil
}

// ValuationFromRecord builds the aggregate from an already-fetched record,
// avoiding a second provider round trip during a screening run.
func (g *Aggregator) ValuationFromRecord(ctx context.Context, rec *fundamentals.Record) *Aggregated {
	now := time.Now()
	agg := &Aggregated{Symbol: rec.Symbol, CurrentPrice: rec.Price}

	if rec.TargetMeanPrice != nil && *rec.TargetMeanPrice > 0 {
		agg.Estimates = append(agg.Estimates, Estimate{
			Source:      "Analyst Target",
			FairValue:   *rec.TargetMeanPrice,
			Methodology: "Analyst price targets",
			Confidence:  "medium",
			Date:        now,
		})
	}

	if g.targets != nil {
		if target, err := g.targets.PriceTarget(ctx, rec.Symbol); err != nil {
			g.log.Debug().Err(err).Str("symbol", rec.Symbol).Msg("External price target unavailable")
		} else if target > 0 {
			agg.Estimates = append(agg.Estimates, Estimate{
				Source:      "Analyst Consensus",
				FairValue:   target,
				Methodology: "Analyst price targets",
				Confidence:  "medium",
				Date:        now,
			})
		}
	}

	if est := PEMultipleValue(rec, now); est != nil {
		agg.Estimates = append(agg.Estimates, *est)
	}
	if est := GrahamNumber(rec, now); est != nil {
		agg.Estimates = append(agg.Estimates, *est)
	}

	if avg := agg.AverageFairValue(); avg != nil {
		mos := 0.0
		if m := agg.MarginOfSafety(); m != nil {
			mos = *m
		}
		g.log.Debug().
			Str("symbol", rec.Symbol).
			Float64("price", rec.Price).
			Float64("avg_fair_value", *avg).
			Float64("margin_of_safety", mos).
			Int("sources", len(agg.Estimates)).
			Msg("Valuation aggregated")
	}

	return agg
}

// ScreenUndervalued keeps the symbols whose margin of safety meets the
// minimum, sorted by widest margin first.
func (g *Aggregator) ScreenUndervalued(ctx context.Context, symbols []string, minMargin float64) []Aggregated {
	var undervalued []Aggregated
	for _, symbol := range symbols {
		agg, err := g.Valuation(ctx, symbol)
		if err != nil {
			g.log.Warn().Err(err).Str("symbol", symbol).Msg("Valuation failed, skipping")
			continue
		}
		if mos := agg.MarginOfSafety(); mos != nil && *mos >= minMargin {
			undervalued = append(undervalued, *agg)
		}
	}

	sort.Slice(undervalued, func(i, j int) bool {
		return *undervalued[i].MarginOfSafety() > *undervalued[j].MarginOfSafety()
	})
	return undervalued
}

// PEMultipleValue estimates fair value as EPS times a conservative market
// multiple. Nil when earnings are missing or negative.
func PEMultipleValue(rec *fundamentals.Record, now time.Time) *Estimate {
	if rec.EPS == nil || *rec.EPS <= 0 {
		return nil
	}
	return &Estimate{
		Source:      "P/E Multiple",
		FairValue:   *rec.EPS * fairPE,
		Methodology: "EPS x fair P/E of 15",
		Confidence:  "low",
		Date:        now,
	}
}

// GrahamNumber computes Graham's ceiling price sqrt(22.5 x EPS x book
// value per share). Nil when either input is missing or non-positive.
func GrahamNumber(rec *fundamentals.Record, now time.Time) *Estimate {
	if rec.EPS == nil || *rec.EPS <= 0 || rec.BookValue == nil || *rec.BookValue <= 0 {
		return nil
	}
	return &Estimate{
		Source:      "Graham Number",
		FairValue:   math.Sqrt(grahamFactor * *rec.EPS * *rec.BookValue),
		Methodology: "sqrt(22.5 x EPS x book value)",
		Confidence:  "medium",
		Date:        now,
	}
}
