package tiering

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/steward-labs/steward/internal/domain"
)

// Config holds the tiering thresholds.
type Config struct {
	// MinMarginOfSafety discounts fair value to a target entry price when
	// the qualitative verdict did not name one.
	MinMarginOfSafety float64
	// ProximityAlertPct flags a Tier 2 stock whose price is within this
	// fraction above its target.
	ProximityAlertPct float64
	TrancheCount      int
	TrancheStepPct    float64
}

// Input is everything the engine needs to tier one stock.
type Input struct {
	Symbol           string
	Moat             domain.MoatRating
	Conviction       domain.ConvictionLevel
	TargetEntryPrice *float64
	CurrentPrice     *float64
	// FairValue backs the target entry price when the verdict has none.
	FairValue *float64
	// ThesisBroken excludes the stock outright, regardless of quality.
	ThesisBroken bool
}

// Engine assigns watchlist tiers from quality and valuation.
type Engine struct {
	cfg Config
	log zerolog.Logger
}

func NewEngine(cfg Config, log zerolog.Logger) *Engine {
	return &Engine{
		cfg: cfg,
		log: log.With().Str("component", "tier_engine").Logger(),
	}
}

// Assign tiers a single stock.
//
// A flagged thesis-breaking event excludes the stock before anything else.
//
// Quality gate: a wide or narrow moat with at least medium conviction is
// high quality; no moat with low conviction is low quality; everything in
// between is moderate. Low quality is excluded, moderate is Tier 3, and
// high quality splits into Tier 1 or 2 on price versus target.
func (e *Engine) Assign(in Input) (*TierAssignment, error) {
	if in.Moat == "" || in.Conviction == "" {
		return nil, &InconsistentInputError{Symbol: in.Symbol, Missing: "qualitative verdict"}
	}

	if in.ThesisBroken {
		return &TierAssignment{
			Symbol:  in.Symbol,
			Tier:    domain.TierExcluded,
			Quality: domain.QualityLow,
			Reason:  "Thesis broken, excluded pending re-analysis",
		}, nil
	}

	quality := qualityLevel(in.Moat, in.Conviction)

	if quality == domain.QualityLow {
		return &TierAssignment{
			Symbol:  in.Symbol,
			Tier:    domain.TierExcluded,
			Quality: quality,
			Reason:  "Low quality: weak moat and low conviction",
		}, nil
	}

	if quality == domain.QualityModerate {
		return &TierAssignment{
			Symbol:           in.Symbol,
			Tier:             domain.TierMonitor,
			Quality:          quality,
			Reason:           fmt.Sprintf("Moderate quality: %s moat, %s conviction", in.Moat, in.Conviction),
			TargetEntryPrice: in.TargetEntryPrice,
			CurrentPrice:     in.CurrentPrice,
		}, nil
	}

	target := in.TargetEntryPrice
	if target == nil && in.FairValue != nil && *in.FairValue > 0 {
		t := *in.FairValue * (1 - e.cfg.MinMarginOfSafety)
		target = &t
	}

	if target == nil || *target <= 0 || in.CurrentPrice == nil {
		return &TierAssignment{
			Symbol:           in.Symbol,
			Tier:             domain.TierWatch,
			Quality:          quality,
			Reason:           "High quality, price target unavailable",
			TargetEntryPrice: target,
			CurrentPrice:     in.CurrentPrice,
		}, nil
	}

	current := *in.CurrentPrice
	gap := (current - *target) / *target

	if current <= *target {
		return &TierAssignment{
			Symbol:           in.Symbol,
			Tier:             domain.TierBuyZone,
			Quality:          quality,
			Reason:           fmt.Sprintf("High quality at/below target entry ($%.0f <= $%.0f)", current, *target),
			TargetEntryPrice: target,
			CurrentPrice:     in.CurrentPrice,
			PriceGapPct:      &gap,
			StagedEntry:      e.StagedEntry(*target),
		}, nil
	}

	return &TierAssignment{
		Symbol:           in.Symbol,
		Tier:             domain.TierWatch,
		Quality:          quality,
		Reason:           fmt.Sprintf("High quality but %+.0f%% above target $%.0f", gap*100, *target),
		TargetEntryPrice: target,
		CurrentPrice:     in.CurrentPrice,
		PriceGapPct:      &gap,
		Approaching:      gap > 0 && gap <= e.cfg.ProximityAlertPct,
		StagedEntry:      e.StagedEntry(*target),
	}, nil
}

// AssignAll tiers a batch, isolating per-symbol failures. The returned
// assignments follow input order minus the failed symbols.
func (e *Engine) AssignAll(inputs []Input) ([]TierAssignment, []InconsistentInputError) {
	assignments := make([]TierAssignment, 0, len(inputs))
	var failures []InconsistentInputError

	for _, in := range inputs {
		assignment, err := e.Assign(in)
		if err != nil {
			var inconsistent *InconsistentInputError
			if errors.As(err, &inconsistent) {
				failures = append(failures, *inconsistent)
				e.log.Warn().Str("symbol", in.Symbol).Str("missing", inconsistent.Missing).Msg("Skipping tier assignment")
				continue
			}
			failures = append(failures, InconsistentInputError{Symbol: in.Symbol, Missing: err.Error()})
			continue
		}
		assignments = append(assignments, *assignment)
	}

	e.log.Info().Int("assigned", len(assignments)).Int("failed", len(failures)).Msg("Tier assignment completed")
	return assignments, failures
}

// StagedEntry builds the descending tranche ladder below a target entry
// price. Each tranche takes an equal fraction of the position and each
// price steps down linearly from the target.
func (e *Engine) StagedEntry(target float64) []Tranche {
	count := e.cfg.TrancheCount
	if count < 1 {
		count = 1
	}
	allocation := 1.0 / float64(count)

	tranches := make([]Tranche, 0, count)
	for i := 0; i < count; i++ {
		price := math.Round(target*(1-e.cfg.TrancheStepPct*float64(i))*100) / 100
		tranches = append(tranches, Tranche{
			Number:     i + 1,
			Price:      price,
			Allocation: allocation,
			Label:      fmt.Sprintf("%d/%d at $%.0f", i+1, count, price),
		})
	}
	return tranches
}

func qualityLevel(moat domain.MoatRating, conviction domain.ConvictionLevel) domain.QualityLevel {
	hasMoat := moat == domain.MoatWide || moat == domain.MoatNarrow
	convinced := conviction == domain.ConvictionHigh || conviction == domain.ConvictionMedium

	switch {
	case hasMoat && convinced:
		return domain.QualityHigh
	case moat == domain.MoatNone && conviction == domain.ConvictionLow:
		return domain.QualityLow
	default:
		return domain.QualityModerate
	}
}

// Proximity returns the configured approaching-target window as a fraction.
func (e *Engine) Proximity() float64 {
	return e.cfg.ProximityAlertPct
}
