package screening

import (
	"github.com/steward-labs/steward/internal/modules/fundamentals"
)

// ScoreStock computes the quality score and data confidence for a single
// candidate against the effective rules for its sector.
//
// Each available metric contributes its sub-score times its weight. The
// score is normalized over the weight that actually had data, so missing
// metrics lower confidence instead of dragging the score toward zero.
func ScoreStock(rec *fundamentals.Record, criteria *Criteria) (score float64, confidence float64) {
	rules := criteria.EffectiveRules(rec.Sector)
	if len(rules) == 0 {
		return 0, 0
	}

	var weightedSum, scoredWeight, totalWeight float64
	for name, rule := range rules {
		totalWeight += rule.Weight

		value, ok := rec.Metric(name)
		if !ok {
			continue
		}
		weightedSum += metricScore(value, rule) * rule.Weight
		scoredWeight += rule.Weight
	}

	if scoredWeight == 0 || totalWeight == 0 {
		return 0, 0
	}
	return 100 * weightedSum / scoredWeight, scoredWeight / totalWeight
}

// metricScore maps a value to [0, 1]: 1.0 at or beyond the ideal in the
// favorable direction, 0.0 at or beyond the bound, linear in between.
// A rule whose bound equals its ideal degenerates into a step function.
func metricScore(value float64, rule ScoringRule) float64 {
	switch {
	case rule.Max != nil && rule.Min == nil:
		// Lower is better (P/E, debt, volatility of margins).
		if value <= rule.Ideal {
			return 1.0
		}
		if value >= *rule.Max {
			return 0.0
		}
		return 1.0 - (value-rule.Ideal)/(*rule.Max-rule.Ideal)

	case rule.Min != nil && rule.Max == nil:
		// Higher is better (ROE, growth, FCF yield).
		if value >= rule.Ideal {
			return 1.0
		}
		if value <= *rule.Min {
			return 0.0
		}
		return (value - *rule.Min) / (rule.Ideal - *rule.Min)

	case rule.Min != nil && rule.Max != nil:
		// Banded metric: full marks from ideal up to max, decaying past max.
		if value >= rule.Ideal {
			if value <= *rule.Max {
				return 1.0
			}
			return clamp01(1.0 - (value-*rule.Max)/(*rule.Max))
		}
		if value <= *rule.Min {
			return 0.0
		}
		return (value - *rule.Min) / (rule.Ideal - *rule.Min)
	}
	return 0.0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
