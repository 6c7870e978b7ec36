package screening

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/steward-labs/steward/internal/modules/fundamentals"
)

// ErrInvalidCriteria marks configuration problems that must abort a run
// before any symbol is processed.
var ErrInvalidCriteria = errors.New("invalid screening criteria")

// ScoringRule scores one metric against an ideal value. Min marks the zero
// point for higher-is-better metrics, Max for lower-is-better ones. A rule
// may carry both for banded metrics like current ratio.
type ScoringRule struct {
	Ideal  float64  `yaml:"ideal" json:"ideal"`
	Weight float64  `yaml:"weight" json:"weight"`
	Min    *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max    *float64 `yaml:"max,omitempty" json:"max,omitempty"`
}

// Criteria holds the hard filters and scoring rules for a screening run.
// Loaded once at startup and read-only afterwards.
type Criteria struct {
	MinMarketCap    float64                           `yaml:"min_market_cap" json:"min_market_cap"`
	MaxMarketCap    float64                           `yaml:"max_market_cap" json:"max_market_cap"`
	MinPrice        float64                           `yaml:"min_price" json:"min_price"`
	TopN            int                               `yaml:"top_n" json:"top_n"`
	Scoring         map[string]ScoringRule            `yaml:"scoring" json:"scoring"`
	SectorOverrides map[string]map[string]ScoringRule `yaml:"sector_overrides" json:"sector_overrides"`
}

type criteriaFile struct {
	Screening Criteria `yaml:"screening"`
}

// DefaultCriteria returns the built-in hard filters with no scoring rules.
func DefaultCriteria() *Criteria {
	return &Criteria{
		MinMarketCap: 300_000_000,
		MaxMarketCap: 500_000_000_000,
		MinPrice:     5.0,
		TopN:         100,
	}
}

// LoadCriteria reads criteria from a YAML file and validates them.
// Configuration errors are fatal here rather than surfacing later as
// silently wrong scores.
func LoadCriteria(path string) (*Criteria, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read criteria file %s: %w", path, err)
	}

	var file criteriaFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse criteria file %s: %w", path, err)
	}

	c := file.Screening
	defaults := DefaultCriteria()
	if c.MinMarketCap == 0 {
		c.MinMarketCap = defaults.MinMarketCap
	}
	if c.MaxMarketCap == 0 {
		c.MaxMarketCap = defaults.MaxMarketCap
	}
	if c.MinPrice == 0 {
		c.MinPrice = defaults.MinPrice
	}
	if c.TopN == 0 {
		c.TopN = defaults.TopN
	}

	// An omitted weight means 1.0, not a dead rule.
	for name, rule := range c.Scoring {
		if rule.Weight == 0 {
			rule.Weight = 1.0
			c.Scoring[name] = rule
		}
	}
	for sector, rules := range c.SectorOverrides {
		for name, rule := range rules {
			if rule.Weight == 0 {
				rule.Weight = 1.0
				c.SectorOverrides[sector][name] = rule
			}
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks rule coherence. Every scored metric must exist in the
// fundamentals record, weights must be positive, and bounds must sit on the
// correct side of the ideal.
func (c *Criteria) Validate() error {
	if c.MinMarketCap < 0 || c.MaxMarketCap <= c.MinMarketCap {
		return fmt.Errorf("%w: market cap bounds %.0f..%.0f", ErrInvalidCriteria, c.MinMarketCap, c.MaxMarketCap)
	}
	if c.MinPrice < 0 {
		return fmt.Errorf("%w: negative min price %.2f", ErrInvalidCriteria, c.MinPrice)
	}
	if c.TopN < 1 {
		return fmt.Errorf("%w: top_n must be at least 1, got %d", ErrInvalidCriteria, c.TopN)
	}

	known := make(map[string]bool, len(fundamentals.MetricNames()))
	for _, name := range fundamentals.MetricNames() {
		known[name] = true
	}

	if err := validateRules(c.Scoring, known, ""); err != nil {
		return err
	}
	for sector, rules := range c.SectorOverrides {
		if err := validateRules(rules, known, sector); err != nil {
			return err
		}
	}
	return nil
}

func validateRules(rules map[string]ScoringRule, known map[string]bool, sector string) error {
	where := "scoring"
	if sector != "" {
		where = fmt.Sprintf("sector override %q", sector)
	}
	for name, rule := range rules {
		if !known[name] {
			return fmt.Errorf("%w: %s references unknown metric %q", ErrInvalidCriteria, where, name)
		}
		if rule.Weight <= 0 {
			return fmt.Errorf("%w: %s metric %q has non-positive weight %.2f", ErrInvalidCriteria, where, name, rule.Weight)
		}
		if rule.Min != nil && *rule.Min > rule.Ideal {
			return fmt.Errorf("%w: %s metric %q has min %.4f above ideal %.4f", ErrInvalidCriteria, where, name, *rule.Min, rule.Ideal)
		}
		if rule.Max != nil && *rule.Max < rule.Ideal {
			return fmt.Errorf("%w: %s metric %q has max %.4f below ideal %.4f", ErrInvalidCriteria, where, name, *rule.Max, rule.Ideal)
		}
		if rule.Min == nil && rule.Max == nil {
			return fmt.Errorf("%w: %s metric %q needs a min or max bound", ErrInvalidCriteria, where, name)
		}
	}
	return nil
}

// EffectiveRules resolves the rule set for a sector: base rules with any
// override replacing the base rule per metric. Replace, never merge, so an
// override fully owns the metrics it names.
func (c *Criteria) EffectiveRules(sector string) map[string]ScoringRule {
	overrides, ok := c.SectorOverrides[sector]
	if !ok || len(overrides) == 0 {
		return c.Scoring
	}
	effective := make(map[string]ScoringRule, len(c.Scoring)+len(overrides))
	for name, rule := range c.Scoring {
		effective[name] = rule
	}
	for name, rule := range overrides {
		effective[name] = rule
	}
	return effective
}
