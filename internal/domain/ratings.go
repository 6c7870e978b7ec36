// Package domain provides core domain models and types.
package domain

import "fmt"

// MoatRating classifies the durability of a company's competitive advantage
type MoatRating string

const (
	// MoatWide - strong, durable competitive advantage
	MoatWide MoatRating = "WIDE"
	// MoatNarrow - some advantage, but less durable
	MoatNarrow MoatRating = "NARROW"
	// MoatNone - no meaningful competitive advantage
	MoatNone MoatRating = "NONE"
)

// ManagementRating classifies management quality
type ManagementRating string

const (
	// ManagementExcellent - aligned, competent, honest
	ManagementExcellent ManagementRating = "EXCELLENT"
	// ManagementAdequate - acceptable
	ManagementAdequate ManagementRating = "ADEQUATE"
	// ManagementPoor - red flags present
	ManagementPoor ManagementRating = "POOR"
)

// ConvictionLevel expresses how strongly the qualitative assessment backs a thesis
type ConvictionLevel string

const (
	ConvictionHigh   ConvictionLevel = "HIGH"
	ConvictionMedium ConvictionLevel = "MEDIUM"
	ConvictionLow    ConvictionLevel = "LOW"
)

// ParseConvictionLevel converts a string into a ConvictionLevel
func ParseConvictionLevel(s string) (ConvictionLevel, error) {
	switch ConvictionLevel(s) {
	case ConvictionHigh, ConvictionMedium, ConvictionLow:
		return ConvictionLevel(s), nil
	}
	return "", fmt.Errorf("unknown conviction level %q", s)
}

// QualityLevel is the combined moat+conviction quality bar used by tiering
type QualityLevel string

const (
	QualityHigh     QualityLevel = "high"
	QualityModerate QualityLevel = "moderate"
	QualityLow      QualityLevel = "low"
)

// Tier is the discrete action bucket for a watchlist entry.
// Tier 1 is best; numerically lower tiers rank higher.
type Tier int

const (
	// TierExcluded - failed the quality gate, skip
	TierExcluded Tier = 0
	// TierBuyZone - high quality at or below target entry price
	TierBuyZone Tier = 1
	// TierWatch - high quality, currently above target entry price
	TierWatch Tier = 2
	// TierMonitor - moderate quality, re-evaluate next cycle
	TierMonitor Tier = 3
)

// Valid reports whether t is one of the defined tiers
func (t Tier) Valid() bool {
	return t >= TierExcluded && t <= TierMonitor
}

// QuoteType distinguishes equities from funds and other listed products
type QuoteType string

const (
	QuoteTypeEquity QuoteType = "EQUITY"
	QuoteTypeETF    QuoteType = "ETF"
	QuoteTypeFund   QuoteType = "MUTUALFUND"
	QuoteTypeIndex  QuoteType = "INDEX"
)
