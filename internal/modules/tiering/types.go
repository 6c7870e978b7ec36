package tiering

import (
	"fmt"
	"time"

	"github.com/steward-labs/steward/internal/domain"
)

// Tranche is one slice of a staged entry plan.
type Tranche struct {
	Number     int     `json:"tranche"`
	Price      float64 `json:"price"`
	Allocation float64 `json:"allocation"`
	Label      string  `json:"label"`
}

// TierAssignment is the engine's verdict for one stock in one run. Built
// fresh every run and never mutated, so movement diffing stays correct.
type TierAssignment struct {
	Symbol           string              `json:"symbol"`
	Tier             domain.Tier         `json:"tier"`
	Quality          domain.QualityLevel `json:"quality_level"`
	Reason           string              `json:"tier_reason"`
	TargetEntryPrice *float64            `json:"target_entry_price,omitempty"`
	CurrentPrice     *float64            `json:"current_price,omitempty"`
	PriceGapPct      *float64            `json:"price_gap_pct,omitempty"`
	Approaching      bool                `json:"approaching_target"`
	StagedEntry      []Tranche           `json:"staged_entry,omitempty"`
}

// Snapshot is the complete watchlist from one run. Two consecutive
// snapshots are the sole input to movement diffing.
type Snapshot struct {
	ID          string           `json:"id"`
	TakenAt     time.Time        `json:"taken_at"`
	Assignments []TierAssignment `json:"assignments"`
}

// Lookup returns the assignment for a symbol, if present.
func (s *Snapshot) Lookup(symbol string) (*TierAssignment, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Assignments {
		if s.Assignments[i].Symbol == symbol {
			return &s.Assignments[i], true
		}
	}
	return nil, false
}

// MovementType classifies a watchlist change between two runs.
type MovementType string

const (
	MovementNew         MovementType = "new"
	MovementRemoved     MovementType = "removed"
	MovementTierUp      MovementType = "tier_up"
	MovementTierDown    MovementType = "tier_down"
	MovementApproaching MovementType = "approaching"
)

// MovementEvent is one watchlist change between consecutive snapshots.
type MovementEvent struct {
	Symbol       string       `json:"symbol"`
	Type         MovementType `json:"change_type"`
	Detail       string       `json:"detail"`
	PreviousTier *domain.Tier `json:"previous_tier,omitempty"`
	CurrentTier  *domain.Tier `json:"current_tier,omitempty"`
}

// InconsistentInputError reports that a single symbol could not be tiered
// because a required input was missing. Callers collect these instead of
// aborting the batch.
type InconsistentInputError struct {
	Symbol  string
	Missing string
}

func (e *InconsistentInputError) Error() string {
	return fmt.Sprintf("cannot assign tier for %s: missing %s", e.Symbol, e.Missing)
}
