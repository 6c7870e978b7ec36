package tiering

import (
	"fmt"

	"github.com/steward-labs/steward/internal/domain"
)

// Diff compares two consecutive snapshots and returns the watchlist
// changes. An excluded (tier 0) assignment counts as absent on both sides:
// entering tier 0 reads as a removal, and a tier 0 entry never reads as
// new. A nil previous snapshot makes every current entry NEW.
//
// Pure function over the two snapshots; neither is mutated. Events follow
// the current snapshot's order, with removals appended in the previous
// snapshot's order.
func Diff(previous, current *Snapshot) []MovementEvent {
	var events []MovementEvent

	for i := range current.Assignments {
		cur := &current.Assignments[i]
		if cur.Tier == domain.TierExcluded {
			continue
		}

		prev, existed := previous.Lookup(cur.Symbol)
		if existed && prev.Tier == domain.TierExcluded {
			existed = false
		}

		if !existed {
			tier := cur.Tier
			events = append(events, MovementEvent{
				Symbol:      cur.Symbol,
				Type:        MovementNew,
				Detail:      fmt.Sprintf("New Tier %d entry", cur.Tier),
				CurrentTier: &tier,
			})
			continue
		}

		if cur.Tier < prev.Tier {
			prevTier, curTier := prev.Tier, cur.Tier
			events = append(events, MovementEvent{
				Symbol:       cur.Symbol,
				Type:         MovementTierUp,
				Detail:       fmt.Sprintf("Upgraded Tier %d -> Tier %d", prev.Tier, cur.Tier),
				PreviousTier: &prevTier,
				CurrentTier:  &curTier,
			})
		} else if cur.Tier > prev.Tier {
			prevTier, curTier := prev.Tier, cur.Tier
			events = append(events, MovementEvent{
				Symbol:       cur.Symbol,
				Type:         MovementTierDown,
				Detail:       fmt.Sprintf("Downgraded Tier %d -> Tier %d", prev.Tier, cur.Tier),
				PreviousTier: &prevTier,
				CurrentTier:  &curTier,
			})
		}

		if cur.Approaching && !prev.Approaching {
			tier := cur.Tier
			detail := "Approaching target entry price"
			if cur.PriceGapPct != nil {
				detail = fmt.Sprintf("Approaching target entry (%+.0f%% from target)", *cur.PriceGapPct*100)
			}
			events = append(events, MovementEvent{
				Symbol:      cur.Symbol,
				Type:        MovementApproaching,
				Detail:      detail,
				CurrentTier: &tier,
			})
		}
	}

	if previous == nil {
		return events
	}

	for i := range previous.Assignments {
		prev := &previous.Assignments[i]
		if prev.Tier == domain.TierExcluded {
			continue
		}
		cur, exists := current.Lookup(prev.Symbol)
		if exists && cur.Tier != domain.TierExcluded {
			continue
		}
		tier := prev.Tier
		events = append(events, MovementEvent{
			Symbol:       prev.Symbol,
			Type:         MovementRemoved,
			Detail:       fmt.Sprintf("Removed (was Tier %d)", prev.Tier),
			PreviousTier: &tier,
		})
	}

	return events
}
