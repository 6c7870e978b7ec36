package regime

import (
	"fmt"
	"math"
	"time"
)

// Regime is the market condition bucket driving deployment posture.
type Regime string

const (
	Euphoria   Regime = "euphoria"
	Overvalued Regime = "overvalued"
	FairValue  Regime = "fair_value"
	Correction Regime = "correction"
	Crisis     Regime = "crisis"
)

// Confidence reflects how strongly the signals agree.
type Confidence string

const (
	ConfidenceHigh     Confidence = "high"
	ConfidenceModerate Confidence = "moderate"
	ConfidenceLow      Confidence = "low"
)

// Temperature is the coarse legacy view of a regime kept for older
// consumers of the API.
type Temperature string

const (
	TemperatureHot     Temperature = "HOT"
	TemperatureWarm    Temperature = "WARM"
	TemperatureCool    Temperature = "COOL"
	TemperatureCold    Temperature = "COLD"
	TemperatureUnknown Temperature = "UNKNOWN"
)

// Classification thresholds. P/E bands track long-run S&P 500 averages,
// VIX bands the usual fear gauges.
const (
	peEuphoria   = 30.0
	peOvervalued = 23.0
	peFairLow    = 15.0

	vixExtremeFear = 40.0
	vixFear        = 30.0
	vixComplacency = 12.0

	drawdownCorrection = -0.10
	drawdownCrisis     = -0.20

	ma200Euphoria   = 0.15
	ma200Correction = -0.05
)

// Signals are the aggregate market inputs to classification. Any signal may
// be absent; an absent signal simply does not vote.
type Signals struct {
	MarketPE        *float64 `json:"market_pe,omitempty"`
	VolatilityIndex *float64 `json:"volatility_index,omitempty"`
	Drawdown        *float64 `json:"drawdown_from_peak,omitempty"`
	MA200Distance   *float64 `json:"distance_from_200ma,omitempty"`
}

// Classification is the full regime read for one run.
type Classification struct {
	Regime         Regime      `json:"regime"`
	Confidence     Confidence  `json:"confidence"`
	Interpretation string      `json:"interpretation"`
	Guidance       string      `json:"deployment_guidance"`
	Temperature    Temperature `json:"temperature"`
	Signals        Signals     `json:"signals"`
	Notes          []string    `json:"notes"`
	CheckedAt      time.Time   `json:"checked_at"`
}

// Classify maps aggregate market signals to a regime. Each available signal
// votes for a regime; the majority wins. Confidence is high when at least
// three quarters of the votes agree, moderate at half, low otherwise. A vote
// tie resolves toward the regime closest to fair value.
//
// Pure and stateless: the result depends only on the signals passed in.
func Classify(signals Signals) Classification {
	var votes []Regime
	var notes []string

	if pe := signals.MarketPE; pe != nil {
		switch {
		case *pe >= peEuphoria:
			votes = append(votes, Euphoria)
			notes = append(notes, fmt.Sprintf("Market P/E %.1f is in euphoria territory (>%.0f)", *pe, peEuphoria))
		case *pe >= peOvervalued:
			votes = append(votes, Overvalued)
			notes = append(notes, fmt.Sprintf("Market P/E %.1f is above historical average", *pe))
		case *pe >= peFairLow:
			votes = append(votes, FairValue)
			notes = append(notes, fmt.Sprintf("Market P/E %.1f is in fair value range", *pe))
		default:
			votes = append(votes, Correction)
			notes = append(notes, fmt.Sprintf("Market P/E %.1f is below historical average, cheap", *pe))
		}
	}

	if vix := signals.VolatilityIndex; vix != nil {
		switch {
		case *vix >= vixExtremeFear:
			votes = append(votes, Crisis)
			notes = append(notes, fmt.Sprintf("VIX at %.1f, extreme fear", *vix))
		case *vix >= vixFear:
			votes = append(votes, Correction)
			notes = append(notes, fmt.Sprintf("VIX at %.1f, elevated fear", *vix))
		case *vix <= vixComplacency:
			votes = append(votes, Euphoria)
			notes = append(notes, fmt.Sprintf("VIX at %.1f, low volatility and possible complacency", *vix))
		default:
			votes = append(votes, FairValue)
			notes = append(notes, fmt.Sprintf("VIX at %.1f, normal range", *vix))
		}
	}

	if dd := signals.Drawdown; dd != nil {
		switch {
		case *dd <= drawdownCrisis:
			votes = append(votes, Crisis)
			notes = append(notes, fmt.Sprintf("Index drawdown %.1f%% from peak, bear market territory", *dd*100))
		case *dd <= drawdownCorrection:
			votes = append(votes, Correction)
			notes = append(notes, fmt.Sprintf("Index drawdown %.1f%% from peak, correction", *dd*100))
		case *dd >= 0:
			votes = append(votes, Overvalued)
			notes = append(notes, fmt.Sprintf("Index near 52-week high (%+.1f%%)", *dd*100))
		}
	}

	if dist := signals.MA200Distance; dist != nil {
		switch {
		case *dist >= ma200Euphoria:
			votes = append(votes, Euphoria)
			notes = append(notes, fmt.Sprintf("Index is %+.1f%% above its 200-day average, extended", *dist*100))
		case *dist <= ma200Correction:
			votes = append(votes, Correction)
			notes = append(notes, fmt.Sprintf("Index is %+.1f%% below its 200-day average, weakness", *dist*100))
		default:
			votes = append(votes, FairValue)
		}
	}

	regime, confidence := tally(votes)
	info := regimeInfo[regime]

	return Classification{
		Regime:         regime,
		Confidence:     confidence,
		Interpretation: info.interpretation,
		Guidance:       info.guidance,
		Temperature:    regime.LegacyTemperature(),
		Signals:        signals,
		Notes:          notes,
		CheckedAt:      time.Now(),
	}
}

// tally picks the majority regime. Ties resolve to the candidate nearest
// fair value, so conflicting signals produce a conservative read instead of
// an extreme one.
func tally(votes []Regime) (Regime, Confidence) {
	if len(votes) == 0 {
		return FairValue, ConfidenceLow
	}

	counts := make(map[Regime]int)
	for _, v := range votes {
		counts[v]++
	}

	winner := FairValue
	best := 0
	for _, candidate := range []Regime{FairValue, Overvalued, Correction, Euphoria, Crisis} {
		n := counts[candidate]
		if n > best || (n == best && n > 0 && distanceFromFair(candidate) < distanceFromFair(winner)) {
			winner = candidate
			best = n
		}
	}

	total := float64(len(votes))
	switch {
	case float64(best) >= total*0.75:
		return winner, ConfidenceHigh
	case float64(best) >= total*0.5:
		return winner, ConfidenceModerate
	default:
		return winner, ConfidenceLow
	}
}

func distanceFromFair(r Regime) float64 {
	positions := map[Regime]float64{
		Euphoria:   2,
		Overvalued: 1,
		FairValue:  0,
		Correction: -1,
		Crisis:     -2,
	}
	return math.Abs(positions[r])
}

// LegacyTemperature maps a regime to the coarse temperature scale.
func (r Regime) LegacyTemperature() Temperature {
	switch r {
	case Euphoria:
		return TemperatureHot
	case Overvalued:
		return TemperatureWarm
	case FairValue, Correction:
		return TemperatureCool
	case Crisis:
		return TemperatureCold
	}
	return TemperatureUnknown
}

var regimeInfo = map[Regime]struct {
	interpretation string
	guidance       string
}{
	Euphoria: {
		interpretation: "Market in euphoria territory. Extreme valuations and complacency signals.",
		guidance:       "Patience. Quality watchlist building phase only. No new deployments.",
	},
	Overvalued: {
		interpretation: "Market above historical averages but not extreme.",
		guidance:       "Selective deployment on Tier 1 picks only. Demand higher margin of safety.",
	},
	FairValue: {
		interpretation: "Market near fair value. Normal conditions.",
		guidance:       "Deploy on Tier 1 picks with standard margin of safety.",
	},
	Correction: {
		interpretation: "Market correction underway. Opportunities developing.",
		guidance:       "Opportunity developing. Cross-reference Tier 2 watchlist for new Tier 1 entries.",
	},
	Crisis: {
		interpretation: "Significant market decline. Fear elevated. Historical buying opportunity.",
		guidance:       "Deployment window open. Prioritize highest conviction Tier 1 picks with staged entry.",
	},
}
