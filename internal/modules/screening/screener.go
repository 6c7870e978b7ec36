package screening

import (
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/steward-labs/steward/internal/domain"
	"github.com/steward-labs/steward/internal/modules/fundamentals"
)

// Industries that are investment vehicles rather than operating businesses.
var industryBlacklist = []string{
	"closed-end fund",
	"asset management",
	"shell companies",
	"exchange traded fund",
}

// ScreenedStock is a candidate that passed the hard filters, with its
// computed quality score. Immutable once created.
type ScreenedStock struct {
	fundamentals.Record

	QualityScore    float64   `json:"quality_score"`
	ScoreConfidence float64   `json:"score_confidence"`
	ScreenedAt      time.Time `json:"screened_at"`
}

// EffectiveScore discounts the quality score by data confidence. The screen
// ranks equal raw scores by it, so thin-data candidates fall below
// well-covered ones.
func (s *ScreenedStock) EffectiveScore() float64 {
	return s.QualityScore * s.ScoreConfidence
}

// Summary reports what the screen did with its input. Every drop is counted
// so a shrinking candidate set is visible, not silent.
type Summary struct {
	Processed     int `json:"processed"`
	Filtered      int `json:"filtered"`
	Scored        int `json:"scored"`
	LowConfidence int `json:"low_confidence"`
	Kept          int `json:"kept"`
}

// lowConfidenceThreshold flags candidates scored on less than half their
// rule weight.
const lowConfidenceThreshold = 0.5

// Screener applies hard filters and quality scoring to fundamentals records.
type Screener struct {
	criteria *Criteria
	log      zerolog.Logger
}

// NewScreener creates a screener. Criteria must already be validated.
func NewScreener(criteria *Criteria, log zerolog.Logger) *Screener {
	return &Screener{
		criteria: criteria,
		log:      log.With().Str("component", "screener").Logger(),
	}
}

// Screen filters and scores the records, returning the top candidates sorted
// by quality score descending. Ties break by effective score, then by symbol,
// so a rerun over the same data produces the same order.
func (s *Screener) Screen(records []fundamentals.Record) ([]ScreenedStock, Summary) {
	summary := Summary{Processed: len(records)}
	now := time.Now()

	candidates := make([]ScreenedStock, 0, len(records))
	for i := range records {
		rec := &records[i]
		if reason := s.hardFilterReason(rec); reason != "" {
			summary.Filtered++
			s.log.Debug().Str("symbol", rec.Symbol).Str("reason", reason).Msg("Candidate dropped by hard filter")
			continue
		}

		score, confidence := ScoreStock(rec, s.criteria)
		if confidence < lowConfidenceThreshold {
			summary.LowConfidence++
		}
		candidates = append(candidates, ScreenedStock{
			Record:          *rec,
			QualityScore:    score,
			ScoreConfidence: confidence,
			ScreenedAt:      now,
		})
	}
	summary.Scored = len(candidates)

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].QualityScore != candidates[j].QualityScore {
			return candidates[i].QualityScore > candidates[j].QualityScore
		}
		if ei, ej := candidates[i].EffectiveScore(), candidates[j].EffectiveScore(); ei != ej {
			return ei > ej
		}
		return candidates[i].Symbol < candidates[j].Symbol
	})

	if len(candidates) > s.criteria.TopN {
		candidates = candidates[:s.criteria.TopN]
	}
	summary.Kept = len(candidates)

	s.log.Info().
		Int("processed", summary.Processed).
		Int("filtered", summary.Filtered).
		Int("low_confidence", summary.LowConfidence).
		Int("kept", summary.Kept).
		Msg("Screening completed")

	return candidates, summary
}

// hardFilterReason returns why a record fails the hard filters, or "" if it
// passes. One failed filter excludes regardless of other strengths.
func (s *Screener) hardFilterReason(rec *fundamentals.Record) string {
	if rec.QuoteType != "" && rec.QuoteType != domain.QuoteTypeEquity {
		return "not an equity"
	}
	industry := strings.ToLower(rec.Industry)
	for _, term := range industryBlacklist {
		if strings.Contains(industry, term) {
			return "blacklisted industry"
		}
	}
	if rec.MarketCap < s.criteria.MinMarketCap || rec.MarketCap > s.criteria.MaxMarketCap {
		return "market cap out of bounds"
	}
	if rec.Price < s.criteria.MinPrice {
		return "price below minimum"
	}
	if rec.PERatio != nil && *rec.PERatio <= 0 {
		return "non-positive P/E"
	}
	return ""
}
