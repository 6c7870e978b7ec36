package screening

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/steward-labs/steward/internal/modules/fundamentals"
)

func TestMetricScore_LowerIsBetter(t *testing.T) {
	max := 35.0
	rule := ScoringRule{Ideal: 15, Max: &max, Weight: 1}

	assert.Equal(t, 1.0, metricScore(10, rule))
	assert.Equal(t, 1.0, metricScore(15, rule), "ideal boundary is inclusive")
	assert.InDelta(t, 0.5, metricScore(25, rule), 1e-9)
	assert.Equal(t, 0.0, metricScore(35, rule), "bound scores zero")
	assert.Equal(t, 0.0, metricScore(50, rule))
}

func TestMetricScore_HigherIsBetter(t *testing.T) {
	min := 0.05
	rule := ScoringRule{Ideal: 0.20, Min: &min, Weight: 1}

	assert.Equal(t, 1.0, metricScore(0.25, rule))
	assert.Equal(t, 1.0, metricScore(0.20, rule))
	assert.InDelta(t, 0.5, metricScore(0.125, rule), 1e-9)
	assert.Equal(t, 0.0, metricScore(0.05, rule))
	assert.Equal(t, 0.0, metricScore(0.01, rule))
}

func TestMetricScore_Banded(t *testing.T) {
	min := 1.0
	max := 3.0
	rule := ScoringRule{Ideal: 2.0, Min: &min, Max: &max, Weight: 1}

	assert.Equal(t, 1.0, metricScore(2.0, rule))
	assert.Equal(t, 1.0, metricScore(2.5, rule), "full marks up to the max")
	assert.InDelta(t, 0.5, metricScore(1.5, rule), 1e-9)
	assert.Equal(t, 0.0, metricScore(1.0, rule))
	assert.InDelta(t, 0.5, metricScore(4.5, rule), 1e-9, "decay past max")
	assert.Equal(t, 0.0, metricScore(6.0, rule))
}

func TestMetricScore_DegenerateStepFunction(t *testing.T) {
	bound := 0.15
	rule := ScoringRule{Ideal: 0.15, Min: &bound, Weight: 1}

	assert.Equal(t, 1.0, metricScore(0.15, rule))
	assert.Equal(t, 1.0, metricScore(0.20, rule))
	assert.Equal(t, 0.0, metricScore(0.14, rule))
}

func TestScoreStock_WorkedExample(t *testing.T) {
	min := 0.05
	criteria := DefaultCriteria()
	criteria.Scoring = map[string]ScoringRule{
		"roe": {Ideal: 0.20, Min: &min, Weight: 2.0},
	}

	a := &fundamentals.Record{Symbol: "A", ROE: fundamentals.F(0.20)}
	b := &fundamentals.Record{Symbol: "B", ROE: fundamentals.F(0.05)}
	c := &fundamentals.Record{Symbol: "C", ROE: fundamentals.F(0.125)}

	scoreA, confA := ScoreStock(a, criteria)
	scoreB, confB := ScoreStock(b, criteria)
	scoreC, confC := ScoreStock(c, criteria)

	assert.InDelta(t, 100.0, scoreA, 1e-9)
	assert.InDelta(t, 0.0, scoreB, 1e-9)
	assert.InDelta(t, 50.0, scoreC, 1e-9)
	assert.Equal(t, 1.0, confA)
	assert.Equal(t, 1.0, confB)
	assert.Equal(t, 1.0, confC)
}

func TestScoreStock_MissingMetricLowersConfidenceNotScore(t *testing.T) {
	minROE := 0.05
	maxPE := 35.0
	criteria := DefaultCriteria()
	criteria.Scoring = map[string]ScoringRule{
		"roe":      {Ideal: 0.20, Min: &minROE, Weight: 3.0},
		"pe_ratio": {Ideal: 15, Max: &maxPE, Weight: 1.0},
	}

	rec := &fundamentals.Record{Symbol: "THIN", ROE: fundamentals.F(0.20)}

	score, confidence := ScoreStock(rec, criteria)

	assert.InDelta(t, 100.0, score, 1e-9, "score normalizes over the weight that had data")
	assert.InDelta(t, 0.75, confidence, 1e-9)
}

func TestScoreStock_NoDataAtAll(t *testing.T) {
	min := 0.05
	criteria := DefaultCriteria()
	criteria.Scoring = map[string]ScoringRule{
		"roe": {Ideal: 0.20, Min: &min, Weight: 2.0},
	}

	rec := &fundamentals.Record{Symbol: "EMPTY"}

	score, confidence := ScoreStock(rec, criteria)
	assert.Equal(t, 0.0, score)
	assert.Equal(t, 0.0, confidence)
}

func TestScoreStock_SectorOverrideApplies(t *testing.T) {
	maxBase := 1.0
	maxREIT := 4.0
	criteria := DefaultCriteria()
	criteria.Scoring = map[string]ScoringRule{
		"debt_equity": {Ideal: 0.5, Max: &maxBase, Weight: 1.0},
	}
	criteria.SectorOverrides = map[string]map[string]ScoringRule{
		"Real Estate": {
			"debt_equity": {Ideal: 2.0, Max: &maxREIT, Weight: 1.0},
		},
	}

	tech := &fundamentals.Record{Symbol: "TECH", Sector: "Technology", DebtEquity: fundamentals.F(2.0)}
	reit := &fundamentals.Record{Symbol: "REIT", Sector: "Real Estate", DebtEquity: fundamentals.F(2.0)}

	scoreTech, _ := ScoreStock(tech, criteria)
	scoreREIT, _ := ScoreStock(reit, criteria)

	assert.Equal(t, 0.0, scoreTech, "2x leverage is past the base bound")
	assert.Equal(t, 100.0, scoreREIT, "override tolerates REIT leverage")
}
