package regime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestClassify_Crisis(t *testing.T) {
	result := Classify(Signals{
		VolatilityIndex: f(45.0),
		Drawdown:        f(-0.25),
		MA200Distance:   f(-0.12),
	})

	assert.Equal(t, Crisis, result.Regime)
	assert.Equal(t, ConfidenceModerate, result.Confidence, "2 of 3 votes agree")
	assert.Equal(t, TemperatureCold, result.Temperature)
	assert.Contains(t, result.Guidance, "Deployment window open")
}

func TestClassify_Euphoria(t *testing.T) {
	result := Classify(Signals{
		MarketPE:        f(32.0),
		VolatilityIndex: f(11.0),
		Drawdown:        f(0.0),
		MA200Distance:   f(0.18),
	})

	assert.Equal(t, Euphoria, result.Regime)
	assert.Equal(t, ConfidenceHigh, result.Confidence, "3 of 4 votes agree")
	assert.Equal(t, TemperatureHot, result.Temperature)
}

func TestClassify_FairValue(t *testing.T) {
	result := Classify(Signals{
		MarketPE:        f(18.0),
		VolatilityIndex: f(16.0),
		MA200Distance:   f(0.02),
	})

	assert.Equal(t, FairValue, result.Regime)
	assert.Equal(t, ConfidenceHigh, result.Confidence)
	assert.Equal(t, TemperatureCool, result.Temperature)
}

func TestClassify_NoSignals(t *testing.T) {
	result := Classify(Signals{})

	assert.Equal(t, FairValue, result.Regime)
	assert.Equal(t, ConfidenceLow, result.Confidence)
	assert.Empty(t, result.Notes)
}

func TestClassify_ConflictResolvesConservatively(t *testing.T) {
	// Euphoric valuation but crisis-level fear: two-way tie.
	result := Classify(Signals{
		MarketPE:        f(31.0),
		VolatilityIndex: f(41.0),
	})

	assert.NotEqual(t, ConfidenceHigh, result.Confidence)
	assert.Contains(t, []Regime{FairValue, Overvalued, Correction}, result.Regime,
		"tie must not land on an extreme regime")
}

func TestClassify_ConfidenceBands(t *testing.T) {
	// 2 correction votes out of 4: exactly half.
	result := Classify(Signals{
		MarketPE:        f(14.0),
		VolatilityIndex: f(32.0),
		Drawdown:        f(0.01),
		MA200Distance:   f(0.01),
	})

	assert.Equal(t, Correction, result.Regime)
	assert.Equal(t, ConfidenceModerate, result.Confidence)
}

func TestClassify_DrawdownMidRangeDoesNotVote(t *testing.T) {
	// 5% off the peak is neither correction nor a new high.
	result := Classify(Signals{Drawdown: f(-0.05)})

	assert.Equal(t, FairValue, result.Regime)
	assert.Equal(t, ConfidenceLow, result.Confidence)
	assert.Empty(t, result.Notes)
}

func TestTechnicals(t *testing.T) {
	closes := make([]float64, 260)
	for i := range closes {
		closes[i] = 100.0
	}
	closes[200] = 120.0 // 52-week peak
	closes[259] = 108.0 // current

	drawdown, maDist := Technicals(closes)

	require.NotNil(t, drawdown)
	assert.InDelta(t, (108.0-120.0)/120.0, *drawdown, 1e-9)
	require.NotNil(t, maDist)
	assert.Greater(t, *maDist, 0.0, "current sits above the flat average")
}

func TestTechnicals_TooLittleHistory(t *testing.T) {
	drawdown, maDist := Technicals(make([]float64, 10))
	assert.Nil(t, drawdown)
	assert.Nil(t, maDist)
}
