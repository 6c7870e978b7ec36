package bubble

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steward-labs/steward/internal/modules/fundamentals"
)

func TestAnalyze_CleanStockProducesNoWarning(t *testing.T) {
	rec := &fundamentals.Record{
		Symbol:        "SAFE",
		Price:         80,
		MarketCap:     50e9,
		PERatio:       fundamentals.F(18),
		RevenueGrowth: fundamentals.F(0.08),
	}

	assert.Nil(t, Analyze(rec, nil))
}

func TestAnalyze_ExtremePEWithWeakGrowth(t *testing.T) {
	rec := &fundamentals.Record{
		Symbol:        "FROTH",
		Name:          "Froth Inc",
		Price:         200,
		PERatio:       fundamentals.F(120),
		RevenueGrowth: fundamentals.F(0.05),
	}

	warning := Analyze(rec, nil)
	require.NotNil(t, warning)
	assert.Equal(t, 2, warning.SignalCount, "weak-growth and extreme-speculation signals both fire")
	assert.Equal(t, RiskMedium, warning.RiskLevel)
}

func TestAnalyze_HighRiskAtThreeSignals(t *testing.T) {
	rec := &fundamentals.Record{
		Symbol:          "YOLO",
		Price:           150,
		PERatio:         fundamentals.F(150),
		RevenueGrowth:   fundamentals.F(0.02),
		PriceToSales:    fundamentals.F(35),
		TargetMeanPrice: fundamentals.F(90),
	}

	warning := Analyze(rec, nil)
	require.NotNil(t, warning)
	assert.GreaterOrEqual(t, warning.SignalCount, 3)
	assert.Equal(t, RiskHigh, warning.RiskLevel)
	assert.Contains(t, warning.Summary, "disconnected from fundamentals")
}

func TestAnalyze_InsiderSelling(t *testing.T) {
	rec := &fundamentals.Record{
		Symbol:     "DUMP",
		Price:      50,
		DebtEquity: fundamentals.F(3.5),
	}
	insider := &InsiderActivity{Buys: 1, Sells: 12, Brief: "12 sells, 1 buys recently"}

	warning := Analyze(rec, insider)
	require.NotNil(t, warning)
	assert.Equal(t, 2, warning.SignalCount)
	assert.Contains(t, warning.Summary, "Insiders are selling")
}

func TestAnalyze_NegativeEarningsLargeCap(t *testing.T) {
	rec := &fundamentals.Record{
		Symbol:    "BURN",
		Price:     30,
		MarketCap: 25e9,
		PERatio:   fundamentals.F(-10),
	}

	warning := Analyze(rec, nil)
	require.NotNil(t, warning)
	assert.Equal(t, 1, warning.SignalCount)
}

type stubBubbleProvider struct {
	records map[string]*fundamentals.Record
}

func (s *stubBubbleProvider) Lookup(_ context.Context, symbol string) (*fundamentals.Record, error) {
	if rec, ok := s.records[symbol]; ok {
		return rec, nil
	}
	return nil, fundamentals.ErrNotAvailable
}

func (s *stubBubbleProvider) Statements(_ context.Context, _ string) (*fundamentals.Statements, error) {
	return nil, fundamentals.ErrNotAvailable
}

func TestScan_FiltersAndSorts(t *testing.T) {
	provider := &stubBubbleProvider{records: map[string]*fundamentals.Record{
		"SAFE": {Symbol: "SAFE", Price: 80, PERatio: fundamentals.F(18)},
		"ONE": {
			Symbol: "ONE", Price: 30, MarketCap: 25e9,
			PERatio: fundamentals.F(-10),
		},
		"TWO": {
			Symbol: "TWO", Price: 200,
			PERatio:       fundamentals.F(120),
			RevenueGrowth: fundamentals.F(0.05),
		},
		"THREE": {
			Symbol: "THREE", Price: 150,
			PERatio:         fundamentals.F(150),
			RevenueGrowth:   fundamentals.F(0.02),
			PriceToSales:    fundamentals.F(35),
			TargetMeanPrice: fundamentals.F(90),
		},
	}}
	detector := NewDetector(provider, nil, zerolog.Nop())

	warnings := detector.Scan(context.Background(), []string{"SAFE", "ONE", "TWO", "THREE", "GONE"})

	require.Len(t, warnings, 2, "single-signal and clean stocks are excluded")
	assert.Equal(t, "THREE", warnings[0].Symbol, "most signals first")
	assert.Equal(t, "TWO", warnings[1].Symbol)
}
