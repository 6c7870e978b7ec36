package fundamentals

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveTrendMetrics_FullHistory(t *testing.T) {
	rec := &Record{Symbol: "ACME"}
	stmts := &Statements{
		Symbol: "ACME",
		Years: []AnnualReport{
			{Revenue: F(1400), NetIncome: F(140), OperatingIncome: F(280), Equity: F(700), TotalDebt: F(300), FreeCashFlow: F(126)},
			{Revenue: F(1300), NetIncome: F(130), OperatingIncome: F(260), Equity: F(650), TotalDebt: F(300), FreeCashFlow: F(117)},
			{Revenue: F(1200), NetIncome: F(120), OperatingIncome: F(240), Equity: F(600), TotalDebt: F(300), FreeCashFlow: F(108)},
			{Revenue: F(1100), NetIncome: F(110), OperatingIncome: F(220), Equity: F(550), TotalDebt: F(300), FreeCashFlow: F(99)},
			{Revenue: F(1000), NetIncome: F(100), OperatingIncome: F(200), Equity: F(500), TotalDebt: F(300), FreeCashFlow: F(90)},
		},
	}

	DeriveTrendMetrics(rec, stmts)

	require.NotNil(t, rec.ROEConsistency)
	assert.InDelta(t, 0.0, *rec.ROEConsistency, 1e-9, "constant ROE has zero stddev")

	require.NotNil(t, rec.ROIC)
	assert.InDelta(t, 140.0/(700.0+300.0), *rec.ROIC, 1e-9)

	require.NotNil(t, rec.MarginStability)
	assert.InDelta(t, 0.0, *rec.MarginStability, 1e-9, "constant 20% margin has zero stddev")

	require.NotNil(t, rec.EarningsConsistency)
	assert.InDelta(t, 1.0, *rec.EarningsConsistency, 1e-9, "income grew every year")

	require.NotNil(t, rec.RevenueCAGR)
	assert.InDelta(t, math.Pow(1400.0/1000.0, 0.25)-1, *rec.RevenueCAGR, 1e-9)

	require.NotNil(t, rec.FCFConsistency)
	assert.InDelta(t, 0.0, *rec.FCFConsistency, 1e-9, "constant 0.9 conversion has zero stddev")
}

func TestDeriveTrendMetrics_PartialData(t *testing.T) {
	rec := &Record{Symbol: "GAPS"}
	stmts := &Statements{
		Symbol: "GAPS",
		Years: []AnnualReport{
			{Revenue: F(1200), NetIncome: F(90), Equity: F(600)},
			{Revenue: F(1000), NetIncome: F(100), Equity: F(500)},
			{Revenue: F(900), NetIncome: F(80), Equity: F(450)},
		},
	}

	DeriveTrendMetrics(rec, stmts)

	assert.NotNil(t, rec.ROEConsistency)
	assert.NotNil(t, rec.RevenueCAGR)
	assert.NotNil(t, rec.EarningsConsistency)

	assert.Nil(t, rec.MarginStability, "no operating income anywhere")
	assert.Nil(t, rec.FCFConsistency, "no free cash flow anywhere")

	require.NotNil(t, rec.ROIC, "missing debt counts as zero")
	assert.InDelta(t, 90.0/600.0, *rec.ROIC, 1e-9)
}

func TestDeriveTrendMetrics_EarningsRatio(t *testing.T) {
	rec := &Record{Symbol: "CHOP"}
	// Chronological: 100 -> 120 (up), 120 -> 110 (down), 110 -> 130 (up), 130 -> 125 (down).
	stmts := &Statements{
		Symbol: "CHOP",
		Years: []AnnualReport{
			{NetIncome: F(125), Equity: F(500)},
			{NetIncome: F(130), Equity: F(500)},
			{NetIncome: F(110), Equity: F(500)},
			{NetIncome: F(120), Equity: F(500)},
			{NetIncome: F(100), Equity: F(500)},
		},
	}

	DeriveTrendMetrics(rec, stmts)

	require.NotNil(t, rec.EarningsConsistency)
	assert.InDelta(t, 0.5, *rec.EarningsConsistency, 1e-9, "2 growth years out of 4 observed")
}

func TestDeriveTrendMetrics_InsufficientHistory(t *testing.T) {
	rec := &Record{Symbol: "NEW"}
	stmts := &Statements{
		Symbol: "NEW",
		Years: []AnnualReport{
			{Revenue: F(1000), NetIncome: F(100), Equity: F(500), TotalDebt: F(200)},
		},
	}

	DeriveTrendMetrics(rec, stmts)

	assert.Nil(t, rec.ROEConsistency)
	assert.Nil(t, rec.EarningsConsistency)
	assert.Nil(t, rec.RevenueCAGR)
	assert.Nil(t, rec.ROIC, "one year is not enough history")
}

func TestDeriveTrendMetrics_NilStatements(t *testing.T) {
	rec := &Record{Symbol: "NODATA"}

	DeriveTrendMetrics(rec, nil)
	DeriveTrendMetrics(rec, &Statements{Symbol: "NODATA"})

	assert.Nil(t, rec.ROEConsistency)
	assert.Nil(t, rec.ROIC)
	assert.Nil(t, rec.RevenueCAGR)
}
