package fundamentals

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Trend metrics need at least two observed years to say anything.
const minTrendYears = 2

// DeriveTrendMetrics computes the trend-based quality metrics from multi-year
// statements and fills them into the record. Each metric degrades
// individually: a missing statement line leaves that one metric nil and the
// rest intact.
//
// Statements are expected newest year first, matching provider order.
func DeriveTrendMetrics(rec *Record, stmts *Statements) {
	if stmts == nil || len(stmts.Years) < minTrendYears {
		return
	}

	rec.ROEConsistency = roeConsistency(stmts.Years)
	rec.ROIC = returnOnInvestedCapital(stmts.Years)
	rec.MarginStability = marginStability(stmts.Years)
	rec.EarningsConsistency = earningsConsistency(stmts.Years)
	rec.RevenueCAGR = revenueCAGR(stmts.Years)
	rec.FCFConsistency = fcfConsistency(stmts.Years)
}

// roeConsistency is the standard deviation of yearly net income / equity.
// Lower is better - a steady franchise earns steadily on its equity.
func roeConsistency(years []AnnualReport) *float64 {
	var series []float64
	for _, y := range years {
		if y.NetIncome == nil || y.Equity == nil || *y.Equity == 0 {
			continue
		}
		ratio := *y.NetIncome / *y.Equity
		if math.IsInf(ratio, 0) || math.IsNaN(ratio) {
			continue
		}
		series = append(series, ratio)
	}
	if len(series) < minTrendYears {
		return nil
	}
	return F(stat.StdDev(series, nil))
}

// returnOnInvestedCapital is latest-year net income over equity plus debt.
// Missing debt is treated as zero; missing equity makes ROIC unavailable.
func returnOnInvestedCapital(years []AnnualReport) *float64 {
	latest := years[0]
	if latest.NetIncome == nil || latest.Equity == nil {
		return nil
	}
	invested := *latest.Equity
	if latest.TotalDebt != nil {
		invested += *latest.TotalDebt
	}
	if invested <= 0 {
		return nil
	}
	return F(*latest.NetIncome / invested)
}

// marginStability is the standard deviation of yearly operating margin.
func marginStability(years []AnnualReport) *float64 {
	var series []float64
	for _, y := range years {
		if y.OperatingIncome == nil || y.Revenue == nil || *y.Revenue == 0 {
			continue
		}
		margin := *y.OperatingIncome / *y.Revenue
		if math.IsInf(margin, 0) || math.IsNaN(margin) {
			continue
		}
		series = append(series, margin)
	}
	if len(series) < minTrendYears {
		return nil
	}
	return F(stat.StdDev(series, nil))
}

// earningsConsistency is the fraction of observed year-over-year transitions
// with earnings growth: years-of-growth / years-observed.
func earningsConsistency(years []AnnualReport) *float64 {
	var chronological []float64
	// Statements arrive newest first; walk backwards for chronological order.
	for i := len(years) - 1; i >= 0; i-- {
		if years[i].NetIncome == nil {
			continue
		}
		chronological = append(chronological, *years[i].NetIncome)
	}
	if len(chronological) < minTrendYears {
		return nil
	}

	growthYears := 0
	for i := 1; i < len(chronological); i++ {
		if chronological[i] > chronological[i-1] {
			growthYears++
		}
	}
	return F(float64(growthYears) / float64(len(chronological)-1))
}

// revenueCAGR is (latest / earliest)^(1/years) - 1 over the observed span.
func revenueCAGR(years []AnnualReport) *float64 {
	latest := years[0].Revenue
	earliest := years[len(years)-1].Revenue
	span := len(years) - 1
	if latest == nil || earliest == nil || span < 1 {
		return nil
	}
	if *earliest <= 0 || *latest <= 0 {
		return nil
	}
	return F(math.Pow(*latest / *earliest, 1.0/float64(span)) - 1.0)
}

// fcfConsistency is the standard deviation of yearly FCF / net income,
// over years with positive net income.
func fcfConsistency(years []AnnualReport) *float64 {
	var series []float64
	for _, y := range years {
		if y.FreeCashFlow == nil || y.NetIncome == nil || *y.NetIncome <= 0 {
			continue
		}
		ratio := *y.FreeCashFlow / *y.NetIncome
		if math.IsInf(ratio, 0) || math.IsNaN(ratio) {
			continue
		}
		series = append(series, ratio)
	}
	if len(series) < minTrendYears {
		return nil
	}
	return F(stat.StdDev(series, nil))
}
