package analysis

import (
	"salvadanaio/internal/core"
)

var hundred = core.NewMoneyFromInt(100)

// CalculatePerformanceMetrics reduces monthly comparisons to summary
// statistics. Total theoretical comes from the theoretical schedule and total
// actual from the comparisons.
func CalculatePerformanceMetrics(comparisons []MonthlyPerformanceComparison, theoretical []TheoreticalContribution) PerformanceMetrics {
	totalTheoretical := core.Zero
	for _, t := range theoretical {
		totalTheoretical = totalTheoretical.Add(t.TheoreticalAmount)
	}

	totalActual := core.Zero
	onTrack, withContribution := 0, 0
	for _, c := range comparisons {
		totalActual = totalActual.Add(c.Actual)
		if c.IsOnTrack {
			onTrack++
		}
		if !c.Actual.IsZero() {
			withContribution++
		}
	}

	consistency := 0.0
	if len(comparisons) > 0 {
		consistency = float64(withContribution) / float64(len(comparisons)) * 100
	}

	return PerformanceMetrics{
		TotalTheoretical:      totalTheoretical,
		TotalActual:           totalActual,
		TotalVariance:         totalActual.Sub(totalTheoretical),
		PerformancePercentage: percentage(totalActual, totalTheoretical),
		MonthsAnalyzed:        len(comparisons),
		MonthsOnTrack:         onTrack,
		ConsistencyScore:      consistency,
	}
}

// percentage is part/total*100, or 0 when total is not positive.
func percentage(part, total core.Money) float64 {
	if !total.IsPositive() {
		return 0
	}
	q, err := part.Div(total)
	if err != nil {
		return 0
	}
	return q.Mul(hundred).Float64()
}
