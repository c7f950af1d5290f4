package analysis

import (
	"salvadanaio/internal/core"
)

// CompareMonthlyPerformance pairs every theoretical month with the actual
// amount recorded for it. Contributions without an actual amount are ignored,
// so a month with no usable record compares against zero. The output follows
// the order of theoretical and never drops an entry.
//
// Contributions are assumed unique per (year, month).
func CompareMonthlyPerformance(contributions []core.Contribution, theoretical []TheoreticalContribution) []MonthlyPerformanceComparison {
	actuals := make(map[core.YearMonth]core.Money, len(contributions))
	for _, c := range contributions {
		if !c.HasActual() {
			continue
		}
		actuals[c.Period] = *c.ActualAmount
	}

	out := make([]MonthlyPerformanceComparison, 0, len(theoretical))
	for _, t := range theoretical {
		actual, ok := actuals[t.Period()]
		if !ok {
			actual = core.Zero
		}
		variance := actual.Sub(t.TheoreticalAmount)
		out = append(out, MonthlyPerformanceComparison{
			Year:             t.Year,
			Month:            t.Month,
			Theoretical:      t.TheoreticalAmount,
			Actual:           actual,
			Variance:         variance,
			IsOnTrack:        variance.IsNonNegative(),
			PerformanceRatio: performanceRatio(actual, t.TheoreticalAmount),
		})
	}
	return out
}

// performanceRatio is actual/theoretical; without a positive theoretical
// amount it is 1 for any positive actual and 0 otherwise.
func performanceRatio(actual, theoretical core.Money) float64 {
	if !theoretical.IsPositive() {
		if actual.IsPositive() {
			return 1
		}
		return 0
	}
	q, err := actual.Div(theoretical)
	if err != nil {
		return 0
	}
	return q.Float64()
}
