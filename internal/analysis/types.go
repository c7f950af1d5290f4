// Package analysis implements the retroactive performance analysis of a
// savings goal: it rebuilds the month-by-month schedule the goal should have
// followed since its start date, lines it up with the contributions actually
// recorded, and reduces the comparison to summary metrics.
//
// Every function here is pure. Results are built fresh on each call and are
// never mutated afterwards, so they are safe to share between goroutines and
// to memoize.
package analysis

import (
	"time"

	"salvadanaio/internal/core"
)

type (
	// TheoreticalContribution is what should have been saved in one month
	// had the expected monthly amount been paid on schedule.
	TheoreticalContribution struct {
		Year                  int        `json:"year"`
		Month                 int        `json:"month"`
		TheoreticalAmount     core.Money `json:"theoreticalAmount"`
		CumulativeTheoretical core.Money `json:"cumulativeTheoretical"`
	}

	// MonthlyPerformanceComparison lines up one theoretical month with the
	// actual amount recorded for it.
	MonthlyPerformanceComparison struct {
		Year             int        `json:"year"`
		Month            int        `json:"month"`
		Theoretical      core.Money `json:"theoretical"`
		Actual           core.Money `json:"actual"`
		Variance         core.Money `json:"variance"`
		IsOnTrack        bool       `json:"isOnTrack"`
		PerformanceRatio float64    `json:"performanceRatio"`
	}

	// PerformanceMetrics summarizes a set of monthly comparisons.
	PerformanceMetrics struct {
		TotalTheoretical      core.Money `json:"totalTheoretical"`
		TotalActual           core.Money `json:"totalActual"`
		TotalVariance         core.Money `json:"totalVariance"`
		PerformancePercentage float64    `json:"performancePercentage"`
		MonthsAnalyzed        int        `json:"monthsAnalyzed"`
		MonthsOnTrack         int        `json:"monthsOnTrack"`
		// ConsistencyScore is the percentage of analyzed months with a
		// nonzero actual contribution.
		ConsistencyScore float64 `json:"consistencyScore"`
	}

	// Result is the full output of AnalyzeGoalPerformance.
	Result struct {
		Metrics                  PerformanceMetrics             `json:"metrics"`
		MonthlyComparisons       []MonthlyPerformanceComparison `json:"monthlyComparisons"`
		TheoreticalContributions []TheoreticalContribution      `json:"theoreticalContributions"`
		StartDate                time.Time                      `json:"startDate"`
		EndDate                  time.Time                      `json:"endDate"`
	}

	// Options overrides parts of the analysis window.
	Options struct {
		// EndDate closes the window; the zero value means "now".
		EndDate time.Time
	}

	// QuickSummary is the cheap preview of an analysis.
	//
	// HasRetroactiveData is false both when there is nothing to analyze yet
	// and when the analysis failed; in the latter case Unavailable holds the
	// cause.
	QuickSummary struct {
		HasRetroactiveData    bool        `json:"hasRetroactiveData"`
		PeriodDescription     string      `json:"periodDescription,omitempty"`
		PerformancePercentage *float64    `json:"performancePercentage,omitempty"`
		TotalVariance         *core.Money `json:"totalVariance,omitempty"`
		Unavailable           error       `json:"-"`
	}
)

// Period returns the (year, month) of a theoretical entry.
func (t TheoreticalContribution) Period() core.YearMonth {
	return core.YearMonth{Year: t.Year, Month: t.Month}
}

// Period returns the (year, month) of a comparison.
func (c MonthlyPerformanceComparison) Period() core.YearMonth {
	return core.YearMonth{Year: c.Year, Month: c.Month}
}
