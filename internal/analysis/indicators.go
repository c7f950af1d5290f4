package analysis

import (
	"fmt"
	"math"
	"time"

	"salvadanaio/internal/core"
)

// PerformanceStatus classifies a single month.
type PerformanceStatus string

const (
	StatusAhead          PerformanceStatus = "ahead"
	StatusOnTrack        PerformanceStatus = "on-track"
	StatusBehind         PerformanceStatus = "behind"
	StatusNoContribution PerformanceStatus = "no-contribution"
)

// DefaultTolerance is the band around 100% still considered on track.
const DefaultTolerance = 0.1

// Label is the human readable form used in exports.
func (s PerformanceStatus) Label() string {
	switch s {
	case StatusAhead:
		return "Ahead"
	case StatusOnTrack:
		return "On Track"
	case StatusBehind:
		return "Behind"
	case StatusNoContribution:
		return "No Contribution"
	}
	return string(s)
}

// MonthlyIndicator is the per-month badge shown next to a comparison.
type MonthlyIndicator struct {
	Year       int               `json:"year"`
	Month      int               `json:"month"`
	Status     PerformanceStatus `json:"status"`
	Percentage int               `json:"percentage"`
	Tooltip    string            `json:"tooltip"`
}

// MonthStatus grades actual against theoretical. A ratio of at least
// 1+tolerance is ahead, at least 1-tolerance on track, anything lower
// behind. A zero actual is always no-contribution, and any actual against a
// non-positive theoretical is ahead.
func MonthStatus(actual, theoretical core.Money, tolerance float64) PerformanceStatus {
	if actual.IsZero() {
		return StatusNoContribution
	}
	if !theoretical.IsPositive() {
		return StatusAhead
	}
	ratio := performanceRatio(actual, theoretical)
	switch {
	case ratio >= 1+tolerance:
		return StatusAhead
	case ratio >= 1-tolerance:
		return StatusOnTrack
	default:
		return StatusBehind
	}
}

// PerformanceIndicators grades every comparison with DefaultTolerance.
func PerformanceIndicators(comparisons []MonthlyPerformanceComparison) []MonthlyIndicator {
	out := make([]MonthlyIndicator, 0, len(comparisons))
	for _, c := range comparisons {
		pct := roundHalfUp(c.PerformanceRatio * 100)
		out = append(out, MonthlyIndicator{
			Year:       c.Year,
			Month:      c.Month,
			Status:     MonthStatus(c.Actual, c.Theoretical, DefaultTolerance),
			Percentage: pct,
			Tooltip: fmt.Sprintf("%s %d: %d%% of target (%s / %s)",
				ShortMonthName(c.Month), c.Year, pct, c.Actual.StringFixed(), c.Theoretical.StringFixed()),
		})
	}
	return out
}

// ShortMonthName returns "Jan".."Dec" for 1..12.
func ShortMonthName(month int) string {
	return time.Month(month).String()[:3]
}

// roundHalfUp rounds to the nearest integer, halves towards +Inf.
func roundHalfUp(f float64) int {
	return int(math.Floor(f + 0.5))
}
